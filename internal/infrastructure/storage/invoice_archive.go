// Package storage archives issued invoices to S3-compatible object storage.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	appfee "github.com/academy/backend/internal/application/fee"
	"github.com/academy/backend/internal/domain/fee"
	"github.com/academy/backend/internal/infrastructure/config"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var _ appfee.InvoiceArchive = (*S3InvoiceArchive)(nil)

// objectAPI is the part of *s3.Client the archive needs
type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, in *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
}

// S3InvoiceArchive writes one JSON object per invoice number. Objects are
// never overwritten. Works against AWS S3, MinIO, RustFS and the like.
type S3InvoiceArchive struct {
	client objectAPI
	bucket string
	logger *zap.Logger
}

// S3InvoiceArchiveOption is a functional option for configuring S3InvoiceArchive
type S3InvoiceArchiveOption func(*S3InvoiceArchive)

// WithLogger sets a custom logger for S3InvoiceArchive
func WithLogger(logger *zap.Logger) S3InvoiceArchiveOption {
	return func(a *S3InvoiceArchive) {
		a.logger = logger
	}
}

// NewS3InvoiceArchive creates an archive from configuration.
func NewS3InvoiceArchive(cfg *config.StorageConfig, opts ...S3InvoiceArchiveOption) (*S3InvoiceArchive, error) {
	if cfg == nil {
		return nil, errors.New("storage configuration is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}
	if cfg.AccessKey == "" {
		return nil, errors.New("storage access key is required")
	}
	if cfg.SecretKey == "" {
		return nil, errors.New("storage secret key is required")
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	endpoint := normalizeEndpoint(cfg.Endpoint, cfg.UseSSL)
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return newS3InvoiceArchive(client, cfg.Bucket, opts...), nil
}

func newS3InvoiceArchive(client objectAPI, bucket string, opts ...S3InvoiceArchiveOption) *S3InvoiceArchive {
	a := &S3InvoiceArchive{client: client, bucket: bucket, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// normalizeEndpoint adds a scheme to a bare host. Empty means the AWS default.
func normalizeEndpoint(endpoint string, useSSL bool) string {
	if endpoint == "" || strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	if useSSL {
		return "https://" + endpoint
	}
	return "http://" + endpoint
}

// Bucket returns the bucket name
func (a *S3InvoiceArchive) Bucket() string {
	return a.bucket
}

// InvoiceKey is the object key of an invoice: one prefix per tenant and
// billing month.
func InvoiceKey(tenantID uuid.UUID, invoice fee.InvoiceBreakdown) string {
	return fmt.Sprintf("invoices/%s/%s/%s.json",
		tenantID, invoice.GeneratedAt.Format("200601"), invoice.InvoiceNumber)
}

// Archive stores the invoice and returns its key.
func (a *S3InvoiceArchive) Archive(ctx context.Context, tenantID uuid.UUID, invoice fee.InvoiceBreakdown) (string, error) {
	if invoice.InvoiceNumber == "" {
		return "", errors.New("invoice number is required")
	}
	body, err := json.Marshal(invoice)
	if err != nil {
		return "", fmt.Errorf("failed to encode invoice: %w", err)
	}

	key := InvoiceKey(tenantID, invoice)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
		IfNoneMatch: aws.String("*"),
		Metadata: map[string]string{
			"tenant-id":  tenantID.String(),
			"account-id": invoice.AccountID,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload invoice %s: %w", invoice.InvoiceNumber, err)
	}

	a.logger.Debug("invoice archived",
		zap.String("bucket", a.bucket),
		zap.String("key", key),
	)
	return key, nil
}

// Ping checks the bucket is reachable.
func (a *S3InvoiceArchive) Ping(ctx context.Context) error {
	_, err := a.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(a.bucket)})
	if err != nil {
		return fmt.Errorf("failed to reach bucket %s: %w", a.bucket, err)
	}
	return nil
}

// EnsureBucket creates the bucket if it doesn't exist. Call it on startup.
func (a *S3InvoiceArchive) EnsureBucket(ctx context.Context) error {
	_, err := a.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(a.bucket)})
	if err == nil {
		return nil
	}

	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	a.logger.Info("Creating invoice bucket", zap.String("bucket", a.bucket))
	_, err = a.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(a.bucket)})
	if err != nil {
		// lost a race with another instance
		var alreadyOwned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &alreadyOwned) {
			return nil
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}
