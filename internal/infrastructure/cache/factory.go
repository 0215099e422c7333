package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/academy/backend/internal/domain/fee"
	"github.com/academy/backend/internal/domain/shared"
	"github.com/academy/backend/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// StoreFactory builds the Redis-backed stores. The Redis connection is
// opened on first use and shared by everything the factory hands out.
type StoreFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool

	mu     sync.Mutex
	client *redis.Client
}

// StoreFactoryOption is a functional option for configuring the factory
type StoreFactoryOption func(*StoreFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) StoreFactoryOption {
	return func(f *StoreFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether the idempotency store may fall back
// to process memory when Redis is unreachable. Default is true.
func WithInMemoryFallback(allow bool) StoreFactoryOption {
	return func(f *StoreFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewStoreFactory creates a new factory
func NewStoreFactory(cfg config.RedisConfig, opts ...StoreFactoryOption) *StoreFactory {
	f := &StoreFactory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Client returns the shared Redis client, connecting on the first call
func (f *StoreFactory) Client() (*redis.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.client != nil {
		return f.client, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     f.redisConfig.Addr(),
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", f.redisConfig.Addr(), err)
	}
	f.client = client
	return client, nil
}

// SequenceCounter returns the Redis receipt/invoice counter. There is no
// fallback: a per-process counter would hand out duplicate numbers as soon
// as a second instance runs.
func (f *StoreFactory) SequenceCounter(ttl time.Duration) (fee.SequenceCounter, error) {
	client, err := f.Client()
	if err != nil {
		return nil, fmt.Errorf("Redis counter backend unavailable: %w", err)
	}
	f.logger.Info("using Redis sequence counter", zap.String("addr", f.redisConfig.Addr()))
	return NewRedisSequenceCounter(client, "", ttl), nil
}

// IdempotencyStore returns a Redis store, or an in-memory one when Redis is
// unreachable and fallback is allowed.
func (f *StoreFactory) IdempotencyStore() (shared.IdempotencyStore, error) {
	client, err := f.Client()
	if err == nil {
		f.logger.Info("using Redis idempotency store")
		return NewRedisIdempotencyStore(client, ""), nil
	}
	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("Redis required for idempotency but unavailable: %w", err)
	}
	f.logger.Warn("Redis unavailable, falling back to in-memory idempotency store; "+
		"duplicate notifications are possible with several instances",
		zap.Error(err),
	)
	return NewInMemoryIdempotencyStore(), nil
}

// Close closes the Redis client if one was opened
func (f *StoreFactory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.client == nil {
		return nil
	}
	err := f.client.Close()
	f.client = nil
	return err
}
