package fee

import (
	"context"
	"fmt"
	"time"

	"github.com/academy/backend/internal/domain/fee"
	"github.com/academy/backend/internal/domain/shared"
	"github.com/academy/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
)

// Default document prefixes
const (
	DefaultReceiptPrefix = "RCP"
	DefaultInvoicePrefix = "INV"
)

// NumberGenerator issues receipt and invoice numbers of the form
// PREFIX-yyyymm-NNNN. Uniqueness rests entirely on the counter's atomic
// increment; the generator keeps no state of its own.
type NumberGenerator struct {
	counter       fee.SequenceCounter
	receiptPrefix string
	invoicePrefix string
	location      *time.Location
	metrics       *telemetry.PaymentMetrics
}

// NewNumberGenerator creates a generator over counter. Empty prefixes fall
// back to RCP and INV; a nil location means UTC.
func NewNumberGenerator(counter fee.SequenceCounter, receiptPrefix, invoicePrefix string, loc *time.Location) *NumberGenerator {
	if receiptPrefix == "" {
		receiptPrefix = DefaultReceiptPrefix
	}
	if invoicePrefix == "" {
		invoicePrefix = DefaultInvoicePrefix
	}
	if loc == nil {
		loc = time.UTC
	}
	return &NumberGenerator{
		counter:       counter,
		receiptPrefix: receiptPrefix,
		invoicePrefix: invoicePrefix,
		location:      loc,
	}
}

// SetMetrics enables allocation timing.
func (g *NumberGenerator) SetMetrics(m *telemetry.PaymentMetrics) {
	g.metrics = m
}

// NextReceiptNumber allocates the next receipt number for the month of at.
func (g *NumberGenerator) NextReceiptNumber(ctx context.Context, tenantID uuid.UUID, at time.Time) (string, error) {
	return g.next(ctx, tenantID, fee.ScopeReceipt, g.receiptPrefix, at)
}

// NextInvoiceNumber allocates the next invoice number for the month of at.
func (g *NumberGenerator) NextInvoiceNumber(ctx context.Context, tenantID uuid.UUID, at time.Time) (string, error) {
	return g.next(ctx, tenantID, fee.ScopeInvoice, g.invoicePrefix, at)
}

func (g *NumberGenerator) next(ctx context.Context, tenantID uuid.UUID, scope, prefix string, at time.Time) (string, error) {
	if tenantID == uuid.Nil {
		return "", shared.ErrTenantRequired
	}
	ctx, span := telemetry.StartServiceSpan(ctx, "numbering", "next")
	defer span.End()

	period := at.In(g.location)
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, tenantID.String(),
		telemetry.SpanAttrScope, scope,
		"period", fee.PeriodKey(period),
	)

	start := time.Now()
	seq, err := g.counter.Next(ctx, tenantID, scope, fee.PeriodKey(period))
	g.metrics.RecordNumberAllocation(ctx, scope, time.Since(start))
	if err != nil {
		telemetry.RecordError(span, err)
		return "", fmt.Errorf("failed to allocate %s number: %w", scope, err)
	}

	number := fee.FormatNumber(prefix, period, seq)
	telemetry.SetAttribute(span, telemetry.SpanAttrDocNumber, number)
	return number, nil
}
