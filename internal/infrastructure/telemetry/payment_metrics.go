package telemetry

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// PaymentMetrics tracks payment intake and number allocation.
type PaymentMetrics struct {
	paymentsRecorded  *Counter
	amountCollected   *Counter
	validationsFailed *Counter
	remindersSent     *Counter
	numberAllocation  *Histogram
}

// NewPaymentMetrics registers the payment instruments on meter.
func NewPaymentMetrics(meter metric.Meter) (*PaymentMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	var (
		pm  PaymentMetrics
		err error
	)
	if pm.paymentsRecorded, err = NewCounter(meter,
		"academy_payments_recorded_total", "Ledger entries recorded", "{payments}"); err != nil {
		return nil, err
	}
	if pm.amountCollected, err = NewCounter(meter,
		"academy_payment_amount_total", "Amount collected in minor units", "{minor}"); err != nil {
		return nil, err
	}
	if pm.validationsFailed, err = NewCounter(meter,
		"academy_payment_validation_failures_total", "Payments rejected by validation", "{payments}"); err != nil {
		return nil, err
	}
	if pm.remindersSent, err = NewCounter(meter,
		"academy_reminders_sent_total", "Fee reminders dispatched", "{reminders}"); err != nil {
		return nil, err
	}
	if pm.numberAllocation, err = NewHistogram(meter, HistogramOpts{
		Name:        "academy_number_allocation_duration_seconds",
		Description: "Time to allocate a receipt or invoice number",
		Unit:        "s",
		Boundaries:  SmallDurationBuckets,
	}); err != nil {
		return nil, err
	}
	return &pm, nil
}

// RecordPayment counts one recorded payment and its amount.
func (m *PaymentMetrics) RecordPayment(ctx context.Context, tenantID, planType, mode, status string, amount decimal.Decimal) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		AttrTenantID.String(tenantID),
		AttrPlanType.String(planType),
		AttrPaymentMode.String(mode),
		AttrPaymentStatus.String(status),
	}
	m.paymentsRecorded.Inc(ctx, attrs...)
	m.amountCollected.Add(ctx, amount.Shift(2).IntPart(), attrs...)
}

// RecordValidationFailure counts one rejected payment.
func (m *PaymentMetrics) RecordValidationFailure(ctx context.Context, tenantID, planType string) {
	if m == nil {
		return
	}
	m.validationsFailed.Inc(ctx, AttrTenantID.String(tenantID), AttrPlanType.String(planType))
}

// RecordReminder counts one dispatched reminder.
func (m *PaymentMetrics) RecordReminder(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.remindersSent.Inc(ctx, AttrOutcome.String(outcome))
}

// RecordNumberAllocation records how long a sequence increment took.
func (m *PaymentMetrics) RecordNumberAllocation(ctx context.Context, scope string, d time.Duration) {
	if m == nil {
		return
	}
	m.numberAllocation.RecordDuration(ctx, d, AttrScope.String(scope))
}
