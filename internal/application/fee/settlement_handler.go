package fee

import (
	"context"
	"fmt"
	"time"

	"github.com/academy/backend/internal/domain/fee"
	"github.com/academy/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SettlementNotice tells a student that nothing is left to pay on an account
type SettlementNotice struct {
	TenantID  uuid.UUID
	AccountID uuid.UUID
	StudentID uuid.UUID
	TotalPaid decimal.Decimal
	Status    fee.PaymentStatus
	SettledAt time.Time
}

// SettlementNotifier delivers settlement notices
type SettlementNotifier interface {
	NotifySettled(ctx context.Context, n SettlementNotice) error
}

// AccountSettledHandler sends a notice when a fee account is settled.
// Delivery errors are returned so a wrapping IdempotentHandler can count
// them; the bus only logs them.
type AccountSettledHandler struct {
	notifier SettlementNotifier
	logger   *zap.Logger
}

// NewAccountSettledHandler creates a new AccountSettledHandler
func NewAccountSettledHandler(notifier SettlementNotifier, logger *zap.Logger) *AccountSettledHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountSettledHandler{notifier: notifier, logger: logger}
}

// EventTypes returns the event types this handler is interested in
func (h *AccountSettledHandler) EventTypes() []string {
	return []string{fee.EventTypeFeeAccountSettled}
}

// Handle processes a FeeAccountSettledEvent
func (h *AccountSettledHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	settled, ok := event.(*fee.FeeAccountSettledEvent)
	if !ok {
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			fee.EventTypeFeeAccountSettled, event.EventType())
	}

	notice := SettlementNotice{
		TenantID:  settled.TenantID(),
		AccountID: settled.AccountID,
		StudentID: settled.StudentID,
		TotalPaid: settled.TotalPaid,
		Status:    settled.Status,
		SettledAt: settled.OccurredAt(),
	}
	if err := h.notifier.NotifySettled(ctx, notice); err != nil {
		return fmt.Errorf("failed to send settlement notice for account %s: %w", settled.AccountID, err)
	}
	h.logger.Info("settlement notice sent",
		zap.String("tenant_id", notice.TenantID.String()),
		zap.String("fee_account_id", notice.AccountID.String()),
		zap.String("total_paid", notice.TotalPaid.String()),
	)
	return nil
}

// Ensure AccountSettledHandler implements shared.EventHandler
var _ shared.EventHandler = (*AccountSettledHandler)(nil)

// AuditLogHandler writes every payment lifecycle event to the log
type AuditLogHandler struct {
	logger *zap.Logger
}

// NewAuditLogHandler creates a new AuditLogHandler
func NewAuditLogHandler(logger *zap.Logger) *AuditLogHandler {
	return &AuditLogHandler{logger: logger}
}

// EventTypes returns the fee event types
func (h *AuditLogHandler) EventTypes() []string {
	return []string{
		fee.EventTypeFeeAccountCreated,
		fee.EventTypePaymentRecorded,
		fee.EventTypeLedgerEntryDeleted,
		fee.EventTypeFeeAccountRecomputed,
		fee.EventTypeFeeAccountSettled,
		fee.EventTypeReminderDispatched,
	}
}

// Handle logs the event with the fields an auditor looks for
func (h *AuditLogHandler) Handle(_ context.Context, event shared.DomainEvent) error {
	fields := []zap.Field{
		zap.String("event_id", event.EventID().String()),
		zap.String("event_type", event.EventType()),
		zap.String("tenant_id", event.TenantID().String()),
		zap.String("aggregate_type", event.AggregateType()),
		zap.String("aggregate_id", event.AggregateID().String()),
		zap.Time("occurred_at", event.OccurredAt()),
	}

	switch e := event.(type) {
	case *fee.PaymentRecordedEvent:
		fields = append(fields,
			zap.String("receipt_number", e.ReceiptNumber),
			zap.String("amount", e.Amount.String()),
			zap.String("status", string(e.Status)),
			zap.String("outstanding", e.Outstanding.String()),
		)
	case *fee.LedgerEntryDeletedEvent:
		fields = append(fields,
			zap.String("entry_id", e.EntryID.String()),
			zap.String("amount", e.Amount.String()),
			zap.String("deleted_by", e.DeletedBy),
		)
	case *fee.FeeAccountRecomputedEvent:
		fields = append(fields,
			zap.String("total_paid", e.TotalPaid.String()),
			zap.String("outstanding", e.Outstanding.String()),
			zap.String("status", string(e.Status)),
		)
	case *fee.FeeAccountSettledEvent:
		fields = append(fields,
			zap.String("total_paid", e.TotalPaid.String()),
			zap.String("status", string(e.Status)),
		)
	case *fee.ReminderDispatchedEvent:
		fields = append(fields, zap.Time("next_reminder_date", e.NextReminderDate))
	}

	h.logger.Info("payment lifecycle event", fields...)
	return nil
}

// Ensure AuditLogHandler implements shared.EventHandler
var _ shared.EventHandler = (*AuditLogHandler)(nil)
