package notification

import (
	"context"

	appfee "github.com/academy/backend/internal/application/fee"
	"github.com/academy/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// LogNotifier writes notices to the log instead of sending them. It is the
// default dispatcher for development and single-tenant installs without mail.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a new LogNotifier
func NewLogNotifier(log *zap.Logger) *LogNotifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogNotifier{logger: log}
}

// Dispatch logs a payment reminder
func (n *LogNotifier) Dispatch(ctx context.Context, r appfee.Reminder) error {
	msg := reminderMessage(r)
	fields := []zap.Field{
		zap.String("tenant_id", r.TenantID.String()),
		zap.String("fee_account_id", r.AccountID.String()),
		zap.String("student_id", r.StudentID.String()),
		zap.String("plan_type", string(r.PlanType)),
		zap.String("amount_due", r.AmountDue.String()),
		zap.String("frequency", string(r.Frequency)),
		zap.String("subject", msg.Subject),
	}
	if r.DueDate != nil {
		fields = append(fields, zap.Time("due_date", *r.DueDate))
	}
	logger.L(ctx, n.logger).Info("payment reminder", fields...)
	return nil
}

// NotifySettled logs a settlement notice
func (n *LogNotifier) NotifySettled(ctx context.Context, s appfee.SettlementNotice) error {
	logger.L(ctx, n.logger).Info("settlement notice",
		zap.String("tenant_id", s.TenantID.String()),
		zap.String("fee_account_id", s.AccountID.String()),
		zap.String("student_id", s.StudentID.String()),
		zap.String("total_paid", s.TotalPaid.String()),
		zap.String("status", string(s.Status)),
	)
	return nil
}

var _ Notifier = (*LogNotifier)(nil)
