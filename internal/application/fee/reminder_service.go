package fee

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/academy/backend/internal/domain/fee"
	"github.com/academy/backend/internal/domain/shared"
	"github.com/academy/backend/internal/infrastructure/logger"
	"github.com/academy/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	// DefaultReminderBatchSize caps how many accounts one sweep handles.
	DefaultReminderBatchSize = 100
	// ReminderRetryBackoff is how long a failed delivery waits before the
	// sweep picks the account up again.
	ReminderRetryBackoff = time.Hour
)

// Reminder is one payment reminder ready to be delivered.
type Reminder struct {
	TenantID    uuid.UUID
	AccountID   uuid.UUID
	StudentID   uuid.UUID
	StudentName string
	PlanType    fee.PlanType
	AmountDue   decimal.Decimal
	DueDate     *time.Time
	Frequency   fee.ReminderFrequency
}

// ReminderDispatcher delivers reminders to students or guardians.
type ReminderDispatcher interface {
	Dispatch(ctx context.Context, r Reminder) error
}

// ReminderService sends reminders that have fallen due and schedules the
// next one for each account.
type ReminderService struct {
	accounts   fee.FeeAccountRepository
	dispatcher ReminderDispatcher
	publisher  shared.EventPublisher
	metrics    *telemetry.PaymentMetrics
	logger     *zap.Logger
	batchSize  int
}

// NewReminderService creates a new ReminderService
func NewReminderService(accounts fee.FeeAccountRepository, dispatcher ReminderDispatcher, log *zap.Logger, batchSize int) *ReminderService {
	if log == nil {
		log = zap.NewNop()
	}
	if batchSize <= 0 {
		batchSize = DefaultReminderBatchSize
	}
	return &ReminderService{
		accounts:   accounts,
		dispatcher: dispatcher,
		logger:     log,
		batchSize:  batchSize,
	}
}

// SetEventPublisher sets the event publisher for reminder events
func (s *ReminderService) SetEventPublisher(p shared.EventPublisher) {
	s.publisher = p
}

// SetMetrics enables reminder counters
func (s *ReminderService) SetMetrics(m *telemetry.PaymentMetrics) {
	s.metrics = m
}

// DispatchDue sends every reminder due at now, up to the batch size. A
// failed delivery is deferred by ReminderRetryBackoff so it cannot hold the
// head of the queue while other accounts wait. Sent reminders are rescheduled strictly after today, so running the
// sweep twice sends nothing new.
func (s *ReminderService) DispatchDue(ctx context.Context, now time.Time) (ReminderSweepResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "reminder", "dispatch_due")
	defer span.End()
	log := logger.L(ctx, s.logger)

	var res ReminderSweepResult
	due, err := s.accounts.FindDueForReminder(ctx, now, s.batchSize)
	if err != nil {
		telemetry.RecordError(span, err)
		return res, fmt.Errorf("failed to find due reminders: %w", err)
	}
	res.Scanned = len(due)

	for i := range due {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		account := &due[i]
		if !account.IsReminderDue(now) {
			res.Skipped++
			continue
		}
		accountLog := log.With(
			zap.String("tenant_id", account.TenantID.String()),
			zap.String("fee_account_id", account.ID.String()),
		)

		if err := s.dispatcher.Dispatch(ctx, reminderFor(account)); err != nil {
			res.Failed++
			s.metrics.RecordReminder(ctx, "failed")
			accountLog.Warn("reminder dispatch failed", zap.Error(err))
			account.DeferReminder(now, ReminderRetryBackoff)
			if err := s.accounts.Save(ctx, account); err != nil && !errors.Is(err, shared.ErrConcurrencyConflict) {
				accountLog.Error("failed to defer reminder", zap.Error(err))
			}
			continue
		}

		account.AdvanceReminder(now)
		next := time.Time{}
		if account.NextReminderDate != nil {
			next = *account.NextReminderDate
		}
		account.AddDomainEvent(fee.NewReminderDispatchedEvent(account, next))

		if err := s.accounts.Save(ctx, account); err != nil {
			// the reminder went out; a conflicting write means a payment moved the schedule
			if errors.Is(err, shared.ErrConcurrencyConflict) {
				res.Skipped++
				accountLog.Info("reminder schedule changed concurrently")
				continue
			}
			res.Failed++
			s.metrics.RecordReminder(ctx, "failed")
			accountLog.Error("failed to save reminder schedule", zap.Error(err))
			continue
		}
		res.Sent++
		s.metrics.RecordReminder(ctx, "sent")
		if s.publisher != nil {
			if err := s.publisher.Publish(ctx, account.GetDomainEvents()...); err != nil {
				accountLog.Warn("failed to publish reminder event", zap.Error(err))
			}
		}
		account.ClearDomainEvents()
	}

	telemetry.SetAttributes(span,
		"scanned", res.Scanned,
		"sent", res.Sent,
		"failed", res.Failed,
	)
	if res.Scanned > 0 {
		log.Info("reminder sweep finished",
			zap.Int("scanned", res.Scanned),
			zap.Int("sent", res.Sent),
			zap.Int("failed", res.Failed),
			zap.Int("skipped", res.Skipped),
		)
	}
	return res, nil
}

func reminderFor(a *fee.FeeAccount) Reminder {
	return Reminder{
		TenantID:    a.TenantID,
		AccountID:   a.ID,
		StudentID:   a.StudentID,
		StudentName: a.StudentName,
		PlanType:    a.PlanType,
		AmountDue:   a.OutstandingAmount,
		DueDate:     a.NextDueDate,
		Frequency:   a.ReminderFrequency,
	}
}
