package fee

import (
	"time"

	"github.com/academy/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event type names
const (
	EventTypeFeeAccountCreated    = "FeeAccountCreated"
	EventTypePaymentRecorded      = "PaymentRecorded"
	EventTypeLedgerEntryDeleted   = "LedgerEntryDeleted"
	EventTypeFeeAccountRecomputed = "FeeAccountRecomputed"
	EventTypeFeeAccountSettled    = "FeeAccountSettled"
	EventTypeReminderDispatched   = "PaymentReminderDispatched"

	aggregateTypeLedgerEntry = "LedgerEntry"
)

// FeeAccountCreatedEvent is raised when an enrollment's fee account is opened
type FeeAccountCreatedEvent struct {
	shared.BaseDomainEvent
	AccountID uuid.UUID       `json:"account_id"`
	StudentID uuid.UUID       `json:"student_id"`
	CourseID  uuid.UUID       `json:"course_id"`
	PlanType  PlanType        `json:"plan_type"`
	TotalDue  decimal.Decimal `json:"total_due"`
}

// EventType returns the event type name
func (e *FeeAccountCreatedEvent) EventType() string {
	return EventTypeFeeAccountCreated
}

// NewFeeAccountCreatedEvent creates a new FeeAccountCreatedEvent
func NewFeeAccountCreatedEvent(a *FeeAccount) *FeeAccountCreatedEvent {
	return &FeeAccountCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeFeeAccountCreated, AggregateTypeFeeAccount, a.ID, a.TenantID),
		AccountID:       a.ID,
		StudentID:       a.StudentID,
		CourseID:        a.CourseID,
		PlanType:        a.PlanType,
		TotalDue:        a.Fees().TotalDue(),
	}
}

// PaymentRecordedEvent is raised after a ledger entry is persisted and the
// account recomputed
type PaymentRecordedEvent struct {
	shared.BaseDomainEvent
	AccountID     uuid.UUID       `json:"account_id"`
	EntryID       uuid.UUID       `json:"entry_id"`
	ReceiptNumber string          `json:"receipt_number"`
	Amount        decimal.Decimal `json:"amount"`
	PlanType      PlanType        `json:"plan_type"`
	Status        PaymentStatus   `json:"status"`
	Outstanding   decimal.Decimal `json:"outstanding"`
}

// EventType returns the event type name
func (e *PaymentRecordedEvent) EventType() string {
	return EventTypePaymentRecorded
}

// NewPaymentRecordedEvent creates a new PaymentRecordedEvent
func NewPaymentRecordedEvent(entry *LedgerEntry, a *FeeAccount) *PaymentRecordedEvent {
	return &PaymentRecordedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentRecorded, aggregateTypeLedgerEntry, entry.ID, entry.TenantID),
		AccountID:       a.ID,
		EntryID:         entry.ID,
		ReceiptNumber:   entry.ReceiptNumber,
		Amount:          entry.Amount,
		PlanType:        a.PlanType,
		Status:          a.Status,
		Outstanding:     a.OutstandingAmount,
	}
}

// LedgerEntryDeletedEvent is raised when a ledger entry is soft-deleted
type LedgerEntryDeletedEvent struct {
	shared.BaseDomainEvent
	AccountID uuid.UUID       `json:"account_id"`
	EntryID   uuid.UUID       `json:"entry_id"`
	Amount    decimal.Decimal `json:"amount"`
	DeletedBy string          `json:"deleted_by"`
}

// EventType returns the event type name
func (e *LedgerEntryDeletedEvent) EventType() string {
	return EventTypeLedgerEntryDeleted
}

// NewLedgerEntryDeletedEvent creates a new LedgerEntryDeletedEvent
func NewLedgerEntryDeletedEvent(entry *LedgerEntry) *LedgerEntryDeletedEvent {
	return &LedgerEntryDeletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeLedgerEntryDeleted, aggregateTypeLedgerEntry, entry.ID, entry.TenantID),
		AccountID:       entry.AccountID,
		EntryID:         entry.ID,
		Amount:          entry.Amount,
		DeletedBy:       entry.DeletedBy,
	}
}

// FeeAccountRecomputedEvent is raised whenever cached totals are rebuilt
type FeeAccountRecomputedEvent struct {
	shared.BaseDomainEvent
	AccountID   uuid.UUID       `json:"account_id"`
	TotalPaid   decimal.Decimal `json:"total_paid"`
	Outstanding decimal.Decimal `json:"outstanding"`
	Status      PaymentStatus   `json:"status"`
}

// EventType returns the event type name
func (e *FeeAccountRecomputedEvent) EventType() string {
	return EventTypeFeeAccountRecomputed
}

// NewFeeAccountRecomputedEvent creates a new FeeAccountRecomputedEvent
func NewFeeAccountRecomputedEvent(a *FeeAccount) *FeeAccountRecomputedEvent {
	return &FeeAccountRecomputedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeFeeAccountRecomputed, AggregateTypeFeeAccount, a.ID, a.TenantID),
		AccountID:       a.ID,
		TotalPaid:       a.TotalReceived,
		Outstanding:     a.OutstandingAmount,
		Status:          a.Status,
	}
}

// FeeAccountSettledEvent is raised when an account has nothing left to collect
type FeeAccountSettledEvent struct {
	shared.BaseDomainEvent
	AccountID uuid.UUID       `json:"account_id"`
	StudentID uuid.UUID       `json:"student_id"`
	TotalPaid decimal.Decimal `json:"total_paid"`
	Status    PaymentStatus   `json:"status"`
}

// EventType returns the event type name
func (e *FeeAccountSettledEvent) EventType() string {
	return EventTypeFeeAccountSettled
}

// NewFeeAccountSettledEvent creates a new FeeAccountSettledEvent
func NewFeeAccountSettledEvent(a *FeeAccount) *FeeAccountSettledEvent {
	return &FeeAccountSettledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeFeeAccountSettled, AggregateTypeFeeAccount, a.ID, a.TenantID),
		AccountID:       a.ID,
		StudentID:       a.StudentID,
		TotalPaid:       a.TotalReceived,
		Status:          a.Status,
	}
}

// ReminderDispatchedEvent is raised after a payment reminder goes out
type ReminderDispatchedEvent struct {
	shared.BaseDomainEvent
	AccountID        uuid.UUID `json:"account_id"`
	StudentID        uuid.UUID `json:"student_id"`
	NextReminderDate time.Time `json:"next_reminder_date"`
}

// EventType returns the event type name
func (e *ReminderDispatchedEvent) EventType() string {
	return EventTypeReminderDispatched
}

// NewReminderDispatchedEvent creates a new ReminderDispatchedEvent
func NewReminderDispatchedEvent(a *FeeAccount, next time.Time) *ReminderDispatchedEvent {
	return &ReminderDispatchedEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(EventTypeReminderDispatched, AggregateTypeFeeAccount, a.ID, a.TenantID),
		AccountID:        a.ID,
		StudentID:        a.StudentID,
		NextReminderDate: next,
	}
}
