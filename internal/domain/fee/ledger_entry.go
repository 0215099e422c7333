package fee

import (
	"strings"
	"time"

	"github.com/academy/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EntryStatus is the verification state of a ledger entry.
type EntryStatus string

const (
	EntryStatusPending   EntryStatus = "PENDING"
	EntryStatusConfirmed EntryStatus = "CONFIRMED"
	EntryStatusVerified  EntryStatus = "VERIFIED"
	EntryStatusFailed    EntryStatus = "FAILED"
	EntryStatusRefunded  EntryStatus = "REFUNDED"
)

// IsValid checks if the entry status is known
func (s EntryStatus) IsValid() bool {
	switch s {
	case EntryStatusPending, EntryStatusConfirmed, EntryStatusVerified, EntryStatusFailed, EntryStatusRefunded:
		return true
	}
	return false
}

// Counts reports whether money in this status is part of the balance.
func (s EntryStatus) Counts() bool {
	return s == EntryStatusConfirmed || s == EntryStatusVerified
}

// LedgerEntry is one physical payment event. Money and account linkage are
// fixed at creation; only verification, soft-delete and descriptive fields
// change afterwards.
type LedgerEntry struct {
	shared.TenantAggregateRoot
	AccountID      uuid.UUID
	StudentID      uuid.UUID
	StudentName    string
	Amount         decimal.Decimal
	PaidAt         time.Time
	Mode           PaymentMode
	PayerType      PayerType
	PayerName      string
	Discount       decimal.Decimal
	SpecialCharges decimal.Decimal
	TaxAmount      decimal.Decimal
	TransactionID  string
	ReferenceID    string
	Remarks        string
	ReceivedBy     string
	ReceiptNumber  string
	Status         EntryStatus
	PlanType       PlanType
	EMIIndex       *int

	IsDeleted  bool
	DeletedAt  *time.Time
	DeletedBy  string
	VerifiedAt *time.Time
	VerifiedBy string
}

// NewLedgerEntry records a confirmed payment against an account.
func NewLedgerEntry(tenantID, accountID uuid.UUID, receiptNumber string, d PaymentDraft) (*LedgerEntry, error) {
	if tenantID == uuid.Nil {
		return nil, shared.ErrTenantRequired
	}
	if accountID == uuid.Nil {
		return nil, ErrAccountNotFound
	}
	if !d.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	payer := d.PayerType
	if payer == "" {
		payer = PayerStudent
	}
	e := &LedgerEntry{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		AccountID:           accountID,
		StudentID:           d.StudentID,
		StudentName:         d.StudentName,
		Amount:              d.Amount,
		PaidAt:              d.PaidAt(),
		Mode:                d.Mode,
		PayerType:           payer,
		PayerName:           d.PayerName,
		Discount:            d.Discount,
		SpecialCharges:      d.SpecialCharges,
		TaxAmount:           d.TaxAmount,
		TransactionID:       d.TransactionID,
		ReferenceID:         d.ReferenceID,
		Remarks:             d.Remarks,
		ReceivedBy:          d.ReceivedBy,
		ReceiptNumber:       receiptNumber,
		Status:              EntryStatusConfirmed,
		PlanType:            d.PlanType,
	}
	if d.EMIIndex != nil {
		idx := *d.EMIIndex
		e.EMIIndex = &idx
	}
	return e, nil
}

// CountsTowardBalance reports whether the entry is part of the ledger fold.
func (e *LedgerEntry) CountsTowardBalance() bool {
	return !e.IsDeleted && e.Status.Counts()
}

// Verify marks a confirmed entry as verified by a reviewer.
func (e *LedgerEntry) Verify(by string, at time.Time) error {
	if e.IsDeleted {
		return ErrEntryDeleted
	}
	if e.Status != EntryStatusConfirmed {
		return ErrInvalidEntryStatus
	}
	e.Status = EntryStatusVerified
	e.VerifiedBy = by
	e.VerifiedAt = &at
	e.Touch(at)
	return nil
}

// SetStatus changes the verification status. Verified entries go through
// Verify so the reviewer is recorded.
func (e *LedgerEntry) SetStatus(status EntryStatus, by string, at time.Time) error {
	if e.IsDeleted {
		return ErrEntryDeleted
	}
	if !status.IsValid() {
		return ErrInvalidEntryStatus
	}
	if status == EntryStatusVerified {
		return e.Verify(by, at)
	}
	e.Status = status
	e.Touch(at)
	return nil
}

// SoftDelete flags the entry. It is never physically removed.
func (e *LedgerEntry) SoftDelete(by string, at time.Time) error {
	if e.IsDeleted {
		return ErrEntryDeleted
	}
	e.IsDeleted = true
	e.DeletedAt = &at
	e.DeletedBy = by
	e.Touch(at)
	e.AddDomainEvent(NewLedgerEntryDeletedEvent(e))
	return nil
}

// EntryDetails are the descriptive fields that may be corrected after the
// fact. Nil leaves a field unchanged.
type EntryDetails struct {
	Mode          *PaymentMode
	PayerType     *PayerType
	PayerName     *string
	ReferenceID   *string
	TransactionID *string
	Remarks       *string
}

// UpdateDetails applies descriptive corrections.
func (e *LedgerEntry) UpdateDetails(d EntryDetails, at time.Time) error {
	if e.IsDeleted {
		return ErrEntryDeleted
	}
	if d.Mode != nil {
		if !d.Mode.IsValid() {
			return shared.NewDomainError("INVALID_PAYMENT_MODE", "Unknown payment mode")
		}
		e.Mode = *d.Mode
	}
	if d.PayerType != nil {
		if !d.PayerType.IsValid() {
			return shared.NewDomainError("INVALID_PAYER_TYPE", "Unknown payer type")
		}
		e.PayerType = *d.PayerType
	}
	if d.PayerName != nil {
		e.PayerName = strings.TrimSpace(*d.PayerName)
	}
	if d.ReferenceID != nil {
		e.ReferenceID = *d.ReferenceID
	}
	if d.TransactionID != nil {
		e.TransactionID = *d.TransactionID
	}
	if d.Remarks != nil {
		e.Remarks = *d.Remarks
	}
	e.Touch(at)
	return nil
}

// ChangeAmount is the explicit correction path for a mistyped amount. The
// caller must recompute the owning account afterwards.
func (e *LedgerEntry) ChangeAmount(amount decimal.Decimal, at time.Time) error {
	if e.IsDeleted {
		return ErrEntryDeleted
	}
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	e.Amount = amount
	e.Touch(at)
	return nil
}
