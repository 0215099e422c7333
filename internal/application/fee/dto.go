package fee

import (
	"errors"
	"strings"
	"time"

	"github.com/academy/backend/internal/domain/fee"
	"github.com/academy/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Result error codes that do not come from a DomainError
const (
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeInternal         = "INTERNAL_ERROR"
)

// ResultError describes why an operation failed.
type ResultError struct {
	Code    string                `json:"code"`
	Message string                `json:"message"`
	Details []fee.ValidationIssue `json:"details,omitempty"`
}

// Result is what every ledger operation returns. Callers inspect Success
// instead of handling errors; warnings may accompany a successful result.
type Result[T any] struct {
	Success  bool                  `json:"success"`
	Record   T                     `json:"record,omitempty"`
	Error    *ResultError          `json:"error,omitempty"`
	Warnings []fee.ValidationIssue `json:"warnings,omitempty"`
}

// ErrorCode returns the failure code, or "" for a successful result.
func (r Result[T]) ErrorCode() string {
	if r.Error == nil {
		return ""
	}
	return r.Error.Code
}

func success[T any](record T, warnings []fee.ValidationIssue) Result[T] {
	return Result[T]{Success: true, Record: record, Warnings: warnings}
}

func failure[T any](err error) Result[T] {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return Result[T]{Error: &ResultError{Code: CodeValidationFailed, Message: verr.Error(), Details: verr.Issues}}
	}
	var de *shared.DomainError
	if errors.As(err, &de) {
		return Result[T]{Error: &ResultError{Code: de.Code, Message: de.Message}}
	}
	return Result[T]{Error: &ResultError{Code: CodeInternal, Message: "internal error"}}
}

// ValidationError carries the blocking issues of a rejected payment.
type ValidationError struct {
	Issues []fee.ValidationIssue
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Issues))
	for i, is := range e.Issues {
		msgs[i] = is.Message
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// EnrollmentInput describes the enrollment behind a fee account. It is used
// to open an account, either explicitly or on the first payment.
type EnrollmentInput struct {
	CourseID               uuid.UUID
	CohortID               *uuid.UUID
	CourseFee              *decimal.Decimal // explicit fee, wins over cohort and course
	CourseRegistrationFee  decimal.Decimal
	StudentRegistrationFee decimal.Decimal
	MonthlyDueDay          int
	InstallmentCount       int
	FirstDueDate           *time.Time
	Schedule               []fee.EMIItem
}

// AddPaymentInput is a payment to record. Enrollment is only consulted
// when no account exists under Payment.AccountID yet.
type AddPaymentInput struct {
	Payment    fee.PaymentDraft
	Enrollment *EnrollmentInput
}

// OpenAccountInput opens a fee account for an enrollment.
type OpenAccountInput struct {
	AccountID   uuid.UUID
	StudentID   uuid.UUID
	StudentName string
	PlanType    fee.PlanType
	Enrollment  EnrollmentInput
}

// UpdateRecordInput corrects a ledger entry. Nil fields stay unchanged.
// Changing Amount or Status recomputes the owning account.
type UpdateRecordInput struct {
	Details   fee.EntryDetails
	Status    *fee.EntryStatus
	Amount    *decimal.Decimal
	UpdatedBy string
}

// HistoryQuery pages through an account's ledger.
type HistoryQuery struct {
	SortBy         string
	SortDir        string
	Page           int
	PageSize       int
	IncludeDeleted bool
	Statuses       []fee.EntryStatus
}

// history paging bounds
const (
	defaultHistoryPageSize = 20
	maxHistoryPageSize     = 100
)

func (q HistoryQuery) filter() fee.LedgerFilter {
	f := shared.DefaultFilter()
	f.OrderBy = "paid_at"
	if q.SortBy != "" {
		f.OrderBy = q.SortBy
	}
	if q.SortDir != "" {
		f.OrderDir = strings.ToLower(q.SortDir)
	}
	if q.Page > 0 {
		f.Page = q.Page
	}
	f.PageSize = defaultHistoryPageSize
	if q.PageSize > 0 {
		f.PageSize = min(q.PageSize, maxHistoryPageSize)
	}
	return fee.LedgerFilter{Filter: f, IncludeDeleted: q.IncludeDeleted, Statuses: q.Statuses}
}

// ReminderSweepResult summarizes one reminder run.
type ReminderSweepResult struct {
	Scanned int `json:"scanned"`
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}
