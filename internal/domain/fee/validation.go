package fee

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentDraft is an incoming payment before it becomes a ledger entry.
type PaymentDraft struct {
	AccountID        uuid.UUID
	StudentID        uuid.UUID
	StudentName      string
	Amount           decimal.Decimal
	Date             time.Time
	Time             string // optional "HH:MM" wall clock on Date
	Mode             PaymentMode
	PayerType        PayerType
	PayerName        string
	Discount         decimal.Decimal
	SpecialCharges   decimal.Decimal
	TaxAmount        decimal.Decimal
	TransactionID    string
	ReferenceID      string
	Remarks          string
	ReceivedBy       string
	PlanType         PlanType
	EMIIndex         *int
	ReminderEnabled  *bool
	NextReminderDate *time.Time
	StopReminders    bool
}

// PaidAt combines Date with the optional Time of day.
func (d PaymentDraft) PaidAt() time.Time {
	if d.Time == "" {
		return d.Date
	}
	clock, err := time.Parse("15:04", strings.TrimSpace(d.Time))
	if err != nil {
		return d.Date
	}
	y, m, day := d.Date.Date()
	return time.Date(y, m, day, clock.Hour(), clock.Minute(), 0, 0, d.Date.Location())
}

// Event converts the draft into the processor's input.
func (d PaymentDraft) Event() PaymentEvent {
	return PaymentEvent{
		Amount:           d.Amount,
		PaidAt:           d.PaidAt(),
		TransactionID:    d.TransactionID,
		EMIIndex:         d.EMIIndex,
		ReminderEnabled:  d.ReminderEnabled,
		NextReminderDate: d.NextReminderDate,
		StopReminders:    d.StopReminders,
	}
}

// ValidationIssue is one field-level finding.
type ValidationIssue struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationResult separates blocking errors from advisory warnings.
type ValidationResult struct {
	IsValid  bool              `json:"is_valid"`
	Errors   []ValidationIssue `json:"errors"`
	Warnings []ValidationIssue `json:"warnings"`
}

func (r *ValidationResult) addError(field, code, msg string) {
	r.Errors = append(r.Errors, ValidationIssue{Field: field, Code: code, Message: msg})
}

func (r *ValidationResult) addWarning(field, code, msg string) {
	r.Warnings = append(r.Warnings, ValidationIssue{Field: field, Code: code, Message: msg})
}

// ErrorMessages flattens the blocking errors for display.
func (r ValidationResult) ErrorMessages() []string {
	out := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		out[i] = e.Message
	}
	return out
}

// Validate checks a draft against the account's current balance. Missing
// fields and negative amounts block the payment. Overpayment and unusual
// dates are reported as warnings and do not block it.
func Validate(d PaymentDraft, current Balance, now time.Time) ValidationResult {
	r := ValidationResult{Errors: []ValidationIssue{}, Warnings: []ValidationIssue{}}

	if d.AccountID == uuid.Nil {
		r.addError("account_id", "REQUIRED", "account ID is required")
	}
	if d.StudentID == uuid.Nil {
		r.addError("student_id", "REQUIRED", "student ID is required")
	}
	switch {
	case d.Amount.IsNegative():
		r.addError("amount", "NEGATIVE", "amount cannot be negative")
	case d.Amount.IsZero():
		r.addError("amount", "REQUIRED", "amount is required")
	}
	if d.Date.IsZero() {
		r.addError("date", "REQUIRED", "payment date is required")
	}
	if d.Mode == "" {
		r.addError("mode", "REQUIRED", "payment mode is required")
	} else if !d.Mode.IsValid() {
		r.addError("mode", "INVALID", fmt.Sprintf("unknown payment mode %q", d.Mode))
	}
	if !d.PayerType.IsValid() {
		r.addError("payer_type", "INVALID", fmt.Sprintf("unknown payer type %q", d.PayerType))
	}
	if strings.TrimSpace(d.ReceivedBy) == "" {
		r.addError("received_by", "REQUIRED", "receiver is required")
	}
	if d.PlanType == "" {
		r.addError("plan_type", "REQUIRED", "plan type is required")
	} else if !d.PlanType.IsValid() {
		r.addError("plan_type", "INVALID", fmt.Sprintf("unknown plan type %q", d.PlanType))
	}
	adjustments := []struct {
		field string
		value decimal.Decimal
	}{
		{"discount", d.Discount},
		{"special_charges", d.SpecialCharges},
		{"tax_amount", d.TaxAmount},
	}
	for _, adj := range adjustments {
		if adj.value.IsNegative() {
			r.addError(adj.field, "NEGATIVE", adj.field+" cannot be negative")
		}
	}
	if d.PlanType == PlanEMI {
		switch {
		case d.EMIIndex == nil:
			r.addError("emi_index", "REQUIRED", "EMI payments must specify the installment index")
		case *d.EMIIndex < 0:
			r.addError("emi_index", "INVALID", "EMI index cannot be negative")
		}
	}
	if d.Time != "" {
		if _, err := time.Parse("15:04", strings.TrimSpace(d.Time)); err != nil {
			r.addError("time", "INVALID", "time must be HH:MM")
		}
	}

	if d.Amount.IsPositive() && d.PlanType != PlanMonthlySubscription &&
		d.Amount.GreaterThan(current.OutstandingAmount) {
		r.addWarning("amount", "OVERPAYMENT", fmt.Sprintf(
			"amount %s exceeds the remaining balance %s", d.Amount.StringFixed(2), current.OutstandingAmount.StringFixed(2)))
	}
	if !d.Date.IsZero() {
		if d.Date.After(EndOfDay(now)) {
			r.addWarning("date", "FUTURE_DATE", "payment date is in the future")
		} else if d.Date.Before(StartOfDay(now).AddDate(-1, 0, 0)) {
			r.addWarning("date", "STALE_DATE", "payment date is more than one year in the past")
		}
	}

	r.IsValid = len(r.Errors) == 0
	return r
}
