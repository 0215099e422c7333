package fee

import (
	"fmt"
	"strings"
)

// PlanType selects how payments move an account's balance and schedule.
type PlanType string

const (
	PlanOneTime             PlanType = "ONE_TIME"
	PlanMonthlySubscription PlanType = "MONTHLY_SUBSCRIPTION"
	PlanEMI                 PlanType = "EMI"
	PlanCustom              PlanType = "CUSTOM"
)

// IsValid checks if the plan type is one of the known plans
func (p PlanType) IsValid() bool {
	switch p {
	case PlanOneTime, PlanMonthlySubscription, PlanEMI, PlanCustom:
		return true
	}
	return false
}

// String returns the string representation of PlanType
func (p PlanType) String() string {
	return string(p)
}

// UsesSchedule reports whether the plan's total is the sum of its schedule.
func (p PlanType) UsesSchedule() bool {
	return p == PlanEMI || p == PlanCustom
}

// ParsePlanType accepts case-insensitive plan names.
func ParsePlanType(s string) (PlanType, error) {
	p := PlanType(strings.ToUpper(strings.TrimSpace(s)))
	if !p.IsValid() {
		return "", fmt.Errorf("unknown plan type %q", s)
	}
	return p, nil
}

// PaymentStatus is the derived settlement state of a fee account.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusPartial   PaymentStatus = "PARTIAL"
	PaymentStatusPaid      PaymentStatus = "PAID"
	PaymentStatusFullyPaid PaymentStatus = "FULLY_PAID" // final EMI installment settled
	PaymentStatusOverpaid  PaymentStatus = "OVERPAID"
)

// IsValid checks if the status is a valid PaymentStatus
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPartial, PaymentStatusPaid,
		PaymentStatusFullyPaid, PaymentStatusOverpaid:
		return true
	}
	return false
}

// IsSettled returns true when nothing remains to collect.
func (s PaymentStatus) IsSettled() bool {
	return s == PaymentStatusPaid || s == PaymentStatusFullyPaid || s == PaymentStatusOverpaid
}

// ReminderFrequency is the follow-up cadence for an account.
type ReminderFrequency string

const (
	ReminderNone    ReminderFrequency = "NONE"
	ReminderDaily   ReminderFrequency = "DAILY"
	ReminderWeekly  ReminderFrequency = "WEEKLY"
	ReminderMonthly ReminderFrequency = "MONTHLY"
)

// IsValid checks if the frequency is known
func (f ReminderFrequency) IsValid() bool {
	switch f {
	case ReminderNone, ReminderDaily, ReminderWeekly, ReminderMonthly:
		return true
	}
	return false
}

// AccountLifecycle tracks whether an account still expects payments.
type AccountLifecycle string

const (
	LifecycleActive    AccountLifecycle = "ACTIVE"
	LifecycleCompleted AccountLifecycle = "COMPLETED"
)

// PaymentMode is how the money was received.
type PaymentMode string

const (
	ModeCash         PaymentMode = "CASH"
	ModeUPI          PaymentMode = "UPI"
	ModeCard         PaymentMode = "CARD"
	ModeBankTransfer PaymentMode = "BANK_TRANSFER"
	ModeCheque       PaymentMode = "CHEQUE"
	ModeOnline       PaymentMode = "ONLINE"
	ModeOther        PaymentMode = "OTHER"
)

// IsValid checks if the payment mode is known
func (m PaymentMode) IsValid() bool {
	switch m {
	case ModeCash, ModeUPI, ModeCard, ModeBankTransfer, ModeCheque, ModeOnline, ModeOther:
		return true
	}
	return false
}

// PayerType identifies who paid on the student's behalf.
type PayerType string

const (
	PayerStudent  PayerType = "STUDENT"
	PayerParent   PayerType = "PARENT"
	PayerGuardian PayerType = "GUARDIAN"
	PayerSponsor  PayerType = "SPONSOR"
	PayerOther    PayerType = "OTHER"
)

// IsValid checks if the payer type is known. Empty is allowed and means STUDENT.
func (p PayerType) IsValid() bool {
	switch p {
	case "", PayerStudent, PayerParent, PayerGuardian, PayerSponsor, PayerOther:
		return true
	}
	return false
}
