package fee

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// FeeStructure is the part of an account that defines how much is owed.
type FeeStructure struct {
	PlanType               PlanType
	CourseFee              decimal.Decimal
	CourseRegistrationFee  decimal.Decimal
	StudentRegistrationFee decimal.Decimal
	Schedule               []EMIItem
}

// TotalDue is the fee sum, or the schedule sum for scheduled plans.
func (fs FeeStructure) TotalDue() decimal.Decimal {
	if fs.PlanType.UsesSchedule() && len(fs.Schedule) > 0 {
		return ScheduleTotal(fs.Schedule)
	}
	return fs.CourseFee.Add(fs.CourseRegistrationFee).Add(fs.StudentRegistrationFee)
}

// Balance is the derived money view of an account.
type Balance struct {
	TotalPaid         decimal.Decimal `json:"total_paid"`
	TotalDue          decimal.Decimal `json:"total_due"`
	OutstandingAmount decimal.Decimal `json:"outstanding_amount"`
	CollectionRate    decimal.Decimal `json:"collection_rate"`
}

// CalculateBalance folds an incoming amount onto what has been received so
// far. Pass a zero incoming amount to compute the current state.
func CalculateBalance(fs FeeStructure, previousReceived, incoming decimal.Decimal) Balance {
	due := fs.TotalDue()
	paid := previousReceived.Add(incoming)
	return Balance{
		TotalPaid:         paid,
		TotalDue:          due,
		OutstandingAmount: Outstanding(due, paid),
		CollectionRate:    CollectionRate(paid, due),
	}
}

// Outstanding is max(0, due - paid).
func Outstanding(due, paid decimal.Decimal) decimal.Decimal {
	out := due.Sub(paid)
	if out.IsNegative() {
		return decimal.Zero
	}
	return out
}

// CollectionRate is paid/due as a percentage rounded to two places. A zero
// fee counts as fully collected once anything was paid.
func CollectionRate(paid, due decimal.Decimal) decimal.Decimal {
	if !due.IsPositive() {
		if paid.IsPositive() {
			return hundred
		}
		return decimal.Zero
	}
	return paid.Div(due).Mul(hundred).Round(2)
}

// DetermineStatus derives the status from totals alone. finalInstallment
// marks the payment that settles the last EMI item.
func DetermineStatus(totalPaid, totalDue decimal.Decimal, finalInstallment bool) PaymentStatus {
	switch {
	case !totalPaid.IsPositive():
		return PaymentStatusPending
	case totalPaid.LessThan(totalDue):
		return PaymentStatusPartial
	case finalInstallment:
		return PaymentStatusFullyPaid
	case totalDue.IsPositive() && totalPaid.GreaterThan(totalDue):
		return PaymentStatusOverpaid
	default:
		return PaymentStatusPaid
	}
}

// DeriveStatus applies plan rules on top of DetermineStatus. Subscriptions
// have no principal, so any payment counts as PAID for the current cycle.
func DeriveStatus(fs FeeStructure, b Balance) PaymentStatus {
	switch fs.PlanType {
	case PlanMonthlySubscription:
		if b.TotalPaid.IsPositive() {
			return PaymentStatusPaid
		}
		return PaymentStatusPending
	case PlanEMI:
		return DetermineStatus(b.TotalPaid, b.TotalDue, AllPaid(fs.Schedule))
	default:
		return DetermineStatus(b.TotalPaid, b.TotalDue, false)
	}
}

// NormalizeForPlan enforces plan-level balance rules on a computed balance.
func NormalizeForPlan(plan PlanType, b Balance) Balance {
	if plan == PlanMonthlySubscription {
		b.OutstandingAmount = decimal.Zero
	}
	return b
}
