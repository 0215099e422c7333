package fee

import (
	"time"

	"github.com/shopspring/decimal"
)

// EMIStatus is the state of one installment.
type EMIStatus string

const (
	EMIStatusPending EMIStatus = "PENDING"
	EMIStatusPaid    EMIStatus = "PAID"
)

// EMIItem is one installment of an EMI or custom schedule.
type EMIItem struct {
	Index         int             `json:"index"`
	DueDate       time.Time       `json:"due_date"`
	Amount        decimal.Decimal `json:"amount"`
	Status        EMIStatus       `json:"status"`
	PaidDate      *time.Time      `json:"paid_date,omitempty"`
	PaidAmount    decimal.Decimal `json:"paid_amount"`
	TransactionID string          `json:"transaction_id,omitempty"`
}

// IsPaid reports whether the installment has been settled.
func (i EMIItem) IsPaid() bool {
	return i.Status == EMIStatusPaid
}

// Remaining is what is still owed on the installment, never negative.
func (i EMIItem) Remaining() decimal.Decimal {
	r := i.Amount.Sub(i.PaidAmount)
	if r.IsNegative() {
		return decimal.Zero
	}
	return r
}

// credit adds a payment to the installment and marks it paid once covered.
func (i *EMIItem) credit(amount decimal.Decimal, paidAt time.Time, transactionID string) {
	i.PaidAmount = i.PaidAmount.Add(amount)
	if transactionID != "" {
		i.TransactionID = transactionID
	}
	if i.PaidAmount.GreaterThanOrEqual(i.Amount) {
		i.Status = EMIStatusPaid
		paid := paidAt
		i.PaidDate = &paid
	}
}

// CloneSchedule returns a deep copy so callers can patch without aliasing.
func CloneSchedule(items []EMIItem) []EMIItem {
	if items == nil {
		return nil
	}
	out := make([]EMIItem, len(items))
	for i, it := range items {
		out[i] = it
		if it.PaidDate != nil {
			pd := *it.PaidDate
			out[i].PaidDate = &pd
		}
	}
	return out
}

// ScheduleTotal sums every installment amount.
func ScheduleTotal(items []EMIItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Amount)
	}
	return total
}

// FirstPendingIndex returns the lowest unpaid index, or -1 when all are paid.
func FirstPendingIndex(items []EMIItem) int {
	for i, it := range items {
		if !it.IsPaid() {
			return i
		}
	}
	return -1
}

// AllPaid reports whether a non-empty schedule is fully settled.
func AllPaid(items []EMIItem) bool {
	return len(items) > 0 && FirstPendingIndex(items) == -1
}

// BuildEMISchedule splits total into count monthly installments starting at
// firstDue. Rounding residue lands on the last installment so the schedule
// sums to total exactly.
func BuildEMISchedule(total decimal.Decimal, count int, firstDue time.Time) ([]EMIItem, error) {
	if count <= 0 {
		return nil, ErrInvalidInstallmentCount
	}
	if !total.IsPositive() {
		return nil, ErrInvalidScheduleTotal
	}

	each := total.Div(decimal.NewFromInt(int64(count))).RoundDown(2)
	dueDay := firstDue.Day()
	items := make([]EMIItem, count)
	allocated := decimal.Zero
	for i := 0; i < count; i++ {
		amount := each
		if i == count-1 {
			amount = total.Sub(allocated)
		}
		allocated = allocated.Add(amount)
		items[i] = EMIItem{
			Index:   i,
			DueDate: NextDueDate(dueDay, firstDue, i),
			Amount:  amount,
			Status:  EMIStatusPending,
		}
	}
	return items, nil
}

// ValidateSchedule checks indices are contiguous and amounts positive.
func ValidateSchedule(items []EMIItem) error {
	paidSeen := true
	for i, it := range items {
		if it.Index != i {
			return ErrScheduleOutOfOrder
		}
		if !it.Amount.IsPositive() {
			return ErrInvalidScheduleTotal
		}
		// paid items must form a prefix
		if it.IsPaid() && !paidSeen {
			return ErrScheduleOutOfOrder
		}
		paidSeen = it.IsPaid()
	}
	return nil
}
