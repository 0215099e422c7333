package fee

import (
	"sort"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// LedgerTotals is the fold of every entry that counts toward the balance.
type LedgerTotals struct {
	TotalPaid       decimal.Decimal
	Discount        decimal.Decimal
	SpecialCharges  decimal.Decimal
	TaxAmount       decimal.Decimal
	Count           int
	LastPaymentDate *time.Time
	// Installments has a key for every EMI index any entry refers to,
	// including entries that no longer count.
	Installments map[int]InstallmentTotals
}

// InstallmentTotals is the ledger's view of one EMI installment.
type InstallmentTotals struct {
	Paid          decimal.Decimal
	LastPaidAt    *time.Time
	TransactionID string
}

// FoldLedger sums the non-deleted confirmed or verified entries. It is a
// pure function of its input, so folding an unchanged ledger twice gives
// the same totals.
func FoldLedger(entries []LedgerEntry) LedgerTotals {
	counted := lo.Filter(entries, func(e LedgerEntry, _ int) bool {
		return e.CountsTowardBalance()
	})
	totals := lo.Reduce(counted, func(t LedgerTotals, e LedgerEntry, _ int) LedgerTotals {
		t.TotalPaid = t.TotalPaid.Add(e.Amount)
		t.Discount = t.Discount.Add(e.Discount)
		t.SpecialCharges = t.SpecialCharges.Add(e.SpecialCharges)
		t.TaxAmount = t.TaxAmount.Add(e.TaxAmount)
		t.Count++
		if t.LastPaymentDate == nil || e.PaidAt.After(*t.LastPaymentDate) {
			paid := e.PaidAt
			t.LastPaymentDate = &paid
		}
		return t
	}, LedgerTotals{
		TotalPaid:      decimal.Zero,
		Discount:       decimal.Zero,
		SpecialCharges: decimal.Zero,
		TaxAmount:      decimal.Zero,
	})
	totals.Installments = foldInstallments(entries)
	return totals
}

func foldInstallments(entries []LedgerEntry) map[int]InstallmentTotals {
	var out map[int]InstallmentTotals
	for _, e := range entries {
		if e.EMIIndex == nil {
			continue
		}
		if out == nil {
			out = make(map[int]InstallmentTotals)
		}
		it := out[*e.EMIIndex]
		if !e.CountsTowardBalance() {
			out[*e.EMIIndex] = it
			continue
		}
		it.Paid = it.Paid.Add(e.Amount)
		if it.LastPaidAt == nil || e.PaidAt.After(*it.LastPaidAt) {
			paid := e.PaidAt
			it.LastPaidAt = &paid
			it.TransactionID = e.TransactionID
		}
		out[*e.EMIIndex] = it
	}
	return out
}

// PaymentBalance is the read model returned by balance queries.
type PaymentBalance struct {
	AccountID       string          `json:"account_id"`
	TotalFee        decimal.Decimal `json:"total_fee"`
	TotalPaid       decimal.Decimal `json:"total_paid"`
	RemainingAmount decimal.Decimal `json:"remaining_amount"`
	PaymentCount    int             `json:"payment_count"`
	CollectionRate  decimal.Decimal `json:"collection_rate"`
	Status          PaymentStatus   `json:"status"`
	LastPaymentDate *time.Time      `json:"last_payment_date,omitempty"`
}

// BalanceFromLedger derives the balance view of an account straight from
// its ledger, ignoring the cached fields on the account.
func BalanceFromLedger(a *FeeAccount, entries []LedgerEntry) PaymentBalance {
	t := FoldLedger(entries)
	fs := a.Fees()
	b := NormalizeForPlan(a.PlanType, CalculateBalance(fs, t.TotalPaid, decimal.Zero))
	return PaymentBalance{
		AccountID:       a.ID.String(),
		TotalFee:        b.TotalDue,
		TotalPaid:       b.TotalPaid,
		RemainingAmount: b.OutstandingAmount,
		PaymentCount:    t.Count,
		CollectionRate:  b.CollectionRate,
		Status:          DeriveStatus(fs, b),
		LastPaymentDate: t.LastPaymentDate,
	}
}

// InvoicePayment is one ledger line on an invoice.
type InvoicePayment struct {
	EntryID        string          `json:"entry_id"`
	ReceiptNumber  string          `json:"receipt_number"`
	Amount         decimal.Decimal `json:"amount"`
	Discount       decimal.Decimal `json:"discount"`
	SpecialCharges decimal.Decimal `json:"special_charges"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	PaidAt         time.Time       `json:"paid_at"`
	Mode           PaymentMode     `json:"mode"`
	Status         EntryStatus     `json:"status"`
	EMIIndex       *int            `json:"emi_index,omitempty"`
}

// InvoiceBreakdown is a ledger-only reconstruction of what is owed and paid.
type InvoiceBreakdown struct {
	InvoiceNumber      string           `json:"invoice_number,omitempty"`
	AccountID          string           `json:"account_id"`
	StudentID          string           `json:"student_id"`
	StudentName        string           `json:"student_name"`
	CourseID           string           `json:"course_id"`
	PlanType           PlanType         `json:"plan_type"`
	BaseFee            decimal.Decimal  `json:"base_fee"`
	Discount           decimal.Decimal  `json:"discount"`
	SpecialCharges     decimal.Decimal  `json:"special_charges"`
	TaxAmount          decimal.Decimal  `json:"tax_amount"`
	TotalFee           decimal.Decimal  `json:"total_fee"`
	Payments           []InvoicePayment `json:"payments"`
	TotalPaid          decimal.Decimal  `json:"total_paid"`
	OutstandingBalance decimal.Decimal  `json:"outstanding_balance"`
	PaymentStatus      PaymentStatus    `json:"payment_status"`
	GeneratedAt        time.Time        `json:"generated_at"`
	ArchiveKey         string           `json:"archive_key,omitempty"`
}

// BuildInvoiceBreakdown walks the ledger and rolls adjustments up apart
// from the base fee: total = base - discount + special charges + tax.
// Payments are listed oldest first.
func BuildInvoiceBreakdown(a *FeeAccount, entries []LedgerEntry, now time.Time) InvoiceBreakdown {
	t := FoldLedger(entries)
	base := a.Fees().TotalDue()
	total := base.Sub(t.Discount).Add(t.SpecialCharges).Add(t.TaxAmount)
	if total.IsNegative() {
		total = decimal.Zero
	}

	counted := lo.Filter(entries, func(e LedgerEntry, _ int) bool {
		return e.CountsTowardBalance()
	})
	sort.SliceStable(counted, func(i, j int) bool {
		return counted[i].PaidAt.Before(counted[j].PaidAt)
	})
	payments := lo.Map(counted, func(e LedgerEntry, _ int) InvoicePayment {
		return InvoicePayment{
			EntryID:        e.ID.String(),
			ReceiptNumber:  e.ReceiptNumber,
			Amount:         e.Amount,
			Discount:       e.Discount,
			SpecialCharges: e.SpecialCharges,
			TaxAmount:      e.TaxAmount,
			PaidAt:         e.PaidAt,
			Mode:           e.Mode,
			Status:         e.Status,
			EMIIndex:       e.EMIIndex,
		}
	})

	outstanding := Outstanding(total, t.TotalPaid)
	status := DetermineStatus(t.TotalPaid, total, a.PlanType == PlanEMI && AllPaid(a.EMISchedule))
	if a.PlanType == PlanMonthlySubscription {
		outstanding = decimal.Zero
		status = DeriveStatus(a.Fees(), Balance{TotalPaid: t.TotalPaid})
	}

	return InvoiceBreakdown{
		AccountID:          a.ID.String(),
		StudentID:          a.StudentID.String(),
		StudentName:        a.StudentName,
		CourseID:           a.CourseID.String(),
		PlanType:           a.PlanType,
		BaseFee:            base,
		Discount:           t.Discount,
		SpecialCharges:     t.SpecialCharges,
		TaxAmount:          t.TaxAmount,
		TotalFee:           total,
		Payments:           payments,
		TotalPaid:          t.TotalPaid,
		OutstandingBalance: outstanding,
		PaymentStatus:      status,
		GeneratedAt:        now,
	}
}
