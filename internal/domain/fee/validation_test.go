package fee

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func validDraft(now time.Time) PaymentDraft {
	return PaymentDraft{
		AccountID:  uuid.New(),
		StudentID:  uuid.New(),
		Amount:     dec(1000),
		Date:       StartOfDay(now),
		Mode:       ModeCash,
		ReceivedBy: "front-desk",
		PlanType:   PlanOneTime,
	}
}

func issueCodes(issues []ValidationIssue) []string {
	codes := make([]string, len(issues))
	for i, is := range issues {
		codes[i] = is.Field + ":" + is.Code
	}
	return codes
}

func TestValidate(t *testing.T) {
	now := at(2024, time.June, 10, 12, 0)
	balance := Balance{OutstandingAmount: dec(2000), TotalDue: dec(5000), TotalPaid: dec(3000)}

	t.Run("valid draft", func(t *testing.T) {
		r := Validate(validDraft(now), balance, now)
		assert.True(t, r.IsValid)
		assert.Empty(t, r.Errors)
		assert.Empty(t, r.Warnings)
	})

	t.Run("missing fields", func(t *testing.T) {
		r := Validate(PaymentDraft{}, balance, now)
		assert.False(t, r.IsValid)
		codes := issueCodes(r.Errors)
		for _, want := range []string{
			"account_id:REQUIRED", "student_id:REQUIRED", "amount:REQUIRED",
			"date:REQUIRED", "mode:REQUIRED", "received_by:REQUIRED", "plan_type:REQUIRED",
		} {
			assert.Contains(t, codes, want)
		}
	})

	t.Run("negative amounts are errors", func(t *testing.T) {
		d := validDraft(now)
		d.Amount = dec(-1)
		d.Discount = dec(-5)
		r := Validate(d, balance, now)
		assert.False(t, r.IsValid)
		assert.Contains(t, issueCodes(r.Errors), "amount:NEGATIVE")
		assert.Contains(t, issueCodes(r.Errors), "discount:NEGATIVE")
	})

	t.Run("overpayment is a warning", func(t *testing.T) {
		d := validDraft(now)
		d.Amount = dec(2500)
		r := Validate(d, balance, now)
		assert.True(t, r.IsValid)
		assert.Equal(t, []string{"amount:OVERPAYMENT"}, issueCodes(r.Warnings))
	})

	t.Run("monthly plans never warn about overpayment", func(t *testing.T) {
		d := validDraft(now)
		d.PlanType = PlanMonthlySubscription
		r := Validate(d, Balance{}, now)
		assert.True(t, r.IsValid)
		assert.Empty(t, r.Warnings)
	})

	t.Run("future date is a warning", func(t *testing.T) {
		d := validDraft(now)
		d.Date = now.AddDate(0, 0, 2)
		r := Validate(d, balance, now)
		assert.True(t, r.IsValid)
		assert.Contains(t, issueCodes(r.Warnings), "date:FUTURE_DATE")
	})

	t.Run("date over a year old is a warning", func(t *testing.T) {
		d := validDraft(now)
		d.Date = now.AddDate(-1, 0, -1)
		r := Validate(d, balance, now)
		assert.True(t, r.IsValid)
		assert.Contains(t, issueCodes(r.Warnings), "date:STALE_DATE")
	})

	t.Run("EMI requires an index", func(t *testing.T) {
		d := validDraft(now)
		d.PlanType = PlanEMI
		r := Validate(d, balance, now)
		assert.False(t, r.IsValid)
		assert.Contains(t, issueCodes(r.Errors), "emi_index:REQUIRED")
	})

	t.Run("unknown enums", func(t *testing.T) {
		d := validDraft(now)
		d.Mode = "BARTER"
		d.PlanType = "YEARLY"
		d.PayerType = "ALIEN"
		d.Time = "25:99"
		r := Validate(d, balance, now)
		codes := issueCodes(r.Errors)
		assert.Contains(t, codes, "mode:INVALID")
		assert.Contains(t, codes, "plan_type:INVALID")
		assert.Contains(t, codes, "payer_type:INVALID")
		assert.Contains(t, codes, "time:INVALID")
	})
}
