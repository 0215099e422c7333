package fee

import (
	"fmt"
	"testing"
	"time"

	"github.com/academy/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFeeAccount(t *testing.T) {
	tenantID := uuid.New()

	t.Run("opens pending account", func(t *testing.T) {
		a, err := NewFeeAccount(tenantID, NewAccountParams{
			StudentID:              uuid.New(),
			CourseID:               uuid.New(),
			PlanType:               PlanOneTime,
			CourseFee:              dec(4000),
			CourseRegistrationFee:  dec(500),
			StudentRegistrationFee: dec(500),
		})
		require.NoError(t, err)
		assert.Equal(t, tenantID, a.TenantID)
		assert.Equal(t, PaymentStatusPending, a.Status)
		assert.Equal(t, LifecycleActive, a.Lifecycle)
		assertDecimal(t, 5000, a.OutstandingAmount)
		assert.Len(t, a.GetDomainEvents(), 1)
		assert.Equal(t, EventTypeFeeAccountCreated, a.GetDomainEvents()[0].EventType())
	})

	t.Run("EMI account starts at first installment", func(t *testing.T) {
		a, err := NewFeeAccount(tenantID, NewAccountParams{StudentID: uuid.New(), PlanType: PlanEMI, Schedule: threeInstallments()})
		require.NoError(t, err)
		require.NotNil(t, a.NextDueDate)
		assert.Equal(t, date(2024, time.July, 5), *a.NextDueDate)
		assertDecimal(t, 3000, a.OutstandingAmount)
	})

	t.Run("monthly account has nothing outstanding", func(t *testing.T) {
		a, err := NewFeeAccount(tenantID, NewAccountParams{StudentID: uuid.New(), PlanType: PlanMonthlySubscription, CourseFee: dec(1500)})
		require.NoError(t, err)
		assertDecimal(t, 0, a.OutstandingAmount)
		assert.Equal(t, 1, a.MonthlyDueDay)
	})

	tests := []struct {
		name     string
		tenantID uuid.UUID
		params   NewAccountParams
		want     error
	}{
		{"missing tenant", uuid.Nil, NewAccountParams{StudentID: uuid.New(), PlanType: PlanOneTime}, shared.ErrTenantRequired},
		{"unknown plan", tenantID, NewAccountParams{StudentID: uuid.New(), PlanType: "YEARLY"}, ErrInvalidPlanType},
		{"negative fee", tenantID, NewAccountParams{StudentID: uuid.New(), PlanType: PlanOneTime, CourseFee: dec(-1)}, ErrNegativeFee},
		{"bad due day", tenantID, NewAccountParams{StudentID: uuid.New(), PlanType: PlanMonthlySubscription, MonthlyDueDay: 32}, ErrInvalidDueDay},
		{"EMI without schedule", tenantID, NewAccountParams{StudentID: uuid.New(), PlanType: PlanEMI}, ErrEMIScheduleMissing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFeeAccount(tt.tenantID, tt.params)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestFeeAccount_RegistrationFeesAreImmutable(t *testing.T) {
	a := newTestAccount(t, NewAccountParams{PlanType: PlanOneTime, CourseFee: dec(4000), CourseRegistrationFee: dec(500)})

	assert.True(t, a.SetRegistrationFees(dec(900), dec(300)))

	assertDecimal(t, 500, a.CourseRegistrationFee)
	assertDecimal(t, 300, a.StudentRegistrationFee)

	assert.False(t, a.SetRegistrationFees(dec(900), dec(700)))
	assertDecimal(t, 300, a.StudentRegistrationFee)

	emi := newTestAccount(t, NewAccountParams{PlanType: PlanEMI, Schedule: threeInstallments()})
	assert.False(t, emi.SetRegistrationFees(dec(900), dec(300)))
	assert.True(t, emi.CourseRegistrationFee.IsZero())
}

func ledgerOf(amounts ...int64) []LedgerEntry {
	out := make([]LedgerEntry, len(amounts))
	base := date(2024, time.June, 1)
	for i, amt := range amounts {
		out[i] = LedgerEntry{
			AccountID: uuid.New(),
			Amount:    dec(amt),
			PaidAt:    base.AddDate(0, 0, i),
			Status:    EntryStatusConfirmed,
		}
	}
	return out
}

func TestFeeAccount_ApplyLedgerTotals(t *testing.T) {
	now := at(2024, time.June, 10, 12, 0)

	t.Run("idempotent", func(t *testing.T) {
		a := newTestAccount(t, NewAccountParams{PlanType: PlanOneTime, CourseFee: dec(5000)})
		totals := FoldLedger(ledgerOf(1000, 2000))

		a.ApplyLedgerTotals(totals, DefaultPolicy(), now)
		first := *a
		a.ApplyLedgerTotals(FoldLedger(ledgerOf(1000, 2000)), DefaultPolicy(), now)

		assert.True(t, first.TotalReceived.Equal(a.TotalReceived))
		assert.True(t, first.OutstandingAmount.Equal(a.OutstandingAmount))
		assert.True(t, first.CollectionRate.Equal(a.CollectionRate))
		assert.Equal(t, first.Status, a.Status)
		assert.Equal(t, first.PaymentCount, a.PaymentCount)
		assert.Equal(t, first.LastPaymentDate, a.LastPaymentDate)
		assertDecimal(t, 2000, a.OutstandingAmount)
		assert.Equal(t, PaymentStatusPartial, a.Status)
		assert.Equal(t, 2, a.PaymentCount)
	})

	t.Run("heals a corrupted cache", func(t *testing.T) {
		a := newTestAccount(t, NewAccountParams{PlanType: PlanOneTime, CourseFee: dec(5000)})
		a.TotalReceived = dec(999999)
		a.OutstandingAmount = dec(-5)
		a.Status = PaymentStatusOverpaid

		a.ApplyLedgerTotals(FoldLedger(ledgerOf(3000)), DefaultPolicy(), now)

		assertDecimal(t, 3000, a.TotalReceived)
		assertDecimal(t, 2000, a.OutstandingAmount)
		assert.Equal(t, PaymentStatusPartial, a.Status)
	})

	t.Run("settling clears reminders and raises one event", func(t *testing.T) {
		a := newTestAccount(t, NewAccountParams{PlanType: PlanOneTime, CourseFee: dec(5000)})
		a.ClearDomainEvents()
		reminder := at(2024, time.June, 11, ReminderHour, 0)
		a.ReminderEnabled = true
		a.NextReminderDate = &reminder

		a.ApplyLedgerTotals(FoldLedger(ledgerOf(5000)), DefaultPolicy(), now)
		a.ApplyLedgerTotals(FoldLedger(ledgerOf(5000)), DefaultPolicy(), now)

		assert.Equal(t, PaymentStatusPaid, a.Status)
		assert.False(t, a.ReminderEnabled)
		assert.Nil(t, a.NextReminderDate)
		assert.Equal(t, LifecycleCompleted, a.Lifecycle)
		require.Len(t, a.GetDomainEvents(), 1)
		assert.Equal(t, EventTypeFeeAccountSettled, a.GetDomainEvents()[0].EventType())
	})

	t.Run("monthly keeps zero outstanding", func(t *testing.T) {
		a := newTestAccount(t, NewAccountParams{PlanType: PlanMonthlySubscription, CourseFee: dec(1500)})
		a.ApplyLedgerTotals(FoldLedger(ledgerOf(100)), DefaultPolicy(), now)
		assertDecimal(t, 0, a.OutstandingAmount)
		assert.Equal(t, PaymentStatusPaid, a.Status)
		assert.Equal(t, LifecycleActive, a.Lifecycle)
	})

	t.Run("empty ledger resets to pending", func(t *testing.T) {
		a := newTestAccount(t, NewAccountParams{PlanType: PlanOneTime, CourseFee: dec(5000)})
		a.ApplyLedgerTotals(FoldLedger(ledgerOf(3000)), DefaultPolicy(), now)
		a.ApplyLedgerTotals(FoldLedger(nil), DefaultPolicy(), now)
		assert.Equal(t, PaymentStatusPending, a.Status)
		assertDecimal(t, 5000, a.OutstandingAmount)
		assert.True(t, decimal.Zero.Equal(a.CollectionRate))
	})
}

func emiEntry(index int, amount int64, paidAt time.Time, status EntryStatus) LedgerEntry {
	return LedgerEntry{
		AccountID:     uuid.New(),
		Amount:        dec(amount),
		PaidAt:        paidAt,
		Status:        status,
		EMIIndex:      intPtr(index),
		TransactionID: fmt.Sprintf("txn-%d-%d", index, amount),
	}
}

func TestFeeAccount_ApplyLedgerTotalsRebuildsSchedule(t *testing.T) {
	now := at(2024, time.June, 10, 12, 0)
	paidAt := at(2024, time.June, 5, 10, 0)

	t.Run("removed payment reopens the installment", func(t *testing.T) {
		a := newTestAccount(t, NewAccountParams{PlanType: PlanEMI, Schedule: threeInstallments()})
		pay(t, a, PaymentEvent{Amount: dec(1000), PaidAt: paidAt, EMIIndex: intPtr(0)}, now)
		require.Equal(t, 1, a.CurrentEMIIndex)

		a.ApplyLedgerTotals(FoldLedger([]LedgerEntry{emiEntry(0, 1000, paidAt, EntryStatusFailed)}), DefaultPolicy(), now)

		assert.Equal(t, EMIStatusPending, a.EMISchedule[0].Status)
		assert.Nil(t, a.EMISchedule[0].PaidDate)
		assertDecimal(t, 0, a.EMISchedule[0].PaidAmount)
		assert.Equal(t, 0, a.CurrentEMIIndex)
		assert.Equal(t, PaymentStatusPending, a.Status)
		assert.True(t, a.ReminderEnabled)
		assert.Equal(t, ReminderMonthly, a.ReminderFrequency)
		assert.Equal(t, date(2024, time.July, 5), *a.NextDueDate)

		_, err := (emiProcessor{policy: DefaultPolicy()}).Process(a.State(), PaymentEvent{Amount: dec(1000), PaidAt: now, EMIIndex: intPtr(0)}, now)
		assert.NoError(t, err)
	})

	t.Run("live entries keep installments paid", func(t *testing.T) {
		a := newTestAccount(t, NewAccountParams{PlanType: PlanEMI, Schedule: threeInstallments()})
		pay(t, a, PaymentEvent{Amount: dec(1000), PaidAt: paidAt, EMIIndex: intPtr(0)}, now)
		pay(t, a, PaymentEvent{Amount: dec(1000), PaidAt: paidAt, EMIIndex: intPtr(1)}, now)
		entries := []LedgerEntry{
			emiEntry(0, 1000, paidAt, EntryStatusConfirmed),
			emiEntry(1, 1000, paidAt, EntryStatusVerified),
		}

		a.ApplyLedgerTotals(FoldLedger(entries), DefaultPolicy(), now)
		first := scheduleState(a.EMISchedule)
		a.ApplyLedgerTotals(FoldLedger(entries), DefaultPolicy(), now)

		assert.Equal(t, first, scheduleState(a.EMISchedule))
		assert.Equal(t, 2, a.CurrentEMIIndex)
		assert.Equal(t, EMIStatusPaid, a.EMISchedule[1].Status)
		assert.Equal(t, "txn-1-1000", a.EMISchedule[1].TransactionID)
		require.NotNil(t, a.EMISchedule[1].PaidDate)
		assert.True(t, paidAt.Equal(*a.EMISchedule[1].PaidDate))
	})

	t.Run("split payments add up", func(t *testing.T) {
		a := newTestAccount(t, NewAccountParams{PlanType: PlanEMI, Schedule: threeInstallments()})
		entries := []LedgerEntry{
			emiEntry(0, 400, paidAt, EntryStatusConfirmed),
			emiEntry(0, 600, paidAt.Add(time.Hour), EntryStatusConfirmed),
		}

		a.ApplyLedgerTotals(FoldLedger(entries), DefaultPolicy(), now)

		assert.Equal(t, EMIStatusPaid, a.EMISchedule[0].Status)
		assert.Equal(t, "txn-0-600", a.EMISchedule[0].TransactionID)
		assert.Equal(t, 1, a.CurrentEMIIndex)
	})

	t.Run("imported paid prefix survives", func(t *testing.T) {
		paidDate := date(2024, time.July, 5)
		schedule := threeInstallments()
		schedule[0].Status = EMIStatusPaid
		schedule[0].PaidAmount = dec(1000)
		schedule[0].PaidDate = &paidDate
		a := newTestAccount(t, NewAccountParams{PlanType: PlanEMI, Schedule: schedule})

		a.ApplyLedgerTotals(FoldLedger([]LedgerEntry{emiEntry(1, 1000, paidAt, EntryStatusConfirmed)}), DefaultPolicy(), now)

		assert.Equal(t, EMIStatusPaid, a.EMISchedule[0].Status)
		assert.Equal(t, EMIStatusPaid, a.EMISchedule[1].Status)
		assert.Equal(t, 2, a.CurrentEMIIndex)
	})
}

func scheduleState(items []EMIItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = fmt.Sprintf("%s/%s/%s", it.Status, it.PaidAmount, it.TransactionID)
	}
	return out
}

func TestFeeAccount_ApplyLedgerTotalsReopensOneTime(t *testing.T) {
	now := at(2024, time.June, 10, 12, 0)
	a := newTestAccount(t, NewAccountParams{PlanType: PlanOneTime, CourseFee: dec(5000)})
	a.ApplyLedgerTotals(FoldLedger(ledgerOf(3000, 2000)), DefaultPolicy(), now)
	require.Equal(t, LifecycleCompleted, a.Lifecycle)
	require.False(t, a.ReminderEnabled)

	later := at(2024, time.June, 12, 16, 30)
	a.ApplyLedgerTotals(FoldLedger(ledgerOf(2000)), DefaultPolicy(), later)

	assert.Equal(t, PaymentStatusPartial, a.Status)
	assert.Equal(t, LifecycleActive, a.Lifecycle)
	assert.True(t, a.ReminderEnabled)
	assert.Equal(t, ReminderDaily, a.ReminderFrequency)
	require.NotNil(t, a.NextDueDate)
	require.NotNil(t, a.NextReminderDate)
	assert.Equal(t, at(2024, time.June, 13, DueHour, DueMinute), *a.NextDueDate)
	assert.Equal(t, at(2024, time.June, 13, ReminderHour, 0), *a.NextReminderDate)
	assert.True(t, a.IsReminderDue(at(2024, time.June, 13, ReminderHour, 0)))
}

func TestFeeAccount_DeferReminder(t *testing.T) {
	now := at(2024, time.June, 11, 9, 15)
	a := newTestAccount(t, NewAccountParams{PlanType: PlanOneTime, CourseFee: dec(5000)})
	pay(t, a, PaymentEvent{Amount: dec(3000), PaidAt: now}, at(2024, time.June, 10, 12, 0))
	require.True(t, a.IsReminderDue(now))

	a.DeferReminder(now, time.Hour)

	assert.Equal(t, at(2024, time.June, 11, 10, 15), *a.NextReminderDate)
	assert.Nil(t, a.LastReminderAt)
	assert.Equal(t, ReminderDaily, a.ReminderFrequency)
	assert.False(t, a.IsReminderDue(now))
	assert.True(t, a.IsReminderDue(now.Add(time.Hour)))
}

func TestFeeAccount_IsReminderDue(t *testing.T) {
	now := at(2024, time.June, 10, 12, 0)
	a := newTestAccount(t, NewAccountParams{PlanType: PlanOneTime, CourseFee: dec(5000)})
	assert.False(t, a.IsReminderDue(now))

	due := at(2024, time.June, 10, ReminderHour, 0)
	a.ReminderEnabled = true
	a.NextReminderDate = &due
	assert.True(t, a.IsReminderDue(now))

	a.MarkReminderSent(now, at(2024, time.June, 11, ReminderHour, 0))
	assert.False(t, a.IsReminderDue(now))
	require.NotNil(t, a.LastReminderAt)
}

func TestFeeAccount_AdvanceReminder(t *testing.T) {
	now := at(2024, time.June, 10, 12, 0)

	t.Run("daily cadence moves to tomorrow", func(t *testing.T) {
		a := newTestAccount(t, NewAccountParams{PlanType: PlanOneTime, CourseFee: dec(5000)})
		due := at(2024, time.June, 10, ReminderHour, 0)
		a.ReminderEnabled = true
		a.ReminderFrequency = ReminderDaily
		a.NextReminderDate = &due

		a.AdvanceReminder(now)
		require.NotNil(t, a.NextReminderDate)
		assert.Equal(t, at(2024, time.June, 11, ReminderHour, 0), *a.NextReminderDate)
		assert.False(t, a.IsReminderDue(now))
	})

	t.Run("one-off reminder switches off", func(t *testing.T) {
		a := newTestAccount(t, NewAccountParams{PlanType: PlanCustom, CourseFee: dec(5000)})
		due := at(2024, time.June, 9, ReminderHour, 0)
		a.ReminderEnabled = true
		a.NextReminderDate = &due

		a.AdvanceReminder(now)
		assert.False(t, a.ReminderEnabled)
		assert.Nil(t, a.NextReminderDate)
		require.NotNil(t, a.LastReminderAt)
	})
}

func TestNewFeeAccount_KeepsCallerID(t *testing.T) {
	id := uuid.New()
	a, err := NewFeeAccount(uuid.New(), NewAccountParams{ID: id, StudentID: uuid.New(), PlanType: PlanOneTime})
	require.NoError(t, err)
	assert.Equal(t, id, a.ID)
	require.Len(t, a.GetDomainEvents(), 1)
	assert.Equal(t, id, a.GetDomainEvents()[0].AggregateID())
}
