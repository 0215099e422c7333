package integration

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	appfee "github.com/academy/backend/internal/application/fee"
	"github.com/academy/backend/internal/domain/fee"
	"github.com/academy/backend/internal/infrastructure/event"
	"github.com/academy/backend/internal/infrastructure/persistence"
	"github.com/academy/backend/tests/testutil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var ledgerNow = time.Date(2024, time.June, 10, 10, 0, 0, 0, time.UTC)

type ledgerFixture struct {
	tdb    *TestDB
	svc    *appfee.LedgerService
	events *testutil.RecordingHandler
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()
	tdb := NewSharedTestDB(t)
	tdb.CleanTables()

	log := zaptest.NewLogger(t)
	bus := event.NewInMemoryEventBus(log)
	recorder := testutil.NewRecordingHandler()
	bus.Subscribe(recorder)

	catalog := persistence.NewGormFeeCatalog(tdb.DB)
	svc := appfee.NewLedgerService(
		persistence.NewGormTransactionScope(tdb.DB),
		persistence.NewGormFeeAccountRepository(tdb.DB),
		persistence.NewGormLedgerEntryRepository(tdb.DB),
		appfee.NewNumberGenerator(persistence.NewGormSequenceCounter(tdb.DB), "RCP", "INV", time.UTC),
		appfee.WithClock(testutil.FixedClock(ledgerNow)),
		appfee.WithFeeLookups(catalog, catalog),
		appfee.WithEventPublisher(bus),
		appfee.WithLogger(log),
	)
	return &ledgerFixture{tdb: tdb, svc: svc, events: recorder}
}

func (f *ledgerFixture) cashPayment(account *fee.FeeAccount, amount int64) appfee.AddPaymentInput {
	return appfee.AddPaymentInput{Payment: fee.PaymentDraft{
		AccountID:  account.ID,
		StudentID:  account.StudentID,
		Amount:     decimal.NewFromInt(amount),
		Date:       ledgerNow,
		Mode:       fee.ModeCash,
		ReceivedBy: "desk",
		PlanType:   account.PlanType,
	}}
}

func TestSequenceCounter_ConcurrentReceiptNumbers(t *testing.T) {
	tdb := NewSharedTestDB(t)
	tdb.CleanTables()

	gen := appfee.NewNumberGenerator(persistence.NewGormSequenceCounter(tdb.DB), "RCP", "INV", time.UTC)
	ctx := testutil.ContextWithTimeout(t, time.Minute)
	tenantID := uuid.New()

	const n = 100
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers = make(map[string]struct{}, n)
		errs    []error
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			number, err := gen.NextReceiptNumber(ctx, tenantID, ledgerNow)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			numbers[number] = struct{}{}
		}()
	}
	wg.Wait()

	require.Empty(t, errs)
	require.Len(t, numbers, n)
	for i := 1; i <= n; i++ {
		_, ok := numbers[fmt.Sprintf("RCP-202406-%04d", i)]
		assert.True(t, ok, "missing sequence %d", i)
	}

	t.Run("other tenant starts its own sequence", func(t *testing.T) {
		number, err := gen.NextReceiptNumber(ctx, uuid.New(), ledgerNow)
		require.NoError(t, err)
		assert.Equal(t, "RCP-202406-0001", number)
	})

	t.Run("next month resets", func(t *testing.T) {
		number, err := gen.NextReceiptNumber(ctx, tenantID, ledgerNow.AddDate(0, 1, 0))
		require.NoError(t, err)
		assert.Equal(t, "RCP-202407-0001", number)
	})

	t.Run("invoices count separately", func(t *testing.T) {
		number, err := gen.NextInvoiceNumber(ctx, tenantID, ledgerNow)
		require.NoError(t, err)
		assert.Equal(t, "INV-202406-0001", number)
	})
}

func TestLedger_ConcurrentPaymentsKeepTotals(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	tenantID := uuid.New()

	courseFee := decimal.NewFromInt(100_000)
	opened := f.svc.OpenAccount(ctx, tenantID, appfee.OpenAccountInput{
		StudentID:   uuid.New(),
		StudentName: "Meera",
		PlanType:    fee.PlanOneTime,
		Enrollment:  appfee.EnrollmentInput{CourseID: uuid.New(), CourseFee: &courseFee},
	})
	require.True(t, opened.Success, "%+v", opened.Error)
	account := opened.Record

	const n = 40
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		receipts = make(map[string]int, n)
		failures []string
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := f.svc.AddRecord(ctx, tenantID, f.cashPayment(account, 2500))
			mu.Lock()
			defer mu.Unlock()
			if !res.Success {
				failures = append(failures, fmt.Sprintf("%+v", res.Error))
				return
			}
			receipts[res.Record.ReceiptNumber]++
		}()
	}
	wg.Wait()

	require.Empty(t, failures)
	require.Len(t, receipts, n)
	for number, count := range receipts {
		assert.Equal(t, 1, count, "duplicate receipt %s", number)
		assert.True(t, strings.HasPrefix(number, "RCP-202406-"), number)
	}

	got := f.svc.GetAccount(ctx, tenantID, account.ID)
	require.True(t, got.Success)
	assert.Equal(t, n, got.Record.PaymentCount)
	assert.True(t, got.Record.TotalReceived.Equal(courseFee), got.Record.TotalReceived.String())
	assert.True(t, got.Record.OutstandingAmount.IsZero())
	assert.Equal(t, fee.PaymentStatusPaid, got.Record.Status)

	// the cached totals agree with a fold over the ledger
	recomputed := f.svc.Recompute(ctx, tenantID, account.ID)
	require.True(t, recomputed.Success, "%+v", recomputed.Error)
	assert.True(t, recomputed.Record.TotalReceived.Equal(got.Record.TotalReceived))
	assert.Equal(t, got.Record.Status, recomputed.Record.Status)

	assert.Equal(t, n, f.events.Count(fee.EventTypePaymentRecorded))
}

func TestLedger_EMIScheduleOnPostgres(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	tenantID, courseID := uuid.New(), uuid.New()
	f.tdb.SeedCourseFee(tenantID, courseID, "9000")

	first := time.Date(2024, time.July, 31, 0, 0, 0, 0, time.UTC)
	opened := f.svc.OpenAccount(ctx, tenantID, appfee.OpenAccountInput{
		StudentID: uuid.New(),
		PlanType:  fee.PlanEMI,
		Enrollment: appfee.EnrollmentInput{
			CourseID:         courseID,
			InstallmentCount: 3,
			FirstDueDate:     &first,
		},
	})
	require.True(t, opened.Success, "%+v", opened.Error)
	account := opened.Record
	require.Len(t, account.EMISchedule, 3)
	// month-end due days clamp to shorter months
	assert.True(t, account.EMISchedule[2].DueDate.Equal(time.Date(2024, time.September, 30, 0, 0, 0, 0, time.UTC)), account.EMISchedule[2].DueDate.String())

	pay := func(idx int) appfee.Result[*fee.LedgerEntry] {
		in := f.cashPayment(account, 3000)
		in.Payment.EMIIndex = &idx
		return f.svc.AddRecord(ctx, tenantID, in)
	}

	res := pay(2)
	require.False(t, res.Success)
	assert.Equal(t, "EMI_OUT_OF_ORDER", res.Error.Code)

	for i := 0; i < 3; i++ {
		res := pay(i)
		require.True(t, res.Success, "installment %d: %+v", i, res.Error)
	}

	got := f.svc.GetAccount(ctx, tenantID, account.ID)
	require.True(t, got.Success)
	assert.Equal(t, fee.PaymentStatusFullyPaid, got.Record.Status)
	assert.True(t, fee.AllPaid(got.Record.EMISchedule))
	assert.Equal(t, 1, f.events.Count(fee.EventTypeFeeAccountSettled))

	res = pay(1)
	require.False(t, res.Success)
	assert.Equal(t, "EMI_ALREADY_PAID", res.Error.Code)
}

func TestLedger_SoftDeleteReopensBalance(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	tenantID := uuid.New()

	courseFee := decimal.NewFromInt(5000)
	opened := f.svc.OpenAccount(ctx, tenantID, appfee.OpenAccountInput{
		StudentID:  uuid.New(),
		PlanType:   fee.PlanOneTime,
		Enrollment: appfee.EnrollmentInput{CourseID: uuid.New(), CourseFee: &courseFee},
	})
	require.True(t, opened.Success, "%+v", opened.Error)
	account := opened.Record

	paid := f.svc.AddRecord(ctx, tenantID, f.cashPayment(account, 5000))
	require.True(t, paid.Success, "%+v", paid.Error)

	deleted := f.svc.SoftDeleteRecord(ctx, tenantID, paid.Record.ID, "auditor")
	require.True(t, deleted.Success, "%+v", deleted.Error)
	assert.True(t, deleted.Record.IsDeleted)

	balance := f.svc.CalculateRemainingBalance(ctx, tenantID, account.ID)
	require.True(t, balance.Success)
	assert.True(t, balance.Record.RemainingAmount.Equal(courseFee))
	assert.Equal(t, fee.PaymentStatusPending, balance.Record.Status)

	history := f.svc.GetHistory(ctx, tenantID, account.ID, appfee.HistoryQuery{IncludeDeleted: true})
	require.True(t, history.Success)
	assert.EqualValues(t, 1, history.Record.Total)

	again := f.svc.SoftDeleteRecord(ctx, tenantID, paid.Record.ID, "auditor")
	require.False(t, again.Success)
	assert.Equal(t, "LEDGER_ENTRY_DELETED", again.Error.Code)
}
