package integration

import (
	"net/http"
	"testing"
	"time"

	appfee "github.com/academy/backend/internal/application/fee"
	"github.com/academy/backend/internal/infrastructure/persistence"
	"github.com/academy/backend/internal/interfaces/http/handler"
	"github.com/academy/backend/internal/interfaces/http/middleware"
	"github.com/academy/backend/internal/interfaces/http/router"
	"github.com/academy/backend/tests/testutil"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newFeeServer(t *testing.T) (*TestDB, *testutil.APIClient) {
	t.Helper()
	tdb := NewSharedTestDB(t)
	tdb.CleanTables()

	middleware.SetupValidator()
	catalog := persistence.NewGormFeeCatalog(tdb.DB)
	ledger := appfee.NewLedgerService(
		persistence.NewGormTransactionScope(tdb.DB),
		persistence.NewGormFeeAccountRepository(tdb.DB),
		persistence.NewGormLedgerEntryRepository(tdb.DB),
		appfee.NewNumberGenerator(persistence.NewGormSequenceCounter(tdb.DB), "RCP", "INV", time.UTC),
		appfee.WithClock(testutil.FixedClock(ledgerNow)),
		appfee.WithFeeLookups(catalog, catalog),
		appfee.WithLogger(zaptest.NewLogger(t)),
	)

	engine := gin.New()
	engine.Use(middleware.RequestID(), middleware.Tenant(middleware.DefaultTenantConfig()))
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	for _, g := range router.FeeRoutes(router.FeeHandlers{
		Accounts: handler.NewFeeAccountHandler(ledger, time.UTC),
		Payments: handler.NewPaymentHandler(ledger, time.UTC),
	}) {
		r.Register(g)
	}
	r.Setup()

	return tdb, testutil.NewAPIClient(engine)
}

func TestFeeAPI_PaymentLifecycle(t *testing.T) {
	tdb, api := newFeeServer(t)
	courseID := uuid.New()
	tdb.SeedCourseFee(api.TenantID, courseID, "12000")

	// the first payment opens the account from the catalog fee
	accountID, studentID := uuid.NewString(), uuid.NewString()
	resp := api.Do(t, http.MethodPost, "/api/v1/payments", map[string]any{
		"account_id":   accountID,
		"student_id":   studentID,
		"student_name": "Ravi Kumar",
		"amount":       "4000",
		"date":         "2024-06-10",
		"mode":         "CASH",
		"plan_type":    "ONE_TIME",
		"enrollment":   map[string]any{"course_id": courseID.String()},
	})
	testutil.AssertSuccess(t, resp, http.StatusCreated)
	var first handler.LedgerEntryResponse
	resp.Into(t, &first)
	assert.Equal(t, "RCP-202406-0001", first.ReceiptNumber)
	assert.Equal(t, "cashier-1", first.ReceivedBy)

	resp = api.Do(t, http.MethodPost, "/api/v1/payments", map[string]any{
		"account_id": accountID,
		"student_id": studentID,
		"amount":     "9000",
		"date":       "2024-06-10",
		"mode":       "UPI",
		"plan_type":  "ONE_TIME",
	})
	testutil.AssertSuccess(t, resp, http.StatusCreated)
	require.Len(t, resp.Body.Warnings, 1)
	assert.Equal(t, "OVERPAYMENT", resp.Body.Warnings[0].Code)
	var second handler.LedgerEntryResponse
	resp.Into(t, &second)
	assert.Equal(t, "RCP-202406-0002", second.ReceiptNumber)

	resp = api.Do(t, http.MethodGet, "/api/v1/fee-accounts/"+accountID+"/balance", nil)
	testutil.AssertSuccess(t, resp, http.StatusOK)
	var balance struct {
		TotalFee        string `json:"total_fee"`
		TotalPaid       string `json:"total_paid"`
		RemainingAmount string `json:"remaining_amount"`
		Status          string `json:"status"`
	}
	resp.Into(t, &balance)
	assert.Equal(t, "12000", balance.TotalFee)
	assert.Equal(t, "13000", balance.TotalPaid)
	assert.Equal(t, "OVERPAID", balance.Status)

	// correcting the second amount brings the account to exactly paid
	resp = api.Do(t, http.MethodPatch, "/api/v1/payments/entries/"+second.ID, map[string]any{"amount": "8000"})
	testutil.AssertSuccess(t, resp, http.StatusOK)

	resp = api.Do(t, http.MethodGet, "/api/v1/fee-accounts/"+accountID, nil)
	testutil.AssertSuccess(t, resp, http.StatusOK)
	var account handler.FeeAccountResponse
	resp.Into(t, &account)
	assert.Equal(t, "PAID", account.Status)
	assert.Equal(t, 2, account.PaymentCount)
	assert.True(t, account.OutstandingAmount.IsZero())

	resp = api.Do(t, http.MethodDelete, "/api/v1/payments/entries/"+first.ID, nil)
	testutil.AssertSuccess(t, resp, http.StatusOK)

	resp = api.Do(t, http.MethodGet, "/api/v1/fee-accounts/"+accountID+"/history?sort_by=amount&sort_dir=asc", nil)
	testutil.AssertSuccess(t, resp, http.StatusOK)
	require.NotNil(t, resp.Body.Meta)
	assert.EqualValues(t, 1, resp.Body.Meta.Total)

	resp = api.Do(t, http.MethodGet, "/api/v1/fee-accounts/"+accountID+"/invoice", nil)
	testutil.AssertSuccess(t, resp, http.StatusOK)
	var invoice struct {
		InvoiceNumber      string `json:"invoice_number"`
		OutstandingBalance string `json:"outstanding_balance"`
		PaymentStatus      string `json:"payment_status"`
	}
	resp.Into(t, &invoice)
	assert.Equal(t, "INV-202406-0001", invoice.InvoiceNumber)
	assert.Equal(t, "4000", invoice.OutstandingBalance)
	assert.Equal(t, "PARTIAL", invoice.PaymentStatus)

	resp = api.Do(t, http.MethodPost, "/api/v1/fee-accounts/"+accountID+"/recompute", nil)
	testutil.AssertSuccess(t, resp, http.StatusOK)
}

func TestFeeAPI_TenantsDoNotShareAccountsOrSequences(t *testing.T) {
	_, api := newFeeServer(t)
	other := api.ForTenant(uuid.New())

	open := func(c *testutil.APIClient) handler.FeeAccountResponse {
		resp := c.Do(t, http.MethodPost, "/api/v1/fee-accounts", map[string]any{
			"student_id": uuid.NewString(),
			"plan_type":  "ONE_TIME",
			"enrollment": map[string]any{"course_id": uuid.NewString(), "course_fee": "1000"},
		})
		testutil.AssertSuccess(t, resp, http.StatusCreated)
		var acc handler.FeeAccountResponse
		resp.Into(t, &acc)
		return acc
	}
	pay := func(c *testutil.APIClient, acc handler.FeeAccountResponse) handler.LedgerEntryResponse {
		resp := c.Do(t, http.MethodPost, "/api/v1/payments", map[string]any{
			"account_id": acc.ID,
			"student_id": acc.StudentID,
			"amount":     "100",
			"date":       "2024-06-10",
			"mode":       "CARD",
			"plan_type":  "ONE_TIME",
		})
		testutil.AssertSuccess(t, resp, http.StatusCreated)
		var entry handler.LedgerEntryResponse
		resp.Into(t, &entry)
		return entry
	}

	mine := open(api)
	theirs := open(other)

	assert.Equal(t, "RCP-202406-0001", pay(api, mine).ReceiptNumber)
	assert.Equal(t, "RCP-202406-0001", pay(other, theirs).ReceiptNumber)
	assert.Equal(t, "RCP-202406-0002", pay(api, mine).ReceiptNumber)

	resp := other.Do(t, http.MethodGet, "/api/v1/fee-accounts/"+mine.ID, nil)
	testutil.AssertError(t, resp, http.StatusNotFound, "FEE_ACCOUNT_NOT_FOUND")

	anonymous := api.ForTenant(uuid.Nil)
	resp = anonymous.Do(t, http.MethodGet, "/api/v1/fee-accounts/"+mine.ID, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.Status)
}
