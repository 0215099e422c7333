package handler

import (
	"net/http"
	"time"

	appfee "github.com/academy/backend/internal/application/fee"
	"github.com/academy/backend/internal/domain/fee"
	"github.com/academy/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// PaymentHandler exposes the payment ledger
type PaymentHandler struct {
	BaseHandler
	ledger *appfee.LedgerService
	loc    *time.Location
}

// NewPaymentHandler creates a PaymentHandler. Dates without a zone are read
// in loc, the academy's business timezone.
func NewPaymentHandler(ledger *appfee.LedgerService, loc *time.Location) *PaymentHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &PaymentHandler{ledger: ledger, loc: loc}
}

// Validate checks a payment without recording it. Rejected payments still
// answer 200; the body says why.
//
// @Summary      Validate a payment
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        request body RecordPaymentRequest true "Payment to check"
// @Success      200 {object} dto.Response{data=fee.ValidationResult}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /payments/validate [post]
func (h *PaymentHandler) Validate(c *gin.Context) {
	tenantID, ok := h.getTenantID(c)
	if !ok {
		return
	}

	var req RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	res := h.ledger.Validate(c.Request.Context(), tenantID, req.toInput(h.loc, getActor(c, "")))
	respond(&h.BaseHandler, c, http.StatusOK, res, func(v fee.ValidationResult) any { return v })
}

// Record records a payment and returns the ledger entry with its receipt
// number.
//
// @Summary      Record a payment
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        request body RecordPaymentRequest true "Payment to record"
// @Success      201 {object} dto.Response{data=LedgerEntryResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /payments [post]
func (h *PaymentHandler) Record(c *gin.Context) {
	tenantID, ok := h.getTenantID(c)
	if !ok {
		return
	}

	var req RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	res := h.ledger.AddRecord(c.Request.Context(), tenantID, req.toInput(h.loc, getActor(c, "")))
	respond(&h.BaseHandler, c, http.StatusCreated, res, presentEntry)
}

// History lists an account's ledger entries.
//
// @Summary      List payment history
// @Tags         fee-accounts
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        id path string true "Fee account ID" format(uuid)
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20)
// @Param        include_deleted query bool false "Include soft-deleted entries"
// @Success      200 {object} dto.Response{data=[]LedgerEntryResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /fee-accounts/{id}/history [get]
func (h *PaymentHandler) History(c *gin.Context) {
	tenantID, ok := h.getTenantID(c)
	if !ok {
		return
	}
	accountID, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req HistoryRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	res := h.ledger.GetHistory(c.Request.Context(), tenantID, accountID, req.toQuery())
	if !res.Success {
		h.HandleResultError(c, res.Error)
		return
	}

	page := res.Record
	items := make([]LedgerEntryResponse, len(page.Items))
	for i := range page.Items {
		items[i] = toLedgerEntryResponse(&page.Items[i])
	}
	h.SuccessWithMeta(c, items, page.Total, page.Page, page.PageSize)
}

// Balance returns what has been paid and what remains, derived from the
// ledger.
//
// @Summary      Get remaining balance
// @Tags         fee-accounts
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        id path string true "Fee account ID" format(uuid)
// @Success      200 {object} dto.Response{data=fee.PaymentBalance}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /fee-accounts/{id}/balance [get]
func (h *PaymentHandler) Balance(c *gin.Context) {
	h.withAccount(c, func(ctx *gin.Context, tenantID, accountID uuid.UUID) {
		res := h.ledger.CalculateRemainingBalance(ctx.Request.Context(), tenantID, accountID)
		respond(&h.BaseHandler, ctx, http.StatusOK, res, func(b fee.PaymentBalance) any { return b })
	})
}

// Invoice returns the invoice breakdown of an account.
//
// @Summary      Get invoice breakdown
// @Tags         fee-accounts
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        id path string true "Fee account ID" format(uuid)
// @Success      200 {object} dto.Response{data=fee.InvoiceBreakdown}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /fee-accounts/{id}/invoice [get]
func (h *PaymentHandler) Invoice(c *gin.Context) {
	h.withAccount(c, func(ctx *gin.Context, tenantID, accountID uuid.UUID) {
		res := h.ledger.GenerateInvoiceBreakdown(ctx.Request.Context(), tenantID, accountID)
		respond(&h.BaseHandler, ctx, http.StatusOK, res, func(b fee.InvoiceBreakdown) any { return b })
	})
}

// Recompute rebuilds an account's cached totals from its ledger.
//
// @Summary      Recompute account totals
// @Tags         fee-accounts
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        id path string true "Fee account ID" format(uuid)
// @Success      200 {object} dto.Response{data=FeeAccountResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /fee-accounts/{id}/recompute [post]
func (h *PaymentHandler) Recompute(c *gin.Context) {
	h.withAccount(c, func(ctx *gin.Context, tenantID, accountID uuid.UUID) {
		res := h.ledger.Recompute(ctx.Request.Context(), tenantID, accountID)
		respond(&h.BaseHandler, ctx, http.StatusOK, res, presentAccount)
	})
}

// UpdateEntry corrects the descriptive fields, status or amount of an entry.
//
// @Summary      Correct a ledger entry
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        id path string true "Ledger entry ID" format(uuid)
// @Param        request body UpdateEntryRequest true "Fields to change"
// @Success      200 {object} dto.Response{data=LedgerEntryResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /payments/entries/{id} [patch]
func (h *PaymentHandler) UpdateEntry(c *gin.Context) {
	tenantID, ok := h.getTenantID(c)
	if !ok {
		return
	}
	entryID, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req UpdateEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	res := h.ledger.UpdateRecord(c.Request.Context(), tenantID, entryID, req.toInput(getActor(c, "system")))
	respond(&h.BaseHandler, c, http.StatusOK, res, presentEntry)
}

// DeleteEntry soft-deletes an entry. The entry stays in the history for
// audit; the account totals no longer count it.
//
// @Summary      Soft-delete a ledger entry
// @Tags         payments
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        id path string true "Ledger entry ID" format(uuid)
// @Success      200 {object} dto.Response{data=LedgerEntryResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /payments/entries/{id} [delete]
func (h *PaymentHandler) DeleteEntry(c *gin.Context) {
	tenantID, ok := h.getTenantID(c)
	if !ok {
		return
	}
	entryID, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	res := h.ledger.SoftDeleteRecord(c.Request.Context(), tenantID, entryID, getActor(c, "system"))
	respond(&h.BaseHandler, c, http.StatusOK, res, presentEntry)
}

// withAccount resolves the tenant and the :id account before calling fn
func (h *PaymentHandler) withAccount(c *gin.Context, fn func(c *gin.Context, tenantID, accountID uuid.UUID)) {
	tenantID, ok := h.getTenantID(c)
	if !ok {
		return
	}
	accountID, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	fn(c, tenantID, accountID)
}

func presentEntry(e *fee.LedgerEntry) any {
	return toLedgerEntryResponse(e)
}

func presentAccount(a *fee.FeeAccount) any {
	return toFeeAccountResponse(a)
}
