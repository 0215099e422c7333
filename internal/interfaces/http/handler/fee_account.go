package handler

import (
	"net/http"
	"time"

	appfee "github.com/academy/backend/internal/application/fee"
	"github.com/academy/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
)

// FeeAccountHandler opens and reads fee accounts
type FeeAccountHandler struct {
	BaseHandler
	ledger *appfee.LedgerService
	loc    *time.Location
}

// NewFeeAccountHandler creates a FeeAccountHandler
func NewFeeAccountHandler(ledger *appfee.LedgerService, loc *time.Location) *FeeAccountHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &FeeAccountHandler{ledger: ledger, loc: loc}
}

// Open opens a fee account for an enrollment. Course fees missing from the
// request are resolved from the cohort and course catalog.
//
// @Summary      Open a fee account
// @Tags         fee-accounts
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        request body OpenAccountRequest true "Enrollment and plan"
// @Success      201 {object} dto.Response{data=FeeAccountResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /fee-accounts [post]
func (h *FeeAccountHandler) Open(c *gin.Context) {
	tenantID, ok := h.getTenantID(c)
	if !ok {
		return
	}

	var req OpenAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	res := h.ledger.OpenAccount(c.Request.Context(), tenantID, req.toInput(h.loc))
	respond(&h.BaseHandler, c, http.StatusCreated, res, presentAccount)
}

// Get returns a fee account with its cached totals and EMI schedule.
//
// @Summary      Get fee account by ID
// @Tags         fee-accounts
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        id path string true "Fee account ID" format(uuid)
// @Success      200 {object} dto.Response{data=FeeAccountResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /fee-accounts/{id} [get]
func (h *FeeAccountHandler) Get(c *gin.Context) {
	tenantID, ok := h.getTenantID(c)
	if !ok {
		return
	}
	accountID, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	res := h.ledger.GetAccount(c.Request.Context(), tenantID, accountID)
	respond(&h.BaseHandler, c, http.StatusOK, res, presentAccount)
}
