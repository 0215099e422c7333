package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	appfee "github.com/academy/backend/internal/application/fee"
	"github.com/academy/backend/internal/domain/fee"
	"github.com/academy/backend/internal/interfaces/http/dto"
	"github.com/academy/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestContext() (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Set(middleware.RequestIDKey, "req-1")
	return c, w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestGetActor(t *testing.T) {
	c, _ := newTestContext()
	assert.Equal(t, "system", getActor(c, "system"))

	c.Request.Header.Set(UserHeaderKey, "  cashier-7 ")
	assert.Equal(t, "cashier-7", getActor(c, "system"))
}

func TestBaseHandler_GetTenantID(t *testing.T) {
	h := &BaseHandler{}

	t.Run("missing tenant answers 401", func(t *testing.T) {
		c, w := newTestContext()
		_, ok := h.getTenantID(c)
		assert.False(t, ok)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		resp := decode(t, w)
		assert.Equal(t, dto.ErrCodeTenantRequired, resp.Error.Code)
		assert.Equal(t, "req-1", resp.Error.RequestID)
	})

	t.Run("resolved tenant", func(t *testing.T) {
		c, _ := newTestContext()
		id := uuid.New()
		c.Set(middleware.TenantIDKey, id.String())
		got, ok := h.getTenantID(c)
		assert.True(t, ok)
		assert.Equal(t, id, got)
	})
}

func TestBaseHandler_ParseUUIDParam(t *testing.T) {
	h := &BaseHandler{}
	id := uuid.New()

	c, _ := newTestContext()
	c.Params = gin.Params{{Key: "id", Value: id.String()}}
	got, ok := h.parseUUIDParam(c, "id")
	assert.True(t, ok)
	assert.Equal(t, id, got)

	c, w := newTestContext()
	c.Params = gin.Params{{Key: "id", Value: "nope"}}
	_, ok = h.parseUUIDParam(c, "id")
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid id format", decode(t, w).Error.Message)
}

func TestBaseHandler_SuccessWithMeta(t *testing.T) {
	h := &BaseHandler{}
	c, w := newTestContext()
	h.SuccessWithMeta(c, []int{1, 2}, 45, 2, 20)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.True(t, resp.Success)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, int64(45), resp.Meta.Total)
	assert.Equal(t, 3, resp.Meta.TotalPages)
}

func TestBaseHandler_HandleResultError(t *testing.T) {
	h := &BaseHandler{}

	tests := []struct {
		name        string
		err         *appfee.ResultError
		wantStatus  int
		wantCode    string
		wantMessage string
		wantDetails int
	}{
		{
			name:       "validation failure keeps issues",
			err:        &appfee.ResultError{Code: appfee.CodeValidationFailed, Message: "payment rejected", Details: []fee.ValidationIssue{{Field: "amount", Code: "REQUIRED", Message: "amount is required"}, {Field: "mode", Code: "REQUIRED", Message: "payment mode is required"}}},
			wantStatus: http.StatusBadRequest, wantCode: dto.ErrCodeValidation, wantMessage: "payment rejected", wantDetails: 2,
		},
		{
			name:       "fee codes pass through",
			err:        &appfee.ResultError{Code: "EMI_OUT_OF_ORDER", Message: "EMI installments must be paid in order"},
			wantStatus: http.StatusUnprocessableEntity, wantCode: "EMI_OUT_OF_ORDER", wantMessage: "EMI installments must be paid in order",
		},
		{
			name:       "not found",
			err:        &appfee.ResultError{Code: "FEE_ACCOUNT_NOT_FOUND", Message: "Fee account not found"},
			wantStatus: http.StatusNotFound, wantCode: "FEE_ACCOUNT_NOT_FOUND", wantMessage: "Fee account not found",
		},
		{
			name:       "internal message is hidden",
			err:        &appfee.ResultError{Code: appfee.CodeInternal, Message: "pq: connection refused"},
			wantStatus: http.StatusInternalServerError, wantCode: dto.ErrCodeInternal, wantMessage: "An unexpected error occurred",
		},
		{
			name:       "nil error",
			wantStatus: http.StatusInternalServerError, wantCode: dto.ErrCodeInternal, wantMessage: "An unexpected error occurred",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := newTestContext()
			h.HandleResultError(c, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			resp := decode(t, w)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			assert.Equal(t, tt.wantMessage, resp.Error.Message)
			assert.Len(t, resp.Error.Details, tt.wantDetails)
			assert.Equal(t, "req-1", resp.Error.RequestID)
		})
	}
}

func TestRespond(t *testing.T) {
	h := &BaseHandler{}
	double := func(v int) any { return v * 2 }

	t.Run("success with warnings", func(t *testing.T) {
		c, w := newTestContext()
		respond(h, c, http.StatusCreated, appfee.Result[int]{
			Success:  true,
			Record:   21,
			Warnings: []fee.ValidationIssue{{Field: "amount", Code: "OVERPAYMENT", Message: "amount exceeds the remaining balance"}},
		}, double)

		assert.Equal(t, http.StatusCreated, w.Code)
		resp := decode(t, w)
		assert.True(t, resp.Success)
		assert.EqualValues(t, 42, resp.Data)
		require.Len(t, resp.Warnings, 1)
		assert.Equal(t, "OVERPAYMENT", resp.Warnings[0].Code)
	})

	t.Run("failure", func(t *testing.T) {
		c, w := newTestContext()
		respond(h, c, http.StatusCreated, appfee.Result[int]{
			Error: &appfee.ResultError{Code: "LEDGER_ENTRY_DELETED", Message: "Ledger entry has been deleted"},
		}, double)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Nil(t, decode(t, w).Data)
	})
}
