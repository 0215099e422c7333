package handler

import (
	"net/http"
	"strings"

	appfee "github.com/academy/backend/internal/application/fee"
	"github.com/academy/backend/internal/domain/fee"
	"github.com/academy/backend/internal/interfaces/http/dto"
	"github.com/academy/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// UserHeaderKey names the staff member acting on a request. Authentication
// happens upstream; the value is recorded as-is on ledger entries.
const UserHeaderKey = "X-User-ID"

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// getRequestID returns the ID assigned by the RequestID middleware
func getRequestID(c *gin.Context) string {
	return middleware.GetRequestID(c)
}

// getActor returns who is acting, falling back to def
func getActor(c *gin.Context, def string) string {
	if actor := strings.TrimSpace(c.GetHeader(UserHeaderKey)); actor != "" {
		return actor
	}
	return def
}

// getTenantID returns the tenant resolved by the Tenant middleware. It
// writes the 401 itself and returns false when there is none.
func (h *BaseHandler) getTenantID(c *gin.Context) (uuid.UUID, bool) {
	tenantID := middleware.GetTenantUUID(c)
	if tenantID == uuid.Nil {
		h.Error(c, http.StatusUnauthorized, dto.ErrCodeTenantRequired, "Tenant identification required")
		return uuid.Nil, false
	}
	return tenantID, true
}

// parseUUIDParam reads a UUID path parameter, answering 400 when malformed
func (h *BaseHandler) parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		h.BadRequest(c, "Invalid "+name+" format")
		return uuid.Nil, false
	}
	return id, true
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// SuccessWithMeta sends a success response with pagination meta
func (h *BaseHandler) SuccessWithMeta(c *gin.Context, data any, total int64, page, pageSize int) {
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(data, total, page, pageSize))
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, getRequestID(c)))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// InternalError sends a 500 internal server error response
func (h *BaseHandler) InternalError(c *gin.Context, message string) {
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, message)
}

// ValidationError sends a 400 validation error response with details
func (h *BaseHandler) ValidationError(c *gin.Context, details []dto.ValidationDetail) {
	c.JSON(http.StatusBadRequest, dto.NewValidationErrorResponse(
		"Request validation failed",
		getRequestID(c),
		details,
	))
}

// HandleResultError converts a failed ledger Result into an HTTP response.
// Validation failures keep their per-field issues.
func (h *BaseHandler) HandleResultError(c *gin.Context, e *appfee.ResultError) {
	if e == nil {
		h.InternalError(c, "An unexpected error occurred")
		return
	}
	code := dto.NormalizeErrorCode(e.Code)
	resp := dto.NewErrorResponseWithRequestID(code, e.Message, getRequestID(c))
	if code == dto.ErrCodeInternal {
		// internal details stay in the logs
		resp.Error.Message = "An unexpected error occurred"
	}
	resp.Error.Details = toValidationDetails(e.Details)
	c.JSON(dto.GetHTTPStatus(code), resp)
}

// respond writes a ledger Result: the record under status on success,
// otherwise the mapped error. Warnings ride along on success.
func respond[T any](h *BaseHandler, c *gin.Context, status int, res appfee.Result[T], present func(T) any) {
	if !res.Success {
		h.HandleResultError(c, res.Error)
		return
	}
	resp := dto.NewSuccessResponse(present(res.Record))
	resp.Warnings = toValidationDetails(res.Warnings)
	c.JSON(status, resp)
}

func toValidationDetails(issues []fee.ValidationIssue) []dto.ValidationDetail {
	if len(issues) == 0 {
		return nil
	}
	details := make([]dto.ValidationDetail, len(issues))
	for i, is := range issues {
		details[i] = dto.ValidationDetail{Field: is.Field, Code: is.Code, Message: is.Message}
	}
	return details
}
