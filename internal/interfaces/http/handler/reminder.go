package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	appfee "github.com/academy/backend/internal/application/fee"
	"github.com/academy/backend/internal/infrastructure/scheduler"
	"github.com/academy/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// ReminderRunner is the part of the reminder scheduler the API drives
type ReminderRunner interface {
	TriggerNow(ctx context.Context) error
	LastRun() (appfee.ReminderSweepResult, time.Time)
	IsRunning() bool
}

// ReminderHandler lets operators inspect and trigger the reminder sweep
type ReminderHandler struct {
	BaseHandler
	runner ReminderRunner
}

// NewReminderHandler creates a ReminderHandler
func NewReminderHandler(runner ReminderRunner) *ReminderHandler {
	return &ReminderHandler{runner: runner}
}

// Status reports the most recent sweep.
//
// @Summary      Get reminder sweep status
// @Tags         admin
// @Produce      json
// @Success      200 {object} dto.Response{data=ReminderRunResponse}
// @Router       /admin/reminders [get]
func (h *ReminderHandler) Status(c *gin.Context) {
	result, at := h.runner.LastRun()
	resp := ReminderRunResponse{Running: h.runner.IsRunning(), LastRun: result}
	if !at.IsZero() {
		resp.LastRunAt = &at
	}
	h.Success(c, resp)
}

// Trigger starts a sweep now. The sweep outlives the request.
//
// @Summary      Run the reminder sweep
// @Tags         admin
// @Produce      json
// @Success      202 {object} dto.Response
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      503 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /admin/reminders/run [post]
func (h *ReminderHandler) Trigger(c *gin.Context) {
	err := h.runner.TriggerNow(context.WithoutCancel(c.Request.Context()))
	switch {
	case err == nil:
		c.JSON(http.StatusAccepted, dto.NewSuccessResponse(gin.H{"triggered": true}))
	case errors.Is(err, scheduler.ErrSweepInProgress):
		h.Error(c, http.StatusConflict, dto.ErrCodeConflict, "A reminder sweep is already running")
	case errors.Is(err, scheduler.ErrSchedulerNotRunning):
		h.Error(c, http.StatusServiceUnavailable, dto.ErrCodeServiceUnavailable, "Reminder scheduler is not running")
	default:
		h.InternalError(c, "Failed to trigger reminder sweep")
	}
}
