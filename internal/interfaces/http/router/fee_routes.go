package router

import (
	"github.com/academy/backend/internal/interfaces/http/handler"
	"github.com/gin-gonic/gin"
)

// FeeHandlers holds the handlers behind the fee API. Reminders may be nil
// when the reminder scheduler is disabled.
type FeeHandlers struct {
	Accounts  *handler.FeeAccountHandler
	Payments  *handler.PaymentHandler
	Reminders *handler.ReminderHandler
}

// FeeRoutes builds the fee API groups. writeGuard runs in front of every
// route that changes the ledger, typically the rate limiter.
func FeeRoutes(h FeeHandlers, writeGuard ...gin.HandlerFunc) []*DomainGroup {
	write := func(fn gin.HandlerFunc) []gin.HandlerFunc {
		return append(append([]gin.HandlerFunc{}, writeGuard...), fn)
	}

	accounts := NewDomainGroup("fee-accounts", "/fee-accounts")
	accounts.POST("", write(h.Accounts.Open)...)
	accounts.GET("/:id", h.Accounts.Get)
	accounts.GET("/:id/history", h.Payments.History)
	accounts.GET("/:id/balance", h.Payments.Balance)
	accounts.GET("/:id/invoice", h.Payments.Invoice)
	accounts.POST("/:id/recompute", write(h.Payments.Recompute)...)

	payments := NewDomainGroup("payments", "/payments")
	payments.POST("", write(h.Payments.Record)...)
	payments.POST("/validate", h.Payments.Validate)
	entries := payments.Group("entries", "/entries")
	entries.PATCH("/:id", write(h.Payments.UpdateEntry)...)
	entries.DELETE("/:id", write(h.Payments.DeleteEntry)...)

	groups := []*DomainGroup{accounts, payments}
	if h.Reminders != nil {
		admin := NewDomainGroup("admin", "/admin")
		admin.GET("/reminders", h.Reminders.Status)
		admin.POST("/reminders/run", write(h.Reminders.Trigger)...)
		groups = append(groups, admin)
	}
	return groups
}
