// Package notification delivers payment reminders and settlement notices.
package notification

import (
	"fmt"

	appfee "github.com/academy/backend/internal/application/fee"
	"github.com/academy/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// Notifier sends both kinds of student notice
type Notifier interface {
	appfee.ReminderDispatcher
	appfee.SettlementNotifier
}

// New returns the notifier selected by cfg.Dispatcher
func New(cfg config.ReminderConfig, contacts appfee.ContactDirectory, logger *zap.Logger) (Notifier, error) {
	switch cfg.Dispatcher {
	case "", config.DispatcherLog:
		return NewLogNotifier(logger), nil
	case config.DispatcherSendGrid:
		if cfg.SendGridAPIKey == "" {
			return nil, fmt.Errorf("reminder.sendgrid_api_key is required for the %s dispatcher", config.DispatcherSendGrid)
		}
		if contacts == nil {
			return nil, fmt.Errorf("a contact directory is required for the %s dispatcher", config.DispatcherSendGrid)
		}
		return NewSendGridNotifier(SendGridConfig{
			APIKey:      cfg.SendGridAPIKey,
			FromAddress: cfg.FromAddress,
			FromName:    cfg.FromName,
		}, contacts, logger), nil
	default:
		return nil, fmt.Errorf("unknown reminder dispatcher %q", cfg.Dispatcher)
	}
}
