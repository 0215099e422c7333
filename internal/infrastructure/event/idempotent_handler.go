package event

import (
	"context"
	"sync/atomic"

	"github.com/academy/backend/internal/domain/shared"
	"github.com/academy/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// IdempotencyStats is a snapshot of an IdempotentHandler's counters
type IdempotencyStats struct {
	EventsProcessed int64 `json:"events_processed"`
	EventsDuplicate int64 `json:"events_duplicate"`
	EventsFailed    int64 `json:"events_failed"`
}

// IdempotentHandler wraps an EventHandler so each event reaches it at most
// once per TTL. Keys are scoped by handler name, so two handlers sharing a
// store both see the same event.
type IdempotentHandler struct {
	handler shared.EventHandler
	name    string
	store   shared.IdempotencyStore
	config  shared.IdempotencyConfig
	logger  *zap.Logger

	processed atomic.Int64
	duplicate atomic.Int64
	failed    atomic.Int64
}

// IdempotentHandlerOption is a functional option for IdempotentHandler
type IdempotentHandlerOption func(*IdempotentHandler)

// WithIdempotencyConfig sets the idempotency configuration
func WithIdempotencyConfig(config shared.IdempotencyConfig) IdempotentHandlerOption {
	return func(h *IdempotentHandler) {
		h.config = config
	}
}

// WithHandlerName overrides the name used to scope idempotency keys
func WithHandlerName(name string) IdempotentHandlerOption {
	return func(h *IdempotentHandler) {
		h.name = name
	}
}

// NewIdempotentHandler creates a new idempotent handler wrapper
func NewIdempotentHandler(
	handler shared.EventHandler,
	store shared.IdempotencyStore,
	log *zap.Logger,
	opts ...IdempotentHandlerOption,
) *IdempotentHandler {
	if log == nil {
		log = zap.NewNop()
	}
	h := &IdempotentHandler{
		handler: handler,
		name:    handlerName(handler),
		store:   store,
		config:  shared.DefaultIdempotencyConfig(),
		logger:  log,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Name returns the name of the wrapped handler
func (h *IdempotentHandler) Name() string {
	return h.name
}

// EventTypes returns the event types this handler is interested in
func (h *IdempotentHandler) EventTypes() []string {
	return h.handler.EventTypes()
}

// Handle processes the event unless this handler has already claimed it
func (h *IdempotentHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	if !h.config.Enabled {
		return h.handler.Handle(ctx, event)
	}

	log := logger.L(ctx, h.logger).With(
		zap.String("handler", h.name),
		zap.String("event_id", event.EventID().String()),
		zap.String("event_type", event.EventType()),
	)

	isNew, err := h.store.MarkProcessed(ctx, h.key(event), h.config.TTL)
	if err != nil {
		// a duplicate notice is preferable to a lost one
		log.Warn("failed to check idempotency, processing anyway", zap.Error(err))
	} else if !isNew {
		h.duplicate.Add(1)
		log.Debug("duplicate event detected, skipping")
		return nil
	}

	if err := h.handler.Handle(ctx, event); err != nil {
		h.failed.Add(1)
		// The claim is kept, so a redelivery inside the TTL is skipped.
		return err
	}

	h.processed.Add(1)
	log.Debug("event processed")
	return nil
}

// Stats returns a snapshot of the counters
func (h *IdempotentHandler) Stats() IdempotencyStats {
	return IdempotencyStats{
		EventsProcessed: h.processed.Load(),
		EventsDuplicate: h.duplicate.Load(),
		EventsFailed:    h.failed.Load(),
	}
}

func (h *IdempotentHandler) key(event shared.DomainEvent) string {
	return h.name + ":" + event.EventID().String()
}

// Ensure IdempotentHandler implements EventHandler
var _ shared.EventHandler = (*IdempotentHandler)(nil)
