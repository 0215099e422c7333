package event

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/academy/backend/internal/domain/shared"
	"github.com/academy/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// BusStats is a snapshot of delivery counters
type BusStats struct {
	Published      int64 `json:"published"`
	Delivered      int64 `json:"delivered"`
	HandlerErrors  int64 `json:"handler_errors"`
	HandlerPanics  int64 `json:"handler_panics"`
	DroppedStopped int64 `json:"dropped_stopped"`
}

// InMemoryEventBus delivers events to handlers synchronously, in the
// publisher's goroutine. Publishing happens after the ledger transaction
// commits, so a failing handler never undoes a recorded payment: errors and
// panics are logged and counted, and Publish still returns nil.
type InMemoryEventBus struct {
	registry *HandlerRegistry
	logger   *zap.Logger
	running  atomic.Bool

	published      atomic.Int64
	delivered      atomic.Int64
	handlerErrors  atomic.Int64
	handlerPanics  atomic.Int64
	droppedStopped atomic.Int64
}

// NewInMemoryEventBus creates a new in-memory event bus. The bus accepts
// events until Stop is called.
func NewInMemoryEventBus(log *zap.Logger) *InMemoryEventBus {
	if log == nil {
		log = zap.NewNop()
	}
	b := &InMemoryEventBus{
		registry: NewHandlerRegistry(),
		logger:   log,
	}
	b.running.Store(true)
	return b
}

// Publish delivers each event to every handler registered for its type
func (b *InMemoryEventBus) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	log := logger.L(ctx, b.logger)
	for _, event := range events {
		if !b.running.Load() {
			b.droppedStopped.Add(1)
			log.Warn("event bus stopped, dropping event",
				zap.String("event_type", event.EventType()),
				zap.String("event_id", event.EventID().String()),
			)
			continue
		}
		b.published.Add(1)

		for _, handler := range b.registry.GetHandlers(event.EventType()) {
			if err := b.dispatchToHandler(ctx, handler, event); err != nil {
				b.handlerErrors.Add(1)
				log.Error("handler failed to process event",
					zap.String("event_type", event.EventType()),
					zap.String("event_id", event.EventID().String()),
					zap.String("tenant_id", event.TenantID().String()),
					zap.String("handler", handlerName(handler)),
					zap.Error(err),
				)
				continue
			}
			b.delivered.Add(1)
		}
	}
	return nil
}

// Subscribe registers a handler. Without explicit event types the handler's
// own EventTypes are used; if those are empty too it receives everything.
func (b *InMemoryEventBus) Subscribe(handler shared.EventHandler, eventTypes ...string) {
	if len(eventTypes) == 0 {
		eventTypes = handler.EventTypes()
	}
	b.registry.Register(handler, eventTypes...)
	b.logger.Debug("handler subscribed",
		zap.String("handler", handlerName(handler)),
		zap.Strings("event_types", eventTypes),
	)
}

// Unsubscribe removes a handler
func (b *InMemoryEventBus) Unsubscribe(handler shared.EventHandler) {
	b.registry.Unregister(handler)
	b.logger.Debug("handler unsubscribed", zap.String("handler", handlerName(handler)))
}

// Start (re)opens the bus for publishing
func (b *InMemoryEventBus) Start(_ context.Context) error {
	b.running.Store(true)
	b.logger.Info("event bus started", zap.Int("handlers", b.registry.Count()))
	return nil
}

// Stop closes the bus. Delivery is synchronous so nothing is in flight once
// the publishers have returned.
func (b *InMemoryEventBus) Stop(_ context.Context) error {
	b.running.Store(false)
	b.logger.Info("event bus stopped", zap.Any("stats", b.Stats()))
	return nil
}

// Stats returns a snapshot of the delivery counters
func (b *InMemoryEventBus) Stats() BusStats {
	return BusStats{
		Published:      b.published.Load(),
		Delivered:      b.delivered.Load(),
		HandlerErrors:  b.handlerErrors.Load(),
		HandlerPanics:  b.handlerPanics.Load(),
		DroppedStopped: b.droppedStopped.Load(),
	}
}

// dispatchToHandler turns a handler panic into an error
func (b *InMemoryEventBus) dispatchToHandler(ctx context.Context, handler shared.EventHandler, event shared.DomainEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b.handlerPanics.Add(1)
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()

	return handler.Handle(ctx, event)
}

// handlerName identifies a handler in logs and idempotency keys
func handlerName(h shared.EventHandler) string {
	if named, ok := h.(interface{ Name() string }); ok {
		return named.Name()
	}
	return fmt.Sprintf("%T", h)
}

// Ensure InMemoryEventBus implements EventBus
var _ shared.EventBus = (*InMemoryEventBus)(nil)
