package event

import (
	"testing"

	"github.com/academy/backend/internal/domain/fee"
	"github.com/stretchr/testify/assert"
)

func TestHandlerRegistry_Register(t *testing.T) {
	registry := NewHandlerRegistry()
	handler := newTestHandler()

	registry.Register(handler, fee.EventTypePaymentRecorded, fee.EventTypeLedgerEntryDeleted)

	assert.Equal(t, handler, registry.GetHandlers(fee.EventTypePaymentRecorded)[0])
	assert.Len(t, registry.GetHandlers(fee.EventTypeLedgerEntryDeleted), 1)
	assert.Empty(t, registry.GetHandlers(fee.EventTypeFeeAccountSettled))
}

func TestHandlerRegistry_RegisterTwiceIsANoop(t *testing.T) {
	registry := NewHandlerRegistry()
	handler := newTestHandler()

	registry.Register(handler, fee.EventTypePaymentRecorded, fee.EventTypePaymentRecorded)
	registry.Register(handler, fee.EventTypePaymentRecorded)
	registry.Register(handler)
	registry.Register(handler)

	// once as a typed handler, once as a wildcard
	assert.Len(t, registry.GetHandlers(fee.EventTypePaymentRecorded), 2)
	assert.Equal(t, 1, registry.Count())
}

func TestHandlerRegistry_WildcardsFollowTypedHandlers(t *testing.T) {
	registry := NewHandlerRegistry()
	wildcard := newTestHandler()
	typed := newTestHandler()

	registry.Register(wildcard)
	registry.Register(typed, fee.EventTypeFeeAccountSettled)

	handlers := registry.GetHandlers(fee.EventTypeFeeAccountSettled)
	assert.Len(t, handlers, 2)
	assert.Equal(t, typed, handlers[0])
	assert.Equal(t, wildcard, handlers[1])

	assert.Len(t, registry.GetHandlers("Anything"), 1)
	assert.Equal(t, 2, registry.Count())
}

func TestHandlerRegistry_Unregister(t *testing.T) {
	registry := NewHandlerRegistry()
	h1 := newTestHandler()
	h2 := newTestHandler()

	registry.Register(h1, fee.EventTypePaymentRecorded)
	registry.Register(h2, fee.EventTypePaymentRecorded)
	registry.Register(h1)

	registry.Unregister(h1)

	handlers := registry.GetHandlers(fee.EventTypePaymentRecorded)
	assert.Len(t, handlers, 1)
	assert.Equal(t, h2, handlers[0])

	registry.Unregister(h2)
	assert.Empty(t, registry.GetHandlers(fee.EventTypePaymentRecorded))
	assert.Equal(t, 0, registry.Count())
}
