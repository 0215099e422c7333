package event

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/academy/backend/internal/domain/fee"
	"github.com/academy/backend/internal/domain/shared"
	"github.com/academy/backend/internal/infrastructure/cache"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockEventHandler is a mock implementation of shared.EventHandler
type MockEventHandler struct {
	mock.Mock
}

func (m *MockEventHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockEventHandler) EventTypes() []string {
	args := m.Called()
	return args.Get(0).([]string)
}

// MockIdempotencyStore is a mock implementation of shared.IdempotencyStore
type MockIdempotencyStore struct {
	mock.Mock
}

func (m *MockIdempotencyStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) IsProcessed(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

func newSettledEvent() *testEvent {
	return newTestEvent(fee.EventTypeFeeAccountSettled, uuid.New())
}

func TestIdempotentHandler_SkipsDuplicates(t *testing.T) {
	store := cache.NewInMemoryIdempotencyStore()
	defer store.Close()

	inner := new(MockEventHandler)
	event := newSettledEvent()
	inner.On("Handle", mock.Anything, event).Return(nil).Once()

	handler := NewIdempotentHandler(inner, store, zap.NewNop())
	for i := 0; i < 3; i++ {
		require.NoError(t, handler.Handle(context.Background(), event))
	}

	inner.AssertExpectations(t)
	assert.Equal(t, IdempotencyStats{EventsProcessed: 1, EventsDuplicate: 2}, handler.Stats())
}

func TestIdempotentHandler_KeysAreScopedByHandler(t *testing.T) {
	store := cache.NewInMemoryIdempotencyStore()
	defer store.Close()

	event := newSettledEvent()
	email := new(MockEventHandler)
	email.On("Handle", mock.Anything, event).Return(nil).Once()
	audit := new(MockEventHandler)
	audit.On("Handle", mock.Anything, event).Return(nil).Once()

	first := NewIdempotentHandler(email, store, nil, WithHandlerName("settlement-email"))
	second := NewIdempotentHandler(audit, store, nil, WithHandlerName("audit-log"))

	require.NoError(t, first.Handle(context.Background(), event))
	require.NoError(t, second.Handle(context.Background(), event))
	require.NoError(t, first.Handle(context.Background(), event))

	email.AssertExpectations(t)
	audit.AssertExpectations(t)

	seen, err := store.IsProcessed(context.Background(), "settlement-email:"+event.EventID().String())
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestIdempotentHandler_FailureKeepsClaim(t *testing.T) {
	store := cache.NewInMemoryIdempotencyStore()
	defer store.Close()

	event := newSettledEvent()
	inner := new(MockEventHandler)
	inner.On("Handle", mock.Anything, event).Return(errors.New("smtp down")).Once()

	handler := NewIdempotentHandler(inner, store, zap.NewNop())
	assert.Error(t, handler.Handle(context.Background(), event))
	assert.NoError(t, handler.Handle(context.Background(), event))

	inner.AssertExpectations(t)
	assert.Equal(t, IdempotencyStats{EventsFailed: 1, EventsDuplicate: 1}, handler.Stats())
}

func TestIdempotentHandler_StoreErrorStillProcesses(t *testing.T) {
	event := newSettledEvent()
	store := new(MockIdempotencyStore)
	store.On("MarkProcessed", mock.Anything, mock.AnythingOfType("string"), 24*time.Hour).
		Return(false, errors.New("redis down"))
	inner := new(MockEventHandler)
	inner.On("Handle", mock.Anything, event).Return(nil).Once()

	handler := NewIdempotentHandler(inner, store, zap.NewNop())
	require.NoError(t, handler.Handle(context.Background(), event))

	inner.AssertExpectations(t)
	assert.Equal(t, int64(1), handler.Stats().EventsProcessed)
}

func TestIdempotentHandler_Disabled(t *testing.T) {
	event := newSettledEvent()
	store := new(MockIdempotencyStore)
	inner := new(MockEventHandler)
	inner.On("Handle", mock.Anything, event).Return(nil).Twice()

	handler := NewIdempotentHandler(inner, store, zap.NewNop(),
		WithIdempotencyConfig(shared.IdempotencyConfig{Enabled: false}))
	require.NoError(t, handler.Handle(context.Background(), event))
	require.NoError(t, handler.Handle(context.Background(), event))

	inner.AssertExpectations(t)
	store.AssertNotCalled(t, "MarkProcessed", mock.Anything, mock.Anything, mock.Anything)
}

func TestIdempotentHandler_DelegatesEventTypes(t *testing.T) {
	inner := new(MockEventHandler)
	inner.On("EventTypes").Return([]string{fee.EventTypeFeeAccountSettled})

	handler := NewIdempotentHandler(inner, new(MockIdempotencyStore), nil)
	assert.Equal(t, []string{fee.EventTypeFeeAccountSettled}, handler.EventTypes())
	assert.Equal(t, "*event.MockEventHandler", handler.Name())
}

func TestIdempotentHandler_OnTheBus(t *testing.T) {
	store := cache.NewInMemoryIdempotencyStore()
	defer store.Close()

	inner := newTestHandler(fee.EventTypeFeeAccountSettled)
	bus := NewInMemoryEventBus(zap.NewNop())
	bus.Subscribe(NewIdempotentHandler(inner, store, nil))

	event := newSettledEvent()
	require.NoError(t, bus.Publish(context.Background(), event, event))
	assert.Len(t, inner.getHandled(), 1)
}
