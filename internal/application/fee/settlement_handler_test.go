package fee

import (
	"context"
	"testing"

	"github.com/academy/backend/internal/domain/fee"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

// MockSettlementNotifier is a mock implementation of SettlementNotifier
type MockSettlementNotifier struct {
	mock.Mock
}

func (m *MockSettlementNotifier) NotifySettled(ctx context.Context, n SettlementNotice) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

func settledAccount(t *testing.T) *fee.FeeAccount {
	t.Helper()
	a, err := fee.NewFeeAccount(uuid.New(), fee.NewAccountParams{
		StudentID: uuid.New(),
		CourseID:  uuid.New(),
		PlanType:  fee.PlanOneTime,
		CourseFee: decimal.NewFromInt(5000),
	})
	require.NoError(t, err)
	a.TotalReceived = decimal.NewFromInt(5000)
	a.Status = fee.PaymentStatusFullyPaid
	return a
}

func TestAccountSettledHandler_EventTypes(t *testing.T) {
	h := NewAccountSettledHandler(new(MockSettlementNotifier), nil)
	assert.Equal(t, []string{fee.EventTypeFeeAccountSettled}, h.EventTypes())
}

func TestAccountSettledHandler_Handle(t *testing.T) {
	a := settledAccount(t)
	event := fee.NewFeeAccountSettledEvent(a)

	notifier := new(MockSettlementNotifier)
	notifier.On("NotifySettled", mock.Anything, mock.MatchedBy(func(n SettlementNotice) bool {
		return n.TenantID == a.TenantID &&
			n.AccountID == a.ID &&
			n.StudentID == a.StudentID &&
			n.TotalPaid.Equal(decimal.NewFromInt(5000)) &&
			n.Status == fee.PaymentStatusFullyPaid &&
			n.SettledAt.Equal(event.OccurredAt())
	})).Return(nil).Once()

	h := NewAccountSettledHandler(notifier, zaptest.NewLogger(t))
	require.NoError(t, h.Handle(context.Background(), event))
	notifier.AssertExpectations(t)
}

func TestAccountSettledHandler_NotifierError(t *testing.T) {
	a := settledAccount(t)
	notifier := new(MockSettlementNotifier)
	notifier.On("NotifySettled", mock.Anything, mock.Anything).Return(assert.AnError)

	h := NewAccountSettledHandler(notifier, zaptest.NewLogger(t))
	err := h.Handle(context.Background(), fee.NewFeeAccountSettledEvent(a))
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, err.Error(), a.ID.String())
}

func TestAccountSettledHandler_WrongEventType(t *testing.T) {
	notifier := new(MockSettlementNotifier)
	h := NewAccountSettledHandler(notifier, zaptest.NewLogger(t))

	err := h.Handle(context.Background(), fee.NewFeeAccountRecomputedEvent(settledAccount(t)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected event type")
	notifier.AssertNotCalled(t, "NotifySettled", mock.Anything, mock.Anything)
}

func TestAuditLogHandler_Handle(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := NewAuditLogHandler(zap.New(core))
	a := settledAccount(t)

	assert.Len(t, h.EventTypes(), 6)

	require.NoError(t, h.Handle(context.Background(), fee.NewFeeAccountSettledEvent(a)))
	require.NoError(t, h.Handle(context.Background(), fee.NewFeeAccountRecomputedEvent(a)))

	entries := logs.FilterMessage("payment lifecycle event").All()
	require.Len(t, entries, 2)

	first := entries[0].ContextMap()
	assert.Equal(t, fee.EventTypeFeeAccountSettled, first["event_type"])
	assert.Equal(t, a.TenantID.String(), first["tenant_id"])
	assert.Equal(t, "5000", first["total_paid"])
	assert.Equal(t, string(fee.PaymentStatusFullyPaid), first["status"])

	second := entries[1].ContextMap()
	assert.Equal(t, fee.EventTypeFeeAccountRecomputed, second["event_type"])
	assert.Contains(t, second, "outstanding")
}
