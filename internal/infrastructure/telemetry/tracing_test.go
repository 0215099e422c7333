package telemetry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/academy/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// setupTestTracer installs an in-memory span recorder as the global provider.
func setupTestTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		_ = tp.Shutdown(context.Background())
	})
	return sr
}

func attrMap(attrs []attribute.KeyValue) map[string]string {
	m := make(map[string]string, len(attrs))
	for _, a := range attrs {
		m[string(a.Key)] = a.Value.Emit()
	}
	return m
}

func TestStartServiceSpan(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartServiceSpan(context.Background(), "ledger", "add_record",
		telemetry.WithSpanKind(trace.SpanKindServer),
		telemetry.WithAttribute("plan_type", "EMI"),
	)
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "ledger.add_record", spans[0].Name())
	assert.Equal(t, trace.SpanKindServer, spans[0].SpanKind())
	assert.Equal(t, "EMI", attrMap(spans[0].Attributes())["plan_type"])
}

func TestSetAttributes(t *testing.T) {
	sr := setupTestTracer(t)
	accountID := uuid.New()

	_, span := telemetry.StartSpan(context.Background(), "op")
	telemetry.SetAttributes(span,
		telemetry.SpanAttrAccountID, accountID,
		telemetry.SpanAttrAmount, "1500.00",
		42, "skipped",
		"count", 3,
	)
	span.End()

	attrs := attrMap(sr.Ended()[0].Attributes())
	assert.Equal(t, accountID.String(), attrs["fee_account_id"])
	assert.Equal(t, "1500.00", attrs["amount"])
	assert.Equal(t, "3", attrs["count"])
	assert.Len(t, attrs, 3)
}

func TestRecordError(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartSpan(context.Background(), "op")
	telemetry.RecordError(span, errors.New("boom"))
	telemetry.RecordError(span, nil)
	span.End()

	s := sr.Ended()[0]
	assert.Equal(t, codes.Error, s.Status().Code)
	assert.Equal(t, "boom", s.Status().Description)
	require.Len(t, s.Events(), 1)
}

func TestAddEvent(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartSpan(context.Background(), "op")
	telemetry.AddEvent(span, "receipt_allocated", telemetry.SpanAttrReceiptNumber, "RCP-202406-0001")
	span.End()

	events := sr.Ended()[0].Events()
	require.Len(t, events, 1)
	assert.Equal(t, "receipt_allocated", events[0].Name)
	assert.Equal(t, "RCP-202406-0001", attrMap(events[0].Attributes)["receipt_number"])
}

func TestTraceAndSpanIDs(t *testing.T) {
	assert.Empty(t, telemetry.GetTraceID(context.Background()))
	assert.Empty(t, telemetry.GetSpanID(context.Background()))

	setupTestTracer(t)
	ctx, span := telemetry.StartSpan(context.Background(), "op")
	defer span.End()

	assert.Len(t, telemetry.GetTraceID(ctx), 32)
	assert.Len(t, telemetry.GetSpanID(ctx), 16)
}
