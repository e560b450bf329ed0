package tracer

import (
	"context"
	"errors"
	"testing"

	"github.com/Aleph-Alpha/embedding-pipeline/v1/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newRecordingTracer(t *testing.T) (*Tracer, *tracetest.SpanRecorder) {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := trace.NewTracerProvider(trace.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return &Tracer{tracer: tp, logger: logger.Nop{}}, rec
}

func TestCarrierRoundTrip(t *testing.T) {
	tr, _ := newRecordingTracer(t)

	ctx, span := tr.StartSpan(context.Background(), "publish")
	carrier := tr.GetCarrier(ctx)
	span.End()

	require.Contains(t, carrier, "traceparent")

	restored := tr.SetCarrierOnContext(context.Background(), carrier)
	_, child := tr.StartSpan(restored, "consume")
	defer child.End()

	assert.Equal(t, span.SpanContext().TraceID(), child.SpanContext().TraceID())
}

func TestRecordErrorAndAttributes(t *testing.T) {
	tr, rec := newRecordingTracer(t)

	_, span := tr.StartSpan(context.Background(), "generate")
	tr.SetAttributes(span, map[string]interface{}{
		"tenant_id": "t1",
		"attempt":   2,
		"ratio":     0.5,
		"retry":     true,
		"other":     []string{"x"},
	})
	tr.RecordErrorOnSpan(span, errors.New("provider down"))
	span.End()

	ended := rec.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "generate", ended[0].Name())
	assert.Equal(t, "provider down", ended[0].Status().Description)
	assert.Len(t, ended[0].Attributes(), 5)
}

func TestNewClient_NoExport(t *testing.T) {
	tr := NewClient(Config{ServiceName: "svc", AppEnv: "test"}, logger.Nop{})
	require.NotNil(t, tr)
	assert.NoError(t, tr.Shutdown(context.Background()))
}
