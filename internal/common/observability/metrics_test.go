package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestStartSpanRecordsAttributes(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	obs := NewWithTracerProvider("test", sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr)))

	_, span := obs.StartSpan(context.Background(), "coordinator.apply", attribute.String("applicationId", "app-1"))
	span.End()

	ended := sr.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "coordinator.apply", ended[0].Name())
	assert.Contains(t, ended[0].Attributes(), attribute.String("applicationId", "app-1"))
}

func TestNilObservabilityIsSafe(t *testing.T) {
	var obs *Observability
	ctx, span := obs.StartSpan(context.Background(), "noop")
	span.End()
	assert.NotNil(t, ctx)
	obs.RecordJobProcessed(ctx, "send-notification", "completed")
}
