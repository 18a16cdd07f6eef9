package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestDispatchAttributes(t *testing.T) {
	ctx := context.Background()
	ctx = WithSessionKey(ctx, "chat-42")
	ctx = WithRole(ctx, "geocoder")
	ctx = WithDispatchID(ctx, "dispatch-1")

	attrs := dispatchAttributes(ctx)
	assert.ElementsMatch(t, []attribute.KeyValue{
		attribute.String("mate.session_key", "chat-42"),
		attribute.String("mate.role", "geocoder"),
		attribute.String("mate.dispatch_id", "dispatch-1"),
	}, attrs)
}

func TestDispatchAttributes_EmptyContext(t *testing.T) {
	assert.Empty(t, dispatchAttributes(context.Background()))
}

func TestStartSpanPropagatesTraceID(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "mate.test", "test.op")
	defer span.End()
	// A noop tracer yields an invalid span context; with a provider the
	// trace id lands in the logging context too.
	if span.SpanContext().IsValid() {
		assert.NotEmpty(t, GetTraceID(ctx))
	}
}
