package tracing

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextRoundTrip(t *testing.T) {
	ctx := context.Background()
	ctx = WithTraceID(ctx, "trace-1")
	ctx = WithDispatchID(ctx, "dispatch-1")
	ctx = WithRole(ctx, "meteo")
	ctx = WithSessionKey(ctx, "chat-42")
	ctx = WithRequestID(ctx, "req-7")

	assert.Equal(t, "trace-1", GetTraceID(ctx))
	assert.Equal(t, "dispatch-1", GetDispatchID(ctx))
	assert.Equal(t, "meteo", GetRole(ctx))
	assert.Equal(t, "chat-42", GetSessionKey(ctx))
	assert.Equal(t, "req-7", GetRequestID(ctx))
}

func TestGetters_EmptyContext(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetTraceID(ctx))
	assert.Empty(t, GetDispatchID(ctx))
	assert.Empty(t, GetRole(ctx))
	assert.Empty(t, GetSessionKey(ctx))
}

func TestFromContext_NewContext(t *testing.T) {
	tc := &TraceContext{
		TraceID:    "trace-9",
		DispatchID: "dispatch-9",
		Role:       "geocoder",
		SessionKey: "chat-9",
	}

	ctx := NewContext(context.Background(), tc)
	got := FromContext(ctx)
	assert.Equal(t, tc, got)
}

func TestNewDispatchContext(t *testing.T) {
	ctx := WithTraceID(context.Background(), "trace-a")
	ctx = NewDispatchContext(ctx, "trails")

	assert.Equal(t, "trace-a", GetTraceID(ctx))
	assert.NotEmpty(t, GetDispatchID(ctx))
	assert.Equal(t, "trails", GetRole(ctx))
}

func TestPropagateToSpecialist(t *testing.T) {
	parent := context.Background()
	parent = WithTraceID(parent, "trace-x")
	parent = WithDispatchID(parent, "dispatch-parent")
	parent = WithSessionKey(parent, "chat-1")

	child := PropagateToSpecialist(parent, "web")

	assert.Equal(t, "trace-x", GetTraceID(child), "trace ID survives handoff")
	assert.NotEqual(t, "dispatch-parent", GetDispatchID(child), "dispatch ID is fresh")
	assert.Equal(t, "web", GetRole(child))
	assert.Equal(t, "chat-1", GetSessionKey(child))
}

func TestPropagateToSpecialist_NoParentTrace(t *testing.T) {
	child := PropagateToSpecialist(context.Background(), "general")
	assert.NotEmpty(t, GetTraceID(child))
}

func TestLoggerFromContext(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	ctx := context.Background()
	ctx = WithTraceID(ctx, "trace-log")
	ctx = WithRole(ctx, "meteo")

	logger := LoggerFromContext(ctx, base)
	logger.Info().Msg("routed")

	out := buf.String()
	require.Contains(t, out, "trace-log")
	assert.Contains(t, out, "meteo")
}
