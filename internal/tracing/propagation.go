package tracing

import (
	"context"

	"github.com/rs/zerolog"
)

// PropagateToSpecialist derives a context for a specialist agent turn.
// It keeps the trace ID from the parent and assigns a fresh dispatch ID.
func PropagateToSpecialist(ctx context.Context, role string) context.Context {
	traceID := GetTraceID(ctx)
	if traceID == "" {
		traceID = NewTraceID()
	}

	newCtx := WithTraceID(ctx, traceID)
	newCtx = WithDispatchID(newCtx, NewDispatchID())
	newCtx = WithRole(newCtx, role)

	if sessionKey := GetSessionKey(ctx); sessionKey != "" {
		newCtx = WithSessionKey(newCtx, sessionKey)
	}

	return newCtx
}

// LoggerFromContext creates a logger carrying the tracing fields from the context
func LoggerFromContext(ctx context.Context, baseLogger zerolog.Logger) zerolog.Logger {
	tc := FromContext(ctx)

	if tc.TraceID != "" {
		baseLogger = baseLogger.With().Str("trace_id", tc.TraceID).Logger()
	}
	if tc.DispatchID != "" {
		baseLogger = baseLogger.With().Str("dispatch_id", tc.DispatchID).Logger()
	}
	if tc.Role != "" {
		baseLogger = baseLogger.With().Str("role", tc.Role).Logger()
	}
	if tc.SessionKey != "" {
		baseLogger = baseLogger.With().Str("session_key", tc.SessionKey).Logger()
	}

	return baseLogger
}
