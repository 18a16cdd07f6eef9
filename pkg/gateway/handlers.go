package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/harun/mate/internal/tracing"
	"github.com/harun/mate/pkg/dispatcher"
)

// handleQuery dispatches one query and returns the full result. Exhausted
// round budgets still return the best-effort result with the error text.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, QueryResponse{Error: "invalid request body"})
		return
	}

	ctx := tracing.NewRequestContext(r.Context())
	if traceID := r.Header.Get("X-Trace-Id"); traceID != "" {
		ctx = tracing.WithTraceID(ctx, traceID)
	}

	logger := tracing.LoggerFromContext(ctx, s.logger)
	logger.Info().Str("session_key", req.SessionKey).Msg("Gateway received query")

	result, err := s.dispatcher.Dispatch(ctx, dispatcher.Request{
		SessionKey: req.SessionKey,
		Query:      req.Query,
		Role:       req.Role,
		Context:    req.Context,
	}, nil)

	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, QueryResponse{OK: true, Result: &result})
	case dispatcher.IsMaxRounds(err):
		writeJSON(w, http.StatusOK, QueryResponse{OK: true, Result: &result, Error: err.Error()})
	case errors.Is(err, dispatcher.ErrProviderTimeout):
		writeJSON(w, http.StatusGatewayTimeout, QueryResponse{Error: err.Error()})
	default:
		writeJSON(w, http.StatusBadGateway, QueryResponse{Error: err.Error()})
	}
}

func (s *Server) handleAbort(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req SessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionKey == "" {
		writeJSON(w, http.StatusBadRequest, QueryResponse{Error: "session_key is required"})
		return
	}

	if err := s.dispatcher.Abort(req.SessionKey); err != nil {
		writeJSON(w, http.StatusInternalServerError, QueryResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, QueryResponse{OK: true})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req SessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionKey == "" {
		writeJSON(w, http.StatusBadRequest, QueryResponse{Error: "session_key is required"})
		return
	}

	if err := s.dispatcher.Reset(r.Context(), req.SessionKey); err != nil {
		writeJSON(w, http.StatusInternalServerError, QueryResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, QueryResponse{OK: true})
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	keys, err := s.sessions.List(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"error": err.Error()})
		return
	}
	if keys == nil {
		keys = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": keys})
}
