package gateway

import (
	"time"

	"github.com/gorilla/websocket"

	"github.com/harun/mate/pkg/dispatcher"
)

// QueryRequest is the body of POST /api/query and of a WebSocket query
// message.
type QueryRequest struct {
	SessionKey string                  `json:"session_key"`
	Query      string                  `json:"query"`
	Role       string                  `json:"role,omitempty"`
	Context    *dispatcher.UserContext `json:"context,omitempty"`
}

// QueryResponse wraps a dispatch result for HTTP callers.
type QueryResponse struct {
	OK     bool               `json:"ok"`
	Result *dispatcher.Result `json:"result,omitempty"`
	Error  string             `json:"error,omitempty"`
}

// SessionRequest targets one session (abort, reset).
type SessionRequest struct {
	SessionKey string `json:"session_key"`
}

// WSMessage is the envelope for every WebSocket frame in both directions.
type WSMessage struct {
	Type       string                  `json:"type"` // auth, query, abort, event, result, error, auth_ok
	Secret     string                  `json:"secret,omitempty"`
	SessionKey string                  `json:"session_key,omitempty"`
	Query      string                  `json:"query,omitempty"`
	Role       string                  `json:"role,omitempty"`
	Context    *dispatcher.UserContext `json:"context,omitempty"`
	Event      *dispatcher.Event       `json:"event,omitempty"`
	Result     *dispatcher.Result      `json:"result,omitempty"`
	Error      string                  `json:"error,omitempty"`
}

// client is one connected WebSocket peer.
type client struct {
	id            string
	conn          *websocket.Conn
	authenticated bool
	connectedAt   time.Time
}
