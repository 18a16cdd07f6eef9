package gateway

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/harun/mate/internal/tracing"
	"github.com/harun/mate/pkg/dispatcher"
)

// handleWebSocket upgrades the connection and serves the streaming query
// protocol: the first frame must authenticate, then query frames each run a
// dispatch whose events stream back before the final result frame.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.shuttingDown() {
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to upgrade connection")
		return
	}

	clientID, _ := gonanoid.New()
	c := &client{
		id:          clientID,
		conn:        conn,
		connectedAt: time.Now(),
	}

	s.logger.Info().Str("client_id", clientID).Str("ip", r.RemoteAddr).Msg("WebSocket client connected")
	go s.serveClient(c)
}

func (s *Server) serveClient(c *client) {
	defer func() {
		_ = c.conn.Close()
		s.logger.Info().Str("client_id", c.id).Msg("WebSocket client disconnected")
	}()

	// Writes to one connection must be serialized: dispatch events arrive
	// from the dispatch goroutine while errors may be written here.
	var writeMu sync.Mutex
	send := func(msg WSMessage) {
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := c.conn.WriteJSON(msg); err != nil {
			s.logger.Debug().Err(err).Str("client_id", c.id).Msg("WebSocket write failed")
		}
	}

	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Error().Err(err).Str("client_id", c.id).Msg("WebSocket error")
			}
			return
		}

		switch msg.Type {
		case "auth":
			if msg.Secret == s.sharedSecret {
				c.authenticated = true
				send(WSMessage{Type: "auth_ok"})
			} else {
				send(WSMessage{Type: "error", Error: "invalid secret"})
				return
			}

		case "query":
			if !c.authenticated {
				send(WSMessage{Type: "error", Error: "authentication required"})
				continue
			}
			s.inFlightReqs.Add(1)
			go func(msg WSMessage) {
				defer s.inFlightReqs.Done()
				s.runQuery(msg, send)
			}(msg)

		case "abort":
			if !c.authenticated {
				send(WSMessage{Type: "error", Error: "authentication required"})
				continue
			}
			if err := s.dispatcher.Abort(msg.SessionKey); err != nil {
				send(WSMessage{Type: "error", SessionKey: msg.SessionKey, Error: err.Error()})
			}

		default:
			send(WSMessage{Type: "error", Error: "unknown message type: " + msg.Type})
		}
	}
}

// runQuery executes one dispatch, forwarding its events to the client as
// they happen. It runs off the read loop so abort frames are still read
// while the dispatch is active.
func (s *Server) runQuery(msg WSMessage, send func(WSMessage)) {
	ctx := tracing.NewRequestContext(context.Background())

	result, err := s.dispatcher.Dispatch(ctx, dispatcher.Request{
		SessionKey: msg.SessionKey,
		Query:      msg.Query,
		Role:       msg.Role,
		Context:    msg.Context,
	}, func(ev dispatcher.Event) {
		send(WSMessage{Type: "event", SessionKey: msg.SessionKey, Event: &ev})
	})

	switch {
	case err == nil:
		send(WSMessage{Type: "result", SessionKey: msg.SessionKey, Result: &result})
	case dispatcher.IsMaxRounds(err):
		send(WSMessage{Type: "result", SessionKey: msg.SessionKey, Result: &result, Error: err.Error()})
	default:
		send(WSMessage{Type: "error", SessionKey: msg.SessionKey, Error: err.Error()})
	}
}
