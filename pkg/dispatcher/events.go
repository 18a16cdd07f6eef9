package dispatcher

import "time"

// EventType identifies a dispatch event.
type EventType string

const (
	EventStateChange   EventType = "state_change"
	EventRouted        EventType = "routed"
	EventToken         EventType = "token"
	EventToolInvoked   EventType = "tool_invoked"
	EventToolCompleted EventType = "tool_completed"
	EventFinalMessage  EventType = "final_message"
	EventError         EventType = "error"
)

// Event is a single observation emitted during a dispatch. Token events for
// a round are only emitted once that round is known to be the final one, so
// consumers never see text from an interim tool-calling round.
type Event struct {
	Type       EventType `json:"type"`
	SessionKey string    `json:"session_key"`
	State      State     `json:"state,omitempty"`
	Role       string    `json:"role,omitempty"`
	Text       string    `json:"text,omitempty"`
	ToolCallID string    `json:"tool_call_id,omitempty"`
	ToolName   string    `json:"tool_name,omitempty"`
	ToolError  string    `json:"tool_error,omitempty"`
	Round      int       `json:"round,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// EventHandler receives dispatch events. A nil handler is valid and means
// the caller only wants the final result.
type EventHandler func(Event)

func (d *Dispatcher) emit(handler EventHandler, ev Event) {
	if handler == nil {
		return
	}
	ev.Timestamp = time.Now()
	handler(ev)
}
