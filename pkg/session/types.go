package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Turn roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ErrSessionNotFound is returned when a session key has no stored history.
var ErrSessionNotFound = errors.New("session not found")

// Status is the lifecycle state of a session.
type Status string

const (
	// StatusActive is the default for any session taking queries.
	StatusActive Status = "active"
	// StatusAborted marks a session whose in-flight dispatch was cancelled.
	// The next query moves it back to active.
	StatusAborted Status = "aborted"
	// StatusExpired marks a session the inactivity sweep is evicting.
	StatusExpired Status = "expired"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusAborted, StatusExpired:
		return true
	}
	return false
}

// ToolCall is a tool invocation requested by an assistant turn.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Turn represents a single conversation entry.
//
// User turns carry Content. Assistant turns carry Content, ToolCalls, or
// both. Tool turns carry the output of exactly one tool call and reference
// it via ToolCallID.
type Turn struct {
	Role       string                 `json:"role"`
	Content    string                 `json:"content,omitempty"`
	ToolCalls  []ToolCall             `json:"tool_calls,omitempty"`
	ToolCallID string                 `json:"tool_call_id,omitempty"`
	ToolName   string                 `json:"tool_name,omitempty"`
	IsError    bool                   `json:"is_error,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// Entry represents a turn with its session key, one JSONL line on disk.
type Entry struct {
	SessionKey string `json:"sessionKey"`
	Turn       Turn   `json:"turn"`
}

// Validate checks structural requirements for a turn.
func (t Turn) Validate() error {
	switch t.Role {
	case RoleUser:
		if t.Content == "" {
			return fmt.Errorf("user turn content cannot be empty")
		}
	case RoleAssistant:
		if t.Content == "" && len(t.ToolCalls) == 0 {
			return fmt.Errorf("assistant turn must have content or tool calls")
		}
		for i, tc := range t.ToolCalls {
			if tc.ID == "" {
				return fmt.Errorf("tool call %d: ID is required", i)
			}
			if tc.Name == "" {
				return fmt.Errorf("tool call %s: name is required", tc.ID)
			}
		}
	case RoleTool:
		if t.ToolCallID == "" {
			return fmt.Errorf("tool turn must reference a tool call ID")
		}
	case "":
		return fmt.Errorf("turn role cannot be empty")
	default:
		return fmt.Errorf("unknown turn role %q", t.Role)
	}
	return nil
}

// NewUserTurn builds a user turn with the current timestamp.
func NewUserTurn(content string) Turn {
	return Turn{Role: RoleUser, Content: content, Timestamp: time.Now()}
}

// NewAssistantTurn builds an assistant turn with the current timestamp.
func NewAssistantTurn(content string, toolCalls []ToolCall) Turn {
	return Turn{Role: RoleAssistant, Content: content, ToolCalls: toolCalls, Timestamp: time.Now()}
}

// NewToolTurn builds a tool result turn with the current timestamp.
func NewToolTurn(toolCallID, toolName, output string, isErr bool) Turn {
	return Turn{
		Role:       RoleTool,
		Content:    output,
		ToolCallID: toolCallID,
		ToolName:   toolName,
		IsError:    isErr,
		Timestamp:  time.Now(),
	}
}
