package toolexec

import (
	"context"
	"time"
)

// Error kinds reported in ToolResult.ErrorKind.
const (
	ErrKindValidation = "validation"
	ErrKindExecution  = "execution"
	ErrKindTimeout    = "timeout"
	ErrKindNotFound   = "not_found"
	ErrKindPolicy     = "policy"
)

// ToolHandler is the function signature for tool execution
type ToolHandler func(ctx context.Context, params map[string]interface{}) (interface{}, error)

// ToolParameter defines a parameter for a tool
type ToolParameter struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"`
	Description string      `json:"description"`
	Required    bool        `json:"required"`
	Default     interface{} `json:"default,omitempty"`
	Enum        []string    `json:"enum,omitempty"`
}

// ToolDefinition defines a tool's metadata and handler
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  []ToolParameter `json:"parameters"`
	Handler     ToolHandler     `json:"-"`
}

// ToolPolicy defines which tools a role can use
type ToolPolicy struct {
	Allow []string `json:"allow"` // allowed tools, * for all
	Deny  []string `json:"deny"`  // denied tools, overrides allow
}

// IsToolAllowed checks if a tool is allowed by the policy
func (tp *ToolPolicy) IsToolAllowed(toolName string) bool {
	if tp == nil {
		// No policy means allow all
		return true
	}

	for _, denied := range tp.Deny {
		if denied == toolName || denied == "*" {
			return false
		}
	}

	for _, allowed := range tp.Allow {
		if allowed == toolName || allowed == "*" {
			return true
		}
	}

	return false
}

// Request is a single tool invocation from an agent turn.
type Request struct {
	CallID string                 `json:"call_id"`
	Name   string                 `json:"name"`
	Params map[string]interface{} `json:"params"`
}

// ExecutionContext provides runtime information for tool execution
type ExecutionContext struct {
	SessionKey string
	Role       string
	Timeout    time.Duration
	ToolPolicy *ToolPolicy
}

// ToolResult represents the result of a tool execution.
//
// A failed result is still a result: validation and execution errors are
// reported here so the caller can feed them back to the model rather than
// abort the conversation.
type ToolResult struct {
	CallID    string                 `json:"call_id"`
	Name      string                 `json:"name"`
	Success   bool                   `json:"success"`
	Output    interface{}            `json:"output,omitempty"`
	Error     string                 `json:"error,omitempty"`
	ErrorKind string                 `json:"error_kind,omitempty"`
	Truncated bool                   `json:"truncated,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}
