package agent

import (
	"errors"
	"strings"
)

// Message represents a single turn handed to the model.
type Message struct {
	Role       string                 `json:"role"`
	Content    string                 `json:"content"`
	ToolCalls  []ToolCall             `json:"tool_calls,omitempty"`
	ToolCallID string                 `json:"tool_call_id,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// ToolCall represents a tool invocation requested by the model.
type ToolCall struct {
	ID         string                 `json:"id"`
	Name       string                 `json:"name"`
	Parameters map[string]interface{} `json:"parameters"`
}

// TokenUsage tracks token consumption for a single call.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// InvokeParams contains input for a single model invocation.
type InvokeParams struct {
	Model        string
	Messages     []Message
	Tools        []interface{}
	Temperature  float64
	MaxTokens    int
	SystemPrompt string

	// OnDelta, when set, receives text deltas as they arrive. Providers
	// that do not stream call it once with the whole content.
	OnDelta func(text string)
}

// InvokeResult is the outcome of a single model invocation. Exactly one of
// the two shapes holds: ToolCalls is non-empty (a tool round, Content may
// carry interim reasoning) or ToolCalls is empty and Content is the final
// message.
type InvokeResult struct {
	Content   string      `json:"content"`
	ToolCalls []ToolCall  `json:"tool_calls,omitempty"`
	Usage     *TokenUsage `json:"usage,omitempty"`
	Provider  string      `json:"provider,omitempty"`
	Model     string      `json:"model,omitempty"`

	// Degraded is set when the result was produced after retries or by a
	// lower-priority credential, so callers can surface reduced confidence.
	Degraded bool `json:"degraded,omitempty"`
}

// IsToolRound reports whether the model asked for tool executions.
func (r *InvokeResult) IsToolRound() bool {
	return len(r.ToolCalls) > 0
}

// AuthProfile represents credentials for a model provider.
type AuthProfile struct {
	ID            string `json:"id"`
	Provider      string `json:"provider"` // "anthropic" or "openai"
	APIKey        string `json:"api_key"`
	BaseURL       string `json:"base_url,omitempty"`
	CooldownUntil *int64 `json:"cooldown_until,omitempty"`
	FailureCount  int    `json:"failure_count"`
	Priority      int    `json:"priority"`
}

// ErrEmptyResponse is returned when the model produces neither content nor
// tool calls.
var ErrEmptyResponse = errors.New("model returned neither content nor tool calls")

// ErrAllProfilesFailed is returned when every configured credential failed.
var ErrAllProfilesFailed = errors.New("all auth profiles failed")

// ErrProviderDegraded marks an exhaustion of retries and credentials on
// transient faults. Callers may answer with a degraded response instead of
// surfacing a hard failure.
var ErrProviderDegraded = errors.New("provider degraded")

// IsRetryableError checks if an error should be retried.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrEmptyResponse) {
		return true
	}

	msg := err.Error()

	// Network errors
	if strings.Contains(msg, "ECONNRESET") || strings.Contains(msg, "ETIMEDOUT") ||
		strings.Contains(msg, "connection reset") || strings.Contains(msg, "connection refused") {
		return true
	}

	// Rate limits
	if strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") {
		return true
	}

	// Server errors
	if strings.Contains(msg, "500") || strings.Contains(msg, "502") ||
		strings.Contains(msg, "503") || strings.Contains(msg, "504") ||
		strings.Contains(msg, "overloaded") {
		return true
	}

	return false
}

// EstimateTokens provides a rough token count estimation for a message list.
// 1 token is roughly 4 characters for English text.
func EstimateTokens(messages []Message) int {
	totalChars := 0
	for _, msg := range messages {
		totalChars += len(msg.Content)
	}
	return (totalChars + 3) / 4
}
