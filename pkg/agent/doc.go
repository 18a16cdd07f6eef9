// Package agent makes single model invocations against Anthropic and OpenAI
// backends. Each Invoke resolves to either a final message or a non-empty
// set of tool calls; retries use exponential backoff and credentials fail
// over by priority with per-profile cooldowns.
package agent
