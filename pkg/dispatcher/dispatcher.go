package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/harun/mate/internal/config"
	"github.com/harun/mate/internal/observability"
	"github.com/harun/mate/internal/tracing"
	"github.com/harun/mate/pkg/agent"
	"github.com/harun/mate/pkg/commandqueue"
	"github.com/harun/mate/pkg/roster"
	"github.com/harun/mate/pkg/session"
	"github.com/harun/mate/pkg/toolexec"
)

// Dispatcher is the hub: it routes a query to a specialist role, runs the
// bounded reasoning loop against the model, dispatches tool calls and
// streams the final answer. One dispatch runs at a time per session.
type Dispatcher struct {
	cfg      *config.Config
	sessions *session.Manager
	invoker  *agent.Invoker
	executor *toolexec.Executor
	queue    *commandqueue.CommandQueue
	policy   RoutingPolicy
	roster   *roster.Roster
	costs    *CostTracker
	logger   zerolog.Logger

	activeRuns map[string]context.CancelFunc
	runsMu     sync.RWMutex
}

// Config holds dispatcher dependencies.
type Config struct {
	Config   *config.Config
	Sessions *session.Manager
	Invoker  *agent.Invoker
	Executor *toolexec.Executor
	Queue    *commandqueue.CommandQueue
	Policy   RoutingPolicy
	Logger   zerolog.Logger

	// Roster, when set, supplies hot-reloadable role definitions; role
	// lookups fall back to the static config without one.
	Roster *roster.Roster
}

// Request is one user query to dispatch.
type Request struct {
	SessionKey string `json:"session_key"`
	Query      string `json:"query"`

	// Role, when set, bypasses the routing policy.
	Role string `json:"role,omitempty"`

	// Context, when set, is prepended to the model-visible query as a
	// JSON block (location, user info, timestamp).
	Context *UserContext `json:"context,omitempty"`
}

// Result is the outcome of a completed dispatch.
type Result struct {
	SessionKey string           `json:"session_key"`
	Role       string           `json:"role"`
	Response   string           `json:"response"`
	State      State            `json:"state"`
	Rounds     int              `json:"rounds"`
	ToolCalls  []agent.ToolCall `json:"tool_calls,omitempty"`
	Usage      agent.TokenUsage `json:"usage"`
	CostUSD    float64          `json:"cost_usd"`
	Degraded   bool             `json:"degraded,omitempty"`
	Aborted    bool             `json:"aborted,omitempty"`
}

// New creates a dispatcher.
func New(cfg Config) (*Dispatcher, error) {
	observability.EnsureRegistered()

	if cfg.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.Sessions == nil {
		return nil, fmt.Errorf("session manager is required")
	}
	if cfg.Invoker == nil {
		return nil, fmt.Errorf("invoker is required")
	}
	if cfg.Executor == nil {
		return nil, fmt.Errorf("tool executor is required")
	}
	if cfg.Queue == nil {
		return nil, fmt.Errorf("command queue is required")
	}
	if _, ok := cfg.Config.RoleByID(cfg.Config.Dispatch.DefaultRole); !ok {
		return nil, fmt.Errorf("default role %q is not configured", cfg.Config.Dispatch.DefaultRole)
	}
	if !cfg.Executor.Registry().IsFrozen() {
		return nil, fmt.Errorf("tool registry must be frozen before dispatching")
	}

	policy := cfg.Policy
	if policy == nil {
		policy = NewKeywordPolicy(cfg.Config.Roles)
	}

	return &Dispatcher{
		cfg:        cfg.Config,
		sessions:   cfg.Sessions,
		invoker:    cfg.Invoker,
		executor:   cfg.Executor,
		queue:      cfg.Queue,
		policy:     policy,
		roster:     cfg.Roster,
		costs:      NewCostTracker(),
		logger:     cfg.Logger,
		activeRuns: make(map[string]context.CancelFunc),
	}, nil
}

// Costs returns the dispatcher's cost tracker.
func (d *Dispatcher) Costs() *CostTracker {
	return d.costs
}

// roleByID resolves a role definition, preferring the hot-reloaded roster.
// Each dispatch resolves its role once, so a reload mid-run does not change
// the role already in flight.
func (d *Dispatcher) roleByID(id string) (config.RoleConfig, bool) {
	if d.roster != nil {
		return d.roster.Role(id)
	}
	return d.cfg.RoleByID(id)
}

// Dispatch runs one query through the full routing, reasoning and tool
// loop. Concurrent dispatches for the same session serialize on the
// session's queue lane; different sessions run in parallel.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request, handler EventHandler) (Result, error) {
	if req.SessionKey == "" {
		return Result{}, fmt.Errorf("session key is required")
	}
	if strings.TrimSpace(req.Query) == "" {
		return Result{}, fmt.Errorf("query cannot be empty")
	}

	if ctx == nil {
		ctx = context.Background()
	}
	if tracing.GetTraceID(ctx) == "" {
		ctx = tracing.NewRequestContext(ctx)
	}
	ctx = tracing.WithSessionKey(ctx, req.SessionKey)
	ctx, span := tracing.StartSpan(
		ctx,
		"mate.dispatcher",
		"dispatch.run",
		attribute.String("session_key", req.SessionKey),
	)
	defer span.End()

	lane := "session-" + req.SessionKey
	value, err := d.queue.EnqueueWithContext(ctx, lane, func(taskCtx context.Context) (interface{}, error) {
		return d.run(taskCtx, req, handler)
	})

	// Exhausted round budgets surface both a completed result and the
	// budget error, so the result is recovered even on error.
	result, _ := value.(Result)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return result, err
}

// Abort cancels the active dispatch for a session, if any. The dispatch
// ends in the aborted state and the session stays consistent for the next
// query.
func (d *Dispatcher) Abort(sessionKey string) error {
	d.runsMu.Lock()
	defer d.runsMu.Unlock()

	cancel, exists := d.activeRuns[sessionKey]
	if !exists {
		d.logger.Debug().Str("session_key", sessionKey).Msg("No active dispatch to abort")
		return nil
	}

	d.logger.Info().Str("session_key", sessionKey).Msg("Aborting dispatch")
	cancel()
	delete(d.activeRuns, sessionKey)
	return nil
}

// IsRunning reports whether a dispatch is active for the session.
func (d *Dispatcher) IsRunning(sessionKey string) bool {
	d.runsMu.RLock()
	defer d.runsMu.RUnlock()
	_, exists := d.activeRuns[sessionKey]
	return exists
}

// Reset aborts any active dispatch, drops queued work for the session's
// lane and deletes the stored conversation.
func (d *Dispatcher) Reset(ctx context.Context, sessionKey string) error {
	if err := d.Abort(sessionKey); err != nil {
		return err
	}
	d.queue.ResetLane("session-" + sessionKey)

	err := d.sessions.Delete(ctx, sessionKey)
	if err != nil && !errors.Is(err, session.ErrSessionNotFound) {
		return err
	}
	return nil
}

func (d *Dispatcher) run(ctx context.Context, req Request, handler EventHandler) (Result, error) {
	start := time.Now()
	ctx = tracing.WithSessionKey(ctx, req.SessionKey)

	execCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	d.runsMu.Lock()
	d.activeRuns[req.SessionKey] = cancel
	d.runsMu.Unlock()
	defer func() {
		d.runsMu.Lock()
		delete(d.activeRuns, req.SessionKey)
		d.runsMu.Unlock()
	}()

	result := Result{SessionKey: req.SessionKey, State: StateAwaitingInput}

	history, err := d.sessions.GetOrCreate(execCtx, req.SessionKey)
	if err != nil {
		return d.fail(execCtx, &result, handler, 0, fmt.Errorf("failed to load session: %w", err))
	}

	// A new query reactivates the session even if the previous dispatch
	// was cancelled mid-flight.
	if err := d.sessions.SetStatus(execCtx, req.SessionKey, session.StatusActive); err != nil {
		d.logger.Warn().Err(err).Str("session_key", req.SessionKey).Msg("Failed to mark session active")
	}

	// Routing
	d.transition(&result, StateRouting, handler)
	decision, err := d.route(execCtx, req, history)
	if err != nil {
		return d.fail(execCtx, &result, handler, 0, err)
	}
	result.Role = decision.Role
	ctx = tracing.NewDispatchContext(execCtx, decision.Role)
	logger := tracing.LoggerFromContext(ctx, d.logger)
	observability.RecordRoutingDecision(decision.Role, decision.Fallback)
	observability.RecordRouteAudit(ctx, decision.Role, req.SessionKey, map[string]interface{}{
		"fallback":   decision.Fallback,
		"confidence": decision.Confidence,
	})
	d.emit(handler, Event{
		Type:       EventRouted,
		SessionKey: req.SessionKey,
		Role:       decision.Role,
		Text:       decision.Reason,
	})
	logger.Info().
		Str("role", decision.Role).
		Bool("fallback", decision.Fallback).
		Msg("Query routed")

	roleCfg, _ := d.roleByID(decision.Role)
	toolSpecs, toolPolicy, err := d.buildToolSpecs(roleCfg.Tools)
	if err != nil {
		return d.fail(ctx, &result, handler, 0, err)
	}

	// Arrival order: the user turn is persisted before any model work.
	userTurn := session.NewUserTurn(req.Query)
	userTurn.Metadata = map[string]interface{}{"role": decision.Role}
	if err := d.sessions.Append(ctx, req.SessionKey, userTurn); err != nil {
		return d.fail(ctx, &result, handler, 0, fmt.Errorf("failed to persist user turn: %w", err))
	}

	messages, err := historyToMessages(history)
	if err != nil {
		return d.fail(ctx, &result, handler, 0, err)
	}
	messages = append(messages, agent.Message{Role: "user", Content: buildContextPrompt(req.Query, req.Context, time.Now())})

	maxRounds := d.cfg.Dispatch.MaxRounds
	if maxRounds <= 0 {
		maxRounds = 10
	}

	for round := 1; round <= maxRounds; round++ {
		result.Rounds = round
		if aborted := d.checkAborted(ctx, &result, handler); aborted {
			return result, nil
		}

		d.transition(&result, StateAgentTurn, handler)

		// Deltas are staged: they only become token events if this round
		// turns out to be the final one.
		var deltas []string
		invokeResult, err := d.invoker.Invoke(ctx, agent.InvokeParams{
			Model:        d.cfg.ResolveModel(roleCfg.Model),
			Messages:     messages,
			Tools:        toolSpecs,
			Temperature:  roleCfg.Temperature,
			MaxTokens:    roleCfg.MaxTokens,
			SystemPrompt: roleCfg.SystemPrompt,
			OnDelta: func(text string) {
				deltas = append(deltas, text)
			},
		})
		if err != nil {
			if ctx.Err() != nil {
				d.markAborted(&result, handler)
				return result, nil
			}
			if errors.Is(err, agent.ErrProviderDegraded) {
				return d.finishDegraded(ctx, &result, req, handler, err, start)
			}
			return d.fail(ctx, &result, handler, round, classifyProviderError(err))
		}

		result.Usage.InputTokens += invokeResult.Usage.InputTokens
		result.Usage.OutputTokens += invokeResult.Usage.OutputTokens
		result.CostUSD += d.costs.Record(invokeResult.Model, invokeResult.Usage)
		if invokeResult.Degraded {
			result.Degraded = true
		}

		if !invokeResult.IsToolRound() {
			return d.finish(ctx, &result, req, roleCfg, invokeResult, deltas, handler, start)
		}

		messages, err = d.dispatchTools(ctx, &result, req, roleCfg, invokeResult, messages, toolPolicy, handler, round)
		if err != nil {
			if ctx.Err() != nil {
				d.markAborted(&result, handler)
				return result, nil
			}
			return d.fail(ctx, &result, handler, round, err)
		}
		if aborted := d.checkAborted(ctx, &result, handler); aborted {
			return result, nil
		}
	}

	// Round budget exhausted. This is a completion, not a failure: the
	// conversation stays usable and the caller gets a best-effort answer.
	response := fmt.Sprintf(
		"I was unable to finish within %d reasoning rounds. Here is what I found so far; please narrow the question and try again.",
		maxRounds,
	)
	finalTurn := session.NewAssistantTurn(response, nil)
	finalTurn.Metadata = map[string]interface{}{"max_rounds_exceeded": true}
	if err := d.sessions.Append(ctx, req.SessionKey, finalTurn); err != nil {
		logger.Error().Err(err).Msg("Failed to persist max-rounds turn")
	}

	result.Response = response
	d.transition(&result, StateStreamingResponse, handler)
	d.emit(handler, Event{Type: EventToken, SessionKey: req.SessionKey, Text: response, Round: result.Rounds})
	d.emit(handler, Event{Type: EventFinalMessage, SessionKey: req.SessionKey, Text: response, Role: result.Role})
	d.transition(&result, StateDone, handler)
	observability.RecordDispatch(result.Role, string(StateDone), time.Since(start), result.Rounds)
	return result, &MaxRoundsError{Rounds: maxRounds}
}

func (d *Dispatcher) route(ctx context.Context, req Request, history []session.Turn) (Decision, error) {
	if req.Role != "" {
		if _, ok := d.roleByID(req.Role); !ok {
			return Decision{}, fmt.Errorf("unknown role %q", req.Role)
		}
		return Decision{Role: req.Role, Confidence: 1.0, Reason: "caller override"}, nil
	}

	decision, err := d.policy.Route(ctx, req.Query, history)
	if err == nil {
		return decision, nil
	}
	if ctx.Err() != nil {
		return Decision{}, ctx.Err()
	}

	// Every query gets an answer: ambiguity and classifier failures fall
	// back to the default role.
	d.logger.Warn().Err(err).Str("default_role", d.cfg.Dispatch.DefaultRole).Msg("Routing failed, using default role")
	return Decision{
		Role:     d.cfg.Dispatch.DefaultRole,
		Fallback: true,
		Reason:   "default role fallback",
	}, nil
}

// dispatchTools persists the assistant's tool calls, executes them
// concurrently and persists results in the original call order.
func (d *Dispatcher) dispatchTools(
	ctx context.Context,
	result *Result,
	req Request,
	roleCfg config.RoleConfig,
	invokeResult *agent.InvokeResult,
	messages []agent.Message,
	toolPolicy *toolexec.ToolPolicy,
	handler EventHandler,
	round int,
) ([]agent.Message, error) {
	d.transition(result, StateToolDispatch, handler)

	sessionCalls := make([]session.ToolCall, 0, len(invokeResult.ToolCalls))
	requests := make([]toolexec.Request, 0, len(invokeResult.ToolCalls))
	for _, tc := range invokeResult.ToolCalls {
		args, err := json.Marshal(tc.Parameters)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal tool call arguments: %w", err)
		}
		sessionCalls = append(sessionCalls, session.ToolCall{ID: tc.ID, Name: tc.Name, Arguments: args})
		requests = append(requests, toolexec.Request{CallID: tc.ID, Name: tc.Name, Params: tc.Parameters})

		d.emit(handler, Event{
			Type:       EventToolInvoked,
			SessionKey: req.SessionKey,
			Role:       result.Role,
			ToolCallID: tc.ID,
			ToolName:   tc.Name,
			Round:      round,
		})
	}
	result.ToolCalls = append(result.ToolCalls, invokeResult.ToolCalls...)

	assistantTurn := session.NewAssistantTurn(invokeResult.Content, sessionCalls)
	if err := d.sessions.Append(ctx, req.SessionKey, assistantTurn); err != nil {
		return nil, fmt.Errorf("failed to persist assistant turn: %w", err)
	}

	timeout := time.Duration(d.cfg.Tools.DefaultTimeout) * time.Second
	toolResults := d.executor.ExecuteAll(ctx, requests, &toolexec.ExecutionContext{
		SessionKey: req.SessionKey,
		Role:       result.Role,
		Timeout:    timeout,
		ToolPolicy: toolPolicy,
	})

	messages = append(messages, agent.Message{
		Role:      "assistant",
		Content:   invokeResult.Content,
		ToolCalls: invokeResult.ToolCalls,
	})

	// Results come back in request order regardless of completion order,
	// and every call gets exactly one persisted result turn. Failures are
	// fed back to the model as results, not raised.
	for _, tr := range toolResults {
		content := formatToolOutput(tr)
		toolTurn := session.NewToolTurn(tr.CallID, tr.Name, content, !tr.Success)
		if err := d.sessions.Append(ctx, req.SessionKey, toolTurn); err != nil {
			return nil, fmt.Errorf("failed to persist tool result: %w", err)
		}
		messages = append(messages, agent.Message{
			Role:       "tool",
			Content:    content,
			ToolCallID: tr.CallID,
		})

		ev := Event{
			Type:       EventToolCompleted,
			SessionKey: req.SessionKey,
			Role:       result.Role,
			ToolCallID: tr.CallID,
			ToolName:   tr.Name,
			Round:      round,
		}
		if !tr.Success {
			ev.ToolError = tr.Error
		}
		d.emit(handler, ev)
	}

	return messages, nil
}

func (d *Dispatcher) finish(
	ctx context.Context,
	result *Result,
	req Request,
	roleCfg config.RoleConfig,
	invokeResult *agent.InvokeResult,
	deltas []string,
	handler EventHandler,
	start time.Time,
) (Result, error) {
	d.transition(result, StateStreamingResponse, handler)

	if len(deltas) == 0 && invokeResult.Content != "" {
		deltas = []string{invokeResult.Content}
	}
	for _, delta := range deltas {
		if aborted := d.checkAborted(ctx, result, handler); aborted {
			return *result, nil
		}
		d.emit(handler, Event{
			Type:       EventToken,
			SessionKey: req.SessionKey,
			Role:       result.Role,
			Text:       delta,
			Round:      result.Rounds,
		})
	}

	finalTurn := session.NewAssistantTurn(invokeResult.Content, nil)
	finalTurn.Metadata = map[string]interface{}{
		"model": invokeResult.Model,
		"usage": invokeResult.Usage,
	}
	if err := d.sessions.Append(ctx, req.SessionKey, finalTurn); err != nil {
		return d.fail(ctx, result, handler, result.Rounds, fmt.Errorf("failed to persist final turn: %w", err))
	}

	result.Response = invokeResult.Content
	d.emit(handler, Event{
		Type:       EventFinalMessage,
		SessionKey: req.SessionKey,
		Role:       result.Role,
		Text:       invokeResult.Content,
		Round:      result.Rounds,
	})
	d.transition(result, StateDone, handler)
	observability.RecordDispatch(result.Role, string(StateDone), time.Since(start), result.Rounds)
	observability.RecordDispatchAudit(ctx, req.SessionKey, string(StateDone), map[string]interface{}{
		"role":   result.Role,
		"rounds": result.Rounds,
	})
	return *result, nil
}

// finishDegraded completes a dispatch whose model calls exhausted every
// retry and credential on transient faults. The user gets an honest
// fallback answer, the transcript stays intact, and the session remains
// usable for the next query.
func (d *Dispatcher) finishDegraded(
	ctx context.Context,
	result *Result,
	req Request,
	handler EventHandler,
	cause error,
	start time.Time,
) (Result, error) {
	logger := tracing.LoggerFromContext(ctx, d.logger)
	logger.Warn().Err(cause).Msg("Provider exhausted, answering degraded")

	response := "I'm having trouble reaching the language model right now. Please try again in a moment."
	result.Degraded = true
	result.Response = response

	finalTurn := session.NewAssistantTurn(response, nil)
	finalTurn.Metadata = map[string]interface{}{"degraded": true}
	if err := d.sessions.Append(ctx, req.SessionKey, finalTurn); err != nil {
		logger.Error().Err(err).Msg("Failed to persist degraded turn")
	}

	d.transition(result, StateStreamingResponse, handler)
	d.emit(handler, Event{Type: EventToken, SessionKey: req.SessionKey, Role: result.Role, Text: response, Round: result.Rounds})
	d.emit(handler, Event{Type: EventFinalMessage, SessionKey: req.SessionKey, Role: result.Role, Text: response, Round: result.Rounds})
	d.transition(result, StateDone, handler)
	observability.RecordDispatch(result.Role, string(StateDone), time.Since(start), result.Rounds)
	return *result, nil
}

func (d *Dispatcher) fail(ctx context.Context, result *Result, handler EventHandler, rounds int, err error) (Result, error) {
	if result.State.CanTransition(StateError) || result.State == StateAwaitingInput {
		result.State = StateError
	}
	d.emit(handler, Event{
		Type:       EventError,
		SessionKey: result.SessionKey,
		State:      StateError,
		Role:       result.Role,
		Text:       err.Error(),
	})
	role := result.Role
	if role == "" {
		role = "unknown"
	}
	observability.RecordDispatch(role, string(StateError), 0, rounds)
	logger := tracing.LoggerFromContext(ctx, d.logger)
	logger.Error().Err(err).Msg("Dispatch failed")
	return *result, err
}

func (d *Dispatcher) transition(result *Result, next State, handler EventHandler) {
	if !result.State.CanTransition(next) {
		// Enforced as a loud invariant rather than a hard stop: failing
		// the dispatch here would lose the work already done.
		d.logger.Warn().
			Str("from", string(result.State)).
			Str("to", string(next)).
			Msg("State transition outside the table")
	}
	result.State = next
	d.emit(handler, Event{
		Type:       EventStateChange,
		SessionKey: result.SessionKey,
		State:      next,
		Role:       result.Role,
	})
}

func (d *Dispatcher) checkAborted(ctx context.Context, result *Result, handler EventHandler) bool {
	select {
	case <-ctx.Done():
		d.markAborted(result, handler)
		return true
	default:
		return false
	}
}

func (d *Dispatcher) markAborted(result *Result, handler EventHandler) {
	result.Aborted = true
	// The run context is already cancelled; the status write gets a fresh
	// context so it still lands.
	if err := d.sessions.SetStatus(context.Background(), result.SessionKey, session.StatusAborted); err != nil {
		d.logger.Warn().Err(err).Str("session_key", result.SessionKey).Msg("Failed to persist aborted status")
	}
	d.transition(result, StateAborted, handler)
	observability.RecordDispatch(result.Role, string(StateAborted), 0, result.Rounds)
}

// buildToolSpecs converts a role's tool allowlist into provider tool specs
// plus the execution policy enforcing the same list.
func (d *Dispatcher) buildToolSpecs(toolNames []string) ([]interface{}, *toolexec.ToolPolicy, error) {
	if len(toolNames) == 0 {
		return nil, &toolexec.ToolPolicy{}, nil
	}

	registry := d.executor.Registry()
	specs := make([]interface{}, 0, len(toolNames))

	for _, name := range toolNames {
		def := registry.Get(name)
		if def == nil {
			return nil, nil, fmt.Errorf("tool not registered: %s", name)
		}

		properties := make(map[string]interface{})
		required := []string{}
		for _, param := range def.Parameters {
			prop := map[string]interface{}{
				"type":        param.Type,
				"description": param.Description,
			}
			if len(param.Enum) > 0 {
				prop["enum"] = param.Enum
			}
			properties[param.Name] = prop
			if param.Required {
				required = append(required, param.Name)
			}
		}

		inputSchema := map[string]interface{}{
			"type":       "object",
			"properties": properties,
		}
		if len(required) > 0 {
			inputSchema["required"] = required
		}

		specs = append(specs, map[string]interface{}{
			"name":         def.Name,
			"description":  def.Description,
			"input_schema": inputSchema,
		})
	}

	return specs, &toolexec.ToolPolicy{Allow: toolNames}, nil
}

// historyToMessages converts stored turns into model messages.
func historyToMessages(turns []session.Turn) ([]agent.Message, error) {
	messages := make([]agent.Message, 0, len(turns))
	for _, turn := range turns {
		msg := agent.Message{
			Role:       turn.Role,
			Content:    turn.Content,
			ToolCallID: turn.ToolCallID,
		}
		for _, tc := range turn.ToolCalls {
			var params map[string]interface{}
			if len(tc.Arguments) > 0 {
				if err := json.Unmarshal(tc.Arguments, &params); err != nil {
					return nil, fmt.Errorf("corrupt tool call arguments for %s: %w", tc.ID, err)
				}
			}
			msg.ToolCalls = append(msg.ToolCalls, agent.ToolCall{ID: tc.ID, Name: tc.Name, Parameters: params})
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// formatToolOutput renders a tool result as text for the model. Failures
// carry the error kind so the model can distinguish bad arguments from
// broken tools.
func formatToolOutput(tr toolexec.ToolResult) string {
	if !tr.Success {
		return fmt.Sprintf("ERROR (%s): %s", tr.ErrorKind, tr.Error)
	}
	switch out := tr.Output.(type) {
	case string:
		return out
	case nil:
		return ""
	default:
		encoded, err := json.Marshal(out)
		if err != nil {
			return fmt.Sprintf("%v", out)
		}
		return string(encoded)
	}
}

func classifyProviderError(err error) error {
	msg := err.Error()
	if strings.Contains(msg, "timed out") || strings.Contains(msg, "deadline exceeded") {
		return fmt.Errorf("%w: %v", ErrProviderTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrProviderFatal, err)
}
