package toolexec

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"
	"go.opentelemetry.io/otel/attribute"

	"github.com/harun/mate/internal/observability"
	"github.com/harun/mate/internal/tracing"
)

// DefaultTimeout bounds a single tool execution.
const DefaultTimeout = 30 * time.Second

// DefaultMaxOutputBytes bounds tool output fed back to the model.
const DefaultMaxOutputBytes = 64 * 1024

// Executor runs registered tools with validation, timeouts and output limits.
type Executor struct {
	registry       *Registry
	defaultTimeout time.Duration
	timeouts       map[string]time.Duration
	maxOutputBytes int
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithDefaultTimeout overrides the default per-tool timeout.
func WithDefaultTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		if d > 0 {
			e.defaultTimeout = d
		}
	}
}

// WithToolTimeout sets a timeout for a specific tool.
func WithToolTimeout(tool string, d time.Duration) ExecutorOption {
	return func(e *Executor) {
		if d > 0 {
			e.timeouts[tool] = d
		}
	}
}

// WithMaxOutputBytes overrides the output truncation limit.
func WithMaxOutputBytes(n int) ExecutorOption {
	return func(e *Executor) {
		if n > 0 {
			e.maxOutputBytes = n
		}
	}
}

// NewExecutor creates an executor over a registry.
func NewExecutor(registry *Registry, opts ...ExecutorOption) *Executor {
	observability.EnsureRegistered()

	e := &Executor{
		registry:       registry,
		defaultTimeout: DefaultTimeout,
		timeouts:       make(map[string]time.Duration),
		maxOutputBytes: DefaultMaxOutputBytes,
	}
	for _, opt := range opts {
		opt(e)
	}

	log.Info().Int("tools", registry.Count()).Msg("Tool executor initialized")

	return e
}

// Registry returns the executor's registry.
func (e *Executor) Registry() *Registry {
	return e.registry
}

// Execute runs one tool request and always returns a result.
// Policy, lookup, validation, execution and timeout failures come back as
// failed results so the caller can feed them to the model as tool output.
func (e *Executor) Execute(ctx context.Context, req Request, execCtx *ExecutionContext) ToolResult {
	startTime := time.Now()

	ctx, span := tracing.StartSpan(
		ctx,
		"mate.toolexec",
		"toolexec.execute",
		attribute.String("tool", req.Name),
		attribute.String("call_id", req.CallID),
	)
	defer span.End()

	result := e.execute(ctx, req, execCtx)
	result.CallID = req.CallID
	result.Name = req.Name

	duration := time.Since(startTime)
	if result.Metadata == nil {
		result.Metadata = map[string]interface{}{}
	}
	result.Metadata["duration"] = duration.Milliseconds()

	observability.RecordToolExecution(req.Name, duration, result.Success)

	actor := ""
	if execCtx != nil {
		actor = execCtx.SessionKey
	}
	status := "success"
	if !result.Success {
		status = "failure"
	}
	observability.RecordToolAudit(ctx, req.Name, actor, status, map[string]interface{}{
		"call_id": req.CallID,
	})

	return result
}

func (e *Executor) execute(ctx context.Context, req Request, execCtx *ExecutionContext) ToolResult {
	logger := tracing.LoggerFromContext(ctx, log.Logger).With().Str("tool", req.Name).Logger()

	if execCtx != nil && execCtx.ToolPolicy != nil {
		if !execCtx.ToolPolicy.IsToolAllowed(req.Name) {
			logger.Warn().Str("role", execCtx.Role).Msg("Tool execution blocked by policy")
			return ToolResult{
				Success:   false,
				Error:     fmt.Sprintf("tool '%s' is not allowed for role %s", req.Name, execCtx.Role),
				ErrorKind: ErrKindPolicy,
			}
		}
	}

	tool := e.registry.Get(req.Name)
	if tool == nil {
		logger.Error().Msg("Tool not found")
		return ToolResult{
			Success:   false,
			Error:     fmt.Sprintf("tool not found: %s", req.Name),
			ErrorKind: ErrKindNotFound,
		}
	}

	if err := validateParameters(e.registry.Schema(req.Name), req.Params); err != nil {
		logger.Error().Err(err).Msg("Parameter validation failed")
		return ToolResult{
			Success:   false,
			Error:     fmt.Sprintf("parameter validation failed: %v", err),
			ErrorKind: ErrKindValidation,
		}
	}

	logger.Debug().Msg("Executing tool")

	timeout := e.defaultTimeout
	if t, ok := e.timeouts[req.Name]; ok {
		timeout = t
	}
	if execCtx != nil && execCtx.Timeout > 0 {
		timeout = execCtx.Timeout
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resultChan := make(chan interface{}, 1)
	errChan := make(chan error, 1)

	go func() {
		// A panicking handler must surface as a result descriptor, not
		// take down the process.
		defer func() {
			if r := recover(); r != nil {
				errChan <- fmt.Errorf("handler panicked: %v", r)
			}
		}()

		result, err := tool.Handler(timeoutCtx, req.Params)
		if err != nil {
			errChan <- err
		} else {
			resultChan <- result
		}
	}()

	select {
	case result := <-resultChan:
		output, truncated := e.truncateOutput(result)

		logger.Debug().Bool("truncated", truncated).Msg("Tool execution completed")

		return ToolResult{
			Success:   true,
			Output:    output,
			Truncated: truncated,
		}

	case err := <-errChan:
		logger.Error().Err(err).Msg("Tool execution failed")

		return ToolResult{
			Success:   false,
			Error:     err.Error(),
			ErrorKind: ErrKindExecution,
		}

	case <-timeoutCtx.Done():
		if ctx.Err() != nil {
			logger.Warn().Msg("Tool execution cancelled")
			return ToolResult{
				Success:   false,
				Error:     "tool execution cancelled",
				ErrorKind: ErrKindExecution,
			}
		}

		logger.Error().Dur("timeout", timeout).Msg("Tool execution timeout")

		return ToolResult{
			Success:   false,
			Error:     fmt.Sprintf("tool execution timeout after %v", timeout),
			ErrorKind: ErrKindTimeout,
		}
	}
}

// ExecuteAll runs requests concurrently and returns results in request order.
//
// The completion order of individual tools never changes the result order:
// results[i] always answers requests[i].
func (e *Executor) ExecuteAll(ctx context.Context, requests []Request, execCtx *ExecutionContext) []ToolResult {
	results := make([]ToolResult, len(requests))

	var wg sync.WaitGroup
	for i, req := range requests {
		wg.Add(1)
		go func(i int, req Request) {
			defer wg.Done()
			results[i] = e.Execute(ctx, req, execCtx)
		}(i, req)
	}
	wg.Wait()

	return results
}

// validateParameters validates parameters against a JSON Schema
func validateParameters(schema *gojsonschema.Schema, params map[string]interface{}) error {
	if schema == nil {
		return nil
	}

	if params == nil {
		params = map[string]interface{}{}
	}

	paramsLoader := gojsonschema.NewGoLoader(params)
	result, err := schema.Validate(paramsLoader)
	if err != nil {
		return err
	}

	if !result.Valid() {
		errors := []string{}
		for _, err := range result.Errors() {
			errors = append(errors, err.String())
		}
		return fmt.Errorf("validation errors: %v", errors)
	}

	return nil
}

// truncateOutput truncates output if it exceeds the size limit
func (e *Executor) truncateOutput(output interface{}) (interface{}, bool) {
	str := fmt.Sprintf("%v", output)

	if len(str) <= e.maxOutputBytes {
		return output, false
	}

	truncated := str[:e.maxOutputBytes] + "\n... [output truncated]"
	log.Warn().
		Int("original", len(str)).
		Int("limit", e.maxOutputBytes).
		Msg("Output truncated")

	return truncated, true
}
