package toolexec

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExecutor(t *testing.T, opts ...ExecutorOption) *Executor {
	t.Helper()

	r := NewRegistry()

	require.NoError(t, r.Register(ToolDefinition{
		Name:        "geocode",
		Description: "resolves a place name to coordinates",
		Parameters: []ToolParameter{
			{Name: "query", Type: "string", Description: "place name", Required: true},
		},
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			return map[string]interface{}{"lat": 46.85, "lon": -121.76}, nil
		},
	}))

	require.NoError(t, r.Register(ToolDefinition{
		Name:        "slow",
		Description: "sleeps until cancelled",
		Parameters:  nil,
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			select {
			case <-time.After(10 * time.Second):
				return "done", nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
	}))

	require.NoError(t, r.Register(ToolDefinition{
		Name:        "failing",
		Description: "always fails",
		Parameters:  nil,
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			return nil, fmt.Errorf("upstream unavailable")
		},
	}))

	require.NoError(t, r.Register(ToolDefinition{
		Name:        "panicking",
		Description: "always panics",
		Parameters:  nil,
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			panic("handler exploded")
		},
	}))

	r.Freeze()
	return NewExecutor(r, opts...)
}

func TestExecute_Success(t *testing.T) {
	e := newTestExecutor(t)

	result := e.Execute(context.Background(), Request{
		CallID: "call_1",
		Name:   "geocode",
		Params: map[string]interface{}{"query": "mount rainier"},
	}, nil)

	require.True(t, result.Success)
	assert.Equal(t, "call_1", result.CallID)
	assert.Equal(t, "geocode", result.Name)
	out, ok := result.Output.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 46.85, out["lat"])
}

func TestExecute_UnknownTool(t *testing.T) {
	e := newTestExecutor(t)

	result := e.Execute(context.Background(), Request{CallID: "c", Name: "nope"}, nil)
	assert.False(t, result.Success)
	assert.Equal(t, ErrKindNotFound, result.ErrorKind)
}

func TestExecute_ValidationFailureIsAResult(t *testing.T) {
	e := newTestExecutor(t)

	tests := []struct {
		name   string
		params map[string]interface{}
	}{
		{"missing required", map[string]interface{}{}},
		{"wrong type", map[string]interface{}{"query": 42}},
		{"unknown property", map[string]interface{}{"query": "x", "bogus": true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := e.Execute(context.Background(), Request{
				CallID: "c", Name: "geocode", Params: tt.params,
			}, nil)
			assert.False(t, result.Success)
			assert.Equal(t, ErrKindValidation, result.ErrorKind)
			assert.NotEmpty(t, result.Error)
		})
	}
}

func TestExecute_HandlerError(t *testing.T) {
	e := newTestExecutor(t)

	result := e.Execute(context.Background(), Request{CallID: "c", Name: "failing"}, nil)
	assert.False(t, result.Success)
	assert.Equal(t, ErrKindExecution, result.ErrorKind)
	assert.Contains(t, result.Error, "upstream unavailable")
}

func TestExecute_HandlerPanicIsAResult(t *testing.T) {
	e := newTestExecutor(t)

	result := e.Execute(context.Background(), Request{CallID: "c", Name: "panicking"}, nil)
	assert.False(t, result.Success)
	assert.Equal(t, ErrKindExecution, result.ErrorKind)
	assert.Contains(t, result.Error, "handler panicked")
	assert.Contains(t, result.Error, "handler exploded")
}

func TestExecute_Timeout(t *testing.T) {
	e := newTestExecutor(t, WithToolTimeout("slow", 50*time.Millisecond))

	start := time.Now()
	result := e.Execute(context.Background(), Request{CallID: "c", Name: "slow"}, nil)
	elapsed := time.Since(start)

	assert.False(t, result.Success)
	assert.Equal(t, ErrKindTimeout, result.ErrorKind)
	assert.Less(t, elapsed, 5*time.Second)
}

func TestExecute_PolicyDenied(t *testing.T) {
	e := newTestExecutor(t)

	result := e.Execute(context.Background(), Request{
		CallID: "c", Name: "geocode", Params: map[string]interface{}{"query": "x"},
	}, &ExecutionContext{
		Role:       "web",
		ToolPolicy: &ToolPolicy{Allow: []string{"search_web"}},
	})

	assert.False(t, result.Success)
	assert.Equal(t, ErrKindPolicy, result.ErrorKind)
}

func TestExecuteAll_ResultsInRequestOrder(t *testing.T) {
	r := NewRegistry()

	// First tool finishes last, so completion order is the reverse of
	// request order.
	require.NoError(t, r.Register(ToolDefinition{
		Name:        "slow_first",
		Description: "slow tool",
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			time.Sleep(100 * time.Millisecond)
			return "first", nil
		},
	}))
	require.NoError(t, r.Register(ToolDefinition{
		Name:        "fast_second",
		Description: "fast tool",
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			return "second", nil
		},
	}))
	r.Freeze()

	e := NewExecutor(r)
	results := e.ExecuteAll(context.Background(), []Request{
		{CallID: "call_a", Name: "slow_first"},
		{CallID: "call_b", Name: "fast_second"},
	}, nil)

	require.Len(t, results, 2)
	assert.Equal(t, "call_a", results[0].CallID)
	assert.Equal(t, "first", results[0].Output)
	assert.Equal(t, "call_b", results[1].CallID)
	assert.Equal(t, "second", results[1].Output)
}

func TestExecuteAll_RunsConcurrently(t *testing.T) {
	r := NewRegistry()

	var active, maxActive int32
	require.NoError(t, r.Register(ToolDefinition{
		Name:        "parallel",
		Description: "tracks concurrency",
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			n := atomic.AddInt32(&active, 1)
			for {
				m := atomic.LoadInt32(&maxActive)
				if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
					break
				}
			}
			time.Sleep(50 * time.Millisecond)
			atomic.AddInt32(&active, -1)
			return nil, nil
		},
	}))
	r.Freeze()

	e := NewExecutor(r)
	requests := make([]Request, 4)
	for i := range requests {
		requests[i] = Request{CallID: fmt.Sprintf("c%d", i), Name: "parallel"}
	}

	e.ExecuteAll(context.Background(), requests, nil)
	assert.Greater(t, atomic.LoadInt32(&maxActive), int32(1), "tools should run concurrently")
}

func TestExecuteAll_MixedSuccessAndFailure(t *testing.T) {
	e := newTestExecutor(t)

	results := e.ExecuteAll(context.Background(), []Request{
		{CallID: "ok", Name: "geocode", Params: map[string]interface{}{"query": "x"}},
		{CallID: "bad", Name: "geocode", Params: map[string]interface{}{}},
		{CallID: "err", Name: "failing"},
	}, nil)

	require.Len(t, results, 3)
	assert.True(t, results[0].Success)
	assert.Equal(t, ErrKindValidation, results[1].ErrorKind)
	assert.Equal(t, ErrKindExecution, results[2].ErrorKind)
}

func TestExecute_TruncatesLargeOutput(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(ToolDefinition{
		Name:        "big",
		Description: "returns large output",
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			out := make([]byte, 1024)
			for i := range out {
				out[i] = 'x'
			}
			return string(out), nil
		},
	}))
	r.Freeze()

	e := NewExecutor(r, WithMaxOutputBytes(100))
	result := e.Execute(context.Background(), Request{CallID: "c", Name: "big"}, nil)

	require.True(t, result.Success)
	assert.True(t, result.Truncated)
	assert.Contains(t, result.Output.(string), "[output truncated]")
}
