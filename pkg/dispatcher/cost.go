package dispatcher

import (
	"strings"
	"sync"

	"github.com/harun/mate/internal/observability"
	"github.com/harun/mate/pkg/agent"
)

// ModelPricing holds per-million-token prices in USD.
type ModelPricing struct {
	InputPerMTok  float64
	OutputPerMTok float64
}

// defaultPricing is matched by substring against the model name, first hit
// wins. Unknown models are tracked with zero cost.
var defaultPricing = []struct {
	match   string
	pricing ModelPricing
}{
	{"claude-3-5-haiku", ModelPricing{InputPerMTok: 0.80, OutputPerMTok: 4.00}},
	{"claude-3-5-sonnet", ModelPricing{InputPerMTok: 3.00, OutputPerMTok: 15.00}},
	{"claude-3-7-sonnet", ModelPricing{InputPerMTok: 3.00, OutputPerMTok: 15.00}},
	{"claude-3-opus", ModelPricing{InputPerMTok: 15.00, OutputPerMTok: 75.00}},
	{"gpt-4o-mini", ModelPricing{InputPerMTok: 0.15, OutputPerMTok: 0.60}},
	{"gpt-4o", ModelPricing{InputPerMTok: 2.50, OutputPerMTok: 10.00}},
	{"gpt-4.1-mini", ModelPricing{InputPerMTok: 0.40, OutputPerMTok: 1.60}},
	{"gpt-4.1", ModelPricing{InputPerMTok: 2.00, OutputPerMTok: 8.00}},
}

// CostTracker accumulates token usage and dollar cost per model.
type CostTracker struct {
	mu      sync.Mutex
	input   map[string]int
	output  map[string]int
	costUSD map[string]float64
	custom  map[string]ModelPricing
}

// NewCostTracker creates an empty tracker.
func NewCostTracker() *CostTracker {
	return &CostTracker{
		input:   make(map[string]int),
		output:  make(map[string]int),
		costUSD: make(map[string]float64),
		custom:  make(map[string]ModelPricing),
	}
}

// SetPricing overrides pricing for an exact model name.
func (t *CostTracker) SetPricing(model string, pricing ModelPricing) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.custom[model] = pricing
}

// Record adds one call's usage and returns its cost in USD.
func (t *CostTracker) Record(model string, usage *agent.TokenUsage) float64 {
	if usage == nil {
		return 0
	}

	pricing := t.pricingFor(model)
	cost := float64(usage.InputTokens)/1e6*pricing.InputPerMTok +
		float64(usage.OutputTokens)/1e6*pricing.OutputPerMTok

	t.mu.Lock()
	t.input[model] += usage.InputTokens
	t.output[model] += usage.OutputTokens
	t.costUSD[model] += cost
	t.mu.Unlock()

	observability.RecordCost(model, cost)
	return cost
}

func (t *CostTracker) pricingFor(model string) ModelPricing {
	t.mu.Lock()
	custom, ok := t.custom[model]
	t.mu.Unlock()
	if ok {
		return custom
	}

	lowered := strings.ToLower(model)
	for _, entry := range defaultPricing {
		if strings.Contains(lowered, entry.match) {
			return entry.pricing
		}
	}
	return ModelPricing{}
}

// Totals returns accumulated input tokens, output tokens and cost across
// all models.
func (t *CostTracker) Totals() (input, output int, costUSD float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, v := range t.input {
		input += v
	}
	for _, v := range t.output {
		output += v
	}
	for _, v := range t.costUSD {
		costUSD += v
	}
	return input, output, costUSD
}

// CostFor returns the accumulated cost for one model.
func (t *CostTracker) CostFor(model string) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.costUSD[model]
}
