package dispatcher

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/harun/mate/pkg/agent"
)

func TestCostTrackerKnownModel(t *testing.T) {
	tracker := NewCostTracker()

	cost := tracker.Record("claude-3-5-sonnet-20241022", &agent.TokenUsage{
		InputTokens:  1_000_000,
		OutputTokens: 1_000_000,
	})
	assert.InDelta(t, 18.0, cost, 0.001)

	input, output, total := tracker.Totals()
	assert.Equal(t, 1_000_000, input)
	assert.Equal(t, 1_000_000, output)
	assert.InDelta(t, 18.0, total, 0.001)
}

func TestCostTrackerUnknownModelIsFree(t *testing.T) {
	tracker := NewCostTracker()
	cost := tracker.Record("mystery-model", &agent.TokenUsage{InputTokens: 1000, OutputTokens: 1000})
	assert.Equal(t, 0.0, cost)

	input, output, _ := tracker.Totals()
	assert.Equal(t, 1000, input)
	assert.Equal(t, 1000, output)
}

func TestCostTrackerCustomPricing(t *testing.T) {
	tracker := NewCostTracker()
	tracker.SetPricing("local-llama", ModelPricing{InputPerMTok: 1.0, OutputPerMTok: 2.0})

	cost := tracker.Record("local-llama", &agent.TokenUsage{InputTokens: 500_000, OutputTokens: 500_000})
	assert.InDelta(t, 1.5, cost, 0.001)
	assert.InDelta(t, 1.5, tracker.CostFor("local-llama"), 0.001)
}

func TestCostTrackerTierOrdering(t *testing.T) {
	tracker := NewCostTracker()

	// gpt-4o-mini must match its own tier, not the gpt-4o one.
	cost := tracker.Record("gpt-4o-mini-2024-07-18", &agent.TokenUsage{InputTokens: 1_000_000})
	assert.InDelta(t, 0.15, cost, 0.001)
}

func TestCostTrackerNilUsage(t *testing.T) {
	tracker := NewCostTracker()
	assert.Equal(t, 0.0, tracker.Record("claude-3-5-sonnet", nil))
}
