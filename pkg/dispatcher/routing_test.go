package dispatcher

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/mate/internal/config"
)

func testRoles() []config.RoleConfig {
	return []config.RoleConfig{
		{ID: "meteo", Name: "Weather", Keywords: []string{"weather", "forecast", "rain"}},
		{ID: "trails", Name: "Trails", Keywords: []string{"trail", "hike"}},
		{ID: "general", Name: "General"},
	}
}

func TestKeywordPolicyMatches(t *testing.T) {
	policy := NewKeywordPolicy(testRoles())

	decision, err := policy.Route(context.Background(), "Will it rain tomorrow? What is the forecast?", nil)
	require.NoError(t, err)
	assert.Equal(t, "meteo", decision.Role)
	assert.Greater(t, decision.Confidence, float64(0))
	assert.False(t, decision.Fallback)
}

func TestKeywordPolicyWordBoundaries(t *testing.T) {
	policy := NewKeywordPolicy(testRoles())

	// "trailing" must not match the keyword "trail".
	_, err := policy.Route(context.Background(), "remove trailing whitespace", nil)
	assert.ErrorIs(t, err, ErrRoutingAmbiguous)

	decision, err := policy.Route(context.Background(), "find a trail near me", nil)
	require.NoError(t, err)
	assert.Equal(t, "trails", decision.Role)
}

func TestKeywordPolicyNoMatchIsAmbiguous(t *testing.T) {
	policy := NewKeywordPolicy(testRoles())

	_, err := policy.Route(context.Background(), "tell me a story", nil)
	assert.ErrorIs(t, err, ErrRoutingAmbiguous)
}

func TestKeywordPolicyTieIsAmbiguous(t *testing.T) {
	policy := NewKeywordPolicy(testRoles())

	_, err := policy.Route(context.Background(), "weather on the trail", nil)
	assert.ErrorIs(t, err, ErrRoutingAmbiguous)
}

func TestKeywordPolicyHigherScoreBreaksTie(t *testing.T) {
	policy := NewKeywordPolicy(testRoles())

	decision, err := policy.Route(context.Background(), "weather forecast for the trail", nil)
	require.NoError(t, err)
	assert.Equal(t, "meteo", decision.Role)
}

func TestKeywordPolicyCaseInsensitive(t *testing.T) {
	policy := NewKeywordPolicy(testRoles())

	decision, err := policy.Route(context.Background(), "WEATHER update please", nil)
	require.NoError(t, err)
	assert.Equal(t, "meteo", decision.Role)
}

func TestStateTransitions(t *testing.T) {
	assert.True(t, StateAwaitingInput.CanTransition(StateRouting))
	assert.True(t, StateRouting.CanTransition(StateAgentTurn))
	assert.True(t, StateAgentTurn.CanTransition(StateToolDispatch))
	assert.True(t, StateToolDispatch.CanTransition(StateAgentTurn))
	assert.True(t, StateAgentTurn.CanTransition(StateStreamingResponse))
	assert.True(t, StateToolDispatch.CanTransition(StateStreamingResponse), "round-budget exhaustion closes from tool dispatch")
	assert.True(t, StateStreamingResponse.CanTransition(StateDone))

	assert.False(t, StateAwaitingInput.CanTransition(StateAgentTurn))
	assert.False(t, StateToolDispatch.CanTransition(StateDone))
	assert.False(t, StateDone.CanTransition(StateRouting))

	assert.True(t, StateDone.Terminal())
	assert.True(t, StateError.Terminal())
	assert.True(t, StateAborted.Terminal())
	assert.False(t, StateAgentTurn.Terminal())
}
