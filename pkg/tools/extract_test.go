package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONDirect(t *testing.T) {
	raw, err := ExtractJSON(`{"role": "meteo", "confidence": 0.9}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"role": "meteo", "confidence": 0.9}`, string(raw))
}

func TestExtractJSONFenced(t *testing.T) {
	text := "Here is the routing decision:\n```json\n{\"role\": \"trails\"}\n```\nDone."
	raw, err := ExtractJSON(text)
	require.NoError(t, err)
	assert.JSONEq(t, `{"role": "trails"}`, string(raw))
}

func TestExtractJSONBareFence(t *testing.T) {
	text := "```\n{\"role\": \"geocoder\"}\n```"
	raw, err := ExtractJSON(text)
	require.NoError(t, err)
	assert.JSONEq(t, `{"role": "geocoder"}`, string(raw))
}

func TestExtractJSONEmbeddedInProse(t *testing.T) {
	text := `Based on the query I would route this as {"role": "web", "reason": "needs current info"} which fits best.`
	raw, err := ExtractJSON(text)
	require.NoError(t, err)

	var got struct {
		Role string `json:"role"`
	}
	require.NoError(t, ExtractJSONInto(text, &got))
	assert.Equal(t, "web", got.Role)
	assert.Contains(t, string(raw), `"web"`)
}

func TestExtractJSONHTMLEscaped(t *testing.T) {
	text := `{&quot;role&quot;: &quot;general&quot;}`
	raw, err := ExtractJSON(text)
	require.NoError(t, err)
	assert.JSONEq(t, `{"role": "general"}`, string(raw))
}

func TestExtractJSONBracesInsideStrings(t *testing.T) {
	text := `noise {"note": "curly } inside", "ok": true} trailing`
	var got map[string]interface{}
	require.NoError(t, ExtractJSONInto(text, &got))
	assert.Equal(t, "curly } inside", got["note"])
}

func TestExtractJSONNested(t *testing.T) {
	text := `result: {"outer": {"inner": [1, 2, 3]}}`
	raw, err := ExtractJSON(text)
	require.NoError(t, err)
	assert.JSONEq(t, `{"outer": {"inner": [1, 2, 3]}}`, string(raw))
}

func TestExtractJSONFailures(t *testing.T) {
	for _, text := range []string{"", "   ", "no json here", "{broken", "{\"a\": }"} {
		_, err := ExtractJSON(text)
		assert.Error(t, err, "input %q", text)
	}
}
