package dispatcher

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildContextPromptWithoutContext(t *testing.T) {
	out := buildContextPrompt("hello", nil, time.Now())
	assert.Equal(t, "hello", out)
}

func TestBuildContextPromptIncludesLocationAndTimestamp(t *testing.T) {
	now := time.Date(2025, 6, 14, 9, 30, 0, 0, time.UTC)
	uc := &UserContext{Latitude: 45.9237, Longitude: 6.8694, UserID: "u-1", Name: "Ada"}

	out := buildContextPrompt("weather near me?", uc, now)

	require.True(t, strings.HasPrefix(out, "Context:\n"))
	require.True(t, strings.HasSuffix(out, "\n\nUser Query:\nweather near me?"))

	jsonPart := strings.TrimSuffix(strings.TrimPrefix(out, "Context:\n"), "\n\nUser Query:\nweather near me?")
	var block map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(jsonPart), &block))

	loc := block["user_location"].(map[string]interface{})
	assert.InDelta(t, 45.9237, loc["latitude"], 1e-9)
	assert.InDelta(t, 6.8694, loc["longitude"], 1e-9)

	info := block["user_info"].(map[string]interface{})
	assert.Equal(t, "u-1", info["user_id"])
	assert.Equal(t, "Ada", info["name"])

	dt := block["date_time"].(map[string]interface{})
	assert.Equal(t, "2025-06-14T09:30:00", dt["iso"])
	assert.Equal(t, "Saturday", dt["day_of_week"])
}

func TestBuildContextPromptOmitsEmptyUserInfo(t *testing.T) {
	out := buildContextPrompt("q", &UserContext{Latitude: 1, Longitude: 2}, time.Now())
	assert.NotContains(t, out, "user_info")
	assert.Contains(t, out, "user_location")
}
