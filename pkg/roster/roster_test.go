package roster

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/mate/internal/config"
)

func baseRoles() []config.RoleConfig {
	return []config.RoleConfig{
		{ID: "meteo", Name: "Weather", Model: "claude-3-5-haiku", Temperature: 0.1, MaxTokens: 4096, Keywords: []string{"weather"}},
		{ID: "general", Name: "General", Model: "claude-3-5-sonnet", Temperature: 0.1, MaxTokens: 4096},
	}
}

func TestRosterWithoutOverrideFile(t *testing.T) {
	r, err := New(baseRoles(), "", zerolog.Nop())
	require.NoError(t, err)

	roles := r.Roles()
	require.Len(t, roles, 2)
	assert.Equal(t, "meteo", roles[0].ID)

	role, ok := r.Role("general")
	require.True(t, ok)
	assert.Equal(t, "claude-3-5-sonnet", role.Model)

	_, ok = r.Role("nonexistent")
	assert.False(t, ok)
}

func TestRosterMissingFileUsesBase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roster.json")
	r, err := New(baseRoles(), path, zerolog.Nop())
	require.NoError(t, err)
	assert.Len(t, r.Roles(), 2)
}

func TestRosterAppliesOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roster.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"roles": [
			{"id": "meteo", "model": "gpt-4o", "temperature": 0.5, "keywords": ["weather", "storm"]},
			{"id": "unknown-role", "model": "ignored"}
		]
	}`), 0o644))

	r, err := New(baseRoles(), path, zerolog.Nop())
	require.NoError(t, err)

	// Overrides cannot add roles outside the closed set.
	require.Len(t, r.Roles(), 2)

	meteo, ok := r.Role("meteo")
	require.True(t, ok)
	assert.Equal(t, "gpt-4o", meteo.Model)
	assert.Equal(t, 0.5, meteo.Temperature)
	assert.Equal(t, []string{"weather", "storm"}, meteo.Keywords)
	// Untouched fields keep base values.
	assert.Equal(t, 4096, meteo.MaxTokens)
	assert.Equal(t, "Weather", meteo.Name)

	general, ok := r.Role("general")
	require.True(t, ok)
	assert.Equal(t, "claude-3-5-sonnet", general.Model)
}

func TestRosterInvalidJSONIsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roster.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o644))

	_, err := New(baseRoles(), path, zerolog.Nop())
	assert.Error(t, err)
}

func TestRosterHotReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "roster.json")

	r, err := New(baseRoles(), path, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, r.Watch())
	t.Cleanup(func() { _ = r.Stop() })

	reloaded := make(chan struct{}, 4)
	r.OnReload(func(roles []config.RoleConfig) {
		reloaded <- struct{}{}
	})

	require.NoError(t, os.WriteFile(path, []byte(`{"roles": [{"id": "meteo", "model": "gpt-4o-mini"}]}`), 0o644))

	require.Eventually(t, func() bool {
		role, ok := r.Role("meteo")
		return ok && role.Model == "gpt-4o-mini"
	}, 3*time.Second, 20*time.Millisecond)

	select {
	case <-reloaded:
	case <-time.After(time.Second):
		t.Fatal("reload callback was not invoked")
	}
}

func TestRosterReloadFailureKeepsPrevious(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "roster.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"roles": [{"id": "meteo", "model": "gpt-4o"}]}`), 0o644))

	r, err := New(baseRoles(), path, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, r.Watch())
	t.Cleanup(func() { _ = r.Stop() })

	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o644))

	// The previous merged view survives a bad write.
	time.Sleep(300 * time.Millisecond)
	role, ok := r.Role("meteo")
	require.True(t, ok)
	assert.Equal(t, "gpt-4o", role.Model)
}

func TestRosterWatchRequiresPath(t *testing.T) {
	r, err := New(baseRoles(), "", zerolog.Nop())
	require.NoError(t, err)
	assert.Error(t, r.Watch())
}

func TestRosterStopIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roster.json")
	r, err := New(baseRoles(), path, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, r.Watch())

	assert.NoError(t, r.Stop())
	assert.NoError(t, r.Stop())
}
