package cli

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandHasSubcommands(t *testing.T) {
	root := GetRootCmd()

	names := make(map[string]bool)
	for _, cmd := range root.Commands() {
		names[cmd.Name()] = true
	}
	assert.True(t, names["serve"])
	assert.True(t, names["version"])
}

func TestVersionCommand(t *testing.T) {
	root := GetRootCmd()

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), GetVersion())
}

func TestServeRejectsBadConfig(t *testing.T) {
	root := GetRootCmd()

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	// A missing config file yields defaults, which carry no AI profiles,
	// so validation fails before any server starts.
	root.SetArgs([]string{"serve", "--config", filepath.Join(t.TempDir(), "missing.json")})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}
