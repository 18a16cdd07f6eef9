// Package roster manages the live set of specialist roles. A base roster
// comes from configuration; an optional override file can adjust prompts,
// models and keywords at runtime and is hot-reloaded on change.
package roster

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/harun/mate/internal/config"
)

// RoleOverride adjusts fields of one base role. Nil pointers and empty
// slices leave the base value untouched.
type RoleOverride struct {
	ID           string   `json:"id"`
	Model        *string  `json:"model,omitempty"`
	Temperature  *float64 `json:"temperature,omitempty"`
	MaxTokens    *int     `json:"max_tokens,omitempty"`
	SystemPrompt *string  `json:"system_prompt,omitempty"`
	Tools        []string `json:"tools,omitempty"`
	Keywords     []string `json:"keywords,omitempty"`
}

// overrideFile is the on-disk override format.
type overrideFile struct {
	Roles []RoleOverride `json:"roles"`
}

// Roster holds the merged view of base roles and file overrides.
type Roster struct {
	base   []config.RoleConfig
	path   string
	logger zerolog.Logger

	mu     sync.RWMutex
	merged []config.RoleConfig

	watcher  *fsnotify.Watcher
	done     chan struct{}
	stopOnce sync.Once

	debounceMu    sync.Mutex
	debounceTimer *time.Timer

	onReload func([]config.RoleConfig)
}

// New creates a roster from base roles. path may be empty, in which case
// the roster is static. A present but unreadable override file is an error;
// a missing one is not.
func New(base []config.RoleConfig, path string, logger zerolog.Logger) (*Roster, error) {
	r := &Roster{
		base:   base,
		path:   path,
		logger: logger,
		done:   make(chan struct{}),
	}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// OnReload registers a callback invoked with the merged roles after every
// successful reload. Must be called before Watch.
func (r *Roster) OnReload(fn func([]config.RoleConfig)) {
	r.onReload = fn
}

// Roles returns a snapshot of the merged roles.
func (r *Roster) Roles() []config.RoleConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]config.RoleConfig, len(r.merged))
	copy(out, r.merged)
	return out
}

// Role looks up one merged role by ID.
func (r *Roster) Role(id string) (config.RoleConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, role := range r.merged {
		if role.ID == id {
			return role, true
		}
	}
	return config.RoleConfig{}, false
}

// Reload re-reads the override file and rebuilds the merged roster. A
// missing file resets to the base roster.
func (r *Roster) Reload() error {
	overrides, err := r.loadOverrides()
	if err != nil {
		return err
	}

	merged := mergeRoles(r.base, overrides)

	r.mu.Lock()
	r.merged = merged
	r.mu.Unlock()

	if r.onReload != nil {
		r.onReload(merged)
	}
	return nil
}

func (r *Roster) loadOverrides() ([]RoleOverride, error) {
	if r.path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read roster overrides: %w", err)
	}

	var file overrideFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse roster overrides: %w", err)
	}
	return file.Roles, nil
}

func mergeRoles(base []config.RoleConfig, overrides []RoleOverride) []config.RoleConfig {
	merged := make([]config.RoleConfig, len(base))
	copy(merged, base)

	for _, ov := range overrides {
		idx := -1
		for i, role := range merged {
			if role.ID == ov.ID {
				idx = i
				break
			}
		}
		if idx < 0 {
			// The role set is closed: overrides cannot introduce new roles.
			continue
		}

		role := merged[idx]
		if ov.Model != nil {
			role.Model = *ov.Model
		}
		if ov.Temperature != nil {
			role.Temperature = *ov.Temperature
		}
		if ov.MaxTokens != nil {
			role.MaxTokens = *ov.MaxTokens
		}
		if ov.SystemPrompt != nil {
			role.SystemPrompt = *ov.SystemPrompt
		}
		if len(ov.Tools) > 0 {
			role.Tools = ov.Tools
		}
		if len(ov.Keywords) > 0 {
			role.Keywords = ov.Keywords
		}
		merged[idx] = role
	}

	return merged
}

// Watch starts hot reloading of the override file. The parent directory is
// watched so atomic replace-by-rename edits are seen.
func (r *Roster) Watch() error {
	if r.path == "" {
		return fmt.Errorf("no roster path configured")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	r.watcher = watcher

	dir := filepath.Dir(r.path)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	go r.eventLoop()

	r.logger.Info().Str("path", r.path).Msg("Roster watcher started")
	return nil
}

// Stop stops the watcher.
func (r *Roster) Stop() error {
	r.stopOnce.Do(func() {
		close(r.done)
	})

	r.debounceMu.Lock()
	if r.debounceTimer != nil {
		r.debounceTimer.Stop()
	}
	r.debounceMu.Unlock()

	if r.watcher != nil {
		return r.watcher.Close()
	}
	return nil
}

func (r *Roster) eventLoop() {
	for {
		select {
		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(r.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			r.debounceReload()

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			r.logger.Error().Err(err).Msg("Roster watcher error")

		case <-r.done:
			return
		}
	}
}

// debounceReload coalesces rapid successive writes into one reload.
func (r *Roster) debounceReload() {
	r.debounceMu.Lock()
	defer r.debounceMu.Unlock()

	if r.debounceTimer != nil {
		r.debounceTimer.Stop()
	}
	r.debounceTimer = time.AfterFunc(100*time.Millisecond, func() {
		select {
		case <-r.done:
			return
		default:
		}
		if err := r.Reload(); err != nil {
			r.logger.Warn().Err(err).Msg("Roster reload failed, keeping previous roles")
			return
		}
		r.logger.Info().Str("path", r.path).Msg("Roster overrides reloaded")
	})
}
