package session

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
)

// DefaultMaxTurns bounds session history length before trimming.
const DefaultMaxTurns = 100

// Manager wraps a Store with history trimming.
type Manager struct {
	store    Store
	maxTurns int
}

// NewManager creates a session manager over the given store.
func NewManager(store Store, maxTurns int) *Manager {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	return &Manager{store: store, maxTurns: maxTurns}
}

// Create creates a new empty session.
func (m *Manager) Create(ctx context.Context, sessionKey string) error {
	return m.store.Create(ctx, sessionKey)
}

// Get returns a session's turns in arrival order.
// Returns ErrSessionNotFound for unknown keys.
func (m *Manager) Get(ctx context.Context, sessionKey string) ([]Turn, error) {
	return m.store.Load(ctx, sessionKey)
}

// GetOrCreate returns a session's turns, creating the session if it is missing.
func (m *Manager) GetOrCreate(ctx context.Context, sessionKey string) ([]Turn, error) {
	turns, err := m.store.Load(ctx, sessionKey)
	if errors.Is(err, ErrSessionNotFound) {
		if err := m.store.Create(ctx, sessionKey); err != nil {
			return nil, err
		}
		return []Turn{}, nil
	}
	return turns, err
}

// Append adds a turn and trims the session when it exceeds the turn budget.
func (m *Manager) Append(ctx context.Context, sessionKey string, turn Turn) error {
	if err := m.store.Append(ctx, sessionKey, turn); err != nil {
		return err
	}
	return m.Trim(ctx, sessionKey)
}

// Trim enforces the turn budget, never splitting a tool call from its result.
func (m *Manager) Trim(ctx context.Context, sessionKey string) error {
	turns, err := m.store.Load(ctx, sessionKey)
	if err != nil {
		return err
	}

	if len(turns) <= m.maxTurns {
		return nil
	}

	trimmed := TrimTurns(turns, m.maxTurns)
	if err := m.store.Replace(ctx, sessionKey, trimmed); err != nil {
		return err
	}

	log.Debug().
		Str("session_key", sessionKey).
		Int("from_turns", len(turns)).
		Int("to_turns", len(trimmed)).
		Msg("Session trimmed")

	return nil
}

// SetStatus records a session's lifecycle status.
func (m *Manager) SetStatus(ctx context.Context, sessionKey string, status Status) error {
	return m.store.SetStatus(ctx, sessionKey, status)
}

// Status returns a session's lifecycle status.
func (m *Manager) Status(ctx context.Context, sessionKey string) (Status, error) {
	return m.store.Status(ctx, sessionKey)
}

// Delete removes a session.
func (m *Manager) Delete(ctx context.Context, sessionKey string) error {
	return m.store.Delete(ctx, sessionKey)
}

// List returns all session keys.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// MaxTurns returns the trim budget.
func (m *Manager) MaxTurns() int {
	return m.maxTurns
}

// Store exposes the underlying store, used by the expiry sweeper.
func (m *Manager) Store() Store {
	return m.store
}

// Close releases the underlying store.
func (m *Manager) Close() error {
	return m.store.Close()
}
