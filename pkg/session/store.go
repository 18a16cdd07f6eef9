package session

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Store persists conversation turns keyed by session.
type Store interface {
	// Create creates an empty session. Creating an existing session is a no-op.
	Create(ctx context.Context, sessionKey string) error

	// Append adds a turn to a session, creating the session if needed.
	Append(ctx context.Context, sessionKey string, turn Turn) error

	// Load returns all turns for a session in arrival order.
	// Returns ErrSessionNotFound if the session does not exist.
	Load(ctx context.Context, sessionKey string) ([]Turn, error)

	// Replace atomically rewrites a session's turns.
	Replace(ctx context.Context, sessionKey string, turns []Turn) error

	// Delete removes a session. Deleting a missing session is a no-op.
	Delete(ctx context.Context, sessionKey string) error

	// List returns all session keys.
	List(ctx context.Context) ([]string, error)

	// LastActivity returns the time of the most recent write to a session.
	LastActivity(ctx context.Context, sessionKey string) (time.Time, error)

	// SetStatus records a session's lifecycle status.
	SetStatus(ctx context.Context, sessionKey string, status Status) error

	// Status returns a session's lifecycle status.
	// Sessions with no recorded status are active.
	// Returns ErrSessionNotFound if the session does not exist.
	Status(ctx context.Context, sessionKey string) (Status, error)

	// Close releases store resources.
	Close() error
}

// validateSessionKey validates the session key for path safety.
func validateSessionKey(sessionKey string) error {
	if sessionKey == "" {
		return fmt.Errorf("session key cannot be empty")
	}
	if strings.Contains(sessionKey, "..") {
		return fmt.Errorf("session key cannot contain '..'")
	}
	if strings.ContainsAny(sessionKey, "/\\") {
		return fmt.Errorf("session key cannot contain path separators")
	}
	if strings.Contains(sessionKey, "\x00") {
		return fmt.Errorf("session key cannot contain null bytes")
	}
	return nil
}
