package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/harun/mate/internal/observability"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	session_key TEXT PRIMARY KEY,
	status      TEXT NOT NULL DEFAULT 'active',
	created_at  TIMESTAMP NOT NULL,
	updated_at  TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS turns (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	session_key TEXT NOT NULL,
	payload     TEXT NOT NULL,
	created_at  TIMESTAMP NOT NULL,
	FOREIGN KEY (session_key) REFERENCES sessions(session_key) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(session_key, id);
`

// SQLiteStore persists conversations in a single SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens or creates a SQLite-backed session store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	observability.EnsureRegistered()

	if dbPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dbPath = filepath.Join(homeDir, ".mate", "sessions.db")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init sqlite schema: %w", err)
	}

	log.Info().Str("path", dbPath).Msg("SQLite session store initialized")

	return &SQLiteStore{db: db, path: dbPath}, nil
}

// Create creates an empty session row. Creating an existing session is a no-op.
func (s *SQLiteStore) Create(ctx context.Context, sessionKey string) error {
	if err := validateSessionKey(sessionKey); err != nil {
		return err
	}

	now := time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (session_key, created_at, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(session_key) DO NOTHING`,
		sessionKey, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// Append adds a turn, creating the session if needed
func (s *SQLiteStore) Append(ctx context.Context, sessionKey string, turn Turn) error {
	if err := validateSessionKey(sessionKey); err != nil {
		return err
	}
	if err := turn.Validate(); err != nil {
		return err
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now()
	}

	start := time.Now()
	defer func() {
		observability.RecordSessionSave(time.Since(start))
	}()

	payload, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("failed to marshal turn: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO sessions (session_key, created_at, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(session_key) DO UPDATE SET updated_at = excluded.updated_at`,
		sessionKey, now, now,
	); err != nil {
		return fmt.Errorf("failed to upsert session: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO turns (session_key, payload, created_at) VALUES (?, ?, ?)`,
		sessionKey, string(payload), now,
	); err != nil {
		return fmt.Errorf("failed to insert turn: %w", err)
	}

	return tx.Commit()
}

// Load returns all turns in insertion order
func (s *SQLiteStore) Load(ctx context.Context, sessionKey string) ([]Turn, error) {
	if err := validateSessionKey(sessionKey); err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() {
		observability.RecordSessionLoad(time.Since(start))
	}()

	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM sessions WHERE session_key = ?`, sessionKey,
	).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to query session: %w", err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionKey)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM turns WHERE session_key = ? ORDER BY id ASC`, sessionKey,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}
	defer rows.Close()

	turns := []Turn{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}

		var turn Turn
		if err := json.Unmarshal([]byte(payload), &turn); err != nil {
			log.Warn().Str("session_key", sessionKey).Err(err).Msg("Failed to parse turn, skipping")
			continue
		}
		turns = append(turns, turn)
	}

	return turns, rows.Err()
}

// Replace rewrites a session's turns in a single transaction
func (s *SQLiteStore) Replace(ctx context.Context, sessionKey string, turns []Turn) error {
	if err := validateSessionKey(sessionKey); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM turns WHERE session_key = ?`, sessionKey); err != nil {
		return fmt.Errorf("failed to clear turns: %w", err)
	}

	now := time.Now()
	for _, turn := range turns {
		payload, err := json.Marshal(turn)
		if err != nil {
			return fmt.Errorf("failed to marshal turn: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO turns (session_key, payload, created_at) VALUES (?, ?, ?)`,
			sessionKey, string(payload), now,
		); err != nil {
			return fmt.Errorf("failed to insert turn: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE sessions SET updated_at = ? WHERE session_key = ?`, now, sessionKey,
	); err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}

	return tx.Commit()
}

// Delete removes a session and its turns
func (s *SQLiteStore) Delete(ctx context.Context, sessionKey string) error {
	if err := validateSessionKey(sessionKey); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM turns WHERE session_key = ?`, sessionKey); err != nil {
		return fmt.Errorf("failed to delete turns: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE session_key = ?`, sessionKey); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	return tx.Commit()
}

// List returns all session keys
func (s *SQLiteStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT session_key FROM sessions ORDER BY session_key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan session key: %w", err)
		}
		keys = append(keys, key)
	}

	return keys, rows.Err()
}

// SetStatus records the session's lifecycle status
func (s *SQLiteStore) SetStatus(ctx context.Context, sessionKey string, status Status) error {
	if err := validateSessionKey(sessionKey); err != nil {
		return err
	}
	if !status.Valid() {
		return fmt.Errorf("invalid session status: %q", status)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET status = ? WHERE session_key = ?`, string(status), sessionKey,
	)
	if err != nil {
		return fmt.Errorf("failed to update session status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionKey)
	}
	return nil
}

// Status returns the session's lifecycle status
func (s *SQLiteStore) Status(ctx context.Context, sessionKey string) (Status, error) {
	if err := validateSessionKey(sessionKey); err != nil {
		return "", err
	}

	var status string
	err := s.db.QueryRowContext(ctx,
		`SELECT status FROM sessions WHERE session_key = ?`, sessionKey,
	).Scan(&status)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("%w: %s", ErrSessionNotFound, sessionKey)
	}
	if err != nil {
		return "", fmt.Errorf("failed to query session status: %w", err)
	}

	parsed := Status(status)
	if !parsed.Valid() {
		return StatusActive, nil
	}
	return parsed, nil
}

// LastActivity returns the session's updated_at timestamp
func (s *SQLiteStore) LastActivity(ctx context.Context, sessionKey string) (time.Time, error) {
	if err := validateSessionKey(sessionKey); err != nil {
		return time.Time{}, err
	}

	var updatedAt time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT updated_at FROM sessions WHERE session_key = ?`, sessionKey,
	).Scan(&updatedAt)
	if err == sql.ErrNoRows {
		return time.Time{}, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionKey)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to query session: %w", err)
	}

	return updatedAt, nil
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
