package session

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/harun/mate/internal/observability"
	"github.com/harun/mate/internal/tracing"
)

// JSONLStore persists conversations as one JSONL file per session.
type JSONLStore struct {
	sessionsDir string
	writeLocks  map[string]*sync.Mutex
	locksMu     sync.RWMutex
}

// NewJSONLStore creates a JSONL-backed store rooted at sessionsDir.
func NewJSONLStore(sessionsDir string) (*JSONLStore, error) {
	observability.EnsureRegistered()

	if sessionsDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		sessionsDir = filepath.Join(homeDir, ".mate", "sessions")
	}

	if err := os.MkdirAll(sessionsDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create sessions directory: %w", err)
	}

	s := &JSONLStore{
		sessionsDir: sessionsDir,
		writeLocks:  make(map[string]*sync.Mutex),
	}

	log.Info().Str("dir", sessionsDir).Msg("JSONL session store initialized")
	s.updateActiveSessionsMetric()

	return s, nil
}

func (s *JSONLStore) sessionPath(sessionKey string) string {
	return filepath.Join(s.sessionsDir, sessionKey+".jsonl")
}

func (s *JSONLStore) statusPath(sessionKey string) string {
	return filepath.Join(s.sessionsDir, sessionKey+".status")
}

func (s *JSONLStore) updateActiveSessionsMetric() {
	sessions, err := s.List(context.Background())
	if err != nil {
		return
	}
	observability.SetActiveSessions(len(sessions))
}

func (s *JSONLStore) getWriteLock(sessionKey string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	if lock, exists := s.writeLocks[sessionKey]; exists {
		return lock
	}

	lock := &sync.Mutex{}
	s.writeLocks[sessionKey] = lock
	return lock
}

func (s *JSONLStore) releaseWriteLock(sessionKey string) {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	delete(s.writeLocks, sessionKey)
}

// Create creates a new session file
func (s *JSONLStore) Create(ctx context.Context, sessionKey string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = tracing.WithSessionKey(ctx, sessionKey)
	ctx, span := tracing.StartSpan(
		ctx,
		"mate.session",
		"session.create",
		attribute.String("session_key", sessionKey),
	)
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, log.Logger)

	if err := validateSessionKey(sessionKey); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	sessionPath := s.sessionPath(sessionKey)

	if _, err := os.Stat(sessionPath); err == nil {
		logger.Debug().Msg("Session already exists")
		return nil
	}

	file, err := os.OpenFile(sessionPath, os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to create session file: %w", err)
	}
	file.Close()

	s.updateActiveSessionsMetric()
	logger.Info().Msg("Session created")

	return nil
}

// Append appends a turn to a session
func (s *JSONLStore) Append(ctx context.Context, sessionKey string, turn Turn) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = tracing.WithSessionKey(ctx, sessionKey)
	ctx, span := tracing.StartSpan(
		ctx,
		"mate.session",
		"session.append",
		attribute.String("session_key", sessionKey),
		attribute.String("role", turn.Role),
	)
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, log.Logger)
	start := time.Now()
	defer func() {
		observability.RecordSessionSave(time.Since(start))
	}()

	if err := validateSessionKey(sessionKey); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if err := turn.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now()
	}

	lock := s.getWriteLock(sessionKey)
	lock.Lock()
	defer lock.Unlock()

	sessionPath := s.sessionPath(sessionKey)

	if _, err := os.Stat(sessionPath); os.IsNotExist(err) {
		if err := s.Create(ctx, sessionKey); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
	}

	file, err := os.OpenFile(sessionPath, os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to open session file: %w", err)
	}
	defer file.Close()

	entry := Entry{
		SessionKey: sessionKey,
		Turn:       turn,
	}

	data, err := json.Marshal(entry)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to marshal turn: %w", err)
	}

	if _, err := file.Write(append(data, '\n')); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to write turn: %w", err)
	}

	if err := file.Sync(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to sync file: %w", err)
	}

	logger.Debug().Str("role", turn.Role).Msg("Turn appended")

	return nil
}

// Load loads all turns from a session in arrival order
func (s *JSONLStore) Load(ctx context.Context, sessionKey string) ([]Turn, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = tracing.WithSessionKey(ctx, sessionKey)
	ctx, span := tracing.StartSpan(
		ctx,
		"mate.session",
		"session.load",
		attribute.String("session_key", sessionKey),
	)
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, log.Logger)
	start := time.Now()
	defer func() {
		observability.RecordSessionLoad(time.Since(start))
	}()

	if err := validateSessionKey(sessionKey); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	sessionPath := s.sessionPath(sessionKey)

	if _, err := os.Stat(sessionPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionKey)
	}

	file, err := os.Open(sessionPath)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to open session file: %w", err)
	}
	defer file.Close()

	turns := []Turn{}
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := scanner.Text()

		if line == "" {
			continue
		}

		var entry Entry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			logger.Warn().
				Int("line", lineNum).
				Err(err).
				Msg("Failed to parse line, skipping")
			continue
		}

		if entry.Turn.Validate() != nil {
			logger.Warn().
				Int("line", lineNum).
				Msg("Invalid entry, skipping")
			continue
		}

		turns = append(turns, entry.Turn)
	}

	if err := scanner.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	logger.Debug().Int("turns", len(turns)).Msg("Session loaded")

	return turns, nil
}

// Replace atomically rewrites a session's turns via temp file and rename
func (s *JSONLStore) Replace(ctx context.Context, sessionKey string, turns []Turn) error {
	if err := validateSessionKey(sessionKey); err != nil {
		return err
	}

	lock := s.getWriteLock(sessionKey)
	lock.Lock()
	defer lock.Unlock()

	sessionPath := s.sessionPath(sessionKey)
	tempPath := sessionPath + ".tmp"

	file, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	for _, turn := range turns {
		data, err := json.Marshal(Entry{SessionKey: sessionKey, Turn: turn})
		if err != nil {
			file.Close()
			os.Remove(tempPath)
			return fmt.Errorf("failed to marshal turn: %w", err)
		}

		if _, err := file.Write(append(data, '\n')); err != nil {
			file.Close()
			os.Remove(tempPath)
			return fmt.Errorf("failed to write turn: %w", err)
		}
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync file: %w", err)
	}

	file.Close()

	if err := os.Rename(tempPath, sessionPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace session file: %w", err)
	}

	log.Debug().
		Str("session_key", sessionKey).
		Int("turns", len(turns)).
		Msg("Session rewritten")

	return nil
}

// Delete deletes a session file
func (s *JSONLStore) Delete(ctx context.Context, sessionKey string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = tracing.WithSessionKey(ctx, sessionKey)
	ctx, span := tracing.StartSpan(
		ctx,
		"mate.session",
		"session.delete",
		attribute.String("session_key", sessionKey),
	)
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, log.Logger)

	if err := validateSessionKey(sessionKey); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	// Wait for any in-progress writes
	lock := s.getWriteLock(sessionKey)
	lock.Lock()
	defer lock.Unlock()

	sessionPath := s.sessionPath(sessionKey)

	if err := os.Remove(sessionPath); err != nil && !os.IsNotExist(err) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to delete session file: %w", err)
	}

	if err := os.Remove(s.statusPath(sessionKey)); err != nil && !os.IsNotExist(err) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to delete session status file: %w", err)
	}

	s.releaseWriteLock(sessionKey)
	s.updateActiveSessionsMetric()

	logger.Info().Msg("Session deleted")

	return nil
}

// List lists all available sessions
func (s *JSONLStore) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.sessionsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read sessions directory: %w", err)
	}

	var sessions []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if !strings.HasSuffix(name, ".jsonl") {
			continue
		}

		sessions = append(sessions, strings.TrimSuffix(name, ".jsonl"))
	}

	return sessions, nil
}

// LastActivity returns the session file's last modification time
func (s *JSONLStore) LastActivity(ctx context.Context, sessionKey string) (time.Time, error) {
	if err := validateSessionKey(sessionKey); err != nil {
		return time.Time{}, err
	}

	info, err := os.Stat(s.sessionPath(sessionKey))
	if err != nil {
		if os.IsNotExist(err) {
			return time.Time{}, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionKey)
		}
		return time.Time{}, fmt.Errorf("failed to stat session file: %w", err)
	}

	return info.ModTime(), nil
}

// SetStatus records the session's lifecycle status in a sidecar file
func (s *JSONLStore) SetStatus(ctx context.Context, sessionKey string, status Status) error {
	if err := validateSessionKey(sessionKey); err != nil {
		return err
	}
	if !status.Valid() {
		return fmt.Errorf("invalid session status: %q", status)
	}

	lock := s.getWriteLock(sessionKey)
	lock.Lock()
	defer lock.Unlock()

	if _, err := os.Stat(s.sessionPath(sessionKey)); os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionKey)
	}

	if err := os.WriteFile(s.statusPath(sessionKey), []byte(status), 0600); err != nil {
		return fmt.Errorf("failed to write session status: %w", err)
	}

	log.Debug().
		Str("session_key", sessionKey).
		Str("status", string(status)).
		Msg("Session status updated")

	return nil
}

// Status reads the session's lifecycle status. Sessions without a
// sidecar file are active.
func (s *JSONLStore) Status(ctx context.Context, sessionKey string) (Status, error) {
	if err := validateSessionKey(sessionKey); err != nil {
		return "", err
	}

	if _, err := os.Stat(s.sessionPath(sessionKey)); os.IsNotExist(err) {
		return "", fmt.Errorf("%w: %s", ErrSessionNotFound, sessionKey)
	}

	data, err := os.ReadFile(s.statusPath(sessionKey))
	if err != nil {
		if os.IsNotExist(err) {
			return StatusActive, nil
		}
		return "", fmt.Errorf("failed to read session status: %w", err)
	}

	status := Status(strings.TrimSpace(string(data)))
	if !status.Valid() {
		return StatusActive, nil
	}

	return status, nil
}

// Repair rewrites a session file keeping only parseable entries
func (s *JSONLStore) Repair(ctx context.Context, sessionKey string) error {
	turns, err := s.Load(ctx, sessionKey)
	if err != nil {
		return err
	}

	if err := s.Replace(ctx, sessionKey, turns); err != nil {
		return err
	}

	log.Info().
		Str("session_key", sessionKey).
		Int("turns", len(turns)).
		Msg("Session repaired")

	return nil
}

// Close clears all write locks
func (s *JSONLStore) Close() error {
	s.locksMu.Lock()
	s.writeLocks = make(map[string]*sync.Mutex)
	s.locksMu.Unlock()
	return nil
}
