package session

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultTTL expires sessions idle for an hour.
	DefaultTTL = time.Hour
	// DefaultSweepSchedule runs the expiry sweep every ten minutes.
	DefaultSweepSchedule = "@every 10m"
)

// Sweeper deletes sessions whose last activity is older than the TTL.
// Sweeps run on a cron schedule.
type Sweeper struct {
	manager  *Manager
	ttl      time.Duration
	schedule string
	cron     *cron.Cron
	entryID  cron.EntryID
	running  bool
}

// NewSweeper creates a session expiry sweeper.
func NewSweeper(manager *Manager, ttl time.Duration, schedule string) *Sweeper {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}

	return &Sweeper{
		manager:  manager,
		ttl:      ttl,
		schedule: schedule,
	}
}

// Start schedules the sweep job.
func (s *Sweeper) Start() error {
	if s.running {
		return fmt.Errorf("sweeper is already running")
	}

	s.cron = cron.New()
	entryID, err := s.cron.AddFunc(s.schedule, func() {
		if _, err := s.SweepNow(context.Background()); err != nil {
			log.Error().Err(err).Msg("Session sweep failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.schedule, err)
	}

	s.entryID = entryID
	s.cron.Start()
	s.running = true

	log.Info().
		Dur("ttl", s.ttl).
		Str("schedule", s.schedule).
		Msg("Session sweeper started")

	return nil
}

// Stop stops the sweep job.
func (s *Sweeper) Stop() error {
	if !s.running {
		return fmt.Errorf("sweeper is not running")
	}

	ctx := s.cron.Stop()
	<-ctx.Done()
	s.running = false

	log.Info().Msg("Session sweeper stopped")

	return nil
}

// SweepNow deletes expired sessions immediately and returns the count deleted.
func (s *Sweeper) SweepNow(ctx context.Context) (int, error) {
	keys, err := s.manager.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list sessions: %w", err)
	}

	now := time.Now()
	deleted := 0

	for _, key := range keys {
		lastActivity, err := s.manager.Store().LastActivity(ctx, key)
		if err != nil {
			log.Warn().Str("session_key", key).Err(err).Msg("Failed to read session activity")
			continue
		}

		age := now.Sub(lastActivity)
		if age < s.ttl {
			continue
		}

		// Mark expired before eviction so concurrent readers see the
		// terminal status rather than a vanished session.
		if err := s.manager.SetStatus(ctx, key, StatusExpired); err != nil {
			log.Warn().Str("session_key", key).Err(err).Msg("Failed to mark session expired")
		}

		if err := s.manager.Delete(ctx, key); err != nil {
			log.Error().Str("session_key", key).Err(err).Msg("Failed to delete expired session")
			continue
		}
		deleted++

		log.Debug().
			Str("session_key", key).
			Dur("age", age).
			Msg("Expired session deleted")
	}

	if deleted > 0 {
		log.Info().Int("deleted", deleted).Msg("Expired sessions swept")
	}

	return deleted, nil
}

// IsRunning reports whether the sweeper is scheduled.
func (s *Sweeper) IsRunning() bool {
	return s.running
}

// TTL returns the session idle timeout.
func (s *Sweeper) TTL() time.Duration {
	return s.ttl
}
