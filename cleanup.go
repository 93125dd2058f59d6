package advancedauth

import (
	"context"
	"time"
)

// Scheduler is the background sweep that removes expired registration
// sessions and refresh tokens that were never actively deleted. One sweep
// runs immediately at start, then one per tick; a tick never overlaps the
// previous sweep because the next wait only starts after Sweep returns.
type Scheduler struct {
	engine   *Engine
	interval time.Duration
}

// NewScheduler creates a Scheduler for the engine using the configured
// cleanup interval.
func NewScheduler(engine *Engine) *Scheduler {
	return &Scheduler{
		engine:   engine,
		interval: engine.config.Cleanup.Interval,
	}
}

// Run blocks until ctx is cancelled, sweeping once immediately and then on
// every interval tick.
func (s *Scheduler) Run(ctx context.Context) {
	s.engine.logger.Info(ctx, "cleanup scheduler started", "interval", s.interval.String())

	s.Sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.engine.logger.Info(ctx, "cleanup scheduler stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one best-effort pass. Partial failures are logged and counted;
// they never abort the rest of the sweep.
func (s *Scheduler) Sweep(ctx context.Context) {
	now := time.Now()

	sessions, failed, err := s.engine.registrations.SweepExpired(ctx, now)
	if err != nil {
		s.engine.logger.Error(ctx, "registration sweep failed", "deleted", sessions, "error", err)
	} else if failed > 0 {
		s.engine.logger.Warn(ctx, "registration sweep completed with errors", "deleted", sessions, "failed", failed)
	}

	tokens, err := s.engine.refreshTokens.DeleteExpired(ctx, now)
	if err != nil {
		s.engine.logger.Error(ctx, "refresh token sweep failed", "error", err)
	}

	s.engine.logger.Info(ctx, "cleanup sweep finished",
		"expiredSessions", sessions,
		"expiredTokens", tokens,
	)
}
