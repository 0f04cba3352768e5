package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"movie_sync/internal/domain"
)

// Syncer runs one sync pass.
type Syncer interface {
	Sync(ctx context.Context) (*domain.SyncStats, error)
}

// Scheduler repeats sync passes one after another. Passes never overlap: the
// next tick is only observed after the current pass returns.
type Scheduler struct {
	syncer   Syncer
	interval time.Duration
	timeout  time.Duration
	onPass   func(stats *domain.SyncStats, err error)
	logger   *slog.Logger
}

// NewScheduler returns a scheduler running a pass every interval. A positive
// timeout bounds each pass; onPass, when set, sees every pass result.
func NewScheduler(syncer Syncer, interval, timeout time.Duration, onPass func(*domain.SyncStats, error), logger *slog.Logger) *Scheduler {
	return &Scheduler{
		syncer:   syncer,
		interval: interval,
		timeout:  timeout,
		onPass:   onPass,
		logger:   logger.With("component", "scheduler"),
	}
}

// Start runs a pass immediately and then on every tick until ctx is done.
// A configuration error stops the loop since no later pass can succeed.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.interval)

	if err := s.runSync(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			if ctx.Err() != nil {
				s.logger.Info("scheduler stopped")
				return ctx.Err()
			}
			if err := s.runSync(ctx); err != nil {
				return err
			}
		}
	}
}

func (s *Scheduler) runSync(ctx context.Context) error {
	syncCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		syncCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	stats, err := s.syncer.Sync(syncCtx)
	if s.onPass != nil {
		s.onPass(stats, err)
	}
	if err == nil {
		return nil
	}

	var cfgErr *domain.ConfigurationError
	if errors.As(err, &cfgErr) {
		return err
	}
	s.logger.Error("sync failed", "error", err)
	return nil
}
