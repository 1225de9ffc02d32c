package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"storysync/internal/domain"
)

// Refresher defines the interface for cache refresh operations.
type Refresher interface {
	Refresh(ctx context.Context) (*domain.RefreshStats, error)
}

// Signal delivers connectivity transitions; may be nil when reconnect
// refreshes are disabled.
type Signal interface {
	OnChange(fn func(online bool)) (unsubscribe func())
}

type Scheduler struct {
	refresher Refresher
	signal    Signal
	interval  time.Duration
	logger    *slog.Logger
}

func NewScheduler(refresher Refresher, signal Signal, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		refresher: refresher,
		signal:    signal,
		interval:  interval,
		logger:    logger,
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.interval)

	// A regained connection triggers an immediate refresh so the cache
	// catches up without waiting out the interval.
	wake := make(chan struct{}, 1)
	if s.signal != nil {
		unsubscribe := s.signal.OnChange(func(online bool) {
			if !online {
				return
			}
			select {
			case wake <- struct{}{}:
			default:
			}
		})
		defer unsubscribe()
	}

	s.runRefresh(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runRefresh(ctx)
		case <-wake:
			s.logger.Info("connectivity regained, refreshing")
			s.runRefresh(ctx)
		}
	}
}

func (s *Scheduler) runRefresh(ctx context.Context) {
	refreshCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	if _, err := s.refresher.Refresh(refreshCtx); err != nil {
		if errors.Is(err, domain.ErrOffline) {
			s.logger.Debug("refresh skipped", "reason", "offline")
			return
		}
		s.logger.Error("refresh failed", "error", err)
	}
}
