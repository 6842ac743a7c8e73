// Package sweeper periodically deletes expired one-time codes and sessions.
// Expiry is always enforced at read time; sweeping only reclaims storage.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ExpiredDeleter removes rows that expired at or before now and reports how many it removed.
// The code repository and the Postgres session repository implement it.
type ExpiredDeleter interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Target is a named table to sweep.
type Target struct {
	Name    string
	Deleter ExpiredDeleter
}

// Sweeper runs DeleteExpired on every target at a fixed interval.
type Sweeper struct {
	interval time.Duration
	targets  []Target
	logger   *slog.Logger
	now      func() time.Time
}

// New returns a Sweeper. interval must be positive.
func New(interval time.Duration, logger *slog.Logger, targets ...Target) (*Sweeper, error) {
	if interval <= 0 {
		return nil, errors.New("sweeper: interval must be positive")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{interval: interval, targets: targets, logger: logger, now: time.Now}, nil
}

// RunOnce sweeps every target once. All targets are attempted; errors are joined.
func (s *Sweeper) RunOnce(ctx context.Context) error {
	now := s.now().UTC()
	var errs []error
	for _, t := range s.targets {
		n, err := t.Deleter.DeleteExpired(ctx, now)
		if err != nil {
			errs = append(errs, fmt.Errorf("sweep %s: %w", t.Name, err))
			continue
		}
		if n > 0 {
			s.logger.Info("swept expired rows", "target", t.Name, "deleted", n)
		}
	}
	return errors.Join(errs...)
}

// Run sweeps immediately and then every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		if err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("sweep failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
