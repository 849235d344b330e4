// Package jobs holds background loops that keep the request lifecycle moving
// when no HTTP traffic does: stale requests are expired and waiting
// consultations are offered to counselors again.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Expirer expires stale consultation requests.
type Expirer interface {
	ExpireStale(ctx context.Context) (int, error)
}

// Rematcher retries matching for waiting consultations.
type Rematcher interface {
	MatchWaiting(ctx context.Context, limit int) (int, error)
}

// Sweeper periodically expires requests and re-runs matching.
type Sweeper struct {
	Requests Expirer
	Matcher  Rematcher
	Interval time.Duration
	Batch    int
	Log      zerolog.Logger
}

// Result reports one sweep.
type Result struct {
	Expired  int
	Proposed int
}

// RunOnce performs a single sweep. A panic in either step is converted to an
// error so the loop survives it.
func (s *Sweeper) RunOnce(ctx context.Context) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sweep panic: %v", r)
		}
	}()

	if s.Requests != nil {
		if res.Expired, err = s.Requests.ExpireStale(ctx); err != nil {
			return res, fmt.Errorf("expire stale: %w", err)
		}
	}
	if s.Matcher != nil {
		batch := s.Batch
		if batch <= 0 {
			batch = 100
		}
		if res.Proposed, err = s.Matcher.MatchWaiting(ctx, batch); err != nil {
			return res, fmt.Errorf("match waiting: %w", err)
		}
	}
	return res, nil
}

// Run sweeps every Interval until ctx is cancelled. It always returns
// ctx.Err().
func (s *Sweeper) Run(ctx context.Context) error {
	interval := s.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	log := s.Log.With().Str("component", "sweeper").Logger()
	log.Info().Dur("interval", interval).Msg("sweeper started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("sweeper stopped")
			return ctx.Err()
		case <-ticker.C:
			res, err := s.RunOnce(ctx)
			if err != nil {
				log.Warn().Err(err).Msg("sweep failed")
				continue
			}
			if res.Expired > 0 || res.Proposed > 0 {
				log.Info().Int("expired", res.Expired).Int("proposed", res.Proposed).Msg("sweep done")
			}
		}
	}
}
