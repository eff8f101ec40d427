// Package cycle runs the recurring fee pipelines: claim creator fees, buy
// the token back with a fixed fraction of the proceeds, and burn what was
// bought. One runner exists per venue.
package cycle

import (
	"context"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Ticker is one pass of a fee pipeline over every eligible token.
type Ticker interface {
	Name() string
	RunOnce(ctx context.Context) error
}

// Scheduler drives a Ticker on a randomized interval. Overlapping runs are
// suppressed: a tick that arrives while the previous pass is still working
// is skipped.
type Scheduler struct {
	ticker      Ticker
	startDelay  time.Duration
	minInterval time.Duration
	maxInterval time.Duration
	running     atomic.Bool
	log         zerolog.Logger
}

// NewScheduler wraps a ticker with a randomized-interval loop.
func NewScheduler(t Ticker, startDelay, minInterval, maxInterval time.Duration, log zerolog.Logger) *Scheduler {
	if maxInterval < minInterval {
		maxInterval = minInterval
	}
	return &Scheduler{
		ticker:      t,
		startDelay:  startDelay,
		minInterval: minInterval,
		maxInterval: maxInterval,
		log:         log.With().Str("cycle", t.Name()).Logger(),
	}
}

// nextInterval picks a uniform duration in [minInterval, maxInterval].
// Randomizing the period keeps the claim timing unpredictable to observers.
func (s *Scheduler) nextInterval() time.Duration {
	span := s.maxInterval - s.minInterval
	if span <= 0 {
		return s.minInterval
	}
	return s.minInterval + time.Duration(rand.Int63n(int64(span)))
}

// Run blocks until ctx is cancelled, executing the ticker after the start
// delay and then on every randomized interval.
func (s *Scheduler) Run(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(s.startDelay):
	}
	s.tick(ctx)

	for {
		interval := s.nextInterval()
		s.log.Debug().Dur("interval", interval).Msg("next cycle scheduled")
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		s.log.Warn().Msg("previous cycle still running, skipping tick")
		return
	}
	defer s.running.Store(false)

	start := time.Now()
	if err := s.ticker.RunOnce(ctx); err != nil {
		s.log.Error().Err(err).Dur("took", time.Since(start)).Msg("cycle failed")
		return
	}
	s.log.Info().Dur("took", time.Since(start)).Msg("cycle complete")
}

// settle waits for on-chain balances to reflect a just-confirmed
// transaction before they are read back.
func settle(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
