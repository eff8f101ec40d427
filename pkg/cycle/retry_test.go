package cycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/clawpad/clawpad/pkg/types"
)

func TestWithRetryEventualSuccess(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), 3, func() error {
		calls++
		if calls < 2 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}

func TestWithRetryExhaustsAttempts(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), 3, func() error {
		calls++
		return errors.New("still broken")
	})
	require.Error(t, err)
	require.Equal(t, 3, calls)
}

func TestWithRetryStopsOnTerminalError(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), 5, func() error {
		calls++
		return types.NewValidationError("amount", "must be positive")
	})
	require.Error(t, err)
	require.Equal(t, 1, calls)
}

func TestWithRetryHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := withRetry(ctx, 3, func() error {
		return errors.New("transient")
	})
	require.ErrorIs(t, err, context.Canceled)
}

type countingTicker struct {
	runs    int
	block   chan struct{}
	started chan struct{}
}

func (c *countingTicker) Name() string { return "counting" }

func (c *countingTicker) RunOnce(ctx context.Context) error {
	c.runs++
	if c.started != nil {
		c.started <- struct{}{}
	}
	if c.block != nil {
		<-c.block
	}
	return nil
}

func TestSchedulerIntervalBounds(t *testing.T) {
	s := NewScheduler(&countingTicker{}, 0, 2*time.Minute, 10*time.Minute, zerolog.Nop())
	for i := 0; i < 100; i++ {
		got := s.nextInterval()
		require.GreaterOrEqual(t, got, 2*time.Minute)
		require.Less(t, got, 10*time.Minute)
	}
}

func TestSchedulerDegenerateInterval(t *testing.T) {
	s := NewScheduler(&countingTicker{}, 0, 5*time.Minute, 5*time.Minute, zerolog.Nop())
	require.Equal(t, 5*time.Minute, s.nextInterval())

	// A max below min collapses to min.
	s = NewScheduler(&countingTicker{}, 0, 5*time.Minute, time.Minute, zerolog.Nop())
	require.Equal(t, 5*time.Minute, s.nextInterval())
}

func TestSchedulerSuppressesOverlap(t *testing.T) {
	ticker := &countingTicker{
		block:   make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	s := NewScheduler(ticker, 0, time.Minute, time.Minute, zerolog.Nop())

	go s.tick(context.Background())
	select {
	case <-ticker.started:
	case <-time.After(5 * time.Second):
		t.Fatal("tick never started")
	}

	// The guard turns a concurrent tick into a no-op.
	s.tick(context.Background())
	close(ticker.block)

	require.Eventually(t, func() bool { return !s.running.Load() }, 5*time.Second, 10*time.Millisecond)
	require.Equal(t, 1, ticker.runs)
}
