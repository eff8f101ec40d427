package cycle

import (
	"context"
	"time"

	"github.com/clawpad/clawpad/pkg/types"
)

// withRetry runs fn up to maxAttempts times with exponential backoff,
// starting at one second and capped at ten. Terminal errors stop the loop
// immediately.
func withRetry(ctx context.Context, maxAttempts int, fn func() error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * time.Second
			if backoff > 10*time.Second {
				backoff = 10 * time.Second
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
		if err = fn(); err == nil {
			return nil
		}
		if !types.IsRetryable(err) {
			return err
		}
	}
	return err
}
