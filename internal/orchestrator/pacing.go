package orchestrator

import (
	"context"
	"math/rand/v2"
	"time"
)

// Default pacing window between attempts on the same network.
const (
	DefaultPacingMin = 15 * time.Second
	DefaultPacingMax = 30 * time.Second
)

// PacingDelay draws a delay uniformly from [lo, hi] at millisecond granularity.
func PacingDelay(rng *rand.Rand, lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	span := int64((hi - lo) / time.Millisecond)
	return lo + time.Duration(rng.Int64N(span+1))*time.Millisecond
}

// SleepContext waits for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
