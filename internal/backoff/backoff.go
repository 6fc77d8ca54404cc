// Package backoff holds the retry delay policy shared by the judge and the statistics aggregator.
package backoff

import (
	"context"
	"math/rand/v2"
	"time"
)

// Compute returns the delay before retry number attempt (0-based): base doubled per
// attempt and capped at max. A non-positive base disables waiting.
func Compute(attempt int, base, max time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	if attempt <= 0 {
		if max > 0 && base > max {
			return max
		}
		return base
	}
	delay := base
	for i := 0; i < attempt; i++ {
		if max > 0 && delay > max/2 {
			return max
		}
		delay *= 2
	}
	if max > 0 && delay > max {
		return max
	}
	return delay
}

// Jitter spreads d uniformly over [d/2, d] so that contending callers fall out of lockstep.
func Jitter(d time.Duration) time.Duration {
	if d <= 1 {
		return d
	}
	half := d / 2
	return half + rand.N(d-half+1)
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
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
