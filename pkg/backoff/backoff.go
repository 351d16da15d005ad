package backoff

import (
	"context"
	"math/rand/v2"
	"time"
)

const maxShift = 32

// Exponential returns base * 2^attempt capped at max. Negative attempts are
// treated as 0.
func Exponential(base time.Duration, attempt int, max time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	if attempt < 0 {
		attempt = 0
	} else if attempt > maxShift {
		attempt = maxShift
	}

	d := base << attempt
	if d <= 0 || d > max {
		return max
	}
	return d
}

// FullJitter returns a random duration in [0, delay).
func FullJitter(delay time.Duration) time.Duration {
	if delay <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(delay)))
}

// Policy is a reusable retry delay strategy: exponential growth with full
// jitter and a max-delay cap.
type Policy struct {
	Base time.Duration
	Max  time.Duration
}

func (p Policy) Delay(attempt int) time.Duration {
	return FullJitter(Exponential(p.Base, attempt, p.Max))
}

// SleepWithContext sleeps for the given duration or until the context is
// cancelled, whichever comes first.
func SleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
