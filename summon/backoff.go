package summon

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// JitterType selects how computed delays are randomized.
type JitterType string

const (
	JitterNone JitterType = "none"
	// JitterFull picks a delay uniformly from [0, computed delay).
	JitterFull JitterType = "full"
)

// BackoffOptions controls how many attempts are made and how long to wait
// between them.
type BackoffOptions struct {
	// NumOfAttempts is the total number of attempts; values below 1 mean 1.
	NumOfAttempts int
	StartingDelay time.Duration
	TimeMultiple  float64
	// MaxDelay caps a single delay. Zero means no cap.
	MaxDelay time.Duration
	Jitter   JitterType
	// DelayFirstAttempt waits StartingDelay before the first attempt too.
	DelayFirstAttempt bool
	// Retry is consulted after every retryable failure. Nil retries always.
	Retry RetryPredicate
}

// Attempts returns the effective attempt count.
func (b BackoffOptions) Attempts() int {
	if b.NumOfAttempts < 1 {
		return 1
	}
	return b.NumOfAttempts
}

// DelayBefore returns the wait before the given 1-based attempt. Without
// DelayFirstAttempt the first attempt starts immediately and attempt 2 waits
// StartingDelay; with it every delay shifts one step.
func (b BackoffOptions) DelayBefore(attempt int) time.Duration {
	exp := attempt - 2
	if b.DelayFirstAttempt {
		exp = attempt - 1
	}
	if exp < 0 || b.StartingDelay <= 0 {
		return 0
	}

	mult := b.TimeMultiple
	if mult <= 0 {
		mult = 1
	}
	d := float64(b.StartingDelay) * math.Pow(mult, float64(exp))
	delay := time.Duration(math.MaxInt64)
	if !math.IsNaN(d) && d < math.MaxInt64 {
		delay = time.Duration(d)
	}
	if b.MaxDelay > 0 && delay > b.MaxDelay {
		delay = b.MaxDelay
	}

	if b.Jitter == JitterFull && delay > 0 {
		delay = time.Duration(rand.Int64N(int64(delay)))
	}
	return delay
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return context.Cause(ctx)
	case <-t.C:
		return nil
	}
}
