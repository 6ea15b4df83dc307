package retry

import (
	"context"
	"time"
)

// Policy is an explicit retry schedule: max attempts, an exponential backoff
// curve, and a predicate deciding which errors are worth retrying. The policy
// is plain data so it can be exercised against fakes without any network.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Retryable   func(error) bool
}

// Backoff returns the delay before the given attempt (1-based). The delay
// doubles per attempt and is capped at MaxDelay.
func (p Policy) Backoff(attempt int) time.Duration {
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Do runs fn up to MaxAttempts times, sleeping Backoff(attempt) between
// attempts. Non-retryable errors are returned immediately. Context
// cancellation aborts the wait.
func (p Policy) Do(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return err
		}
		if attempt == p.MaxAttempts {
			break
		}
		if werr := Sleep(ctx, p.Backoff(attempt)); werr != nil {
			return werr
		}
	}
	return err
}

// Sleep waits for d, returning early with the context error if ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
