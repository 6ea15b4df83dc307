package embedding

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter enforces a minimum interval between outbound embedding
// requests, shared by every caller in the process. It is constructed once
// and injected into the Client; concurrent ingestions all funnel through
// the same token bucket so they cannot collectively exceed the spacing
// floor.
type RateLimiter struct {
	mu     sync.Mutex
	bucket *rate.Limiter
	last   time.Time
}

// NewRateLimiter builds a limiter spacing requests at least minInterval
// apart. A zero or negative interval disables throttling.
func NewRateLimiter(minInterval time.Duration) *RateLimiter {
	limit := rate.Inf
	if minInterval > 0 {
		limit = rate.Every(minInterval)
	}
	return &RateLimiter{bucket: rate.NewLimiter(limit, 1)}
}

// Wait blocks until the next request may be issued or ctx is cancelled.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if err := r.bucket.Wait(ctx); err != nil {
		return err
	}
	r.mu.Lock()
	r.last = time.Now()
	r.mu.Unlock()
	return nil
}

// LastRequest returns the time the limiter last released a request.
func (r *RateLimiter) LastRequest() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}
