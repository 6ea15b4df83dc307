package embedding

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_SpacesRequests(t *testing.T) {
	interval := 20 * time.Millisecond
	rl := NewRateLimiter(interval)

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, rl.Wait(context.Background()))
	}
	elapsed := time.Since(start)

	// Three waits at one request per interval take at least two intervals.
	assert.GreaterOrEqual(t, elapsed, 2*interval)
}

func TestRateLimiter_Unlimited(t *testing.T) {
	rl := NewRateLimiter(0)

	start := time.Now()
	for i := 0; i < 50; i++ {
		require.NoError(t, rl.Wait(context.Background()))
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestRateLimiter_ContextCancelled(t *testing.T) {
	rl := NewRateLimiter(time.Second)
	require.NoError(t, rl.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, rl.Wait(ctx))
}

func TestRateLimiter_RecordsLastRequest(t *testing.T) {
	rl := NewRateLimiter(0)
	assert.True(t, rl.LastRequest().IsZero())

	require.NoError(t, rl.Wait(context.Background()))
	assert.WithinDuration(t, time.Now(), rl.LastRequest(), time.Second)
}
