package util

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a token-bucket limiter with capacity one: calls spaced at
// least 1/rate apart pass immediately, bursts queue up behind the refill.
type RateLimiter struct {
	mu       sync.Mutex
	interval time.Duration // time to mint one token
	next     time.Time     // earliest instant the next token is available
}

// NewRateLimiter creates a RateLimiter that allows perMinute operations per
// minute. A non-positive perMinute means unlimited.
func NewRateLimiter(perMinute int) *RateLimiter {
	rl := &RateLimiter{}
	if perMinute > 0 {
		rl.interval = time.Minute / time.Duration(perMinute)
	}
	return rl
}

// Wait blocks until the caller may proceed or the context is cancelled.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if rl.interval == 0 {
		return ctx.Err()
	}

	rl.mu.Lock()
	now := time.Now()
	wait := rl.next.Sub(now)
	if wait < 0 {
		wait = 0
		rl.next = now
	}
	rl.next = rl.next.Add(rl.interval)
	rl.mu.Unlock()

	if wait == 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
