package util

import (
	"context"
	"sync"
	"time"
)

// RateLimiter spaces operations evenly to stay under a per-minute quota.
// The ingest job wraps its market-data API calls with one so a large symbol
// universe never trips the provider's request cap.
type RateLimiter struct {
	mu       sync.Mutex
	interval time.Duration
	next     time.Time
}

// NewRateLimiter allows perMinute operations per minute. The first call to
// Wait passes immediately.
func NewRateLimiter(perMinute int) *RateLimiter {
	return &RateLimiter{
		interval: time.Minute / time.Duration(perMinute),
		next:     time.Now(),
	}
}

// Wait blocks until the caller's turn comes up or the context is cancelled.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	rl.mu.Lock()
	now := time.Now()
	turn := rl.next
	if turn.Before(now) {
		turn = now
	}
	rl.next = turn.Add(rl.interval)
	rl.mu.Unlock()

	wait := time.Until(turn)
	if wait <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}
