package lumnis

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a token bucket: up to maxTokens requests in a burst, one
// token added back every refillRate.
type RateLimiter struct {
	tokens         int
	maxTokens      int
	refillRate     time.Duration
	lastRefillTime time.Time
	mu             sync.Mutex
}

func NewRateLimiter(maxTokens int, refillRate time.Duration) *RateLimiter {
	if maxTokens < 1 {
		maxTokens = 1
	}
	return &RateLimiter{
		tokens:         maxTokens,
		maxTokens:      maxTokens,
		refillRate:     refillRate,
		lastRefillTime: time.Now(),
	}
}

// Wait blocks until a token is available or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	for {
		wait, ok := rl.tryAcquire()
		if ok {
			return nil
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// tryAcquire takes a token, or reports how long until the next refill.
func (rl *RateLimiter) tryAcquire() (time.Duration, bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if rl.refillRate <= 0 {
		return 0, true
	}

	now := time.Now()
	if add := int(now.Sub(rl.lastRefillTime) / rl.refillRate); add > 0 {
		rl.tokens += add
		if rl.tokens > rl.maxTokens {
			rl.tokens = rl.maxTokens
		}
		rl.lastRefillTime = rl.lastRefillTime.Add(time.Duration(add) * rl.refillRate)
	}

	if rl.tokens > 0 {
		rl.tokens--
		return 0, true
	}
	return rl.lastRefillTime.Add(rl.refillRate).Sub(now), false
}
