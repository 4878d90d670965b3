package viewer

import (
	"sync"
	"time"

	"github.com/dkeye/Dash/internal/loop"
)

// RateLimiter allows at most limit events per token within a sliding window.
type RateLimiter struct {
	mu       sync.Mutex
	clock    loop.Clock
	history  map[string][]time.Time
	limit    int
	interval time.Duration
}

func NewRateLimiter(clock loop.Clock, limit int, interval time.Duration) *RateLimiter {
	if clock == nil {
		clock = loop.SystemClock
	}
	return &RateLimiter{
		clock:    clock,
		history:  make(map[string][]time.Time),
		limit:    limit,
		interval: interval,
	}
}

func (rl *RateLimiter) Allow(token string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.clock.Now()
	windowStart := now.Add(-rl.interval)

	attempts := rl.history[token]
	fresh := make([]time.Time, 0, len(attempts)+1)
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}

	if len(fresh) >= rl.limit {
		rl.history[token] = fresh
		return false
	}

	rl.history[token] = append(fresh, now)
	return true
}
