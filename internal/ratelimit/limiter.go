// Package ratelimit bounds chat requests per session within a time window.
//
// Timestamps older than the window are pruned lazily on each check. A session
// that hits the limit is rejected without recording the attempt, so bursts
// straddling a window boundary can briefly reach close to twice the nominal
// rate.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

const (
	DefaultMaxRequests = 50
	DefaultWindow      = time.Hour
)

type Limiter interface {
	Allow(ctx context.Context, sessionID string) (bool, error)
	// Sessions reports how many sessions currently hold rate-limit state.
	Sessions(ctx context.Context) int
}

type MemoryLimiter struct {
	mu          sync.Mutex
	maxRequests int
	window      time.Duration
	now         func() time.Time
	requests    map[string][]time.Time
}

func NewMemoryLimiter(maxRequests int, window time.Duration) *MemoryLimiter {
	return NewMemoryLimiterWithClock(maxRequests, window, time.Now)
}

func NewMemoryLimiterWithClock(maxRequests int, window time.Duration, now func() time.Time) *MemoryLimiter {
	if maxRequests <= 0 {
		maxRequests = DefaultMaxRequests
	}
	if window <= 0 {
		window = DefaultWindow
	}
	if now == nil {
		now = time.Now
	}
	return &MemoryLimiter{
		maxRequests: maxRequests,
		window:      window,
		now:         now,
		requests:    make(map[string][]time.Time),
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, sessionID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	kept := l.requests[sessionID][:0]
	for _, ts := range l.requests[sessionID] {
		if now.Sub(ts) < l.window {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= l.maxRequests {
		l.requests[sessionID] = kept
		return false, nil
	}
	l.requests[sessionID] = append(kept, now)
	return true, nil
}

func (l *MemoryLimiter) Sessions(_ context.Context) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.requests)
}
