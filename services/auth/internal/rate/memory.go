package rate

import (
	"context"
	"sync"
	"time"
)

// sweepEvery bounds how often the expired-window sweep runs, in calls.
const sweepEvery = 256

type window struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter is a fixed-window counter for single-instance deployments.
// Expired windows are swept opportunistically every sweepEvery calls.
type MemoryLimiter struct {
	mu      sync.Mutex
	limit   int
	span    time.Duration
	windows map[string]window
	calls   int
}

func NewMemory(limit int, span time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		limit:   limit,
		span:    span,
		windows: make(map[string]window),
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string, now time.Time) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.calls++
	if l.calls >= sweepEvery {
		l.calls = 0
		for k, w := range l.windows {
			if now.After(w.resetAt) {
				delete(l.windows, k)
			}
		}
	}

	w, ok := l.windows[key]
	if !ok || now.After(w.resetAt) {
		l.windows[key] = window{count: 1, resetAt: now.Add(l.span)}
		return true, 0, nil
	}

	if w.count >= l.limit {
		retryAfter := w.resetAt.Sub(now)
		if retryAfter < 0 {
			retryAfter = 0
		}
		return false, retryAfter, nil
	}

	w.count++
	l.windows[key] = w
	return true, 0, nil
}
