// Package ratelimit provides a fixed-window in-memory rate limiter keyed by
// arbitrary identifiers. State lives in process memory only; a restart
// clears all windows.
package ratelimit

import (
	"sync"
	"time"
)

type window struct {
	count   int
	resetAt time.Time
}

// Limiter counts attempts per key inside a fixed window. Safe for
// concurrent use.
type Limiter struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

func NewLimiter() *Limiter {
	return &Limiter{
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

// NewLimiterWithClock injects the clock. Tests use this to step through
// window expiry without sleeping.
func NewLimiterWithClock(now func() time.Time) *Limiter {
	return &Limiter{
		windows: make(map[string]*window),
		now:     now,
	}
}

// IsAllowed records an attempt for key and reports whether it fits inside
// the window. The first attempt after expiry starts a fresh window. Denied
// attempts do not consume the counter.
func (l *Limiter) IsAllowed(key string, maxAttempts int, windowSize time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || now.After(w.resetAt) {
		l.windows[key] = &window{count: 1, resetAt: now.Add(windowSize)}
		return true
	}

	if w.count >= maxAttempts {
		return false
	}

	w.count++
	return true
}

// GetRemainingTime returns how long until the key's window resets. Zero
// when the key has no window or it already expired.
func (l *Limiter) GetRemainingTime(key string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok {
		return 0
	}

	remaining := w.resetAt.Sub(l.now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Reset drops the key's window so the next attempt starts fresh.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, key)
}
