package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeClock lets tests move time forward deterministically.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestIsAllowed_WithinLimit(t *testing.T) {
	clock := newFakeClock()
	l := NewLimiterWithClock(clock.Now)

	for i := 0; i < 5; i++ {
		assert.True(t, l.IsAllowed("user-1", 5, 15*time.Minute), "attempt %d", i+1)
	}
	assert.False(t, l.IsAllowed("user-1", 5, 15*time.Minute), "sixth attempt must be denied")
}

func TestIsAllowed_DeniedAttemptsDoNotExtendWindow(t *testing.T) {
	clock := newFakeClock()
	l := NewLimiterWithClock(clock.Now)

	for i := 0; i < 5; i++ {
		l.IsAllowed("user-1", 5, 15*time.Minute)
	}
	remaining := l.GetRemainingTime("user-1")

	// Hammering a denied key must not push the reset further out.
	for i := 0; i < 10; i++ {
		assert.False(t, l.IsAllowed("user-1", 5, 15*time.Minute))
	}
	assert.Equal(t, remaining, l.GetRemainingTime("user-1"))
}

func TestIsAllowed_WindowExpiryStartsFresh(t *testing.T) {
	clock := newFakeClock()
	l := NewLimiterWithClock(clock.Now)

	for i := 0; i < 5; i++ {
		l.IsAllowed("user-1", 5, 15*time.Minute)
	}
	assert.False(t, l.IsAllowed("user-1", 5, 15*time.Minute))

	clock.Advance(15*time.Minute + time.Second)

	// First attempt after expiry is allowed and opens a new window.
	assert.True(t, l.IsAllowed("user-1", 5, 15*time.Minute))
	assert.Equal(t, 15*time.Minute, l.GetRemainingTime("user-1"))
}

func TestIsAllowed_KeysAreIndependent(t *testing.T) {
	clock := newFakeClock()
	l := NewLimiterWithClock(clock.Now)

	for i := 0; i < 5; i++ {
		l.IsAllowed("user-1", 5, 15*time.Minute)
	}
	assert.False(t, l.IsAllowed("user-1", 5, 15*time.Minute))
	assert.True(t, l.IsAllowed("user-2", 5, 15*time.Minute))
}

func TestGetRemainingTime(t *testing.T) {
	clock := newFakeClock()
	l := NewLimiterWithClock(clock.Now)

	assert.Zero(t, l.GetRemainingTime("missing"))

	l.IsAllowed("user-1", 5, 15*time.Minute)
	assert.Equal(t, 15*time.Minute, l.GetRemainingTime("user-1"))

	clock.Advance(10 * time.Minute)
	assert.Equal(t, 5*time.Minute, l.GetRemainingTime("user-1"))

	clock.Advance(6 * time.Minute)
	assert.Zero(t, l.GetRemainingTime("user-1"))
}

func TestReset(t *testing.T) {
	clock := newFakeClock()
	l := NewLimiterWithClock(clock.Now)

	for i := 0; i < 5; i++ {
		l.IsAllowed("user-1", 5, 15*time.Minute)
	}
	assert.False(t, l.IsAllowed("user-1", 5, 15*time.Minute))

	l.Reset("user-1")

	assert.Zero(t, l.GetRemainingTime("user-1"))
	assert.True(t, l.IsAllowed("user-1", 5, 15*time.Minute))
}

func TestIsAllowed_Concurrent(t *testing.T) {
	l := NewLimiter()

	const workers = 20
	const max = 50

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				if l.IsAllowed("shared", max, time.Minute) {
					mu.Lock()
					allowed++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	// 200 attempts against a cap of 50: exactly the cap gets through.
	assert.Equal(t, max, allowed)
}
