package bucketing

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"trust-service/internal/config"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	cfg := &config.Config{}
	cfg.Bucketing.UserBuckets = 1024
	cfg.Bucketing.EventBuckets = 256
	return NewManager(cfg)
}

func TestGetUserBucket_StableAndInRange(t *testing.T) {
	m := newTestManager(t)

	for i := 0; i < 100; i++ {
		id := fmt.Sprintf("user-%d", i)
		b := m.GetUserBucket(id)
		assert.GreaterOrEqual(t, b, 0)
		assert.Less(t, b, m.UserBuckets())
		assert.Equal(t, b, m.GetUserBucket(id), "bucket must be stable for %s", id)
	}
}

func TestGetEventBucket_InRange(t *testing.T) {
	m := newTestManager(t)

	seen := make(map[int]bool)
	for i := 0; i < 1000; i++ {
		b := m.GetEventBucket(fmt.Sprintf("event-key-%d", i))
		assert.GreaterOrEqual(t, b, 0)
		assert.Less(t, b, m.EventBuckets())
		seen[b] = true
	}

	// A thousand keys over 256 buckets should spread widely.
	assert.Greater(t, len(seen), 100)
}

func TestGetDateBucket(t *testing.T) {
	m := newTestManager(t)
	at := time.Date(2025, 6, 1, 23, 59, 0, 0, time.FixedZone("IST", 5*3600+1800))
	assert.Equal(t, "2025-06-01", m.GetDateBucket(at))
}
