package middleware

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterSlidingWindow(t *testing.T) {
	rl := NewRateLimiter[int64](2, time.Minute)
	defer rl.Close()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow(1))
	assert.Equal(t, 1, rl.Remaining(1))
	assert.True(t, rl.Allow(1))
	assert.False(t, rl.Allow(1))
	assert.Zero(t, rl.Remaining(1))

	// другой ключ считается отдельно
	assert.True(t, rl.Allow(2))

	now = now.Add(time.Minute + time.Second)
	assert.True(t, rl.Allow(1))
	assert.Equal(t, 1, rl.Remaining(1))
}

func TestRateLimiterUnlimited(t *testing.T) {
	rl := NewRateLimiter[string](0, time.Minute)
	defer rl.Close()

	for i := 0; i < 100; i++ {
		assert.True(t, rl.Allow("alice"))
	}
}

func TestRateLimiterSweep(t *testing.T) {
	rl := NewRateLimiter[int64](5, time.Minute)
	defer rl.Close()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.Allow(1)
	now = now.Add(30 * time.Second)
	rl.Allow(2)
	now = now.Add(45 * time.Second)

	rl.sweep()
	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.NotContains(t, rl.requests, int64(1))
	assert.Len(t, rl.requests[2], 1)
}

func TestCloseIsIdempotent(t *testing.T) {
	rl := NewRateLimiter[int64](1, time.Second)
	rl.Close()
	assert.NotPanics(t, rl.Close)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "привет", Truncate("привет", 6))
	assert.Equal(t, "при...", Truncate("привет", 3))
	assert.Equal(t, "", Truncate("", 3))
}
