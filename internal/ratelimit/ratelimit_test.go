package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_AllowsUpToCapacityThenRejects(t *testing.T) {
	l := New(Config{Capacity: 3, RefillTokens: 3, RefillWindow: time.Minute})
	fixed := time.Now()
	l.now = func() time.Time { return fixed }

	assert.True(t, l.Allow())
	assert.True(t, l.Allow())
	assert.True(t, l.Allow())
	assert.False(t, l.Allow(), "bucket should be exhausted after capacity requests")
}

func TestLimiter_RefillsOverTime(t *testing.T) {
	l := New(Config{Capacity: 2, RefillTokens: 2, RefillWindow: time.Minute})
	fixed := time.Now()
	l.now = func() time.Time { return fixed }

	require.True(t, l.Allow())
	require.True(t, l.Allow())
	require.False(t, l.Allow())

	// Advance 30s: 2 tokens per 60s is 1 token per 30s, so 1 token refilled.
	fixed = fixed.Add(30 * time.Second)
	assert.True(t, l.Allow())
	assert.False(t, l.Allow())
}

func TestLimiter_RefillNeverExceedsCapacity(t *testing.T) {
	l := New(Config{Capacity: 2, RefillTokens: 2, RefillWindow: time.Minute})
	fixed := time.Now()
	l.now = func() time.Time { return fixed }

	// Let a long time pass with no consumption.
	fixed = fixed.Add(time.Hour)
	assert.True(t, l.Allow())
	assert.True(t, l.Allow())
	assert.False(t, l.Allow())
}

func TestDefaultConfig_MatchesSpecDefaults(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 60, cfg.Capacity)
	assert.Equal(t, 60, cfg.RefillTokens)
	assert.Equal(t, time.Minute, cfg.RefillWindow)
}
