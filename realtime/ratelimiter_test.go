package realtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRateLimiter_DeniesBeyondBudget(t *testing.T) {
	req := require.New(t)

	// Given a 3-per-10s budget
	limiter := NewRateLimiter()
	limit := Limit{Max: 3, Window: 10 * time.Second}

	// When four calls land inside the window
	// Then the first three pass and the fourth is denied
	req.True(limiter.Allow("sendMessage", limit))
	req.True(limiter.Allow("sendMessage", limit))
	req.True(limiter.Allow("sendMessage", limit))
	req.False(limiter.Allow("sendMessage", limit))
}

func TestRateLimiter_DeniedCallsStillCount(t *testing.T) {
	req := require.New(t)

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter()
	limiter.now = func() time.Time { return now }
	limit := Limit{Max: 1, Window: 10 * time.Second}

	// Given an exhausted window
	req.True(limiter.Allow("typing", limit))
	req.False(limiter.Allow("typing", limit))

	// When more denied calls pile up, the window does not slide
	now = now.Add(9 * time.Second)
	req.False(limiter.Allow("typing", limit))

	// Then a call after the reset instant passes again
	now = now.Add(2 * time.Second)
	req.True(limiter.Allow("typing", limit))
}

func TestRateLimiter_ActionsAreIndependent(t *testing.T) {
	req := require.New(t)

	limiter := NewRateLimiter()
	limit := Limit{Max: 1, Window: 10 * time.Second}

	// Given sendMessage exhausted
	req.True(limiter.Allow("sendMessage", limit))
	req.False(limiter.Allow("sendMessage", limit))

	// Then typing still has its own budget
	req.True(limiter.Allow("typing", limit))
}
