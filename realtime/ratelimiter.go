package realtime

import (
	"sync"
	"time"
)

// Limit is one fixed-window budget: at most Max calls per Window.
type Limit struct {
	Max    int
	Window time.Duration
}

// Limits carries the per-action budgets applied to one connection.
type Limits struct {
	SendMessage   Limit
	EditMessage   Limit
	DeleteMessage Limit
	Typing        Limit
}

func DefaultLimits() Limits {
	return Limits{
		SendMessage:   Limit{Max: 5, Window: 10 * time.Second},
		EditMessage:   Limit{Max: 10, Window: 10 * time.Second},
		DeleteMessage: Limit{Max: 20, Window: 10 * time.Second},
		Typing:        Limit{Max: 30, Window: 5 * time.Second},
	}
}

type window struct {
	count   int
	resetAt time.Time
}

// RateLimiter is a fixed-window counter keyed by action name. One
// instance belongs to one connection, so a key is effectively
// (connection, action) and the state dies with the connection.
//
// Every call counts toward the window, including denied ones; bursts
// at window boundaries are tolerated. This mirrors a plain fixed
// window, not a token bucket.
type RateLimiter struct {
	mu    sync.Mutex
	now   func() time.Time
	state map[string]*window
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{now: time.Now, state: make(map[string]*window)}
}

// Allow reports whether one more call for the action fits the budget.
// The counter is incremented unconditionally before evaluation.
func (l *RateLimiter) Allow(action string, limit Limit) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.state[action]
	if !ok {
		w = &window{resetAt: now.Add(limit.Window)}
		l.state[action] = w
	}
	if now.After(w.resetAt) {
		w.count = 0
		w.resetAt = now.Add(limit.Window)
	}
	w.count++
	return w.count <= limit.Max
}
