// Package ratelimit implements a per-user fixed-window request counter.
//
// Windows reset at discrete boundaries rather than sliding, so a client can
// burst up to twice the nominal rate across a boundary. That imprecision is
// accepted for a soft abuse guard. State is process-local and lost on
// restart.
package ratelimit

import (
	"sync"
	"time"
)

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed    bool
	Remaining  int
	ResetAfter time.Duration
}

// Snapshot reports a user's current window for response headers.
type Snapshot struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
}

type window struct {
	count   int
	start   time.Time
	resetAt time.Time
}

// Limiter tracks request counts per user under a single coarse lock. The
// critical section is map arithmetic only; callers must not hold it across
// I/O.
type Limiter struct {
	mu      sync.Mutex
	windows map[string]*window
	limit   int
	period  time.Duration

	now func() time.Time
}

func NewLimiter(limit int, period time.Duration) *Limiter {
	if limit <= 0 {
		limit = 60
	}
	if period <= 0 {
		period = 15 * time.Minute
	}
	return &Limiter{
		windows: make(map[string]*window),
		limit:   limit,
		period:  period,
		now:     time.Now,
	}
}

// Check admits or rejects one request for userID and advances the counter.
func (l *Limiter) Check(userID string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[userID]
	if !ok || !now.Before(w.resetAt) {
		l.windows[userID] = &window{
			count:   1,
			start:   now,
			resetAt: now.Add(l.period),
		}
		return Decision{Allowed: true, Remaining: l.limit - 1, ResetAfter: l.period}
	}

	if w.count >= l.limit {
		return Decision{Allowed: false, Remaining: 0, ResetAfter: w.resetAt.Sub(now)}
	}

	w.count++
	return Decision{Allowed: true, Remaining: l.limit - w.count, ResetAfter: w.resetAt.Sub(now)}
}

// Snapshot reports the current window without consuming a request. The
// second return is false when the user has no open window.
func (l *Limiter) Snapshot(userID string) (Snapshot, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[userID]
	if !ok || !l.now().Before(w.resetAt) {
		return Snapshot{}, false
	}
	return Snapshot{
		Limit:     l.limit,
		Remaining: l.limit - w.count,
		ResetAt:   w.resetAt,
	}, true
}

// Limit returns the configured per-window request cap.
func (l *Limiter) Limit() int { return l.limit }

// Period returns the configured window length.
func (l *Limiter) Period() time.Duration { return l.period }

// ActiveWindows counts users with an unexpired window.
func (l *Limiter) ActiveWindows() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	count := 0
	for _, w := range l.windows {
		if now.Before(w.resetAt) {
			count++
		}
	}
	return count
}
