// Package ratelimit implements an in-process fixed-window request limiter.
//
// Each key gets a counter and a window end. The first request after the
// window ends starts a new window, so a client can burst up to twice the
// limit across a boundary. State is not persisted; a restart clears it.
package ratelimit

import (
	"sync"
	"time"

	"shrimp/internal/clock"
)

// Result describes a single Check. Limit, Remaining and ResetAt are filled
// whether or not the request was allowed.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

type entry struct {
	count   int
	resetAt time.Time
}

// Limiter counts requests per key in fixed windows.
type Limiter struct {
	name   string
	window time.Duration
	max    int
	clock  clock.Clock

	mu      sync.Mutex
	entries map[string]*entry
}

// New creates a limiter allowing max requests per key per window.
func New(name string, windowLen time.Duration, max int, c clock.Clock) *Limiter {
	if c == nil {
		c = clock.System
	}
	return &Limiter{
		name:    name,
		window:  windowLen,
		max:     max,
		clock:   c,
		entries: make(map[string]*entry),
	}
}

// Name identifies the limiter in logs.
func (l *Limiter) Name() string { return l.name }

// Window is the length of one counting window.
func (l *Limiter) Window() time.Duration { return l.window }

// Check counts one request for key.
func (l *Limiter) Check(key string) Result {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.entries[key]
	if !ok || now.After(w.resetAt) {
		w = &entry{resetAt: now.Add(l.window)}
		l.entries[key] = w
	}
	w.count++

	remaining := l.max - w.count
	if remaining < 0 {
		remaining = 0
	}

	return Result{
		Allowed:   w.count <= l.max,
		Limit:     l.max,
		Remaining: remaining,
		ResetAt:   w.resetAt,
	}
}

// Sweep drops keys whose window ended before now and returns how many were
// removed. Keys with a window still open are kept.
func (l *Limiter) Sweep(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, w := range l.entries {
		if now.After(w.resetAt) {
			delete(l.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
