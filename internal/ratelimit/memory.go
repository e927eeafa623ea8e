package ratelimit

import (
	"context"
	"sync"
	"time"
)

// sweepInterval bounds how often expired windows are dropped.
const sweepInterval = time.Minute

type window struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter keeps windows in a process-local map.
type MemoryLimiter struct {
	mu        sync.Mutex
	windows   map[string]*window
	clock     Clock
	lastSweep time.Time
}

func NewMemoryLimiter(clock Clock) *MemoryLimiter {
	if clock == nil {
		clock = time.Now
	}
	return &MemoryLimiter{
		windows:   make(map[string]*window),
		clock:     clock,
		lastSweep: clock(),
	}
}

// Check implements Limiter.
func (l *MemoryLimiter) Check(ctx context.Context, key string, windowLen time.Duration, max int) (Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if now.Sub(l.lastSweep) >= sweepInterval {
		l.sweep(now)
	}

	w, ok := l.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(windowLen)}
		l.windows[key] = w
	}
	w.count++

	res := decide(w.count, max, w.resetAt, now)
	recordDecision(string(DriverMemory), res.Allowed)
	return res, nil
}

// Len returns the number of tracked keys.
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

func (l *MemoryLimiter) sweep(now time.Time) {
	for key, w := range l.windows {
		if !now.Before(w.resetAt) {
			delete(l.windows, key)
		}
	}
	l.lastSweep = now
}
