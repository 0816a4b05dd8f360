// Package ratelimit implements fixed-window request limits keyed by client.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

const (
	DefaultLimit  = 30
	DefaultWindow = time.Minute
)

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is how long the caller should wait before the window resets.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	if d.Allowed || !d.ResetAt.After(now) {
		return 0
	}

	return d.ResetAt.Sub(now)
}

type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

type bucket struct {
	count int
	until time.Time
}

// Memory keeps windows in process memory. Expired windows are swept lazily.
type Memory struct {
	mu        sync.Mutex
	limit     int
	window    time.Duration
	buckets   map[string]*bucket
	now       func() time.Time
	lastSweep time.Time
}

func NewMemory(limit int, window time.Duration) *Memory {
	if limit <= 0 {
		limit = DefaultLimit
	}

	if window <= 0 {
		window = DefaultWindow
	}

	return &Memory{
		limit:   limit,
		window:  window,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

func (m *Memory) Allow(_ context.Context, key string) (Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.sweep(now)

	b, ok := m.buckets[key]
	if !ok || !now.Before(b.until) {
		b = &bucket{until: now.Add(m.window)}
		m.buckets[key] = b
	}

	if b.count >= m.limit {
		return Decision{Limit: m.limit, ResetAt: b.until}, nil
	}

	b.count++

	return Decision{
		Allowed:   true,
		Limit:     m.limit,
		Remaining: m.limit - b.count,
		ResetAt:   b.until,
	}, nil
}

func (m *Memory) sweep(now time.Time) {
	if now.Sub(m.lastSweep) < m.window {
		return
	}

	for key, b := range m.buckets {
		if !now.Before(b.until) {
			delete(m.buckets, key)
		}
	}

	m.lastSweep = now
}
