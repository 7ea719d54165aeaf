package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter reports whether the identified caller may proceed. Implementations
// must fail open: infrastructure errors return allowed=true.
type Limiter interface {
	Allow(ctx context.Context, identifier string) (allowed bool, remaining int, err error)
}

// Memory is a process-local sliding-window limiter.
type Memory struct {
	limit  int
	window time.Duration

	mu   sync.Mutex
	hits map[string][]time.Time
}

func NewMemory(limit int, window time.Duration) *Memory {
	return &Memory{
		limit:  limit,
		window: window,
		hits:   make(map[string][]time.Time),
	}
}

func (m *Memory) Allow(ctx context.Context, identifier string) (bool, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-m.window)

	kept := m.hits[identifier][:0]
	for _, t := range m.hits[identifier] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	count := len(kept)
	allowed := count < m.limit

	kept = append(kept, now)
	m.hits[identifier] = kept

	remaining := m.limit - count - 1
	if remaining < 0 {
		remaining = 0
	}
	return allowed, remaining, nil
}
