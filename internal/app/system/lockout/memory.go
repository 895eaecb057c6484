package lockout

import (
	"context"
	"sync"
	"time"
)

// Memory is a single-process Tracker. It is safe for concurrent use.
type Memory struct {
	mu      sync.Mutex
	entries map[string]*entry
	policy  Policy
	now     func() time.Time
}

type entry struct {
	failures    int
	first       time.Time
	lockedUntil time.Time
}

// NewMemory returns an in-memory Tracker. now may be nil.
func NewMemory(p Policy, now func() time.Time) *Memory {
	if now == nil {
		now = time.Now
	}
	return &Memory{
		entries: make(map[string]*entry),
		policy:  p.withDefaults(),
		now:     now,
	}
}

// live returns the entry for key after dropping it if it has expired.
// Caller holds mu.
func (m *Memory) live(key string, now time.Time) *entry {
	e, ok := m.entries[key]
	if !ok {
		return nil
	}
	if m.expired(e, now) {
		delete(m.entries, key)
		return nil
	}
	return e
}

func (m *Memory) expired(e *entry, now time.Time) bool {
	if !e.lockedUntil.IsZero() {
		return !now.Before(e.lockedUntil)
	}
	return now.Sub(e.first) >= m.policy.Window
}

func (m *Memory) state(e *entry, now time.Time) State {
	if e == nil {
		return State{AttemptsRemaining: m.policy.MaxFailures}
	}
	if !e.lockedUntil.IsZero() {
		return State{Locked: true, RetryAfter: e.lockedUntil.Sub(now)}
	}
	return State{AttemptsRemaining: m.policy.MaxFailures - e.failures}
}

func (m *Memory) Check(_ context.Context, key string) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	return m.state(m.live(key, now), now), nil
}

func (m *Memory) Fail(_ context.Context, key string) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()

	e := m.live(key, now)
	if e == nil {
		e = &entry{first: now}
		m.entries[key] = e
	}
	if !e.lockedUntil.IsZero() {
		return m.state(e, now), nil
	}

	e.failures++
	if e.failures >= m.policy.MaxFailures {
		e.failures = 0
		e.lockedUntil = now.Add(m.policy.Lockout)
	}
	return m.state(e, now), nil
}

func (m *Memory) Reset(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// Sweep drops expired entries and returns how many were removed.
func (m *Memory) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	n := 0
	for k, e := range m.entries {
		if m.expired(e, now) {
			delete(m.entries, k)
			n++
		}
	}
	return n
}

// Len returns the number of tracked keys.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
