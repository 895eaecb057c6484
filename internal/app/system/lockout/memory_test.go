package lockout

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func TestMemory_LocksOnFifthFailure(t *testing.T) {
	clock := newClock()
	m := NewMemory(Policy{}, clock.Now)
	ctx := context.Background()

	for i := 1; i <= 4; i++ {
		st, err := m.Fail(ctx, "10.0.0.1")
		if err != nil {
			t.Fatalf("Fail: %v", err)
		}
		if st.Locked {
			t.Fatalf("locked after %d failures", i)
		}
		if st.AttemptsRemaining != 5-i {
			t.Errorf("after %d failures remaining = %d, want %d", i, st.AttemptsRemaining, 5-i)
		}
	}

	st, _ := m.Fail(ctx, "10.0.0.1")
	if !st.Locked {
		t.Fatal("fifth failure should lock")
	}
	if st.RetryAfter != 5*time.Minute {
		t.Errorf("RetryAfter = %v, want 5m", st.RetryAfter)
	}

	clock.Advance(time.Minute)
	st, _ = m.Check(ctx, "10.0.0.1")
	if !st.Locked || st.RetryAfter != 4*time.Minute {
		t.Errorf("Check during lockout = %+v", st)
	}

	// Other clients are unaffected.
	st, _ = m.Check(ctx, "10.0.0.2")
	if st.Locked || st.AttemptsRemaining != 5 {
		t.Errorf("unrelated client state = %+v", st)
	}
}

func TestMemory_FailWhileLockedDoesNotExtend(t *testing.T) {
	clock := newClock()
	m := NewMemory(Policy{MaxFailures: 2, Lockout: time.Minute}, clock.Now)
	ctx := context.Background()

	m.Fail(ctx, "k")
	m.Fail(ctx, "k")
	clock.Advance(30 * time.Second)
	st, _ := m.Fail(ctx, "k")
	if !st.Locked || st.RetryAfter != 30*time.Second {
		t.Errorf("state = %+v, want locked with 30s left", st)
	}
}

func TestMemory_CounterResetsAfterLockout(t *testing.T) {
	clock := newClock()
	m := NewMemory(Policy{}, clock.Now)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		m.Fail(ctx, "k")
	}
	clock.Advance(5*time.Minute + time.Second)

	st, _ := m.Check(ctx, "k")
	if st.Locked || st.AttemptsRemaining != 5 {
		t.Fatalf("after lockout state = %+v, want fresh", st)
	}
	st, _ = m.Fail(ctx, "k")
	if st.Locked || st.AttemptsRemaining != 4 {
		t.Errorf("first failure after lockout = %+v", st)
	}
}

func TestMemory_ResetClearsStreak(t *testing.T) {
	m := NewMemory(Policy{}, nil)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		m.Fail(ctx, "k")
	}
	if err := m.Reset(ctx, "k"); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	st, _ := m.Fail(ctx, "k")
	if st.Locked || st.AttemptsRemaining != 4 {
		t.Errorf("state after reset = %+v", st)
	}
}

func TestMemory_WindowExpiresStreak(t *testing.T) {
	clock := newClock()
	m := NewMemory(Policy{Window: 10 * time.Minute}, clock.Now)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		m.Fail(ctx, "k")
	}
	clock.Advance(11 * time.Minute)
	st, _ := m.Fail(ctx, "k")
	if st.Locked || st.AttemptsRemaining != 4 {
		t.Errorf("state = %+v, want streak restarted", st)
	}
}

func TestMemory_Sweep(t *testing.T) {
	clock := newClock()
	m := NewMemory(Policy{Window: time.Minute}, clock.Now)
	ctx := context.Background()

	m.Fail(ctx, "a")
	m.Fail(ctx, "b")
	clock.Advance(2 * time.Minute)
	m.Fail(ctx, "c")

	if n := m.Sweep(); n != 2 {
		t.Errorf("Sweep removed %d, want 2", n)
	}
	if m.Len() != 1 {
		t.Errorf("Len = %d, want 1", m.Len())
	}
}

func TestMemory_ConcurrentFailures(t *testing.T) {
	m := NewMemory(Policy{MaxFailures: 1000}, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Fail(ctx, "k")
		}()
	}
	wg.Wait()

	st, _ := m.Check(ctx, "k")
	if st.AttemptsRemaining != 900 {
		t.Errorf("remaining = %d, want 900", st.AttemptsRemaining)
	}
}
