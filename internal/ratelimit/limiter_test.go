package ratelimit

import (
	"fmt"
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
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func TestLimiter_FixedWindow(t *testing.T) {
	clock := newClock()
	l := New(WithClock(clock.Now))
	const n = 5
	window := 10 * time.Second

	for i := 0; i < n; i++ {
		if d := l.Check("ip:1", n, window); !d.Allowed {
			t.Fatalf("call %d denied", i+1)
		}
	}
	clock.Advance(3 * time.Second)
	d := l.Check("ip:1", n, window)
	if d.Allowed {
		t.Fatal("call n+1 should be denied")
	}
	if d.RetryAfterMs <= 0 || d.RetryAfterMs > window.Milliseconds() {
		t.Errorf("RetryAfterMs = %d, want (0, %d]", d.RetryAfterMs, window.Milliseconds())
	}
	if d.RetryAfterMs != 7000 {
		t.Errorf("RetryAfterMs = %d, want 7000", d.RetryAfterMs)
	}

	clock.Advance(window)
	if d := l.Check("ip:1", n, window); !d.Allowed {
		t.Fatal("call after window should start a fresh window")
	}
	for i := 1; i < n; i++ {
		if d := l.Check("ip:1", n, window); !d.Allowed {
			t.Fatalf("fresh window call %d denied", i+1)
		}
	}
}

func TestLimiter_KeysIndependent(t *testing.T) {
	l := New(WithClock(newClock().Now))
	if !l.Check("a", 1, time.Minute).Allowed {
		t.Fatal("a first call denied")
	}
	if l.Check("a", 1, time.Minute).Allowed {
		t.Fatal("a second call allowed")
	}
	if !l.Check("b", 1, time.Minute).Allowed {
		t.Fatal("b should not be affected by a")
	}
}

func TestLimiter_WindowBoundary(t *testing.T) {
	clock := newClock()
	l := New(WithClock(clock.Now))
	l.Check("k", 1, time.Second)
	clock.Advance(time.Second)
	if !l.Check("k", 1, time.Second).Allowed {
		t.Error("window ends at resetAt; call at resetAt should open a new window")
	}
}

func TestLimiter_Concurrent(t *testing.T) {
	l := New(WithClock(newClock().Now))
	const limit = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Check("shared", limit, time.Minute).Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if allowed != limit {
		t.Errorf("allowed = %d, want %d", allowed, limit)
	}
}

func TestLimiter_Sweep(t *testing.T) {
	clock := newClock()
	l := New(WithClock(clock.Now))
	for i := 0; i < 10; i++ {
		l.Check(fmt.Sprintf("k%d", i), 1, time.Second)
	}
	if l.Len() != 10 {
		t.Fatalf("Len = %d", l.Len())
	}
	clock.Advance(2 * time.Second)
	l.Sweep()
	if l.Len() != 0 {
		t.Errorf("Len after sweep = %d, want 0", l.Len())
	}
}
