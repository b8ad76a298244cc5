package ratelimit

import (
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newLimiter(t *testing.T, limit int) (*Limiter, *fakeClock) {
	t.Helper()
	l := New(limit, time.Minute)
	t.Cleanup(l.Stop)
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	l.now = clock.now
	return l, clock
}

func TestAllowUpToLimit(t *testing.T) {
	l, _ := newLimiter(t, 3)
	for i := 0; i < 3; i++ {
		if ok, _ := l.Allow("10.0.0.1"); !ok {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	ok, wait := l.Allow("10.0.0.1")
	if ok {
		t.Fatal("fourth request should be limited")
	}
	if wait <= 0 || wait > 20*time.Second {
		t.Errorf("unexpected retry-after %v", wait)
	}
	if ok, _ := l.Allow("10.0.0.2"); !ok {
		t.Error("other keys must have their own bucket")
	}
}

func TestRefill(t *testing.T) {
	l, clock := newLimiter(t, 2)
	l.Allow("k")
	l.Allow("k")
	if ok, _ := l.Allow("k"); ok {
		t.Fatal("expected limit")
	}
	clock.advance(30 * time.Second)
	if ok, _ := l.Allow("k"); !ok {
		t.Error("expected one token after half a window")
	}
}

func TestDisabled(t *testing.T) {
	l, _ := newLimiter(t, 0)
	for i := 0; i < 100; i++ {
		if ok, _ := l.Allow("k"); !ok {
			t.Fatal("limit 0 must not limit")
		}
	}
}

func TestSweepRemovesIdleKeys(t *testing.T) {
	l, clock := newLimiter(t, 1)
	l.Allow("a")
	clock.advance(3 * time.Minute)
	l.Allow("b")
	l.sweep()
	if l.Len() != 1 {
		t.Errorf("expected only the recent key, have %d", l.Len())
	}
}
