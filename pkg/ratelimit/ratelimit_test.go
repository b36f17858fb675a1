package ratelimit

import (
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newTestLimiter(limit int, window time.Duration) (*Limiter, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	l := New(limit, window)
	l.now = clock.now
	return l, clock
}

func TestAllowExhaustsBucket(t *testing.T) {
	l, _ := newTestLimiter(3, time.Minute)
	for i := 0; i < 3; i++ {
		if !l.Allow("10.0.0.1") {
			t.Fatalf("request %d rejected", i+1)
		}
	}
	if l.Allow("10.0.0.1") {
		t.Error("fourth request should be rejected")
	}
	if !l.Allow("10.0.0.2") {
		t.Error("other keys have their own bucket")
	}
}

func TestAllowRefills(t *testing.T) {
	l, clock := newTestLimiter(60, time.Minute)
	for i := 0; i < 60; i++ {
		l.Allow("k")
	}
	if l.Allow("k") {
		t.Fatal("bucket should be empty")
	}
	clock.t = clock.t.Add(2 * time.Second)
	if !l.Allow("k") || !l.Allow("k") {
		t.Error("two tokens should have refilled after two seconds")
	}
	if l.Allow("k") {
		t.Error("only two tokens should have refilled")
	}
}

func TestEvict(t *testing.T) {
	l, clock := newTestLimiter(5, time.Minute)
	l.Allow("old")
	clock.t = clock.t.Add(90 * time.Second)
	l.Allow("new")
	clock.t = clock.t.Add(40 * time.Second)
	l.evict()
	if l.Len() != 1 {
		t.Errorf("tracked keys = %d, want 1", l.Len())
	}
}

func TestZeroLimitRejects(t *testing.T) {
	l, _ := newTestLimiter(0, time.Minute)
	if l.Allow("k") || l.Allow("k") {
		t.Error("zero limit should reject everything")
	}
}
