package ratelimit

import (
	"testing"
	"time"
)

func TestLimiter_PerKeyBurst(t *testing.T) {
	l := NewLimiter(0.001, 2)
	defer l.Stop()

	if !l.Allow("c1") || !l.Allow("c1") {
		t.Fatal("expected burst of 2 to be allowed")
	}
	if l.Allow("c1") {
		t.Fatal("expected third request to be limited")
	}
	if !l.Allow("c2") {
		t.Fatal("expected other key to have its own bucket")
	}
}

func TestLimiter_Evict(t *testing.T) {
	l := NewLimiter(1, 1)
	defer l.Stop()

	l.Allow("c1")
	l.evict(0)

	l.mu.Lock()
	n := len(l.visitors)
	l.mu.Unlock()
	if n != 0 {
		t.Fatalf("expected idle visitors to be evicted, got %d", n)
	}

	l.Allow("c2")
	l.evict(time.Hour)
	l.mu.Lock()
	n = len(l.visitors)
	l.mu.Unlock()
	if n != 1 {
		t.Fatalf("expected recent visitor to be kept, got %d", n)
	}
}
