package security

import (
	"log/slog"
	"testing"
	"time"
)

func TestNewRateLimiter(t *testing.T) {
	rl := NewRateLimiter(10, 20, nil)
	defer rl.Stop()

	if rl.burst != 20 {
		t.Errorf("burst = %d, want 20", rl.burst)
	}
	if rl.maxEntries != DefaultRateLimiterMaxEntries {
		t.Errorf("maxEntries = %d, want %d", rl.maxEntries, DefaultRateLimiterMaxEntries)
	}
	if rl.logger == nil {
		t.Error("logger should not be nil")
	}
}

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiter(1, 5, slog.Default())
	defer rl.Stop()

	for i := 0; i < 5; i++ {
		if !rl.Allow("203.0.113.1") {
			t.Fatalf("Allow() request %d should be allowed", i+1)
		}
	}
	if rl.Allow("203.0.113.1") {
		t.Error("Allow() should return false once the burst is spent")
	}
	if !rl.Allow("203.0.113.2") {
		t.Error("Allow() for a different identifier should be allowed")
	}
}

func TestRateLimiter_LRUEviction(t *testing.T) {
	rl := NewRateLimiterWithConfig(1, 1, 2, slog.Default())
	defer rl.Stop()

	rl.Allow("a")
	rl.Allow("b")
	rl.Allow("c") // evicts "a"

	if got := rl.Len(); got != 2 {
		t.Errorf("Len() = %d, want 2", got)
	}
	if got := rl.Evictions(); got != 1 {
		t.Errorf("Evictions() = %d, want 1", got)
	}

	// "a" starts with a fresh bucket after eviction
	if !rl.Allow("a") {
		t.Error("Allow(a) after eviction should be allowed")
	}
}

func TestRateLimiter_Cleanup(t *testing.T) {
	rl := NewRateLimiter(1, 1, slog.Default())
	defer rl.Stop()

	rl.Allow("idle")
	time.Sleep(20 * time.Millisecond)
	rl.Allow("fresh")

	if removed := rl.Cleanup(10 * time.Millisecond); removed != 1 {
		t.Errorf("Cleanup() removed %d, want 1", removed)
	}
	if got := rl.Len(); got != 1 {
		t.Errorf("Len() = %d, want 1", got)
	}
}

func TestRateLimiter_StopTwice(t *testing.T) {
	rl := NewRateLimiter(1, 1, nil)
	rl.Stop()
	rl.Stop()
}
