package security

import (
	"errors"
	"testing"
	"time"
)

func TestLimiterAllowsUpToMax(t *testing.T) {
	l := NewLimiter()
	for i := 0; i < 3; i++ {
		if err := l.Allow("scope", "client-a", 3, time.Minute, 0); err != nil {
			t.Fatalf("call %d: unexpected error %v", i, err)
		}
	}
	if err := l.Allow("scope", "client-a", 3, time.Minute, 0); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("4th call = %v, want ErrRateLimited", err)
	}
}

func TestLimiterIsolatesClients(t *testing.T) {
	l := NewLimiter()
	if err := l.Allow("scope", "client-a", 1, time.Minute, 0); err != nil {
		t.Fatalf("client-a: %v", err)
	}
	if err := l.Allow("scope", "client-b", 1, time.Minute, 0); err != nil {
		t.Fatalf("client-b should have its own bucket: %v", err)
	}
}

func TestLimiterMinIntervalDebounce(t *testing.T) {
	l := NewLimiter()
	if err := l.Allow("scope", "client-a", 100, time.Minute, 50*time.Millisecond); err != nil {
		t.Fatalf("first call: %v", err)
	}
	if err := l.Allow("scope", "client-a", 100, time.Minute, 50*time.Millisecond); !errors.Is(err, ErrTooFrequent) {
		t.Fatalf("immediate second call = %v, want ErrTooFrequent", err)
	}
	time.Sleep(60 * time.Millisecond)
	if err := l.Allow("scope", "client-a", 100, time.Minute, 50*time.Millisecond); err != nil {
		t.Fatalf("call after interval: %v", err)
	}
}
