package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestLocalLimiter_AllowsUpToLimit(t *testing.T) {
	l := NewLocal(2, time.Minute)
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		d := l.Allow(ctx, "user-1")
		if !d.Allowed {
			t.Fatalf("request %d: expected allowed, got %+v", i, d)
		}
		if d.Remaining != 2-i {
			t.Errorf("request %d: remaining = %d, want %d", i, d.Remaining, 2-i)
		}
	}
	d := l.Allow(ctx, "user-1")
	if d.Allowed || d.Remaining != 0 || d.Limit != 2 {
		t.Fatalf("third request: %+v", d)
	}
	if !d.ResetAt.After(now) {
		t.Errorf("reset %v should be after %v", d.ResetAt, now)
	}
	if other := l.Allow(ctx, "user-2"); !other.Allowed {
		t.Errorf("keys must be independent, got %+v", other)
	}
}

func TestLocalLimiter_Refills(t *testing.T) {
	l := NewLocal(1, time.Minute)
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	if !l.Allow(ctx, "k").Allowed {
		t.Fatal("first request denied")
	}
	if l.Allow(ctx, "k").Allowed {
		t.Fatal("second request in same window allowed")
	}
	now = now.Add(61 * time.Second)
	if !l.Allow(ctx, "k").Allowed {
		t.Fatal("request after refill denied")
	}
}

func TestLocalLimiter_EvictsIdleKeys(t *testing.T) {
	l := NewLocal(5, time.Second)
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	l.Allow(ctx, "a")
	l.Allow(ctx, "b")
	if l.Len() != 2 {
		t.Fatalf("len = %d, want 2", l.Len())
	}
	now = now.Add(2 * time.Second)
	l.Allow(ctx, "c")
	if l.Len() != 1 {
		t.Errorf("len after eviction = %d, want 1", l.Len())
	}
}

func TestNewLocal_Defaults(t *testing.T) {
	l := NewLocal(0, 0)
	if l.limit != 1 || l.window != time.Minute {
		t.Errorf("limit=%d window=%v", l.limit, l.window)
	}
}
