package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestMemoryAllowsUpToLimit(t *testing.T) {
	lim := NewMemory(3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, _, err := lim.Allow(ctx, "u1")
		if err != nil {
			t.Fatalf("allow %d: %v", i, err)
		}
		if !allowed {
			t.Fatalf("request %d should be allowed", i)
		}
	}

	allowed, remaining, err := lim.Allow(ctx, "u1")
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if allowed {
		t.Fatalf("request over limit should be rejected")
	}
	if remaining != 0 {
		t.Fatalf("expected remaining 0, got %d", remaining)
	}
}

func TestMemoryIdentitiesAreIndependent(t *testing.T) {
	lim := NewMemory(1, time.Minute)
	ctx := context.Background()

	if allowed, _, _ := lim.Allow(ctx, "u1"); !allowed {
		t.Fatalf("first request for u1 should pass")
	}
	if allowed, _, _ := lim.Allow(ctx, "u2"); !allowed {
		t.Fatalf("first request for u2 should pass")
	}
	if allowed, _, _ := lim.Allow(ctx, "u1"); allowed {
		t.Fatalf("second request for u1 should be rejected")
	}
}

func TestMemoryWindowSlides(t *testing.T) {
	lim := NewMemory(1, 20*time.Millisecond)
	ctx := context.Background()

	if allowed, _, _ := lim.Allow(ctx, "u1"); !allowed {
		t.Fatalf("first request should pass")
	}
	if allowed, _, _ := lim.Allow(ctx, "u1"); allowed {
		t.Fatalf("second request inside window should be rejected")
	}

	time.Sleep(30 * time.Millisecond)

	if allowed, _, _ := lim.Allow(ctx, "u1"); !allowed {
		t.Fatalf("request after window should pass")
	}
}
