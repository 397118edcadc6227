package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestMemoryLimiterEnforcesWindowLimit(t *testing.T) {
	lim := NewMemoryLimiter()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := lim.Allow(ctx, "u:1", 3, time.Second)
		if err != nil {
			t.Fatalf("allow %d: %v", i, err)
		}
		if !res.Allowed {
			t.Fatalf("request %d should be allowed", i)
		}
		if res.Remaining != 3-i-1 {
			t.Fatalf("request %d remaining = %d, want %d", i, res.Remaining, 3-i-1)
		}
	}

	res, err := lim.Allow(ctx, "u:1", 3, time.Second)
	if err != nil {
		t.Fatalf("allow over limit: %v", err)
	}
	if res.Allowed {
		t.Fatal("fourth request in window should be rejected")
	}
	if res.RetryIn <= 0 {
		t.Fatalf("RetryIn = %v, want positive", res.RetryIn)
	}
}

func TestMemoryLimiterWindowResets(t *testing.T) {
	lim := NewMemoryLimiter()
	now := time.Now()
	lim.now = func() time.Time { return now }
	ctx := context.Background()

	if res, _ := lim.Allow(ctx, "u:1", 1, time.Second); !res.Allowed {
		t.Fatal("first request should be allowed")
	}
	if res, _ := lim.Allow(ctx, "u:1", 1, time.Second); res.Allowed {
		t.Fatal("second request in same window should be rejected")
	}

	now = now.Add(time.Second)
	if res, _ := lim.Allow(ctx, "u:1", 1, time.Second); !res.Allowed {
		t.Fatal("request in next window should be allowed")
	}
}

func TestMemoryLimiterKeysAreIndependent(t *testing.T) {
	lim := NewMemoryLimiter()
	ctx := context.Background()

	if res, _ := lim.Allow(ctx, KeyForUser(1), 1, time.Second); !res.Allowed {
		t.Fatal("user 1 should be allowed")
	}
	if res, _ := lim.Allow(ctx, KeyForUser(2), 1, time.Second); !res.Allowed {
		t.Fatal("user 2 should not share user 1's budget")
	}
}

func TestMemoryLimiterDisabledLimitAllows(t *testing.T) {
	lim := NewMemoryLimiter()
	for i := 0; i < 10; i++ {
		res, err := lim.Allow(context.Background(), "u:1", 0, time.Second)
		if err != nil {
			t.Fatalf("allow: %v", err)
		}
		if !res.Allowed {
			t.Fatal("disabled limit should always allow")
		}
	}
}

func TestManagerWithoutRedisUsesMemory(t *testing.T) {
	m := NewManager(Options{Limit: 2, Window: time.Second})
	defer m.Close()
	ctx := context.Background()

	if res := m.AllowUser(ctx, 7); !res.Allowed {
		t.Fatal("first request should be allowed")
	}
	if res := m.AllowUser(ctx, 7); !res.Allowed {
		t.Fatal("second request should be allowed")
	}
	if res := m.AllowUser(ctx, 7); res.Allowed {
		t.Fatal("third request should hit the limit")
	}
	if res := m.AllowUser(ctx, 8); !res.Allowed {
		t.Fatal("another user should be unaffected")
	}
}

func TestManagerDisabledLimit(t *testing.T) {
	m := NewManager(Options{Limit: 0})
	defer m.Close()
	for i := 0; i < 5; i++ {
		if res := m.AllowUser(context.Background(), 1); !res.Allowed {
			t.Fatal("disabled manager should always allow")
		}
	}
}
