package rate

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisLimiterForTest(t *testing.T, limit int, window time.Duration) (*RedisLimiter, *miniredis.Miniredis) {
	t.Helper()
	s, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(s.Close)

	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisLimiter(client, limit, window, "test:"), s
}

func TestRedisLimiterBlocksOverLimit(t *testing.T) {
	lim, s := newRedisLimiterForTest(t, 2, 500*time.Millisecond)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		allowed, _, err := lim.Allow(ctx, "198.51.100.7", time.Now())
		if err != nil {
			t.Fatalf("allow %d: %v", i, err)
		}
		if !allowed {
			t.Fatalf("call %d should be inside the window budget", i)
		}
	}

	allowed, retryAfter, err := lim.Allow(ctx, "198.51.100.7", time.Now())
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if allowed {
		t.Fatal("third call should be rejected")
	}
	if retryAfter <= 0 {
		t.Fatalf("retryAfter = %v, want > 0", retryAfter)
	}

	s.FastForward(600 * time.Millisecond)
	allowed, _, err = lim.Allow(ctx, "198.51.100.7", time.Now())
	if err != nil || !allowed {
		t.Fatalf("expected a fresh window after expiry, allowed=%v err=%v", allowed, err)
	}
}

func TestRedisLimiterKeysAreIndependent(t *testing.T) {
	lim, _ := newRedisLimiterForTest(t, 1, time.Minute)
	ctx := context.Background()

	if allowed, _, err := lim.Allow(ctx, "otp:a@shop.test", time.Now()); err != nil || !allowed {
		t.Fatalf("first key should be allowed, allowed=%v err=%v", allowed, err)
	}
	if allowed, _, _ := lim.Allow(ctx, "otp:a@shop.test", time.Now()); allowed {
		t.Fatal("first key should now be exhausted")
	}
	if allowed, _, err := lim.Allow(ctx, "otp:b@shop.test", time.Now()); err != nil || !allowed {
		t.Fatalf("second key must not share the first key's budget, allowed=%v err=%v", allowed, err)
	}
}
