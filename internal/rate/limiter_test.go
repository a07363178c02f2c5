package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func exhaust(t *testing.T, l *Limiter, key string) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < l.Limit(); i++ {
		if err := l.Allow(ctx, key); err != nil {
			t.Fatalf("hit %d: %v", i+1, err)
		}
	}
	if err := l.Allow(ctx, key); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestMemoryLimiterWindow(t *testing.T) {
	counter := NewMemoryCounter()
	now := time.Unix(1_700_000_000, 0)
	counter.now = func() time.Time { return now }
	l := New(counter, 3, time.Minute)

	exhaust(t, l, "10.0.0.1")
	if err := l.Allow(context.Background(), "10.0.0.2"); err != nil {
		t.Fatalf("keys must be independent: %v", err)
	}

	now = now.Add(time.Minute)
	if err := l.Allow(context.Background(), "10.0.0.1"); err != nil {
		t.Fatalf("new window must reset the budget: %v", err)
	}
}

func TestRedisLimiterWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	l := New(NewRedisCounter(rdb, "tw:"), 2, time.Minute)
	exhaust(t, l, "10.0.0.1")

	if ttl := mr.TTL("tw:rl:10.0.0.1"); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("expected window ttl, got %v", ttl)
	}
	mr.FastForward(time.Minute + time.Second)
	if err := l.Allow(context.Background(), "10.0.0.1"); err != nil {
		t.Fatalf("expired window must reset: %v", err)
	}
}

func TestRedisLimiterUnavailable(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	mr.Close()

	l := New(NewRedisCounter(rdb, ""), 1, time.Minute)
	if err := l.Allow(context.Background(), "k"); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}
