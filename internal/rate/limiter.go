package rate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Counter increments the hit count of key inside a window of the given
// length and returns the new count.
type Counter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// Limiter allows at most Limit hits per Window for each key.
type Limiter struct {
	counter Counter
	limit   int
	window  time.Duration
}

func New(counter Counter, limit int, window time.Duration) *Limiter {
	return &Limiter{counter: counter, limit: limit, window: window}
}

func (l *Limiter) Limit() int            { return l.limit }
func (l *Limiter) Window() time.Duration { return l.window }

// Allow records a hit for key. Counter failures are returned wrapped in
// ErrRedisUnavailable; callers decide whether to fail open.
func (l *Limiter) Allow(ctx context.Context, key string) error {
	count, err := l.counter.Incr(ctx, key, l.window)
	if err != nil {
		return err
	}
	if count > int64(l.limit) {
		return ErrRateLimited
	}
	return nil
}

// RedisCounter keeps windows in Redis so several server processes share
// one budget.
type RedisCounter struct {
	redis  redis.UniversalClient
	prefix string
}

func NewRedisCounter(client redis.UniversalClient, prefix string) *RedisCounter {
	return &RedisCounter{redis: client, prefix: prefix}
}

func (c *RedisCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	k := c.prefix + "rl:" + key
	count, err := c.redis.Incr(ctx, k).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count == 1 {
		if err := c.redis.Expire(ctx, k, window).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	return count, nil
}

// MemoryCounter is a process-local Counter.
type MemoryCounter struct {
	mu      sync.Mutex
	windows map[string]*memoryWindow
	now     func() time.Time
}

type memoryWindow struct {
	start time.Time
	count int64
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{windows: make(map[string]*memoryWindow), now: time.Now}
}

func (c *MemoryCounter) Incr(_ context.Context, key string, window time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	w, ok := c.windows[key]
	if !ok || now.Sub(w.start) >= window {
		w = &memoryWindow{start: now}
		c.windows[key] = w
	}
	w.count++
	return w.count, nil
}
