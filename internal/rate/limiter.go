package rate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Counter increments a fixed-window counter and returns the new value.
// The window starts at the first hit and lasts window.
type Counter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RedisCounter keeps windows in Redis with INCR and EXPIRE.
type RedisCounter struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisCounter returns a Counter whose keys are prefixed with prefix.
func NewRedisCounter(client redis.UniversalClient, prefix string) *RedisCounter {
	if prefix == "" {
		prefix = "acrl"
	}
	return &RedisCounter{redis: client, prefix: prefix}
}

// Incr implements Counter.
func (c *RedisCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	full := c.prefix + ":" + key
	count, err := c.redis.Incr(ctx, full).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := c.redis.Expire(ctx, full, window).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	return count, nil
}

// MemoryCounter is a process-local Counter.
type MemoryCounter struct {
	mu      sync.Mutex
	windows map[string]memoryWindow
	now     func() time.Time
}

type memoryWindow struct {
	count   int64
	resetAt time.Time
}

// NewMemoryCounter returns an empty MemoryCounter.
func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{windows: make(map[string]memoryWindow), now: time.Now}
}

// Incr implements Counter.
func (c *MemoryCounter) Incr(_ context.Context, key string, window time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	w, ok := c.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = memoryWindow{resetAt: now.Add(window)}
	}
	w.count++
	c.windows[key] = w

	if len(c.windows) > 4096 {
		for k, v := range c.windows {
			if !now.Before(v.resetAt) {
				delete(c.windows, k)
			}
		}
	}
	return w.count, nil
}

// Rule is a budget of Max hits per Window.
type Rule struct {
	Max    int
	Window time.Duration
}

// Enabled reports whether the rule limits anything.
func (r Rule) Enabled() bool {
	return r.Max > 0 && r.Window > 0
}

// Limiter applies Rules to keys through a Counter.
type Limiter struct {
	counter Counter
}

// New returns a Limiter over counter.
func New(counter Counter) *Limiter {
	return &Limiter{counter: counter}
}

// Allow records one hit for key and returns ErrRateLimited once the rule's
// budget is exceeded. A nil Limiter allows everything.
func (l *Limiter) Allow(ctx context.Context, key string, rule Rule) error {
	if l == nil || l.counter == nil || !rule.Enabled() || key == "" {
		return nil
	}
	count, err := l.counter.Incr(ctx, key, rule.Window)
	if err != nil {
		return err
	}
	if count > int64(rule.Max) {
		return ErrRateLimited
	}
	return nil
}
