// Package rotation provides round-robin position counters for credential pools.
package rotation

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// Counter hands out monotonically increasing positions. Callers take the
// position modulo their pool size.
type Counter interface {
	Next(ctx context.Context) uint64
}

// Local is an in-process atomic counter.
type Local struct {
	n atomic.Uint64
}

// NewLocal creates a counter starting at zero.
func NewLocal() *Local {
	return &Local{}
}

// Next returns the current position and advances the counter.
func (l *Local) Next(_ context.Context) uint64 {
	return l.n.Add(1) - 1
}

// RedisCounter shares a position across replicas using INCR on one key.
// When Redis is unavailable it falls back to a local counter so rotation
// keeps working with weaker fairness.
type RedisCounter struct {
	client   *redis.Client
	key      string
	timeout  time.Duration
	fallback *Local
}

// NewRedisCounter creates a counter stored under the given key.
func NewRedisCounter(client *redis.Client, key string) *RedisCounter {
	return &RedisCounter{
		client:   client,
		key:      "rotation:" + key,
		timeout:  500 * time.Millisecond,
		fallback: NewLocal(),
	}
}

func (r *RedisCounter) Next(ctx context.Context) uint64 {
	if r.client == nil {
		return r.fallback.Next(ctx)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	n, err := r.client.Incr(ctx, r.key).Result()
	if err != nil || n <= 0 {
		slog.Warn("rotation counter unavailable, using local counter",
			"key", r.key,
			"error", err,
		)
		return r.fallback.Next(ctx)
	}
	return uint64(n - 1)
}

// Pick returns the item at the counter's next position.
func Pick[T any](ctx context.Context, c Counter, items []T) (T, int, bool) {
	var zero T
	if len(items) == 0 {
		return zero, -1, false
	}
	idx := int(c.Next(ctx) % uint64(len(items)))
	return items[idx], idx, true
}
