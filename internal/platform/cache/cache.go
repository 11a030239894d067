// Package cache opens the Redis client shared by credential rotation, token
// budgets and the video search cache.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	dialTimeout = 5 * time.Second
	ioTimeout   = 3 * time.Second
)

// Cache holds the shared Redis client.
type Cache struct {
	Client *redis.Client
}

// ParseURL validates a redis:// or rediss:// URL and applies the client
// timeouts. Rotation counters fall back to local state when Redis is slow, so
// reads and writes are kept short.
func ParseURL(url string) (*redis.Options, error) {
	if url == "" {
		return nil, fmt.Errorf("cache URL is empty")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid cache URL: %w", err)
	}
	opts.DialTimeout = dialTimeout
	opts.ReadTimeout = ioTimeout
	opts.WriteTimeout = ioTimeout
	opts.ClientName = "pai-courses"
	return opts, nil
}

// Open connects to url and pings the server before returning.
func Open(ctx context.Context, url string) (*Cache, error) {
	opts, err := ParseURL(url)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging cache at %s: %w", opts.Addr, err)
	}

	slog.Info("cache connected", "addr", opts.Addr, "db", opts.DB, "tls", opts.TLSConfig != nil)
	return &Cache{Client: client}, nil
}

// Close releases the connection pool.
func (c *Cache) Close() error {
	stats := c.Client.PoolStats()
	slog.Info("cache closing", "hits", stats.Hits, "misses", stats.Misses, "timeouts", stats.Timeouts)
	return c.Client.Close()
}

// HealthCheck pings the server.
func (c *Cache) HealthCheck(ctx context.Context) error {
	if err := c.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("cache ping: %w", err)
	}
	return nil
}
