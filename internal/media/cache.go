package media

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/blake2b"
)

// ErrCacheMiss is returned by a Cache when the key is absent.
var ErrCacheMiss = errors.New("cache miss")

// Cache is the key/value store CachedSearcher needs.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// RedisCache adapts a go-redis client to Cache.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache wraps a Redis client.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	return b, err
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

// CachedSearcher memoizes search results. Only non-empty results are cached
// so a transient outage is not remembered.
type CachedSearcher struct {
	next  Searcher
	cache Cache
	ttl   time.Duration
}

// NewCachedSearcher wraps next with a cache. A non-positive ttl defaults to 24h.
func NewCachedSearcher(next Searcher, cache Cache, ttl time.Duration) *CachedSearcher {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &CachedSearcher{next: next, cache: cache, ttl: ttl}
}

// SearchCacheKey derives the cache key for a query. Queries differing only in
// case or surrounding whitespace share a key.
func SearchCacheKey(query string) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(query), " "))
	sum := blake2b.Sum256([]byte(normalized))
	return "videosearch:" + hex.EncodeToString(sum[:16])
}

func (s *CachedSearcher) Search(ctx context.Context, query string) []Video {
	key := SearchCacheKey(query)

	if raw, err := s.cache.Get(ctx, key); err == nil {
		var videos []Video
		if err := json.Unmarshal(raw, &videos); err == nil {
			return videos
		}
		slog.Warn("discarding corrupt video cache entry", "key", key)
	} else if !errors.Is(err, ErrCacheMiss) {
		slog.Warn("video cache read failed", "key", key, "error", err)
	}

	videos := s.next.Search(ctx, query)
	if len(videos) == 0 {
		return videos
	}

	raw, err := json.Marshal(videos)
	if err != nil {
		return videos
	}
	if err := s.cache.Set(ctx, key, raw, s.ttl); err != nil {
		slog.Warn("video cache write failed", "key", key, "error", err)
	}
	return videos
}
