package ai

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// BudgetChecker checks and records generation token usage per tenant/user.
type BudgetChecker interface {
	// Check returns true if the tenant/user has budget remaining.
	Check(ctx context.Context, tenantID, userID string) (bool, error)
	// Record records token usage for a tenant/user.
	Record(ctx context.Context, tenantID, userID string, tokens int) error
	// Usage returns current usage and limit for a tenant/user. A zero limit means unlimited.
	Usage(ctx context.Context, tenantID, userID string) (used int64, limit int64, err error)
}

// InMemoryBudget is an in-process budget tracker for development and tests.
type InMemoryBudget struct {
	mu           sync.RWMutex
	defaultLimit int64
	budgets      map[string]int64 // key -> budget limit
	usage        map[string]int64 // key -> tokens used
}

// NewInMemoryBudget creates a tracker. defaultLimit applies to users without
// an explicit budget; zero means unlimited.
func NewInMemoryBudget(defaultLimit int64) *InMemoryBudget {
	return &InMemoryBudget{
		defaultLimit: defaultLimit,
		budgets:      make(map[string]int64),
		usage:        make(map[string]int64),
	}
}

// SetBudget sets the token budget for a tenant/user.
func (b *InMemoryBudget) SetBudget(tenantID, userID string, tokens int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.budgets[budgetKey(tenantID, userID)] = tokens
}

func (b *InMemoryBudget) limit(key string) int64 {
	if l, ok := b.budgets[key]; ok {
		return l
	}
	return b.defaultLimit
}

func (b *InMemoryBudget) Check(_ context.Context, tenantID, userID string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	key := budgetKey(tenantID, userID)
	limit := b.limit(key)
	if limit <= 0 {
		return true, nil
	}
	return b.usage[key] < limit, nil
}

func (b *InMemoryBudget) Record(_ context.Context, tenantID, userID string, tokens int) error {
	if tokens < 0 {
		return fmt.Errorf("tokens must be non-negative, got %d", tokens)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.usage[budgetKey(tenantID, userID)] += int64(tokens)
	return nil
}

func (b *InMemoryBudget) Usage(_ context.Context, tenantID, userID string) (int64, int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	key := budgetKey(tenantID, userID)
	return b.usage[key], b.limit(key), nil
}

// RedisBudget tracks usage in Redis with one counter per tenant/user per UTC day,
// so limits are shared across replicas and reset daily.
type RedisBudget struct {
	client *redis.Client
	limit  int64
	now    func() time.Time
}

// NewRedisBudget creates a Redis-backed daily budget. A zero limit means unlimited.
func NewRedisBudget(client *redis.Client, dailyLimit int64) *RedisBudget {
	return &RedisBudget{client: client, limit: dailyLimit, now: time.Now}
}

func (b *RedisBudget) key(tenantID, userID string) string {
	return "budget:" + b.now().UTC().Format("2006-01-02") + ":" + budgetKey(tenantID, userID)
}

func (b *RedisBudget) Check(ctx context.Context, tenantID, userID string) (bool, error) {
	if b.limit <= 0 {
		return true, nil
	}
	used, _, err := b.Usage(ctx, tenantID, userID)
	if err != nil {
		return false, err
	}
	return used < b.limit, nil
}

func (b *RedisBudget) Record(ctx context.Context, tenantID, userID string, tokens int) error {
	if tokens < 0 {
		return fmt.Errorf("tokens must be non-negative, got %d", tokens)
	}
	key := b.key(tenantID, userID)
	pipe := b.client.TxPipeline()
	pipe.IncrBy(ctx, key, int64(tokens))
	pipe.Expire(ctx, key, 48*time.Hour)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record usage: %w", err)
	}
	return nil
}

func (b *RedisBudget) Usage(ctx context.Context, tenantID, userID string) (int64, int64, error) {
	used, err := b.client.Get(ctx, b.key(tenantID, userID)).Int64()
	if err == redis.Nil {
		return 0, b.limit, nil
	}
	if err != nil {
		return 0, b.limit, fmt.Errorf("read usage: %w", err)
	}
	return used, b.limit, nil
}

func budgetKey(tenantID, userID string) string {
	return tenantID + ":" + userID
}
