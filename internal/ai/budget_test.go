package ai

import (
	"context"
	"os"
	"testing"

	"github.com/redis/go-redis/v9"
)

func TestInMemoryBudget_Check(t *testing.T) {
	tests := []struct {
		name         string
		defaultLimit int64
		userLimit    int64 // 0 = not set
		used         int
		want         bool
	}{
		{"no budget means unlimited", 0, 0, 1_000_000, true},
		{"within budget", 0, 1000, 500, true},
		{"over budget", 0, 100, 150, false},
		{"exact budget is exhausted", 0, 100, 100, false},
		{"default limit applies", 200, 0, 250, false},
		{"explicit limit overrides default", 200, 1000, 250, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			b := NewInMemoryBudget(tt.defaultLimit)
			if tt.userLimit > 0 {
				b.SetBudget("tenant1", "user1", tt.userLimit)
			}
			if err := b.Record(ctx, "tenant1", "user1", tt.used); err != nil {
				t.Fatalf("Record() error = %v", err)
			}

			ok, err := b.Check(ctx, "tenant1", "user1")
			if err != nil {
				t.Fatalf("Check() error = %v", err)
			}
			if ok != tt.want {
				t.Errorf("Check() = %v, want %v", ok, tt.want)
			}
		})
	}
}

func TestInMemoryBudget_MultipleRecords(t *testing.T) {
	ctx := context.Background()
	b := NewInMemoryBudget(0)
	b.SetBudget("t", "u", 1000)

	for range 3 {
		if err := b.Record(ctx, "t", "u", 100); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	used, limit, err := b.Usage(ctx, "t", "u")
	if err != nil {
		t.Fatalf("Usage() error = %v", err)
	}
	if used != 300 {
		t.Errorf("used = %d, want 300", used)
	}
	if limit != 1000 {
		t.Errorf("limit = %d, want 1000", limit)
	}
}

func TestInMemoryBudget_NegativeTokens(t *testing.T) {
	b := NewInMemoryBudget(0)
	if err := b.Record(context.Background(), "t", "u", -1); err == nil {
		t.Error("Record() should reject negative tokens")
	}
}

func TestInMemoryBudget_IsolatedUsers(t *testing.T) {
	ctx := context.Background()
	b := NewInMemoryBudget(100)

	_ = b.Record(ctx, "t", "alice", 100)

	if ok, _ := b.Check(ctx, "t", "alice"); ok {
		t.Error("alice should be over budget")
	}
	if ok, _ := b.Check(ctx, "t", "bob"); !ok {
		t.Error("bob should be unaffected by alice's usage")
	}
}

func TestRedisBudget_UnlimitedSkipsRedis(t *testing.T) {
	// Nil client: Check must not touch Redis when unlimited.
	b := NewRedisBudget(nil, 0)
	ok, err := b.Check(context.Background(), "t", "u")
	if err != nil || !ok {
		t.Errorf("Check() = %v, %v; want true, nil", ok, err)
	}
}

func TestRedisBudget_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	addr := os.Getenv("LEARN_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("LEARN_TEST_REDIS_ADDR not set")
	}

	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	b := NewRedisBudget(client, 100)
	tenant := "budget-test"
	user := t.Name()
	t.Cleanup(func() { client.Del(ctx, b.key(tenant, user)) })

	if err := b.Record(ctx, tenant, user, 60); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if ok, _ := b.Check(ctx, tenant, user); !ok {
		t.Error("Check() = false after 60/100")
	}
	if err := b.Record(ctx, tenant, user, 40); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if ok, _ := b.Check(ctx, tenant, user); ok {
		t.Error("Check() = true after 100/100")
	}
}
