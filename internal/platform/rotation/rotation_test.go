package rotation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestLocal_RoundRobin(t *testing.T) {
	c := NewLocal()
	keys := []string{"a", "b", "c"}

	var got []string
	for range 6 {
		k, _, ok := Pick(context.Background(), c, keys)
		if !ok {
			t.Fatal("Pick() ok = false")
		}
		got = append(got, k)
	}

	want := []string{"a", "b", "c", "a", "b", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("pick %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestLocal_ConcurrentUnique(t *testing.T) {
	c := NewLocal()
	const n = 200

	var mu sync.Mutex
	seen := make(map[uint64]bool, n)
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v := c.Next(context.Background())
			mu.Lock()
			seen[v] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(seen) != n {
		t.Errorf("unique positions = %d, want %d", len(seen), n)
	}
}

func TestPick_Empty(t *testing.T) {
	_, idx, ok := Pick[string](context.Background(), NewLocal(), nil)
	if ok || idx != -1 {
		t.Errorf("Pick(nil) = (%d, %v), want (-1, false)", idx, ok)
	}
}

func TestRedisCounter_NilClientFallsBack(t *testing.T) {
	c := NewRedisCounter(nil, "test")
	if got := c.Next(context.Background()); got != 0 {
		t.Errorf("Next() = %d, want 0", got)
	}
	if got := c.Next(context.Background()); got != 1 {
		t.Errorf("Next() = %d, want 1", got)
	}
}

func TestRedisCounter_UnreachableFallsBack(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping unreachable host test in short mode")
	}

	client := redis.NewClient(&redis.Options{
		Addr:        "localhost:59999",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	c := NewRedisCounter(client, "test")
	first := c.Next(t.Context())
	second := c.Next(t.Context())
	if second != first+1 {
		t.Errorf("fallback positions = %d, %d; want consecutive", first, second)
	}
}
