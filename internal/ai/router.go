package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/p-n-ai/pai-courses/internal/platform/rotation"
)

type namedProvider struct {
	name     string
	provider Provider
}

// Router rotates requests across a pool of provider credentials. Each call
// starts at the next round-robin position and, on failure, walks the rest of
// the pool immediately until one succeeds.
type Router struct {
	pool    []namedProvider
	counter rotation.Counter
	mu      sync.RWMutex
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithCounter sets the rotation counter (e.g. a Redis-backed one shared by
// replicas). Defaults to an in-process counter.
func WithCounter(c rotation.Counter) RouterOption {
	return func(r *Router) {
		r.counter = c
	}
}

// NewRouter creates a new AI router.
func NewRouter(opts ...RouterOption) *Router {
	r := &Router{counter: rotation.NewLocal()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a provider credential to the pool.
func (r *Router) Register(name string, provider Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pool = append(r.pool, namedProvider{name: name, provider: provider})

	models := provider.Models()
	ids := make([]string, 0, len(models))
	for _, m := range models {
		ids = append(ids, m.ID)
	}
	slog.Debug("AI credential registered", "provider", name, "models", ids)
}

// HealthCheck reports the pool healthy when any credential answers. Each
// credential is checked in registration order and the first success wins.
func (r *Router) HealthCheck(ctx context.Context) error {
	r.mu.RLock()
	pool := r.pool
	r.mu.RUnlock()

	if len(pool) == 0 {
		return fmt.Errorf("%w: no providers registered", ErrProviderExhausted)
	}

	var errs []error
	for _, np := range pool {
		if err := np.provider.HealthCheck(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", np.name, err))
			continue
		}
		return nil
	}
	return fmt.Errorf("%w: %w", ErrProviderExhausted, errors.Join(errs...))
}

// Complete sends the request to the next credential in rotation, falling
// through the remaining ones on error.
func (r *Router) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	r.mu.RLock()
	pool := r.pool
	r.mu.RUnlock()

	if len(pool) == 0 {
		return CompletionResponse{}, fmt.Errorf("%w: no providers registered", ErrProviderExhausted)
	}

	start := int(r.counter.Next(ctx) % uint64(len(pool)))
	var errs []error
	for i := range pool {
		np := pool[(start+i)%len(pool)]

		resp, err := np.provider.Complete(ctx, req)
		if err != nil {
			slog.Warn("AI provider failed, trying next",
				"provider", np.name,
				"task", req.Task.String(),
				"error", err,
			)
			errs = append(errs, fmt.Errorf("%s: %w", np.name, err))
			continue
		}

		resp.Provider = np.name
		slog.Debug("AI request completed",
			"provider", np.name,
			"task", req.Task.String(),
			"model", resp.Model,
			"input_tokens", resp.InputTokens,
			"output_tokens", resp.OutputTokens,
		)
		return resp, nil
	}

	return CompletionResponse{}, fmt.Errorf("%w: %w", ErrProviderExhausted, errors.Join(errs...))
}

// HasProvider returns true if at least one provider is registered.
func (r *Router) HasProvider() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.pool) > 0
}

// Size returns the number of registered credentials.
func (r *Router) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.pool)
}
