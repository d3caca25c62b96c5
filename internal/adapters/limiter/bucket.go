// Package limiter provides admission control for judge provider calls: a
// token-per-minute bucket and a concurrent-call gate, each keyed by
// (provider, model). Registries are process-wide, internally synchronized,
// and injected into the orchestrator; callers never lock around them.
package limiter

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"
)

// Default admission constants.
const (
	// defaultCapacityPerMinute is the token budget for models without an
	// explicit configuration.
	defaultCapacityPerMinute = 6000
	secondsPerMinute         = 60
	// estimateCharsPerToken is the cheap provider-agnostic approximation of
	// prompt tokens from text length.
	estimateCharsPerToken = 4
	// EstimateOverhead covers message framing and schema boilerplate.
	EstimateOverhead = 64
)

// Key builds the registry key for one judged model. Budgets and gates are
// scoped per (provider, model): the same model name reached through two
// providers is two separate backends with separate limits.
func Key(provider, model string) string {
	if provider == "" {
		return model
	}
	return provider + "/" + model
}

// EstimateTokens approximates the token cost of one request:
// len(prompt)/4 + maxOutput + overhead.
func EstimateTokens(prompt string, maxOutput, overhead int) int {
	n := len(prompt)/estimateCharsPerToken + maxOutput + overhead
	if n < 1 {
		n = 1
	}
	return n
}

// Registry holds one token bucket per model key, created lazily with a
// default budget when unconfigured. Buckets refill continuously at
// capacity/60 tokens per second, capped at capacity.
type Registry struct {
	mu              sync.Mutex
	buckets         map[string]*bucket
	defaultCapacity int
	configured      map[string]int
}

type bucket struct {
	limiter  *rate.Limiter
	capacity int
}

// RegistryOption applies a configuration option to the Registry.
type RegistryOption func(*Registry)

// WithDefaultCapacity sets the per-minute budget for unconfigured models.
func WithDefaultCapacity(perMinute int) RegistryOption {
	return func(r *Registry) {
		if perMinute > 0 {
			r.defaultCapacity = perMinute
		}
	}
}

// WithCapacity sets the per-minute budget for one model key.
func WithCapacity(modelKey string, perMinute int) RegistryOption {
	return func(r *Registry) {
		if modelKey != "" && perMinute > 0 {
			r.configured[modelKey] = perMinute
		}
	}
}

// NewRegistry creates a bucket registry with configuration options.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		buckets:         make(map[string]*bucket),
		defaultCapacity: defaultCapacityPerMinute,
		configured:      make(map[string]int),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Acquire suspends until requiredTokens of capacity is available for the
// model key, then debits it. Requests larger than the bucket capacity are
// clamped to it so they admit at full-bucket instead of waiting forever.
func (r *Registry) Acquire(ctx context.Context, modelKey string, requiredTokens int) error {
	b := r.bucket(modelKey)
	if requiredTokens < 1 {
		requiredTokens = 1
	}
	if requiredTokens > b.capacity {
		requiredTokens = b.capacity
	}
	if err := b.limiter.WaitN(ctx, requiredTokens); err != nil {
		return fmt.Errorf("token bucket wait for %s: %w", modelKey, err)
	}
	return nil
}

// Capacity reports the per-minute budget in effect for the model key.
func (r *Registry) Capacity(modelKey string) int {
	return r.bucket(modelKey).capacity
}

func (r *Registry) bucket(modelKey string) *bucket {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.buckets[modelKey]; ok {
		return b
	}
	capacity := r.defaultCapacity
	if c, ok := r.configured[modelKey]; ok {
		capacity = c
	}
	b := &bucket{
		limiter:  rate.NewLimiter(rate.Limit(float64(capacity)/secondsPerMinute), capacity),
		capacity: capacity,
	}
	r.buckets[modelKey] = b
	return b
}
