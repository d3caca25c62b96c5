package limiter

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

// defaultGateLimit bounds simultaneous in-flight calls for models without an
// explicit configuration.
const defaultGateLimit = 4

// GateRegistry holds one counting semaphore per model key, bounding
// simultaneous outstanding calls to that backend independently of the token
// budget. The gate is held around the network call only.
type GateRegistry struct {
	mu           sync.Mutex
	gates        map[string]*semaphore.Weighted
	defaultLimit int64
	configured   map[string]int64
}

// GateOption applies a configuration option to the GateRegistry.
type GateOption func(*GateRegistry)

// WithDefaultGateLimit sets the concurrency bound for unconfigured models.
func WithDefaultGateLimit(limit int) GateOption {
	return func(g *GateRegistry) {
		if limit > 0 {
			g.defaultLimit = int64(limit)
		}
	}
}

// WithGateLimit sets the concurrency bound for one model key.
func WithGateLimit(modelKey string, limit int) GateOption {
	return func(g *GateRegistry) {
		if modelKey != "" && limit > 0 {
			g.configured[modelKey] = int64(limit)
		}
	}
}

// NewGateRegistry creates a gate registry with configuration options.
func NewGateRegistry(opts ...GateOption) *GateRegistry {
	g := &GateRegistry{
		gates:        make(map[string]*semaphore.Weighted),
		defaultLimit: defaultGateLimit,
		configured:   make(map[string]int64),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Acquire blocks until a slot for the model key is free. Callers must
// Release on every exit path.
func (g *GateRegistry) Acquire(ctx context.Context, modelKey string) error {
	if err := g.gate(modelKey).Acquire(ctx, 1); err != nil {
		return fmt.Errorf("concurrency gate for %s: %w", modelKey, err)
	}
	return nil
}

// Release frees one slot for the model key.
func (g *GateRegistry) Release(modelKey string) {
	g.gate(modelKey).Release(1)
}

func (g *GateRegistry) gate(modelKey string) *semaphore.Weighted {
	g.mu.Lock()
	defer g.mu.Unlock()
	if s, ok := g.gates[modelKey]; ok {
		return s
	}
	limit := g.defaultLimit
	if l, ok := g.configured[modelKey]; ok {
		limit = l
	}
	s := semaphore.NewWeighted(limit)
	g.gates[modelKey] = s
	return s
}
