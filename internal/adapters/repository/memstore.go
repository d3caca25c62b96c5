// Package repository defines the evaluation store interface and errors.
package repository

import (
	"context"
	"sync"
	"time"

	"github.com/veritaslab/tribunal/internal/domain/model"
	"github.com/veritaslab/tribunal/pkg/metrics"
)

// In-memory Store implementation.
//
// Judgments for an item accumulate in arrival order. Aggregates are keyed by
// (run, item) and replaced wholesale on upsert, so a rerun of the consensus
// step after late verdicts leaves exactly one row per item.

// runState holds everything recorded for one run.
type runState struct {
	run        model.Run
	items      []model.Item
	itemIndex  map[string]int
	judgments  map[string][]model.JudgeVerdict
	aggregates map[string]model.Aggregate
}

type MemStore struct {
	mu   sync.RWMutex
	runs map[string]*runState

	metricsUpdateInterval time.Duration

	// Background goroutine management
	wg       sync.WaitGroup
	stopChan chan struct{}
}

// NewMemStore constructs an in-memory store with configuration options.
func NewMemStore(ctx context.Context, opts ...Option) *MemStore {
	s := &MemStore{
		runs:                  make(map[string]*runState),
		metricsUpdateInterval: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.stopChan = make(chan struct{})
	s.startMetricsUpdater(ctx)

	return s
}

// Close gracefully shuts down the background metrics goroutine.
func (s *MemStore) Close() error {
	select {
	case <-s.stopChan:
		// Channel already closed
	default:
		close(s.stopChan)
	}
	s.wg.Wait()
	return nil
}

// CreateRun implements Store.CreateRun.
func (s *MemStore) CreateRun(ctx context.Context, run model.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[run.ID]; exists {
		return ErrRunExists
	}
	s.runs[run.ID] = &runState{
		run:        run,
		itemIndex:  make(map[string]int),
		judgments:  make(map[string][]model.JudgeVerdict),
		aggregates: make(map[string]model.Aggregate),
	}
	return nil
}

// UpdateRun implements Store.UpdateRun.
func (s *MemStore) UpdateRun(ctx context.Context, runID string, fn func(*model.Run)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.runs[runID]
	if !ok {
		return ErrNotFound
	}
	fn(&st.run)
	return nil
}

// Run implements Store.Run.
func (s *MemStore) Run(ctx context.Context, runID string) (model.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.runs[runID]
	if !ok {
		return model.Run{}, ErrNotFound
	}
	return st.run, nil
}

// PutItems implements Store.PutItems.
func (s *MemStore) PutItems(ctx context.Context, runID string, items []model.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.runs[runID]
	if !ok {
		return ErrNotFound
	}
	st.items = append([]model.Item(nil), items...)
	st.itemIndex = make(map[string]int, len(items))
	for i, it := range items {
		st.itemIndex[it.ID] = i
	}
	return nil
}

// Items implements Store.Items.
func (s *MemStore) Items(ctx context.Context, runID string) ([]model.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.runs[runID]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]model.Item(nil), st.items...), nil
}

// AppendJudgments implements Store.AppendJudgments.
func (s *MemStore) AppendJudgments(ctx context.Context, runID, itemID string, verdicts []model.JudgeVerdict) error {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryUpdateLatency(float64(time.Since(start).Milliseconds()))
	}()

	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.runs[runID]
	if !ok {
		return ErrNotFound
	}
	if _, known := st.itemIndex[itemID]; !known {
		return ErrNotFound
	}
	st.judgments[itemID] = append(st.judgments[itemID], verdicts...)
	return nil
}

// Judgments implements Store.Judgments.
func (s *MemStore) Judgments(ctx context.Context, runID, itemID string) ([]model.JudgeVerdict, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.runs[runID]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]model.JudgeVerdict(nil), st.judgments[itemID]...), nil
}

// UpsertAggregate implements Store.UpsertAggregate.
func (s *MemStore) UpsertAggregate(ctx context.Context, runID string, agg model.Aggregate) error {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryUpdateLatency(float64(time.Since(start).Milliseconds()))
	}()

	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.runs[runID]
	if !ok {
		return ErrNotFound
	}
	if _, known := st.itemIndex[agg.ItemID]; !known {
		return ErrNotFound
	}
	st.aggregates[agg.ItemID] = agg
	metrics.RecordAggregateUpsert()
	return nil
}

// Aggregate implements Store.Aggregate.
func (s *MemStore) Aggregate(ctx context.Context, runID, itemID string) (model.Aggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.runs[runID]
	if !ok {
		return model.Aggregate{}, ErrNotFound
	}
	agg, ok := st.aggregates[itemID]
	if !ok {
		return model.Aggregate{}, ErrNotFound
	}
	return agg, nil
}

// Aggregates implements Store.Aggregates. Rows come back in item input
// order; items without an aggregate yet are skipped.
func (s *MemStore) Aggregates(ctx context.Context, runID string) ([]model.Aggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.runs[runID]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]model.Aggregate, 0, len(st.aggregates))
	for _, it := range st.items {
		if agg, ok := st.aggregates[it.ID]; ok {
			out = append(out, agg)
		}
	}
	return out, nil
}

// startMetricsUpdater starts a background goroutine that refreshes store
// gauges at the configured interval.
func (s *MemStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.updateMetrics()
			}
		}
	}()
}

func (s *MemStore) updateMetrics() {
	s.mu.RLock()
	runs := len(s.runs)
	judgments := 0
	aggregates := 0
	for _, st := range s.runs {
		for _, vs := range st.judgments {
			judgments += len(vs)
		}
		aggregates += len(st.aggregates)
	}
	s.mu.RUnlock()

	metrics.UpdateRepositoryRunCount(runs)
	metrics.UpdateRepositoryJudgmentCount(judgments)
	metrics.UpdateRepositoryAggregateCount(aggregates)
}
