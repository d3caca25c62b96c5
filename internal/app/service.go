// Package service provides the run orchestrator: it chunks a run's items,
// dispatches the chunks to the judge panel through the queue and worker
// pool, and folds the results into per-item consensus rows and a run
// summary.
package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	judgeclient "github.com/veritaslab/tribunal/internal/adapters/judge"
	chunkqueue "github.com/veritaslab/tribunal/internal/adapters/mq/queue"
	workerpool "github.com/veritaslab/tribunal/internal/adapters/mq/worker"
	repository "github.com/veritaslab/tribunal/internal/adapters/repository"
	"github.com/veritaslab/tribunal/internal/domain/anchors"
	"github.com/veritaslab/tribunal/internal/domain/consensus"
	"github.com/veritaslab/tribunal/internal/domain/model"
	"github.com/veritaslab/tribunal/pkg/logger"
	"github.com/veritaslab/tribunal/pkg/metrics"
)

// Default orchestration constants.
const (
	defaultChunkSize = 8
	defaultQueueSize = 10000
)

// runProgress tracks outstanding chunks for an in-flight run.
type runProgress struct {
	remaining int64
	done      chan struct{}
}

// Service implements the run lifecycle for the consensus engine.
type Service struct {
	mu sync.RWMutex

	// Core components
	store      repository.Store
	chunkQueue chunkqueue.Queue
	workerPool *workerpool.Pool
	panel      []judgeclient.Client
	aggregator *consensus.Aggregator
	matcher    *anchors.Matcher

	// Configuration
	workerCount int
	queueSize   int
	chunkSize   int
	dims        []string
	metricKeys  []string

	// State
	started  bool
	progress map[string]*runProgress

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the backing store.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithPanel sets the judge panel in roster order.
func WithPanel(panel []judgeclient.Client) Option {
	return func(s *Service) {
		s.panel = panel
	}
}

// WithAnchorMatcher sets the lexicon matcher used to seed reliability priors.
func WithAnchorMatcher(m *anchors.Matcher) Option {
	return func(s *Service) {
		if m != nil {
			s.matcher = m
		}
	}
}

// WithWorkerCount sets the number of chunk workers, which bounds how many
// chunks are judged concurrently.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum size of the chunk queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithChunkSize sets how many items go into one batched judge call.
func WithChunkSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.chunkSize = size
		}
	}
}

// WithRubric sets the enabled rubric dimensions.
func WithRubric(dims []string) Option {
	return func(s *Service) {
		s.dims = judgeclient.FilterDimensions(dims)
	}
}

// WithManualMetrics sets the user-defined binary metrics.
func WithManualMetrics(keys []string) Option {
	return func(s *Service) {
		s.metricKeys = keys
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount: runtime.NumCPU() * 2, // Default to 2x CPU cores
		queueSize:   defaultQueueSize,
		chunkSize:   defaultChunkSize,
		dims:        judgeclient.RubricOrder,
		progress:    make(map[string]*runProgress),
		logger:      nil, // Will be replaced when service starts
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if len(s.panel) == 0 {
		return ErrEmptyPanel
	}

	// Initialize logger if not already set
	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting consensus service...")

	// Initialize components
	if s.store == nil {
		s.store = repository.NewMemStore(ctx)
		s.logger.Info(ctx, "using in-memory store")
	}
	if s.matcher == nil {
		s.matcher = anchors.New()
	}
	s.aggregator = consensus.New(s.dims, s.metricKeys)
	s.chunkQueue = chunkqueue.NewInMemoryQueue(
		chunkqueue.WithCapacity(s.queueSize),
		chunkqueue.WithBufferSize(s.queueSize),
	)

	// Create and start the worker pool; the chunk callback drives run
	// completion tracking.
	s.workerPool = workerpool.NewPool(s.workerCount, s.chunkQueue, s.panel, s.aggregator, s.store,
		workerpool.WithRubric(s.dims),
		workerpool.WithManualMetrics(s.metricKeys),
		workerpool.WithChunkCallback(s.chunkDone),
	)
	s.workerPool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "consensus service started",
		logger.Int("workers", s.workerCount),
		logger.Int("judges", len(s.panel)),
		logger.Int("chunkSize", s.chunkSize),
	)

	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.logger.Info(context.Background(), "stopping consensus service...")

	if s.workerPool != nil {
		s.workerPool.Stop()
	}
	if s.chunkQueue != nil {
		_ = s.chunkQueue.Close()
	}
	if s.store != nil {
		_ = s.store.Close()
	}

	s.started = false
	s.logger.Info(context.Background(), "consensus service stopped")
}

// CreateRun registers a new pending run over the given items.
func (s *Service) CreateRun(ctx context.Context, items []model.Item) (string, error) {
	if len(items) == 0 {
		return "", ErrNoItems
	}
	runID := uuid.NewString()
	if err := s.store.CreateRun(ctx, model.Run{
		ID:        runID,
		Status:    model.RunPending,
		CreatedAt: time.Now(),
	}); err != nil {
		return "", err
	}
	if err := s.store.PutItems(ctx, runID, items); err != nil {
		return "", err
	}
	return runID, nil
}

// Execute drives one run to completion: chunk, enqueue, wait for the pool
// to drain the run, then compute and persist the summary.
func (s *Service) Execute(ctx context.Context, runID string) (model.RunSummary, error) {
	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()
	if !started {
		return model.RunSummary{}, ErrNotStarted
	}

	items, err := s.store.Items(ctx, runID)
	if err != nil {
		return model.RunSummary{}, err
	}

	start := time.Now()
	if err := s.store.UpdateRun(ctx, runID, func(r *model.Run) {
		r.Status = model.RunProcessing
		r.StartedAt = start
	}); err != nil {
		return model.RunSummary{}, err
	}

	chunks := s.chunkItems(runID, items)
	progress := &runProgress{
		remaining: int64(len(chunks)),
		done:      make(chan struct{}),
	}
	s.mu.Lock()
	s.progress[runID] = progress
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.progress, runID)
		s.mu.Unlock()
	}()

	for _, chunk := range chunks {
		if !s.chunkQueue.Enqueue(ctx, chunk) {
			s.failRun(ctx, runID, "chunk enqueue rejected")
			return model.RunSummary{}, fmt.Errorf("%w: run %s", ErrEnqueueFailed, runID)
		}
	}

	select {
	case <-progress.done:
	case <-ctx.Done():
		s.failRun(ctx, runID, ctx.Err().Error())
		return model.RunSummary{}, ctx.Err()
	}

	summary, err := s.summarize(ctx, runID, items, float64(time.Since(start))/float64(time.Millisecond))
	if err != nil {
		s.failRun(ctx, runID, err.Error())
		return model.RunSummary{}, err
	}

	if err := s.store.UpdateRun(ctx, runID, func(r *model.Run) {
		r.Status = model.RunDone
		r.FinishedAt = time.Now()
		r.Summary = &summary
	}); err != nil {
		return model.RunSummary{}, err
	}
	metrics.RecordRunCompleted()

	s.logger.Info(ctx, "run completed",
		logger.RunID(runID),
		logger.Int("items", summary.Items),
		logger.Float64("elapsedMS", summary.ElapsedMS),
	)
	return summary, nil
}

// Evaluate is the one-shot path: create a run over items and execute it.
func (s *Service) Evaluate(ctx context.Context, items []model.Item) (string, model.RunSummary, error) {
	runID, err := s.CreateRun(ctx, items)
	if err != nil {
		return "", model.RunSummary{}, err
	}
	summary, err := s.Execute(ctx, runID)
	return runID, summary, err
}

// Run returns the stored run record.
func (s *Service) Run(ctx context.Context, runID string) (model.Run, error) {
	return s.store.Run(ctx, runID)
}

// Aggregates returns the run's consensus rows in item input order.
func (s *Service) Aggregates(ctx context.Context, runID string) ([]model.Aggregate, error) {
	return s.store.Aggregates(ctx, runID)
}

// chunkItems splits the run's items into dispatch chunks.
func (s *Service) chunkItems(runID string, items []model.Item) []model.Chunk {
	var chunks []model.Chunk
	for start := 0; start < len(items); start += s.chunkSize {
		end := start + s.chunkSize
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, model.Chunk{
			RunID: runID,
			Start: start,
			Items: items[start:end],
		})
	}
	return chunks
}

// chunkDone is invoked by workers after a chunk is fully persisted.
func (s *Service) chunkDone(chunk model.Chunk) {
	s.mu.RLock()
	progress := s.progress[chunk.RunID]
	s.mu.RUnlock()
	if progress == nil {
		return
	}
	if atomic.AddInt64(&progress.remaining, -1) == 0 {
		close(progress.done)
	}
}

func (s *Service) failRun(ctx context.Context, runID, reason string) {
	metrics.RecordRunFailed()
	if err := s.store.UpdateRun(ctx, runID, func(r *model.Run) {
		r.Status = model.RunFailed
		r.FinishedAt = time.Now()
		r.Err = reason
	}); err != nil {
		s.logger.Error(ctx, "failed to mark run as failed",
			logger.RunID(runID),
			logger.Error(err),
		)
	}
}
