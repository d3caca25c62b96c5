// Package worker defines worker contracts for asynchronous chunk judging
// and consensus updates.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/veritaslab/tribunal/internal/adapters/judge"
	"github.com/veritaslab/tribunal/internal/adapters/mq/queue"
	"github.com/veritaslab/tribunal/internal/domain/model"
	"github.com/veritaslab/tribunal/pkg/logger"
	"github.com/veritaslab/tribunal/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerMultiplier = 2 // multiplier for runtime.NumCPU()
	metricsUpdateInterval   = 5 * time.Second
	workerShutdownTimeout   = 5 * time.Second
	poolShutdownTimeout     = 30 * time.Second
)

// Chunk abstracts what workers read off the queue.
// Using the model.Chunk type for consistency.
type Chunk = model.Chunk

// Aggregator folds all verdicts recorded for an item into its consensus row.
type Aggregator interface {
	Aggregate(item model.Item, verdicts []model.JudgeVerdict) model.Aggregate
}

// Recorder persists judgments and consensus rows.
type Recorder interface {
	AppendJudgments(ctx context.Context, runID, itemID string, verdicts []model.JudgeVerdict) error
	Judgments(ctx context.Context, runID, itemID string) ([]model.JudgeVerdict, error)
	UpsertAggregate(ctx context.Context, runID string, agg model.Aggregate) error
}

// Queue defines how workers receive chunks.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Chunk
}

// Worker processes chunks and writes consensus updates using the provided
// interfaces.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown gracefully stops the worker.
	// It will process any remaining chunks before stopping.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker for processing chunks. Each chunk is
// dispatched to every judge on the panel concurrently; items are then
// aggregated and persisted one by one so partial progress survives a
// mid-run failure.
type InMemoryWorker struct {
	queue      Queue
	panel      []judge.Client
	aggregator Aggregator
	recorder   Recorder
	dims       []string
	metricKeys []string
	name       string
	onChunk    func(Chunk)

	// Shutdown control
	shutdown chan struct{}
	done     chan struct{}

	// Logging
	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, panel []judge.Client, agg Aggregator, rec Recorder, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:      q,
		panel:      panel,
		aggregator: agg,
		recorder:   rec,
		name:       "worker", // default name
		shutdown:   make(chan struct{}),
		done:       make(chan struct{}),
		logger:     logger.Get().Named("worker"), // will be updated by options
	}

	// Apply all options
	for _, opt := range opts {
		opt(w)
	}

	// Set up logger with worker name if not already set
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}

	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer func() {
		close(w.done)
	}()

	chunkChan := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case chunk, ok := <-chunkChan:
			if !ok {
				// Channel closed, worker should stop
				return
			}

			if err := w.processChunk(ctx, chunk); err != nil {
				w.logger.Error(ctx, "error processing chunk", logger.Error(err))
			}
			if w.onChunk != nil {
				w.onChunk(chunk)
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	// Signal shutdown
	close(w.shutdown)

	// Wait for worker to finish or context to timeout
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// processChunk fans one chunk out to the full panel, then folds the column
// of verdicts for each item back into its consensus row.
func (w *InMemoryWorker) processChunk(ctx context.Context, chunk queue.Chunk) error {
	// Track overall processing latency
	start := time.Now()
	defer func() {
		latency := time.Since(start).Milliseconds()
		metrics.RecordWorkerProcessingLatency(float64(latency))
	}()

	req := judge.Request{Items: chunk.Items, Dims: w.dims, Metrics: w.metricKeys}

	// One goroutine per judge. Judges fail open, so the group never carries
	// an error; it is used for the fan-out/join shape and ctx propagation.
	results := make([][]model.JudgeVerdict, len(w.panel))
	g, gctx := errgroup.WithContext(ctx)
	for i, jc := range w.panel {
		g.Go(func() error {
			results[i] = jc.Judge(gctx, req)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var firstErr error
	for idx, item := range chunk.Items {
		column := make([]model.JudgeVerdict, 0, len(w.panel))
		for _, verdicts := range results {
			if idx < len(verdicts) {
				column = append(column, verdicts[idx])
			}
		}

		if err := w.recorder.AppendJudgments(ctx, chunk.RunID, item.ID, column); err != nil {
			metrics.RecordWorkerError()
			metrics.RecordErrorByComponent("worker", "judgment_write_error")
			w.logger.Error(ctx, "judgment write failed",
				logger.ItemID(item.ID),
				logger.Error(err),
			)
			if firstErr == nil {
				firstErr = fmt.Errorf("judgment write for item %s: %w", item.ID, err)
			}
			continue
		}

		// Re-read everything recorded for the item so reruns and late
		// verdicts fold into a single consensus row.
		all, err := w.recorder.Judgments(ctx, chunk.RunID, item.ID)
		if err != nil {
			metrics.RecordWorkerError()
			metrics.RecordErrorByComponent("worker", "judgment_read_error")
			if firstErr == nil {
				firstErr = fmt.Errorf("judgment read for item %s: %w", item.ID, err)
			}
			continue
		}

		agg := w.aggregator.Aggregate(item, all)
		if err := w.recorder.UpsertAggregate(ctx, chunk.RunID, agg); err != nil {
			metrics.RecordWorkerError()
			metrics.RecordErrorByComponent("worker", "aggregate_write_error")
			w.logger.Error(ctx, "consensus update failed",
				logger.ItemID(item.ID),
				logger.Error(err),
			)
			if firstErr == nil {
				firstErr = fmt.Errorf("consensus update for item %s: %w", item.ID, err)
			}
			continue
		}

		metrics.RecordItemJudged()
		if agg.NeedsReview {
			metrics.RecordNeedsReview()
		}
	}

	return firstErr
}

// Pool manages multiple workers.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue

	// Shutdown control
	shutdown chan struct{}

	// Logging
	logger logger.Logger
}

// NewPool creates a new worker pool. Worker count bounds how many chunks
// are judged at once across the whole run.
func NewPool(workerCount int, q Queue, panel []judge.Client, agg Aggregator, rec Recorder, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	pool := &Pool{
		workers:  make([]*InMemoryWorker, workerCount),
		queue:    q,
		shutdown: make(chan struct{}),
		logger:   logger.Get().Named("worker-pool"),
	}

	for i := 0; i < workerCount; i++ {
		workerOpts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		pool.workers[i] = NewInMemoryWorker(q, panel, agg, rec, workerOpts...)
	}

	// Initialize worker metrics
	metrics.UpdateWorkerCount(workerCount)
	metrics.UpdateWorkerActiveCount(workerCount)
	metrics.UpdateWorkerIdleCount(0)

	return pool
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, worker := range p.workers {
		go worker.Run(ctx)
	}
}

// Stop gracefully stops all workers.
func (p *Pool) Stop() {
	// Signal shutdown to all workers
	close(p.shutdown)

	for _, worker := range p.workers {
		select {
		case <-worker.shutdown:
		default:
			close(worker.shutdown)
		}
	}

	// Wait for all workers to finish
	for _, worker := range p.workers {
		select {
		case <-worker.done:
			// Worker finished
		case <-time.After(workerShutdownTimeout):
			// Worker timeout
		}
	}
}

// Shutdown gracefully shuts down the entire worker pool.
func (p *Pool) Shutdown(ctx context.Context) error {
	// First close the queue to stop new chunks
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	// Signal shutdown to all workers
	for _, worker := range p.workers {
		select {
		case <-worker.shutdown:
		default:
			close(worker.shutdown)
		}
	}

	// Wait for all workers to finish or context to timeout
	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, worker := range p.workers {
		select {
		case <-worker.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}

	return nil
}
