// Package worker defines worker contracts for asynchronous chunk judging
// and consensus updates.
package worker

import (
	"github.com/veritaslab/tribunal/pkg/logger"
)

// Option applies a configuration option to the InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(logger logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithRubric sets the rubric dimensions requested on every judge call.
func WithRubric(dims []string) Option {
	return func(w *InMemoryWorker) {
		w.dims = dims
	}
}

// WithManualMetrics sets the user-defined binary metrics requested on every
// judge call.
func WithManualMetrics(keys []string) Option {
	return func(w *InMemoryWorker) {
		w.metricKeys = keys
	}
}

// WithChunkCallback registers fn to run after each chunk is fully
// persisted. Used by the orchestrator to track run completion.
func WithChunkCallback(fn func(Chunk)) Option {
	return func(w *InMemoryWorker) {
		w.onChunk = fn
	}
}
