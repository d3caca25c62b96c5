package service

import "errors"

// Sentinel kinds for orchestration errors.
var (
	ErrEmptyPanel    = errors.New("no judges configured")
	ErrNoItems       = errors.New("run has no items")
	ErrNotStarted    = errors.New("service not started")
	ErrEnqueueFailed = errors.New("chunk enqueue failed")

	ErrUnsupportedFormat     = errors.New("unsupported items file format")
	ErrMissingSentenceColumn = errors.New("items file has no sentence column")
)
