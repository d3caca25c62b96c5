// Package repository defines the evaluation store interface and errors.
package repository

import (
	"context"

	"github.com/veritaslab/tribunal/internal/domain/model"
)

// Store provides read/write access to runs, items, judgments and consensus
// aggregates. Judgments are append-only; aggregates are upserted per
// (run, item) pair so late verdicts fold into the existing row.
type Store interface {
	// CreateRun registers a new run. Returns ErrRunExists on duplicate IDs.
	CreateRun(ctx context.Context, run model.Run) error
	// UpdateRun applies fn to the stored run under the store lock.
	UpdateRun(ctx context.Context, runID string, fn func(*model.Run)) error
	// Run returns a run by ID. Returns ErrNotFound if unknown.
	Run(ctx context.Context, runID string) (model.Run, error)

	// PutItems stores the run's input items, preserving order.
	PutItems(ctx context.Context, runID string, items []model.Item) error
	// Items returns the run's items in input order.
	Items(ctx context.Context, runID string) ([]model.Item, error)

	// AppendJudgments appends per-judge verdicts for one item.
	AppendJudgments(ctx context.Context, runID, itemID string, verdicts []model.JudgeVerdict) error
	// Judgments returns all verdicts recorded for one item.
	Judgments(ctx context.Context, runID, itemID string) ([]model.JudgeVerdict, error)

	// UpsertAggregate inserts or replaces the consensus row for an item.
	UpsertAggregate(ctx context.Context, runID string, agg model.Aggregate) error
	// Aggregate returns the consensus row for one item.
	// Returns ErrNotFound when no aggregate exists yet.
	Aggregate(ctx context.Context, runID, itemID string) (model.Aggregate, error)
	// Aggregates returns all consensus rows for a run in item input order.
	Aggregates(ctx context.Context, runID string) ([]model.Aggregate, error)

	// Close releases background resources.
	Close() error
}
