package model

import "time"

// Run is one evaluation pass over a set of items by the configured panel.
type Run struct {
	ID         string
	Status     RunStatus
	CreatedAt  time.Time
	StartedAt  time.Time
	FinishedAt time.Time
	// Err holds the failure reason when Status is RunFailed.
	Err string
	// Summary is set once the run reaches RunDone.
	Summary *RunSummary
}
