package model

// Chunk is a contiguous slice of a run's items dispatched to the judge
// panel as one batched call per judge.
type Chunk struct {
	RunID string
	// Start is the index of the first item within the run's input order.
	Start int
	Items []Item
}
