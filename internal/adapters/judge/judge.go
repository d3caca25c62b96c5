// Package judge calls LLM judge backends over the OpenAI chat protocol and
// turns their replies into normalized verdicts. Clients fail open: a call
// that cannot produce usable output yields invalid verdicts, never an error,
// so one flaky judge cannot sink a whole run.
package judge

import (
	"context"

	"github.com/veritaslab/tribunal/internal/domain/model"
)

// Spec identifies one judge on the panel.
type Spec struct {
	ID        string
	Name      string
	Provider  string
	Model     string
	BaseURL   string
	APIKeyEnv string
	Optional  bool
}

// Request is one batched judging call: every item is judged against the
// same rubric dimensions and manual metrics.
type Request struct {
	Items   []model.Item
	Dims    []string
	Metrics []string
}

// Client judges a batch of items. Implementations never return an error;
// unusable output is reported as invalid verdicts, one per input item.
type Client interface {
	ID() string
	Name() string
	Judge(ctx context.Context, req Request) []model.JudgeVerdict
}

// invalidBatch fills a whole request with invalid verdicts.
func invalidBatch(judgeID string, req Request) []model.JudgeVerdict {
	out := make([]model.JudgeVerdict, len(req.Items))
	for i := range out {
		out[i] = model.InvalidVerdict(judgeID, req.Dims, req.Metrics)
	}
	return out
}
