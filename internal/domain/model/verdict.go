// Package model contains domain models passed between layers.
package model

import "strings"

// Label is a classification category for one evaluated sentence.
type Label string

// Fixed category set. Parsed values outside it are dropped, never coerced.
const (
	LabelAmbiguous   Label = "ambiguous"
	LabelUnambiguous Label = "unambiguous"
	// LabelNone marks a missing or unparseable vote.
	LabelNone Label = ""
)

// Categories returns the fixed category set in canonical order.
func Categories() []Label {
	return []Label{LabelAmbiguous, LabelUnambiguous}
}

// ParseLabel maps a raw judge output to a category, or LabelNone when the
// value is not in the category set.
func ParseLabel(raw string) Label {
	switch Label(strings.ToLower(strings.TrimSpace(raw))) {
	case LabelAmbiguous:
		return LabelAmbiguous
	case LabelUnambiguous:
		return LabelUnambiguous
	}
	return LabelNone
}

// NormalizeLabel maps free-form upstream spellings ("Ambiguous", "a", "1",
// "true") onto the category set. Anything else reads as unambiguous, matching
// the ingestion contract for predicted/gold columns.
func NormalizeLabel(raw string) Label {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "ambiguous", "a", "1", "true":
		return LabelAmbiguous
	}
	return LabelUnambiguous
}

// Item is one evaluation unit. Immutable once loaded into a run.
type Item struct {
	ID             string
	Sentence       string
	PredictedLabel Label
	Rationale      string
	// GoldLabel is LabelNone when the upstream file carried no gold column.
	GoldLabel Label
}

// RubricLeaf is one judge's assessment of a single rubric dimension or
// custom metric. Nil Pass/Confidence mean the judge produced no usable value
// for that leaf; such leaves contribute nothing to aggregation.
type RubricLeaf struct {
	Pass       *bool
	Confidence *float64
	Notes      string
}

// JudgeVerdict is one judge's assessment of one item. Verdicts are
// append-only facts: duplicates for the same (run, item, judge) are retained
// and aggregation always recomputes from the full set.
type JudgeVerdict struct {
	JudgeID string
	// Label is LabelNone when the judge's class output was missing or
	// outside the category set.
	Label     Label
	Rubric    map[string]RubricLeaf
	Manual    map[string]RubricLeaf
	LatencyMS float64
	// Invalid marks a fallback verdict produced after transport or parse
	// failure rather than a real judge response.
	Invalid bool
}

// InvalidVerdict builds the fail-open fallback verdict: no class vote, and
// every enabled rubric/manual leaf pass=false, confidence=0, notes="error".
func InvalidVerdict(judgeID string, dims, metrics []string) JudgeVerdict {
	leaf := func() RubricLeaf {
		no := false
		zero := 0.0
		return RubricLeaf{Pass: &no, Confidence: &zero, Notes: "error"}
	}
	v := JudgeVerdict{
		JudgeID: judgeID,
		Label:   LabelNone,
		Rubric:  make(map[string]RubricLeaf, len(dims)),
		Manual:  make(map[string]RubricLeaf, len(metrics)),
		Invalid: true,
	}
	for _, d := range dims {
		v.Rubric[d] = leaf()
	}
	for _, m := range metrics {
		v.Manual[m] = leaf()
	}
	return v
}

// VoteVector is the class votes for one item, one column per configured
// judge in roster order. Missing votes hold LabelNone so column alignment is
// preserved across items for pairwise kappa.
type VoteVector []Label

// Valid returns the votes that fall in the category set.
func (v VoteVector) Valid() []Label {
	out := make([]Label, 0, len(v))
	for _, l := range v {
		if l == LabelAmbiguous || l == LabelUnambiguous {
			out = append(out, l)
		}
	}
	return out
}

// Aggregate is the reconciled per-item result. It is recomputed from the
// full judgment set whenever a new batch of judgments for the item completes.
type Aggregate struct {
	ItemID string
	// YesNo holds the per-dimension consensus outcome; nil means no judge
	// produced a usable value for that dimension.
	YesNo      map[string]*bool
	Confidence map[string]*float64
	Notes      map[string]string
	// JudgeVotes records each judge's boolean per dimension for display.
	JudgeVotes map[string]map[string]bool
	AggLabel   Label
	Counts     map[Label]int
	// ClassAgreement is nil when the item carried no predicted label.
	ClassAgreement *bool
	NeedsReview    bool
}

// RunStatus tracks the run lifecycle.
type RunStatus string

const (
	RunPending    RunStatus = "PENDING"
	RunProcessing RunStatus = "PROCESSING"
	RunDone       RunStatus = "DONE"
	RunFailed     RunStatus = "FAILED"
)

// AnchorStats counts how many items the anchor lexicon seeded per category.
type AnchorStats struct {
	AmbiguousSeed   int
	UnambiguousSeed int
	None            int
}

// RunSummary holds run-scoped statistics, computed once at run completion.
type RunSummary struct {
	Items    int
	Judges   []string
	PassRate map[string]float64
	// AgreementRate is the share of items whose aggregate label matched the
	// predicted label.
	AgreementRate float64
	// GoldAccuracy is nil when no item carried a gold label.
	GoldAccuracy *float64
	FleissKappa  *float64
	// CohenPairs is keyed by roster column pair, e.g. "12", "13", "23".
	CohenPairs map[string]float64
	// DSDiffRate is the disagreement rate between majority-vote labels and
	// Dawid-Skene labels; nil when DS-EM did not run.
	DSDiffRate *float64
	Anchors    AnchorStats
	ElapsedMS  float64
}
