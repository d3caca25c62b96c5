// Package consensus reconciles a panel of judge verdicts for one item into a
// single aggregate outcome.
package consensus

import (
	"math"
	"strings"

	"github.com/veritaslab/tribunal/internal/domain/model"
	"github.com/veritaslab/tribunal/internal/domain/reliability"
)

// Aggregation constants.
const (
	// notesMaxLen caps the combined per-dimension notes string.
	notesMaxLen = 120
	// confidenceDecimals is the rounding precision for aggregate confidence.
	confidenceDecimals = 3
)

// Aggregator turns judge verdicts into per-item aggregates for a fixed set of
// rubric dimensions and custom metrics.
type Aggregator struct {
	dims    []string
	metrics []string
}

// New creates an Aggregator over the enabled rubric dimensions and custom
// metric names.
func New(dims, metrics []string) *Aggregator {
	return &Aggregator{dims: dims, metrics: metrics}
}

// Dimensions returns the enabled rubric dimensions.
func (a *Aggregator) Dimensions() []string { return a.dims }

// Aggregate recomputes the item's aggregate from the full verdict set.
// Dimensions where no judge produced a boolean surface as nil, never false.
func (a *Aggregator) Aggregate(item model.Item, verdicts []model.JudgeVerdict) model.Aggregate {
	agg := model.Aggregate{
		ItemID:     item.ID,
		YesNo:      make(map[string]*bool, len(a.dims)+len(a.metrics)),
		Confidence: make(map[string]*float64, len(a.dims)+len(a.metrics)),
		Notes:      make(map[string]string, len(a.dims)),
		JudgeVotes: make(map[string]map[string]bool, len(a.dims)),
	}

	classVotes := make(model.VoteVector, 0, len(verdicts))
	for _, v := range verdicts {
		classVotes = append(classVotes, v.Label)
	}

	for _, d := range a.dims {
		a.aggregateLeaf(&agg, d, verdicts, func(v model.JudgeVerdict) (model.RubricLeaf, bool) {
			leaf, ok := v.Rubric[d]
			return leaf, ok
		})
	}
	for _, m := range a.metrics {
		a.aggregateLeaf(&agg, m, verdicts, func(v model.JudgeVerdict) (model.RubricLeaf, bool) {
			leaf, ok := v.Manual[m]
			return leaf, ok
		})
	}

	label, counts, tie := reliability.MajorityLabel(classVotes)
	agg.AggLabel = label
	agg.Counts = counts
	if item.PredictedLabel != model.LabelNone {
		agree := item.PredictedLabel == label
		agg.ClassAgreement = &agree
	}
	agg.NeedsReview = tie || distinctLabels(classVotes) > 1

	return agg
}

// aggregateLeaf applies the majority rule to one rubric dimension or custom
// metric. With more than two present votes a strict majority is required;
// with one or two, any pass wins (the lenient small-jury tie-break).
func (a *Aggregator) aggregateLeaf(agg *model.Aggregate, key string, verdicts []model.JudgeVerdict, pick func(model.JudgeVerdict) (model.RubricLeaf, bool)) {
	passes := 0
	totalPresent := 0
	supporterConfSum := 0.0
	var notes []string
	votes := make(map[string]bool)

	for _, v := range verdicts {
		leaf, ok := pick(v)
		if !ok {
			continue
		}
		if leaf.Notes != "" {
			notes = append(notes, v.JudgeID+": "+leaf.Notes)
		}
		if leaf.Pass == nil {
			continue
		}
		totalPresent++
		votes[v.JudgeID] = *leaf.Pass
		if *leaf.Pass {
			passes++
			if leaf.Confidence != nil {
				supporterConfSum += *leaf.Confidence
			}
		}
	}

	agg.Notes[key] = truncate(strings.Join(notes, " | "), notesMaxLen)
	if len(votes) > 0 {
		agg.JudgeVotes[key] = votes
	}
	if totalPresent == 0 {
		agg.YesNo[key] = nil
		agg.Confidence[key] = nil
		return
	}

	var yes bool
	if totalPresent > 2 {
		yes = passes > totalPresent/2
	} else {
		yes = passes >= 1
	}
	agg.YesNo[key] = &yes

	if passes > 0 {
		voteStrength := float64(passes) / float64(totalPresent)
		meanConf := supporterConfSum / float64(passes)
		conf := round(voteStrength*meanConf, confidenceDecimals)
		agg.Confidence[key] = &conf
	} else {
		agg.Confidence[key] = nil
	}
}

func distinctLabels(votes model.VoteVector) int {
	seen := make(map[model.Label]struct{}, 2)
	for _, v := range votes.Valid() {
		seen[v] = struct{}{}
	}
	return len(seen)
}

func round(v float64, decimals int) float64 {
	p := math.Pow10(decimals)
	return math.Round(v*p) / p
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
