// Package reliability computes multi-rater agreement statistics: majority
// vote with tie detection, a simplified binary Dawid-Skene EM, and Fleiss'
// and Cohen's kappa.
package reliability

import (
	"github.com/veritaslab/tribunal/internal/domain/model"
)

// Dawid-Skene tuning constants.
const (
	dsMaxIterations = 50
	// Shared worker accuracy is clamped away from degenerate certainty.
	dsAccuracyFloor   = 0.51
	dsAccuracyCeiling = 0.99
	dsInitialAccuracy = 0.7
)

// MajorityLabel returns the plurality label among the valid votes, the
// per-category counts, and whether the top two counts are tied. An empty or
// all-invalid vote set returns the conservative default with tie=true.
func MajorityLabel(votes model.VoteVector) (model.Label, map[model.Label]int, bool) {
	counts := make(map[model.Label]int, 2)
	for _, c := range model.Categories() {
		counts[c] = 0
	}
	total := 0
	for _, v := range votes.Valid() {
		counts[v]++
		total++
	}
	if total == 0 {
		return model.LabelAmbiguous, counts, true
	}

	top, second := model.LabelNone, 0
	best := -1
	for _, c := range model.Categories() {
		n := counts[c]
		if n > best {
			second = best
			best = n
			top = c
		} else if n > second {
			second = n
		}
	}
	return top, counts, second == best
}

// DawidSkene estimates latent true labels from per-item vote vectors using a
// hard EM with a single shared accuracy per category. Each item's latent
// label is seeded from priors[i] when it is a valid category, else from the
// majority vote. The result is deterministic for identical inputs.
func DawidSkene(votes []model.VoteVector, priors []model.Label) []model.Label {
	if len(votes) == 0 {
		return nil
	}

	latent := make([]model.Label, len(votes))
	for i, v := range votes {
		if i < len(priors) && (priors[i] == model.LabelAmbiguous || priors[i] == model.LabelUnambiguous) {
			latent[i] = priors[i]
			continue
		}
		m, _, _ := MajorityLabel(v)
		latent[i] = m
	}

	acc := map[model.Label]float64{
		model.LabelAmbiguous:   dsInitialAccuracy,
		model.LabelUnambiguous: dsInitialAccuracy,
	}

	other := func(c model.Label) model.Label {
		if c == model.LabelAmbiguous {
			return model.LabelUnambiguous
		}
		return model.LabelAmbiguous
	}

	for iter := 0; iter < dsMaxIterations; iter++ {
		// M-step: shared accuracy per category, the fraction of votes that
		// match the current latent label.
		num := map[model.Label]int{}
		den := map[model.Label]int{}
		for i, v := range votes {
			z := latent[i]
			for _, vote := range v.Valid() {
				den[z]++
				if vote == z {
					num[z]++
				}
			}
		}
		for _, c := range model.Categories() {
			if den[c] > 0 {
				a := float64(num[c]) / float64(den[c])
				if a < dsAccuracyFloor {
					a = dsAccuracyFloor
				} else if a > dsAccuracyCeiling {
					a = dsAccuracyCeiling
				}
				acc[c] = a
			}
		}

		// Reassignment: weighted likelihood, each vote supports its own
		// label with that label's accuracy and the other label with the
		// other's error mass.
		changed := false
		for i, v := range votes {
			score := map[model.Label]float64{
				model.LabelAmbiguous:   1.0,
				model.LabelUnambiguous: 1.0,
			}
			for _, vote := range v.Valid() {
				score[vote] *= acc[vote]
				o := other(vote)
				score[o] *= 1.0 - acc[o]
			}
			// Deterministic tie-break: iterate the canonical category order
			// and keep the first maximum.
			best := model.Categories()[0]
			for _, c := range model.Categories()[1:] {
				if score[c] > score[best] {
					best = c
				}
			}
			if latent[i] != best {
				latent[i] = best
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	return latent
}

// DisagreementRate reports the fraction of items where the two label slices
// differ, comparing up to the shorter length.
func DisagreementRate(a, b []model.Label) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n == 0 {
		return 0
	}
	diff := 0
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			diff++
		}
	}
	return float64(diff) / float64(n)
}
