package reliability

import (
	"github.com/veritaslab/tribunal/internal/domain/model"
)

// FleissKappa computes the two-category Fleiss' kappa over per-item vote
// vectors. Only valid votes count; the rater count n is per item, and items
// with n<=1 contribute P_i=0. Returns 0 when expected agreement is 1.
func FleissKappa(votes []model.VoteVector) float64 {
	if len(votes) == 0 {
		return 0
	}
	cats := model.Categories()
	catTotals := make(map[model.Label]int, len(cats))
	voteTotal := 0

	pSum := 0.0
	for _, v := range votes {
		valid := v.Valid()
		n := len(valid)
		counts := make(map[model.Label]int, len(cats))
		for _, l := range valid {
			counts[l]++
			catTotals[l]++
		}
		voteTotal += n
		if n > 1 {
			agree := 0
			for _, c := range cats {
				k := counts[c]
				agree += k * (k - 1)
			}
			pSum += float64(agree) / float64(n*(n-1))
		}
	}

	pBar := pSum / float64(len(votes))
	pe := 0.0
	if voteTotal > 0 {
		for _, c := range cats {
			p := float64(catTotals[c]) / float64(voteTotal)
			pe += p * p
		}
	}
	if pe == 1.0 {
		return 0
	}
	return (pBar - pe) / (1 - pe)
}

// CohenKappa computes pairwise Cohen's kappa between two raters' aligned
// label vectors. Positions where either rater abstained (LabelNone or
// out-of-category) are skipped so only jointly-rated items count. Returns 0
// when expected agreement is 1 or no jointly-rated items exist.
func CohenKappa(a, b []model.Label) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	cats := model.Categories()
	inSet := func(l model.Label) bool {
		return l == model.LabelAmbiguous || l == model.LabelUnambiguous
	}

	total := 0
	agree := 0
	countA := make(map[model.Label]int, len(cats))
	countB := make(map[model.Label]int, len(cats))
	for i := 0; i < n; i++ {
		if !inSet(a[i]) || !inSet(b[i]) {
			continue
		}
		total++
		countA[a[i]]++
		countB[b[i]]++
		if a[i] == b[i] {
			agree++
		}
	}
	if total == 0 {
		return 0
	}

	po := float64(agree) / float64(total)
	pe := 0.0
	for _, c := range cats {
		pe += (float64(countA[c]) / float64(total)) * (float64(countB[c]) / float64(total))
	}
	if pe == 1.0 {
		return 0
	}
	return (po - pe) / (1 - pe)
}
