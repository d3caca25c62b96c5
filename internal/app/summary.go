package service

import (
	"context"
	"fmt"
	"math"

	"github.com/veritaslab/tribunal/internal/domain/model"
	"github.com/veritaslab/tribunal/internal/domain/reliability"
	"github.com/veritaslab/tribunal/pkg/logger"
	"github.com/veritaslab/tribunal/pkg/metrics"
)

// summarize computes the run-scoped statistics from the persisted judgments
// and consensus rows. Items whose Dawid-Skene label disagrees with the
// stored consensus label are flagged for review in place.
func (s *Service) summarize(ctx context.Context, runID string, items []model.Item, elapsedMS float64) (model.RunSummary, error) {
	judges := make([]string, len(s.panel))
	for i, jc := range s.panel {
		judges[i] = jc.ID()
	}

	// One vote vector per item, one column per judge in roster order. A
	// judge that produced several verdicts for an item (reruns) counts by
	// its most recent one.
	votes := make([]model.VoteVector, 0, len(items))
	priors := make([]model.Label, 0, len(items))
	var anchorStats model.AnchorStats
	for _, item := range items {
		recorded, err := s.store.Judgments(ctx, runID, item.ID)
		if err != nil {
			return model.RunSummary{}, err
		}
		latest := make(map[string]model.Label, len(judges))
		for _, v := range recorded {
			latest[v.JudgeID] = v.Label
		}
		vec := make(model.VoteVector, len(judges))
		for i, id := range judges {
			vec[i] = latest[id]
		}
		votes = append(votes, vec)

		prior := s.matcher.Match(item.Sentence)
		switch prior {
		case model.LabelAmbiguous:
			anchorStats.AmbiguousSeed++
		case model.LabelUnambiguous:
			anchorStats.UnambiguousSeed++
		default:
			anchorStats.None++
		}
		priors = append(priors, prior)
	}

	aggs, err := s.store.Aggregates(ctx, runID)
	if err != nil {
		return model.RunSummary{}, err
	}
	aggByItem := make(map[string]model.Aggregate, len(aggs))
	for _, a := range aggs {
		aggByItem[a.ItemID] = a
	}

	summary := model.RunSummary{
		Items:      len(items),
		Judges:     judges,
		PassRate:   make(map[string]float64),
		CohenPairs: make(map[string]float64),
		Anchors:    anchorStats,
		ElapsedMS:  elapsedMS,
	}

	// Per-dimension pass rates over items with a usable consensus value.
	keys := make([]string, 0, len(s.dims)+len(s.metricKeys))
	keys = append(keys, s.dims...)
	keys = append(keys, s.metricKeys...)
	for _, key := range keys {
		passed, present := 0, 0
		for _, a := range aggs {
			if v := a.YesNo[key]; v != nil {
				present++
				if *v {
					passed++
				}
			}
		}
		if present > 0 {
			summary.PassRate[key] = round3(float64(passed) / float64(present))
		}
	}

	agreeNum, agreeDen := 0, 0
	goldNum, goldDen := 0, 0
	for _, item := range items {
		a, ok := aggByItem[item.ID]
		if !ok {
			continue
		}
		if a.ClassAgreement != nil {
			agreeDen++
			if *a.ClassAgreement {
				agreeNum++
			}
		}
		if item.GoldLabel != model.LabelNone {
			goldDen++
			if a.AggLabel == item.GoldLabel {
				goldNum++
			}
		}
	}
	if agreeDen > 0 {
		summary.AgreementRate = round3(float64(agreeNum) / float64(agreeDen))
	}
	if goldDen > 0 {
		acc := round3(float64(goldNum) / float64(goldDen))
		summary.GoldAccuracy = &acc
	}

	// Inter-rater statistics need at least two judges.
	if len(judges) >= 2 && len(votes) > 0 {
		fleiss := round3(reliability.FleissKappa(votes))
		summary.FleissKappa = &fleiss

		for i := 0; i < len(judges); i++ {
			for j := i + 1; j < len(judges); j++ {
				colI := column(votes, i)
				colJ := column(votes, j)
				key := fmt.Sprintf("%d%d", i+1, j+1)
				summary.CohenPairs[key] = round3(reliability.CohenKappa(colI, colJ))
			}
		}

		dsLabels := reliability.DawidSkene(votes, priors)
		majority := make([]model.Label, len(votes))
		for i, v := range votes {
			majority[i], _, _ = reliability.MajorityLabel(v)
		}
		diff := round3(reliability.DisagreementRate(majority, dsLabels))
		summary.DSDiffRate = &diff

		for i, item := range items {
			a, ok := aggByItem[item.ID]
			if !ok {
				continue
			}
			if dsLabels[i] != a.AggLabel && !a.NeedsReview {
				a.NeedsReview = true
				if err := s.store.UpsertAggregate(ctx, runID, a); err != nil {
					s.logger.Error(ctx, "review flag update failed",
						logger.ItemID(item.ID),
						logger.Error(err),
					)
					continue
				}
				metrics.RecordNeedsReview()
			}
		}
	}

	return summary, nil
}

// column extracts one judge's votes across all items.
func column(votes []model.VoteVector, idx int) []model.Label {
	out := make([]model.Label, len(votes))
	for i, v := range votes {
		out[i] = v[idx]
	}
	return out
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
