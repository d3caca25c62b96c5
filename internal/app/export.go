package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/veritaslab/tribunal/internal/domain/model"
)

// ExportCSV writes the run's consensus rows as CSV. Columns are stable per
// configuration: identity, class outcome, then one pass/confidence/notes
// triple per rubric dimension and manual metric.
func (s *Service) ExportCSV(ctx context.Context, runID string, w io.Writer) error {
	items, err := s.store.Items(ctx, runID)
	if err != nil {
		return err
	}
	aggs, err := s.store.Aggregates(ctx, runID)
	if err != nil {
		return err
	}
	aggByItem := make(map[string]model.Aggregate, len(aggs))
	for _, a := range aggs {
		aggByItem[a.ItemID] = a
	}

	keys := make([]string, 0, len(s.dims)+len(s.metricKeys))
	keys = append(keys, s.dims...)
	keys = append(keys, s.metricKeys...)

	cw := csv.NewWriter(w)
	header := []string{"item_id", "sentence", "predicted_label", "agg_label", "class_agreement", "needs_review"}
	for _, key := range keys {
		header = append(header, key+"_pass", key+"_confidence", key+"_notes")
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, item := range items {
		a, ok := aggByItem[item.ID]
		if !ok {
			continue
		}
		record := []string{
			item.ID,
			item.Sentence,
			string(item.PredictedLabel),
			string(a.AggLabel),
			optBool(a.ClassAgreement),
			strconv.FormatBool(a.NeedsReview),
		}
		for _, key := range keys {
			record = append(record,
				optBool(a.YesNo[key]),
				optFloat(a.Confidence[key]),
				a.Notes[key],
			)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func optBool(v *bool) string {
	if v == nil {
		return ""
	}
	return strconv.FormatBool(*v)
}

func optFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
