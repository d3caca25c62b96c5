package consensus_test

import (
	"testing"

	"github.com/veritaslab/tribunal/internal/domain/consensus"
	"github.com/veritaslab/tribunal/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func boolp(b bool) *bool       { return &b }
func confp(c float64) *float64 { return &c }

func verdict(judge string, label model.Label, leaves map[string]model.RubricLeaf) model.JudgeVerdict {
	return model.JudgeVerdict{JudgeID: judge, Label: label, Rubric: leaves, Manual: map[string]model.RubricLeaf{}}
}

func TestAggregateClassLabel(t *testing.T) {
	Convey("Given an aggregator over the clarity dimension", t, func() {
		agg := consensus.New([]string{"clarity"}, nil)
		item := model.Item{ID: "it-1", PredictedLabel: model.LabelAmbiguous}

		Convey("When three judges vote ambiguous, ambiguous, unambiguous", func() {
			out := agg.Aggregate(item, []model.JudgeVerdict{
				verdict("j1", model.LabelAmbiguous, nil),
				verdict("j2", model.LabelAmbiguous, nil),
				verdict("j3", model.LabelUnambiguous, nil),
			})

			Convey("Then the aggregate label is ambiguous and review is needed", func() {
				So(out.AggLabel, ShouldEqual, model.LabelAmbiguous)
				So(out.NeedsReview, ShouldBeTrue)
				So(out.Counts[model.LabelAmbiguous], ShouldEqual, 2)
				So(out.Counts[model.LabelUnambiguous], ShouldEqual, 1)
			})

			Convey("Then class agreement reflects the predicted label", func() {
				So(out.ClassAgreement, ShouldNotBeNil)
				So(*out.ClassAgreement, ShouldBeTrue)
			})
		})

		Convey("When two judges both vote unambiguous", func() {
			out := agg.Aggregate(item, []model.JudgeVerdict{
				verdict("j1", model.LabelUnambiguous, nil),
				verdict("j2", model.LabelUnambiguous, nil),
			})
			So(out.AggLabel, ShouldEqual, model.LabelUnambiguous)
			So(out.NeedsReview, ShouldBeFalse)
			So(*out.ClassAgreement, ShouldBeFalse)
		})

		Convey("When the class votes tie", func() {
			out := agg.Aggregate(item, []model.JudgeVerdict{
				verdict("j1", model.LabelAmbiguous, nil),
				verdict("j2", model.LabelUnambiguous, nil),
			})
			So(out.NeedsReview, ShouldBeTrue)
		})

		Convey("When the item carries no predicted label", func() {
			out := agg.Aggregate(model.Item{ID: "it-2"}, []model.JudgeVerdict{
				verdict("j1", model.LabelAmbiguous, nil),
			})
			So(out.ClassAgreement, ShouldBeNil)
		})

		Convey("When a judge contributed no vote", func() {
			out := agg.Aggregate(item, []model.JudgeVerdict{
				verdict("j1", model.LabelAmbiguous, nil),
				verdict("j2", model.LabelNone, nil),
				verdict("j3", model.LabelAmbiguous, nil),
			})
			So(out.AggLabel, ShouldEqual, model.LabelAmbiguous)
			So(out.NeedsReview, ShouldBeFalse)
		})
	})
}

func TestAggregateRubricMajority(t *testing.T) {
	Convey("Given an aggregator over the clarity dimension", t, func() {
		agg := consensus.New([]string{"clarity"}, nil)
		item := model.Item{ID: "it-1", PredictedLabel: model.LabelAmbiguous}

		Convey("When three judges are present and two pass", func() {
			out := agg.Aggregate(item, []model.JudgeVerdict{
				verdict("j1", model.LabelAmbiguous, map[string]model.RubricLeaf{
					"clarity": {Pass: boolp(true), Confidence: confp(0.9)},
				}),
				verdict("j2", model.LabelAmbiguous, map[string]model.RubricLeaf{
					"clarity": {Pass: boolp(true), Confidence: confp(0.6)},
				}),
				verdict("j3", model.LabelAmbiguous, map[string]model.RubricLeaf{
					"clarity": {Pass: boolp(false), Confidence: confp(0.8)},
				}),
			})

			Convey("Then the majority of three passes", func() {
				So(out.YesNo["clarity"], ShouldNotBeNil)
				So(*out.YesNo["clarity"], ShouldBeTrue)
			})

			Convey("Then confidence is vote strength times mean supporter confidence", func() {
				// (2/3) * mean(0.9, 0.6) = 0.5, rounded to 3 decimals.
				So(out.Confidence["clarity"], ShouldNotBeNil)
				So(*out.Confidence["clarity"], ShouldEqual, 0.5)
			})
		})

		Convey("When only two judges are present and one passes", func() {
			out := agg.Aggregate(item, []model.JudgeVerdict{
				verdict("j1", model.LabelAmbiguous, map[string]model.RubricLeaf{
					"clarity": {Pass: boolp(true), Confidence: confp(0.7)},
				}),
				verdict("j2", model.LabelAmbiguous, map[string]model.RubricLeaf{
					"clarity": {Pass: boolp(false), Confidence: confp(0.9)},
				}),
			})

			Convey("Then any pass wins for small juries", func() {
				So(*out.YesNo["clarity"], ShouldBeTrue)
			})

			Convey("Then only supporters weight the confidence", func() {
				// (1/2) * 0.7 = 0.35
				So(*out.Confidence["clarity"], ShouldEqual, 0.35)
			})
		})

		Convey("When no judge produced a boolean for the dimension", func() {
			out := agg.Aggregate(item, []model.JudgeVerdict{
				verdict("j1", model.LabelAmbiguous, map[string]model.RubricLeaf{
					"clarity": {Pass: nil, Notes: "undecidable"},
				}),
			})

			Convey("Then the dimension surfaces as nil, not false", func() {
				So(out.YesNo["clarity"], ShouldBeNil)
				So(out.Confidence["clarity"], ShouldBeNil)
			})

			Convey("Then the note is still carried", func() {
				So(out.Notes["clarity"], ShouldContainSubstring, "undecidable")
			})
		})

		Convey("When every present judge fails the dimension", func() {
			out := agg.Aggregate(item, []model.JudgeVerdict{
				verdict("j1", model.LabelAmbiguous, map[string]model.RubricLeaf{
					"clarity": {Pass: boolp(false), Confidence: confp(0.8)},
				}),
				verdict("j2", model.LabelAmbiguous, map[string]model.RubricLeaf{
					"clarity": {Pass: boolp(false), Confidence: confp(0.6)},
				}),
			})
			So(*out.YesNo["clarity"], ShouldBeFalse)
			So(out.Confidence["clarity"], ShouldBeNil)
		})
	})
}

func TestAggregateCustomMetrics(t *testing.T) {
	Convey("Given an aggregator with a custom metric", t, func() {
		agg := consensus.New([]string{"clarity"}, []string{"cites_clause"})
		item := model.Item{ID: "it-9", PredictedLabel: model.LabelUnambiguous}

		Convey("When judges score the custom metric", func() {
			out := agg.Aggregate(item, []model.JudgeVerdict{
				{
					JudgeID: "j1",
					Label:   model.LabelUnambiguous,
					Rubric:  map[string]model.RubricLeaf{"clarity": {Pass: boolp(true), Confidence: confp(1.0)}},
					Manual:  map[string]model.RubricLeaf{"cites_clause": {Pass: boolp(true), Confidence: confp(0.8)}},
				},
				{
					JudgeID: "j2",
					Label:   model.LabelUnambiguous,
					Rubric:  map[string]model.RubricLeaf{"clarity": {Pass: boolp(true), Confidence: confp(0.9)}},
					Manual:  map[string]model.RubricLeaf{"cites_clause": {Pass: boolp(false), Confidence: confp(0.4)}},
				},
			})

			So(*out.YesNo["cites_clause"], ShouldBeTrue)
			// (1/2) * 0.8 = 0.4
			So(*out.Confidence["cites_clause"], ShouldEqual, 0.4)
		})
	})
}
