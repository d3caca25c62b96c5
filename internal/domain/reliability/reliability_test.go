package reliability_test

import (
	"testing"

	"github.com/veritaslab/tribunal/internal/domain/model"
	"github.com/veritaslab/tribunal/internal/domain/reliability"
	. "github.com/smartystreets/goconvey/convey"
)

func votes(rows ...[]model.Label) []model.VoteVector {
	out := make([]model.VoteVector, len(rows))
	for i, r := range rows {
		out[i] = model.VoteVector(r)
	}
	return out
}

func TestMajorityLabel(t *testing.T) {
	Convey("Given vote vectors", t, func() {
		Convey("When a clear majority exists", func() {
			label, counts, tie := reliability.MajorityLabel(model.VoteVector{
				model.LabelAmbiguous, model.LabelAmbiguous, model.LabelUnambiguous,
			})
			So(label, ShouldEqual, model.LabelAmbiguous)
			So(counts[model.LabelAmbiguous], ShouldEqual, 2)
			So(counts[model.LabelUnambiguous], ShouldEqual, 1)
			So(tie, ShouldBeFalse)
		})

		Convey("When the top two counts are equal", func() {
			label, _, tie := reliability.MajorityLabel(model.VoteVector{
				model.LabelAmbiguous, model.LabelUnambiguous,
			})
			So(tie, ShouldBeTrue)
			So(label, ShouldBeIn, model.LabelAmbiguous, model.LabelUnambiguous)
		})

		Convey("When all judges are unanimous", func() {
			label, _, tie := reliability.MajorityLabel(model.VoteVector{
				model.LabelUnambiguous, model.LabelUnambiguous,
			})
			So(label, ShouldEqual, model.LabelUnambiguous)
			So(tie, ShouldBeFalse)
		})

		Convey("When the vote set is empty", func() {
			label, counts, tie := reliability.MajorityLabel(model.VoteVector{})
			So(label, ShouldEqual, model.LabelAmbiguous)
			So(counts[model.LabelAmbiguous], ShouldEqual, 0)
			So(tie, ShouldBeTrue)
		})

		Convey("When votes contain out-of-set values", func() {
			label, counts, tie := reliability.MajorityLabel(model.VoteVector{
				model.LabelAmbiguous, model.Label("maybe"), model.LabelNone,
			})
			So(label, ShouldEqual, model.LabelAmbiguous)
			So(counts[model.LabelAmbiguous], ShouldEqual, 1)
			So(counts[model.LabelUnambiguous], ShouldEqual, 0)
			So(tie, ShouldBeFalse)
		})
	})
}

func TestDawidSkene(t *testing.T) {
	Convey("Given per-item vote vectors", t, func() {
		vv := votes(
			[]model.Label{model.LabelAmbiguous, model.LabelAmbiguous, model.LabelUnambiguous},
			[]model.Label{model.LabelAmbiguous, model.LabelAmbiguous, model.LabelAmbiguous},
			[]model.Label{model.LabelUnambiguous, model.LabelUnambiguous, model.LabelUnambiguous},
			[]model.Label{model.LabelAmbiguous, model.LabelUnambiguous, model.LabelAmbiguous},
		)

		Convey("When estimated without priors", func() {
			labels := reliability.DawidSkene(vv, nil)

			Convey("Then every label is drawn from the category set", func() {
				So(len(labels), ShouldEqual, len(vv))
				for _, l := range labels {
					So(l, ShouldBeIn, model.LabelAmbiguous, model.LabelUnambiguous)
				}
			})

			Convey("Then unanimous items keep their label", func() {
				So(labels[1], ShouldEqual, model.LabelAmbiguous)
				So(labels[2], ShouldEqual, model.LabelUnambiguous)
			})

			Convey("Then re-running EM on its own output is a fixed point", func() {
				again := reliability.DawidSkene(vv, labels)
				So(again, ShouldResemble, labels)
			})
		})

		Convey("When a valid anchor prior is provided", func() {
			priors := []model.Label{model.LabelNone, model.LabelNone, model.LabelNone, model.LabelUnambiguous}
			labels := reliability.DawidSkene(vv, priors)
			So(len(labels), ShouldEqual, len(vv))
			// The prior only seeds initialization; the result stays in-set.
			for _, l := range labels {
				So(l, ShouldBeIn, model.LabelAmbiguous, model.LabelUnambiguous)
			}
		})

		Convey("When the input is empty", func() {
			So(reliability.DawidSkene(nil, nil), ShouldBeNil)
		})

		Convey("When run twice on identical input", func() {
			a := reliability.DawidSkene(vv, nil)
			b := reliability.DawidSkene(vv, nil)
			So(a, ShouldResemble, b)
		})
	})
}

func TestDisagreementRate(t *testing.T) {
	Convey("Given two label sequences", t, func() {
		a := []model.Label{model.LabelAmbiguous, model.LabelAmbiguous, model.LabelUnambiguous, model.LabelAmbiguous}
		b := []model.Label{model.LabelAmbiguous, model.LabelUnambiguous, model.LabelUnambiguous, model.LabelAmbiguous}

		Convey("Then the rate counts differing positions", func() {
			So(reliability.DisagreementRate(a, b), ShouldEqual, 0.25)
		})

		Convey("Then identical sequences disagree nowhere", func() {
			So(reliability.DisagreementRate(a, a), ShouldEqual, 0.0)
		})

		Convey("Then empty input yields zero", func() {
			So(reliability.DisagreementRate(nil, nil), ShouldEqual, 0.0)
		})
	})
}

func TestFleissKappa(t *testing.T) {
	Convey("Given vote vectors for Fleiss' kappa", t, func() {
		Convey("When raters agree perfectly with mixed categories", func() {
			k := reliability.FleissKappa(votes(
				[]model.Label{model.LabelAmbiguous, model.LabelAmbiguous},
				[]model.Label{model.LabelUnambiguous, model.LabelUnambiguous},
			))
			So(k, ShouldEqual, 1.0)
		})

		Convey("When every vote lands in one category", func() {
			// Degenerate case: expected agreement is 1, kappa defined as 0.
			k := reliability.FleissKappa(votes(
				[]model.Label{model.LabelAmbiguous, model.LabelAmbiguous},
				[]model.Label{model.LabelAmbiguous, model.LabelAmbiguous},
			))
			So(k, ShouldEqual, 0.0)
		})

		Convey("When agreement is mixed", func() {
			k := reliability.FleissKappa(votes(
				[]model.Label{model.LabelAmbiguous, model.LabelAmbiguous, model.LabelUnambiguous},
				[]model.Label{model.LabelUnambiguous, model.LabelUnambiguous, model.LabelUnambiguous},
				[]model.Label{model.LabelAmbiguous, model.LabelUnambiguous, model.LabelUnambiguous},
			))
			So(k, ShouldBeBetweenOrEqual, -1.0, 1.0)
		})

		Convey("When an item has a single rater", func() {
			k := reliability.FleissKappa(votes(
				[]model.Label{model.LabelAmbiguous},
				[]model.Label{model.LabelAmbiguous, model.LabelUnambiguous},
			))
			So(k, ShouldBeBetweenOrEqual, -1.0, 1.0)
		})

		Convey("When there are no items", func() {
			So(reliability.FleissKappa(nil), ShouldEqual, 0.0)
		})
	})
}

func TestCohenKappa(t *testing.T) {
	Convey("Given two raters' aligned label vectors", t, func() {
		Convey("When agreement is perfect across mixed categories", func() {
			// Columns 1 and 2 of [["a","a"],["a","a"],["u","u"]].
			a := []model.Label{model.LabelAmbiguous, model.LabelAmbiguous, model.LabelUnambiguous}
			b := []model.Label{model.LabelAmbiguous, model.LabelAmbiguous, model.LabelUnambiguous}
			So(reliability.CohenKappa(a, b), ShouldEqual, 1.0)
		})

		Convey("When both raters always pick the same single category", func() {
			a := []model.Label{model.LabelAmbiguous, model.LabelAmbiguous}
			b := []model.Label{model.LabelAmbiguous, model.LabelAmbiguous}
			So(reliability.CohenKappa(a, b), ShouldEqual, 0.0)
		})

		Convey("When raters systematically disagree", func() {
			a := []model.Label{model.LabelAmbiguous, model.LabelUnambiguous}
			b := []model.Label{model.LabelUnambiguous, model.LabelAmbiguous}
			k := reliability.CohenKappa(a, b)
			So(k, ShouldBeBetweenOrEqual, -1.0, 1.0)
			So(k, ShouldBeLessThan, 0.0)
		})

		Convey("When one rater abstained on some items", func() {
			a := []model.Label{model.LabelAmbiguous, model.LabelNone, model.LabelUnambiguous}
			b := []model.Label{model.LabelAmbiguous, model.LabelAmbiguous, model.LabelUnambiguous}
			So(reliability.CohenKappa(a, b), ShouldEqual, 1.0)
		})

		Convey("When there is no overlap", func() {
			a := []model.Label{model.LabelNone}
			b := []model.Label{model.LabelAmbiguous}
			So(reliability.CohenKappa(a, b), ShouldEqual, 0.0)
		})
	})
}
