package repository

import (
	"context"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/veritaslab/tribunal/internal/domain/model"
)

func newTestStore(t *testing.T) *MemStore {
	t.Helper()
	s := NewMemStore(context.Background())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRunLifecycle(t *testing.T) {
	Convey("Given an empty store", t, func() {
		s := newTestStore(t)
		ctx := context.Background()

		Convey("When a run is created", func() {
			err := s.CreateRun(ctx, model.Run{ID: "r1", Status: model.RunPending})
			So(err, ShouldBeNil)

			Convey("Then it can be read back", func() {
				run, err := s.Run(ctx, "r1")
				So(err, ShouldBeNil)
				So(run.Status, ShouldEqual, model.RunPending)
			})

			Convey("Then a duplicate ID is rejected", func() {
				So(errors.Is(s.CreateRun(ctx, model.Run{ID: "r1"}), ErrRunExists), ShouldBeTrue)
			})

			Convey("Then UpdateRun mutates under the lock", func() {
				err := s.UpdateRun(ctx, "r1", func(r *model.Run) {
					r.Status = model.RunProcessing
				})
				So(err, ShouldBeNil)
				run, _ := s.Run(ctx, "r1")
				So(run.Status, ShouldEqual, model.RunProcessing)
			})
		})

		Convey("When an unknown run is read", func() {
			_, err := s.Run(ctx, "nope")
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestItemsAndJudgments(t *testing.T) {
	Convey("Given a run with items", t, func() {
		s := newTestStore(t)
		ctx := context.Background()
		So(s.CreateRun(ctx, model.Run{ID: "r1"}), ShouldBeNil)

		items := []model.Item{{ID: "i1", Sentence: "s1"}, {ID: "i2", Sentence: "s2"}}
		So(s.PutItems(ctx, "r1", items), ShouldBeNil)

		Convey("Then items come back in input order", func() {
			got, err := s.Items(ctx, "r1")
			So(err, ShouldBeNil)
			So(got, ShouldResemble, items)
		})

		Convey("When judgments are appended twice", func() {
			So(s.AppendJudgments(ctx, "r1", "i1", []model.JudgeVerdict{{JudgeID: "j1"}}), ShouldBeNil)
			So(s.AppendJudgments(ctx, "r1", "i1", []model.JudgeVerdict{{JudgeID: "j2"}, {JudgeID: "j3"}}), ShouldBeNil)

			Convey("Then all verdicts accumulate in arrival order", func() {
				vs, err := s.Judgments(ctx, "r1", "i1")
				So(err, ShouldBeNil)
				So(vs, ShouldHaveLength, 3)
				So(vs[0].JudgeID, ShouldEqual, "j1")
				So(vs[2].JudgeID, ShouldEqual, "j3")
			})
		})

		Convey("When judgments target an unknown item", func() {
			err := s.AppendJudgments(ctx, "r1", "ghost", []model.JudgeVerdict{{JudgeID: "j1"}})
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestAggregates(t *testing.T) {
	Convey("Given a run with two items", t, func() {
		s := newTestStore(t)
		ctx := context.Background()
		So(s.CreateRun(ctx, model.Run{ID: "r1"}), ShouldBeNil)
		So(s.PutItems(ctx, "r1", []model.Item{{ID: "i1"}, {ID: "i2"}}), ShouldBeNil)

		Convey("When an aggregate is upserted twice for the same item", func() {
			So(s.UpsertAggregate(ctx, "r1", model.Aggregate{ItemID: "i2", AggLabel: model.LabelAmbiguous}), ShouldBeNil)
			So(s.UpsertAggregate(ctx, "r1", model.Aggregate{ItemID: "i2", AggLabel: model.LabelUnambiguous}), ShouldBeNil)

			Convey("Then exactly one row survives with the latest value", func() {
				agg, err := s.Aggregate(ctx, "r1", "i2")
				So(err, ShouldBeNil)
				So(agg.AggLabel, ShouldEqual, model.LabelUnambiguous)

				all, err := s.Aggregates(ctx, "r1")
				So(err, ShouldBeNil)
				So(all, ShouldHaveLength, 1)
			})
		})

		Convey("When aggregates exist for both items", func() {
			So(s.UpsertAggregate(ctx, "r1", model.Aggregate{ItemID: "i2"}), ShouldBeNil)
			So(s.UpsertAggregate(ctx, "r1", model.Aggregate{ItemID: "i1"}), ShouldBeNil)

			Convey("Then listing follows item input order, not upsert order", func() {
				all, err := s.Aggregates(ctx, "r1")
				So(err, ShouldBeNil)
				So(all[0].ItemID, ShouldEqual, "i1")
				So(all[1].ItemID, ShouldEqual, "i2")
			})
		})

		Convey("When an aggregate targets an unknown item", func() {
			err := s.UpsertAggregate(ctx, "r1", model.Aggregate{ItemID: "ghost"})
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
		})

		Convey("When no aggregate exists yet", func() {
			_, err := s.Aggregate(ctx, "r1", "i1")
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
		})
	})
}
