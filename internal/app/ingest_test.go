package service_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	service "github.com/veritaslab/tribunal/internal/app"
	"github.com/veritaslab/tribunal/internal/domain/model"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestLoadItemsCSV(t *testing.T) {
	Convey("Given a CSV with canonical headers", t, func() {
		path := writeTemp(t, "items.csv",
			"id,sentence,predicted_label,rationale,gold_label\n"+
				"a1,The supplier shall act promptly.,ambiguous,No deadline given.,ambiguous\n"+
				"a2,Pay within 30 days.,unambiguous,Clear deadline.,unambiguous\n")

		items, err := service.LoadItems(path)
		So(err, ShouldBeNil)
		So(items, ShouldHaveLength, 2)
		So(items[0].ID, ShouldEqual, "a1")
		So(items[0].PredictedLabel, ShouldEqual, model.LabelAmbiguous)
		So(items[0].GoldLabel, ShouldEqual, model.LabelAmbiguous)
		So(items[1].Rationale, ShouldEqual, "Clear deadline.")
	})

	Convey("Given a CSV with alias headers and no IDs", t, func() {
		path := writeTemp(t, "items.csv",
			"Text,Pred,Reasoning\n"+
				"Some sentence here.,1,Because.\n"+
				"Another sentence.,0,Since.\n")

		items, err := service.LoadItems(path)
		So(err, ShouldBeNil)
		So(items, ShouldHaveLength, 2)

		Convey("Then IDs are synthesized from the row index", func() {
			So(items[0].ID, ShouldEqual, "item-0")
			So(items[1].ID, ShouldEqual, "item-1")
		})

		Convey("Then label spellings normalize onto the category set", func() {
			So(items[0].PredictedLabel, ShouldEqual, model.LabelAmbiguous)
			So(items[1].PredictedLabel, ShouldEqual, model.LabelUnambiguous)
		})

		Convey("Then missing gold stays unset", func() {
			So(items[0].GoldLabel, ShouldEqual, model.LabelNone)
		})
	})

	Convey("Given a CSV without a sentence column", t, func() {
		path := writeTemp(t, "items.csv", "id,score\n1,0.5\n")
		_, err := service.LoadItems(path)
		So(errors.Is(err, service.ErrMissingSentenceColumn), ShouldBeTrue)
	})

	Convey("Given rows with empty sentences", t, func() {
		path := writeTemp(t, "items.csv", "sentence\nReal sentence.\n\n")
		items, err := service.LoadItems(path)
		So(err, ShouldBeNil)
		So(items, ShouldHaveLength, 1)
	})
}

func TestLoadItemsJSONL(t *testing.T) {
	Convey("Given a JSONL file", t, func() {
		path := writeTemp(t, "items.jsonl",
			`{"id":"x1","sentence":"First sentence.","label":"Ambiguous","rationale":"r1"}`+"\n"+
				"\n"+
				`{"text":"Second sentence.","gold":"true"}`+"\n")

		items, err := service.LoadItems(path)
		So(err, ShouldBeNil)
		So(items, ShouldHaveLength, 2)
		So(items[0].ID, ShouldEqual, "x1")
		So(items[0].PredictedLabel, ShouldEqual, model.LabelAmbiguous)
		So(items[1].ID, ShouldEqual, "item-1")
		So(items[1].Sentence, ShouldEqual, "Second sentence.")
		So(items[1].GoldLabel, ShouldEqual, model.LabelAmbiguous)
	})

	Convey("Given malformed JSONL", t, func() {
		path := writeTemp(t, "items.jsonl", "not json\n")
		_, err := service.LoadItems(path)
		So(err, ShouldNotBeNil)
	})
}

func TestLoadItemsUnsupported(t *testing.T) {
	Convey("Given an unknown extension", t, func() {
		path := writeTemp(t, "items.xlsx", "whatever")
		_, err := service.LoadItems(path)
		So(errors.Is(err, service.ErrUnsupportedFormat), ShouldBeTrue)
	})
}
