package anchors_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/veritaslab/tribunal/internal/domain/anchors"
	"github.com/veritaslab/tribunal/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMatcherDefaults(t *testing.T) {
	Convey("Given a matcher with the default lexicon", t, func() {
		m := anchors.New()

		Convey("When the text hedges", func() {
			So(m.Match("The supplier shall use reasonable endeavours to deliver."), ShouldEqual, model.LabelAmbiguous)
			So(m.Match("Payment shall be made promptly."), ShouldEqual, model.LabelAmbiguous)
		})

		Convey("When the text carries concrete figures", func() {
			So(m.Match("Deliver within 5 business days of notice."), ShouldEqual, model.LabelUnambiguous)
			So(m.Match("A fee of AUD 10,000 applies per Clause 3.2."), ShouldEqual, model.LabelUnambiguous)
		})

		Convey("When both kinds of pattern appear", func() {
			// Ambiguous takes precedence: the conservative bias.
			got := m.Match("Use best endeavours to pay AUD 10,000 within 3 business days.")
			So(got, ShouldEqual, model.LabelAmbiguous)
		})

		Convey("When nothing matches", func() {
			So(m.Match("The parties agree to the schedule."), ShouldEqual, model.LabelNone)
		})

		Convey("When matching is case-insensitive", func() {
			So(m.Match("PROMPTLY notify the buyer."), ShouldEqual, model.LabelAmbiguous)
		})
	})
}

func TestMatcherLexiconFile(t *testing.T) {
	Convey("Given a lexicon JSON file", t, func() {
		dir := t.TempDir()
		path := filepath.Join(dir, "anchors.json")
		lex := anchors.Lexicon{
			"ambiguous":   {Phrases: []string{"weasel words"}},
			"unambiguous": {Regex: []string{`\bexactly \d+\b`}},
		}
		data, err := json.Marshal(lex)
		So(err, ShouldBeNil)
		So(os.WriteFile(path, data, 0o600), ShouldBeNil)

		Convey("When the matcher loads it", func() {
			m := anchors.New(anchors.WithLexiconFile(path))
			So(m.Match("full of weasel words"), ShouldEqual, model.LabelAmbiguous)
			So(m.Match("exactly 12 units"), ShouldEqual, model.LabelUnambiguous)

			Convey("Then default patterns are replaced", func() {
				So(m.Match("reasonable endeavours"), ShouldEqual, model.LabelNone)
			})
		})

		Convey("When the file is missing", func() {
			m := anchors.New(anchors.WithLexiconFile(filepath.Join(dir, "nope.json")))

			Convey("Then the built-in default still applies", func() {
				So(m.Match("reasonable endeavours"), ShouldEqual, model.LabelAmbiguous)
			})
		})

		Convey("When the file is malformed", func() {
			bad := filepath.Join(dir, "bad.json")
			So(os.WriteFile(bad, []byte("{nope"), 0o600), ShouldBeNil)
			m := anchors.New(anchors.WithLexiconFile(bad))
			So(m.Match("promptly"), ShouldEqual, model.LabelAmbiguous)
		})
	})
}
