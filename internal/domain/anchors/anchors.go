// Package anchors provides a lexicon-based label prior from surface
// patterns. The prior only seeds statistical estimation; it is never treated
// as ground truth.
package anchors

import (
	"encoding/json"
	"os"
	"regexp"

	"github.com/veritaslab/tribunal/internal/domain/model"
)

// Lexicon maps a category to its regex and phrase lists.
type Lexicon map[string]struct {
	Regex   []string `json:"regex"`
	Phrases []string `json:"phrases"`
}

// Matcher holds compiled per-category patterns. Ambiguous patterns are
// checked first: when both categories match, the conservative bias is toward
// flagging ambiguity.
type Matcher struct {
	ambiguous   []*regexp.Regexp
	unambiguous []*regexp.Regexp
}

// Option applies a configuration option to the Matcher builder.
type Option func(*builder)

type builder struct {
	lexicon Lexicon
}

// WithLexicon replaces the built-in lexicon.
func WithLexicon(lex Lexicon) Option {
	return func(b *builder) {
		if lex != nil {
			b.lexicon = lex
		}
	}
}

// WithLexiconFile loads a JSON lexicon from path. A missing or malformed
// file leaves the built-in default in place.
func WithLexiconFile(path string) Option {
	return func(b *builder) {
		if path == "" {
			return
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return
		}
		var lex Lexicon
		if err := json.Unmarshal(data, &lex); err != nil || len(lex) == 0 {
			return
		}
		b.lexicon = lex
	}
}

// New compiles a Matcher from the default lexicon and any options.
// Uncompilable patterns are skipped.
func New(opts ...Option) *Matcher {
	b := &builder{lexicon: defaultLexicon()}
	for _, opt := range opts {
		opt(b)
	}

	m := &Matcher{}
	m.ambiguous = compile(b.lexicon[string(model.LabelAmbiguous)].Regex, b.lexicon[string(model.LabelAmbiguous)].Phrases)
	m.unambiguous = compile(b.lexicon[string(model.LabelUnambiguous)].Regex, b.lexicon[string(model.LabelUnambiguous)].Phrases)
	return m
}

// Match returns the prior label suggested by the text's surface patterns, or
// LabelNone when nothing matches.
func (m *Matcher) Match(text string) model.Label {
	for _, p := range m.ambiguous {
		if p.MatchString(text) {
			return model.LabelAmbiguous
		}
	}
	for _, p := range m.unambiguous {
		if p.MatchString(text) {
			return model.LabelUnambiguous
		}
	}
	return model.LabelNone
}

func compile(patterns, phrases []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns)+len(phrases))
	for _, pat := range patterns {
		re, err := regexp.Compile("(?i)" + pat)
		if err != nil {
			continue
		}
		out = append(out, re)
	}
	for _, phrase := range phrases {
		if phrase == "" {
			continue
		}
		re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(phrase) + `\b`)
		if err != nil {
			continue
		}
		out = append(out, re)
	}
	return out
}

// defaultLexicon covers the usual hedging language of contract clauses on
// the ambiguous side and concrete figures/references on the unambiguous one.
func defaultLexicon() Lexicon {
	return Lexicon{
		string(model.LabelAmbiguous): {
			Regex: []string{
				`\b(reasonable endeavours?|best endeavours?|commercially reasonable|promptly|as soon as practicable|material|within a reasonable time)\b`,
			},
			Phrases: []string{
				"reasonable endeavours",
				"best endeavours",
				"commercially reasonable",
				"promptly",
				"as soon as practicable",
				"material",
				"within a reasonable time",
			},
		},
		string(model.LabelUnambiguous): {
			Regex: []string{
				`\b(within \d+ (business )?days?|AUD ?\d{1,3}(,\d{3})*|Clause \d+(\.\d+)?)\b`,
			},
			Phrases: []string{
				"within 3 business days",
				"within 5 business days",
				"Clause 3.2",
				"AUD 10,000",
			},
		},
	}
}
