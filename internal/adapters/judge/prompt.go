package judge

import (
	"fmt"
	"strings"

	"github.com/veritaslab/tribunal/internal/domain/model"
)

// RubricDefinitions describes the fixed 7-dimension rubric presented to the
// judges. Enabled dimensions are always a subset of these keys.
var RubricDefinitions = map[string]string{
	"grammar":      "No grammatical/spelling errors that impede understanding. Minor typos permitted if do not affect meaning.",
	"word_choice":  "Uses precise and appropriate legal terminology; avoids vague words.",
	"cohesion":     "Logical flow; rationale links claim and evidence with proper connectives.",
	"conciseness":  "No redundancy; delivers only necessary information while preserving meaning.",
	"completeness": "Covers all key aspects required to justify the predicted class.",
	"correctness":  "Reasoning is factually consistent with the sentence and label; no hallucination.",
	"clarity":      "Unambiguous, easy to understand by a practitioner.",
}

// RubricOrder is the canonical dimension ordering used in prompts and the
// output schema.
var RubricOrder = []string{
	"grammar", "word_choice", "cohesion", "conciseness",
	"completeness", "correctness", "clarity",
}

// FilterDimensions keeps only known rubric dimensions, in canonical order.
func FilterDimensions(enabled []string) []string {
	want := make(map[string]struct{}, len(enabled))
	for _, d := range enabled {
		want[strings.ToLower(strings.TrimSpace(d))] = struct{}{}
	}
	out := make([]string, 0, len(want))
	for _, d := range RubricOrder {
		if _, ok := want[d]; ok {
			out = append(out, d)
		}
	}
	return out
}

// BuildBatchPrompt renders the batch judging prompt: one array element per
// input item, order-preserving, JSON-only output.
func BuildBatchPrompt(items []model.Item, dims, metrics []string) string {
	var rubric []string
	for _, d := range dims {
		rubric = append(rubric, fmt.Sprintf("- %s: %s", d, RubricDefinitions[d]))
	}
	var manual []string
	for _, m := range metrics {
		manual = append(manual, fmt.Sprintf("- %s: binary yes/no based on user-defined rule", m))
	}

	lines := []string{
		"You are an impartial evaluation judge for contract-ambiguity analysis (BATCH MODE).",
		"TASKS",
		"1) For each item, decide judge_label ∈ {ambiguous, unambiguous}.",
		"2) Evaluate rubric criteria for that item's rationale.",
		orDefault(strings.Join(rubric, "\n"), "(no rubric selected)"),
		"3) Evaluate manual metrics (binary yes/no).",
		orDefault(strings.Join(manual, "\n"), "(none)"),
		"CONSTRAINTS",
		"- Be strict but fair; avoid verbosity bias.",
		`- Return ONLY a JSON array, length == number of items, where each element is: ` +
			`{ "judge_label": "ambiguous|unambiguous", "rubric": {<dim>: {pass: bool, confidence: decimal in [0,1] (2 digits), notes: string}}, ` +
			`"manual": {<metric>: {pass: bool, confidence: decimal in [0,1] (2 digits), notes: string}} }. ` +
			`Notes MUST be concise (<= 30 chars).`,
		"- IMPORTANT: Do NOT speculate about the original model's label; judge independently and evaluate the rationale text only against the rubric.",
		"- IMPORTANT: Preserve input order; output array index i corresponds to item i.",
		"",
		"INPUT ITEMS:",
	}
	for i, it := range items {
		lines = append(lines, fmt.Sprintf("- [%d] sentence: %s", i, it.Sentence))
		lines = append(lines, fmt.Sprintf("  rationale_to_check: %s", it.Rationale))
	}
	return strings.Join(lines, "\n")
}

// VerdictsSchema builds the strict JSON schema for the verdict array so
// providers with structured-output support can enforce the shape. The
// per-dimension keys are dynamic, so the schema is assembled as a plain map.
func VerdictsSchema(dims, metrics []string) map[string]any {
	leaf := func() map[string]any {
		return map[string]any{
			"type": "object",
			"properties": map[string]any{
				"pass":       map[string]any{"type": "boolean"},
				"confidence": map[string]any{"type": "number", "minimum": 0, "maximum": 1},
				"notes":      map[string]any{"type": "string"},
			},
			"required":             []string{"pass", "confidence", "notes"},
			"additionalProperties": false,
		}
	}

	rubricProps := make(map[string]any, len(dims))
	rubricRequired := make([]string, 0, len(dims))
	for _, d := range dims {
		rubricProps[d] = leaf()
		rubricRequired = append(rubricRequired, d)
	}
	manualProps := make(map[string]any, len(metrics))
	manualRequired := make([]string, 0, len(metrics))
	for _, m := range metrics {
		manualProps[m] = leaf()
		manualRequired = append(manualRequired, m)
	}

	return map[string]any{
		"type": "array",
		"items": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"judge_label": map[string]any{
					"type": "string",
					"enum": []string{string(model.LabelAmbiguous), string(model.LabelUnambiguous)},
				},
				"rubric": map[string]any{
					"type":                 "object",
					"properties":           rubricProps,
					"required":             rubricRequired,
					"additionalProperties": false,
				},
				"manual": map[string]any{
					"type":                 "object",
					"properties":           manualProps,
					"required":             manualRequired,
					"additionalProperties": false,
				},
			},
			"required":             []string{"judge_label", "rubric", "manual"},
			"additionalProperties": false,
		},
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
