package judge

import (
	"encoding/json"
	"strings"

	"github.com/veritaslab/tribunal/internal/domain/model"
)

const notesLimit = 30

// ParseVerdictArray extracts the verdict array from raw model output. The
// content is parsed as-is first; if that fails, the first bracketed JSON
// block is extracted and parsed instead. The result is repaired to exactly
// want elements: missing entries are padded with invalid verdicts and excess
// entries are dropped.
func ParseVerdictArray(judgeID, content string, want int, dims, metrics []string) []model.JudgeVerdict {
	raw := decodeRelaxed(content)
	out := make([]model.JudgeVerdict, 0, want)
	for _, entry := range raw {
		if len(out) == want {
			break
		}
		obj, ok := entry.(map[string]any)
		if !ok {
			// A junk entry still occupies its slot so later verdicts keep
			// their item alignment.
			out = append(out, model.InvalidVerdict(judgeID, dims, metrics))
			continue
		}
		out = append(out, normalizeVerdict(judgeID, obj, dims, metrics))
	}
	for len(out) < want {
		out = append(out, model.InvalidVerdict(judgeID, dims, metrics))
	}
	return out
}

// decodeRelaxed returns the decoded top-level array, flattening one level of
// nesting and unwrapping a single top-level object into a one-element array.
func decodeRelaxed(content string) []any {
	var v any
	if err := json.Unmarshal([]byte(content), &v); err != nil {
		block := firstJSONBlock(content)
		if block == "" {
			return nil
		}
		if err := json.Unmarshal([]byte(block), &v); err != nil {
			return nil
		}
	}
	switch t := v.(type) {
	case []any:
		var flat []any
		for _, e := range t {
			if inner, ok := e.([]any); ok {
				flat = append(flat, inner...)
				continue
			}
			flat = append(flat, e)
		}
		return flat
	case map[string]any:
		return []any{t}
	default:
		return nil
	}
}

// firstJSONBlock scans for the outermost array block, falling back to the
// outermost object block, so verdicts survive prose-wrapped responses.
func firstJSONBlock(s string) string {
	if b := between(s, '[', ']'); b != "" {
		return b
	}
	return between(s, '{', '}')
}

func between(s string, open, close byte) string {
	start := strings.IndexByte(s, open)
	end := strings.LastIndexByte(s, close)
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

// normalizeVerdict coerces one raw verdict object into the domain shape:
// unknown labels become empty, confidences are clipped to [0,1] and notes
// are truncated.
func normalizeVerdict(judgeID string, obj map[string]any, dims, metrics []string) model.JudgeVerdict {
	v := model.JudgeVerdict{
		JudgeID: judgeID,
		Label:   model.ParseLabel(asString(obj["judge_label"])),
		Rubric:  normalizeLeaves(obj["rubric"], dims),
		Manual:  normalizeLeaves(obj["manual"], metrics),
	}
	return v
}

func normalizeLeaves(raw any, keys []string) map[string]model.RubricLeaf {
	src, _ := raw.(map[string]any)
	out := make(map[string]model.RubricLeaf, len(keys))
	for _, k := range keys {
		leaf := model.RubricLeaf{}
		if entry, ok := src[k].(map[string]any); ok {
			if b, ok := entry["pass"].(bool); ok {
				leaf.Pass = &b
			}
			if f, ok := asFloat(entry["confidence"]); ok {
				c := clip01(f)
				leaf.Confidence = &c
			}
			leaf.Notes = truncate(asString(entry["notes"]), notesLimit)
		}
		out[k] = leaf
	}
	return out
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func clip01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
