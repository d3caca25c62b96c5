package service

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/veritaslab/tribunal/internal/domain/model"
)

// Header aliases accepted when ingesting upstream files. Matching is
// case-insensitive and the first alias present wins.
var (
	idAliases        = []string{"id", "item_id", "row_id", "idx"}
	sentenceAliases  = []string{"sentence", "text", "input"}
	predictedAliases = []string{"predicted_label", "prediction", "pred", "label"}
	rationaleAliases = []string{"rationale", "reason", "reasoning", "explanation"}
	goldAliases      = []string{"gold_label", "gold", "ground_truth"}
)

// LoadItems reads evaluation items from a CSV or JSONL file, picking the
// format by extension.
func LoadItems(path string) ([]model.Item, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open items file: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return readCSVItems(f)
	case ".jsonl", ".ndjson", ".json":
		return readJSONLItems(f)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// readCSVItems parses a CSV with a header row. A sentence column is
// required; everything else is optional.
func readCSVItems(r io.Reader) ([]model.Item, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	pick := func(record []string, aliases []string) (string, bool) {
		for _, a := range aliases {
			if idx, ok := cols[a]; ok && idx < len(record) {
				return strings.TrimSpace(record[idx]), true
			}
		}
		return "", false
	}
	if _, ok := findAlias(cols, sentenceAliases); !ok {
		return nil, ErrMissingSentenceColumn
	}

	var items []model.Item
	row := 0
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}
		sentence, _ := pick(record, sentenceAliases)
		if sentence == "" {
			continue
		}
		items = append(items, buildItem(row, sentence,
			firstOr(pick(record, idAliases)),
			firstOr(pick(record, predictedAliases)),
			firstOr(pick(record, rationaleAliases)),
			firstOr(pick(record, goldAliases)),
		))
		row++
	}
	return items, nil
}

// readJSONLItems parses one JSON object per line.
func readJSONLItems(r io.Reader) ([]model.Item, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var items []model.Item
	row := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var obj map[string]any
		if err := json.Unmarshal([]byte(line), &obj); err != nil {
			return nil, fmt.Errorf("parse jsonl line %d: %w", row+1, err)
		}
		lowered := make(map[string]string, len(obj))
		for k, v := range obj {
			if s, ok := v.(string); ok {
				lowered[strings.ToLower(k)] = s
			}
		}
		pick := func(aliases []string) string {
			for _, a := range aliases {
				if s, ok := lowered[a]; ok {
					return strings.TrimSpace(s)
				}
			}
			return ""
		}
		sentence := pick(sentenceAliases)
		if sentence == "" {
			continue
		}
		items = append(items, buildItem(row, sentence,
			pick(idAliases), pick(predictedAliases), pick(rationaleAliases), pick(goldAliases)))
		row++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan jsonl: %w", err)
	}
	return items, nil
}

func buildItem(row int, sentence, id, predicted, rationale, gold string) model.Item {
	if id == "" {
		id = fmt.Sprintf("item-%d", row)
	}
	item := model.Item{
		ID:        id,
		Sentence:  sentence,
		Rationale: rationale,
	}
	if predicted != "" {
		item.PredictedLabel = model.NormalizeLabel(predicted)
	}
	if gold != "" {
		item.GoldLabel = model.NormalizeLabel(gold)
	}
	return item
}

func findAlias(cols map[string]int, aliases []string) (int, bool) {
	for _, a := range aliases {
		if idx, ok := cols[a]; ok {
			return idx, true
		}
	}
	return 0, false
}

func firstOr(s string, _ bool) string { return s }
