package dataset

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/gauntlet-eval/gauntlet/internal/models"
)

// LoadCSV reads single-turn samples from a CSV file. The first row is
// treated as headers. Recognized columns: input (required), ground_truth,
// tags (semicolon-separated), rubric_vars / agent_args / extra_vars
// (JSON objects). Unknown columns are folded into extra_vars so suite
// authors can reference them from custom graders.
func LoadCSV(path string, opts Options) ([]models.Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	reader := csv.NewReader(f)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("dataset: parse %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("dataset: %s is empty (no header row)", path)
	}

	headers := records[0]
	inputCol := -1
	for i, h := range headers {
		if h == "input" {
			inputCol = i
		}
	}
	if inputCol < 0 {
		return nil, fmt.Errorf("dataset: %s has no 'input' column", path)
	}

	var samples []models.Sample
	for rowNum, rec := range records[1:] {
		if len(rec) != len(headers) {
			return nil, fmt.Errorf("dataset: %s row %d has %d columns, expected %d", path, rowNum+2, len(rec), len(headers))
		}

		sample := models.Sample{}
		extra := map[string]any{}

		for i, h := range headers {
			val := rec[i]
			switch h {
			case "input":
				sample.Input = []string{val}
			case "ground_truth":
				if val != "" {
					sample.GroundTruth = []string{val}
				}
			case "tags":
				if val != "" {
					sample.Tags = splitTags(val)
				}
			case "rubric_vars":
				if val != "" {
					if err := json.Unmarshal([]byte(val), &sample.RubricVars); err != nil {
						return nil, fmt.Errorf("dataset: %s row %d: rubric_vars: %w", path, rowNum+2, err)
					}
				}
			case "agent_args":
				if val != "" {
					if err := json.Unmarshal([]byte(val), &sample.AgentArgs); err != nil {
						return nil, fmt.Errorf("dataset: %s row %d: agent_args: %w", path, rowNum+2, err)
					}
				}
			case "extra_vars":
				if val != "" {
					if err := json.Unmarshal([]byte(val), &extra); err != nil {
						return nil, fmt.Errorf("dataset: %s row %d: extra_vars: %w", path, rowNum+2, err)
					}
				}
			default:
				if val != "" {
					extra[h] = val
				}
			}
		}

		if len(sample.Input) == 0 || sample.Input[0] == "" {
			return nil, fmt.Errorf("dataset: %s row %d has an empty input", path, rowNum+2)
		}
		if len(extra) > 0 {
			sample.ExtraVars = extra
		}

		if len(opts.Tags) > 0 && !sample.HasTag(opts.Tags...) {
			continue
		}

		sample.ID = len(samples)
		samples = append(samples, sample)

		if opts.MaxSamples > 0 && len(samples) >= opts.MaxSamples {
			break
		}
	}

	if len(samples) == 0 {
		return nil, fmt.Errorf("dataset: %s contains no matching samples", path)
	}
	return samples, nil
}

func splitTags(val string) []string {
	parts := strings.Split(val, ";")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
