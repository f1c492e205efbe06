// Package dataset loads evaluation samples from JSONL or CSV files into an
// ordered, immutable sample sequence. Sample IDs are assigned by load order
// and stay stable for the lifetime of a run.
package dataset

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gauntlet-eval/gauntlet/internal/models"
)

// Options control sample selection at load time.
type Options struct {
	// MaxSamples caps the number of loaded samples; 0 means no cap.
	MaxSamples int
	// Tags, when non-empty, keeps only samples carrying at least one of
	// the given tags. Filtering happens before IDs are assigned so the
	// loaded sequence is densely numbered.
	Tags []string
}

// Load reads samples from path, dispatching on the file extension
// (.jsonl/.ndjson or .csv).
func Load(path string, opts Options) ([]models.Sample, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".jsonl", ".ndjson":
		return LoadJSONL(path, opts)
	case ".csv":
		return LoadCSV(path, opts)
	default:
		return nil, fmt.Errorf("dataset: unsupported file extension %q (want .jsonl or .csv)", ext)
	}
}

// record is the wire shape of one JSONL dataset row. Input and ground
// truth accept either a single string or a list of strings.
type record struct {
	Input       stringList        `json:"input"`
	GroundTruth stringList        `json:"ground_truth"`
	AgentArgs   map[string]any    `json:"agent_args"`
	RubricVars  map[string]string `json:"rubric_vars"`
	ExtraVars   map[string]any    `json:"extra_vars"`
	Tags        []string          `json:"tags"`
}

// stringList decodes a JSON string or array of strings, remembering which
// form was authored. The distinction matters: per-turn mode is triggered by
// list-authored ground truth, not by its length.
type stringList struct {
	Values []string
	IsList bool
}

func (s *stringList) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		s.IsList = true
		return json.Unmarshal(data, &s.Values)
	}
	var single string
	if err := json.Unmarshal(data, &single); err != nil {
		return err
	}
	s.Values = []string{single}
	return nil
}

// LoadJSONL reads one sample per line from a JSONL file.
func LoadJSONL(path string, opts Options) ([]models.Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	var samples []models.Sample
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var rec record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return nil, fmt.Errorf("dataset: %s line %d: %w", path, lineNum, err)
		}

		sample, err := buildSample(rec)
		if err != nil {
			return nil, fmt.Errorf("dataset: %s line %d: %w", path, lineNum, err)
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
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("dataset: reading %s: %w", path, err)
	}

	if len(samples) == 0 {
		return nil, fmt.Errorf("dataset: %s contains no matching samples", path)
	}
	return samples, nil
}

func buildSample(rec record) (models.Sample, error) {
	if len(rec.Input.Values) == 0 {
		return models.Sample{}, fmt.Errorf("sample has no input")
	}
	for i, turn := range rec.Input.Values {
		if turn == "" {
			return models.Sample{}, fmt.Errorf("input turn %d is empty", i)
		}
	}

	perTurn := rec.Input.IsList && rec.GroundTruth.IsList
	if perTurn && len(rec.GroundTruth.Values) != len(rec.Input.Values) {
		return models.Sample{}, fmt.Errorf(
			"per-turn ground_truth has %d entries but input has %d turns",
			len(rec.GroundTruth.Values), len(rec.Input.Values))
	}
	if !perTurn && len(rec.GroundTruth.Values) > 1 {
		return models.Sample{}, fmt.Errorf("ground_truth list requires a multi-turn input list of the same length")
	}

	return models.Sample{
		Input:       rec.Input.Values,
		GroundTruth: rec.GroundTruth.Values,
		PerTurn:     perTurn,
		AgentArgs:   rec.AgentArgs,
		RubricVars:  rec.RubricVars,
		ExtraVars:   rec.ExtraVars,
		Tags:        rec.Tags,
	}, nil
}
