package graders

import (
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"

	"github.com/gauntlet-eval/gauntlet/internal/models"
)

// keywordConfig configures the keyword tool function.
type keywordConfig struct {
	// MustContain lists keywords that must appear in the submission
	// (case-insensitive).
	MustContain []string `mapstructure:"must_contain"`
	// MustNotContain lists keywords that must NOT appear in the submission
	// (case-insensitive).
	MustNotContain []string `mapstructure:"must_not_contain"`
}

// newKeywordFunc checks for keyword presence/absence in the submission. The
// score is the fraction of checks that passed.
func newKeywordFunc(config map[string]any) (ToolFunc, error) {
	var c keywordConfig
	if err := mapstructure.Decode(config, &c); err != nil {
		return nil, fmt.Errorf("invalid keyword config: %w", err)
	}
	if len(c.MustContain)+len(c.MustNotContain) == 0 {
		return nil, fmt.Errorf("keyword requires 'must_contain' or 'must_not_contain' in config")
	}

	return func(sample *models.Sample, submission string) models.GradeResult {
		var failures []string
		lower := strings.ToLower(submission)

		for _, keyword := range c.MustContain {
			if !strings.Contains(lower, strings.ToLower(keyword)) {
				failures = append(failures, fmt.Sprintf("missing expected keyword: %s", keyword))
			}
		}
		for _, keyword := range c.MustNotContain {
			if strings.Contains(lower, strings.ToLower(keyword)) {
				failures = append(failures, fmt.Sprintf("found forbidden keyword: %s", keyword))
			}
		}

		total := len(c.MustContain) + len(c.MustNotContain)
		passed := total - len(failures)

		rationale := "all keyword checks passed"
		if len(failures) > 0 {
			rationale = strings.Join(failures, "; ")
		}
		return models.GradeResult{
			Score:     float64(passed) / float64(total),
			Rationale: rationale,
		}
	}, nil
}
