package report

import (
	"context"
	"fmt"
	"time"

	"github.com/gauntlet-eval/gauntlet/internal/grading"
	"github.com/gauntlet-eval/gauntlet/internal/models"
	"github.com/gauntlet-eval/gauntlet/internal/suite"
)

// Regrade re-runs grading over the trajectories stored in an existing
// report, using the current suite configuration, and assembles a fresh
// report. Target execution is skipped entirely, so grader and gate changes
// can be iterated on without paying for model calls.
//
// Samples are matched to stored results by id; results whose sample no
// longer exists in the dataset keep their original grades.
func Regrade(ctx context.Context, spec *suite.Spec, samples []models.Sample, prior *models.RunReport) (*models.RunReport, error) {
	engine, err := grading.NewEngine(spec)
	if err != nil {
		return nil, fmt.Errorf("report: building grading engine: %w", err)
	}

	byID := make(map[int]*models.Sample, len(samples))
	for i := range samples {
		byID[samples[i].ID] = &samples[i]
	}

	start := time.Now()
	results := make([]models.SampleResult, len(prior.Results))
	copy(results, prior.Results)

	for i := range results {
		if !results[i].Attempted {
			continue
		}
		sample, ok := byID[results[i].SampleID]
		if !ok {
			continue
		}
		results[i].Grades = engine.Grade(ctx, sample, results[i].Trajectory)
	}

	report := Build(spec, results, time.Since(start))
	report.Timestamp = prior.Timestamp
	return report, nil
}
