// Package report assembles, persists, and re-derives run reports.
package report

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/gauntlet-eval/gauntlet/internal/gate"
	"github.com/gauntlet-eval/gauntlet/internal/models"
	"github.com/gauntlet-eval/gauntlet/internal/stats"
	"github.com/gauntlet-eval/gauntlet/internal/suite"
)

const bootstrapConfidence = 0.95

// Build assembles the terminal report for one run. Results must already be
// finalized; Build sorts them into canonical order, aggregates per-model
// statistics, and evaluates the suite's gate under its configured scope.
func Build(spec *suite.Spec, results []models.SampleResult, elapsed time.Duration) *models.RunReport {
	models.SortResults(results)

	graderKeys := spec.Graders.Keys()
	threshold := spec.EffectivePassThreshold()

	report := &models.RunReport{
		RunID:     uuid.NewString(),
		SuiteName: spec.Name,
		Timestamp: time.Now().UTC(),
		Setup: models.ReportSetup{
			Models:      modelNames(spec.Target.Models),
			Concurrency: spec.Runner.Concurrency,
			MaxAttempts: spec.Runner.MaxAttempts,
			TimeoutSec:  spec.Runner.TimeoutSec,
			Runs:        runsIn(spec, results),
			GraderKeys:  graderKeys,
		},
		Results:    results,
		DurationMs: elapsed.Milliseconds(),
	}

	byModel := groupByModel(results)
	modelOrder := make([]string, 0, len(byModel))
	for model := range byModel {
		modelOrder = append(modelOrder, model)
	}
	sort.Strings(modelOrder)

	// Model reports are independent; bootstrap resampling dominates the
	// build for multi-run suites, so they are computed in parallel.
	report.ModelReports = make([]models.ModelReport, len(modelOrder))
	var g errgroup.Group
	for i, model := range modelOrder {
		g.Go(func() error {
			report.ModelReports[i] = buildModelReport(model, byModel[model], graderKeys, threshold, report.Setup.Runs)
			return nil
		})
	}
	_ = g.Wait()

	evaluateGates(spec, report, byModel, modelOrder, graderKeys, threshold)
	return report
}

func modelNames(handles []suite.ModelHandle) []string {
	names := make([]string, len(handles))
	for i, h := range handles {
		names[i] = h.Name
	}
	return names
}

// runsIn prefers the configured repeat count but falls back to what the
// results actually contain, so regraded historical reports stay accurate.
func runsIn(spec *suite.Spec, results []models.SampleResult) int {
	runs := spec.Runner.Runs
	for _, r := range results {
		if r.Run > runs {
			runs = r.Run
		}
	}
	if runs <= 0 {
		runs = 1
	}
	return runs
}

func groupByModel(results []models.SampleResult) map[string][]models.SampleResult {
	byModel := map[string][]models.SampleResult{}
	for _, r := range results {
		byModel[r.Model] = append(byModel[r.Model], r)
	}
	return byModel
}

func buildModelReport(model string, results []models.SampleResult, graderKeys []string, threshold float64, runs int) models.ModelReport {
	mr := models.ModelReport{
		Model:       model,
		Total:       len(results),
		GraderStats: map[string]stats.Summary{},
	}

	scores := map[string][]float64{}
	for _, r := range results {
		if !r.Attempted {
			continue
		}
		mr.Attempted++
		for _, key := range graderKeys {
			if grade, ok := r.Grades[key]; ok {
				scores[key] = append(scores[key], grade.Score)
			}
		}
	}

	for key, s := range scores {
		mr.GraderStats[key] = stats.Summarize(s, threshold)
	}

	if runs > 1 {
		mr.PerRun = perRunStats(results, graderKeys, threshold, runs)
		mr.Confidence = map[string]stats.ConfidenceInterval{}
		for key, s := range scores {
			mr.Confidence[key] = stats.BootstrapCI(s, bootstrapConfidence)
		}
	}
	return mr
}

func perRunStats(results []models.SampleResult, graderKeys []string, threshold float64, runs int) []models.RunStats {
	perRun := make([]models.RunStats, 0, runs)
	for run := 1; run <= runs; run++ {
		rs := models.RunStats{Run: run, GraderStats: map[string]stats.Summary{}}
		scores := map[string][]float64{}
		for _, r := range results {
			if r.Run != run || !r.Attempted {
				continue
			}
			rs.Attempted++
			for _, key := range graderKeys {
				if grade, ok := r.Grades[key]; ok {
					scores[key] = append(scores[key], grade.Score)
				}
			}
		}
		for key, s := range scores {
			rs.GraderStats[key] = stats.Summarize(s, threshold)
		}
		perRun = append(perRun, rs)
	}
	return perRun
}

// evaluateGates applies the gate under the suite's scope. Per-model scope
// gates each model independently and the run passes only when every model
// does; combined scope pools all models into one evaluation.
func evaluateGates(spec *suite.Spec, report *models.RunReport, byModel map[string][]models.SampleResult, modelOrder []string, graderKeys []string, threshold float64) {
	if spec.Gate.Kind == "" {
		report.GatePassed = true
		return
	}

	switch spec.EffectiveGateScope() {
	case suite.GateScopeCombined:
		src := gate.SourceFromResults(report.Results, threshold, graderKeys...)
		verdict := gate.Evaluate(&spec.Gate, src)
		report.Gate = &verdict
		report.GatePassed = verdict.Passed()

	default:
		overall := models.GateVerdict{
			Kind:    string(suite.GateLogical),
			Label:   "all models",
			Outcome: models.GatePassed,
		}
		for i, model := range modelOrder {
			src := gate.SourceFromResults(byModel[model], threshold, graderKeys...)
			verdict := gate.Evaluate(&spec.Gate, src)
			verdict.Label = model + ": " + verdict.Label
			report.ModelReports[i].Gate = &verdict
			overall.Children = append(overall.Children, verdict)
			if !verdict.Passed() {
				overall.Outcome = models.GateFailed
			}
		}
		if len(overall.Children) == 0 {
			overall.Outcome = models.GateNoData
		}
		report.Gate = &overall
		report.GatePassed = overall.Passed()
	}
}
