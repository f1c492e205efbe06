// Package grading turns a completed trajectory into one GradeResult per
// configured grader: extraction first, then primary graders, then
// aggregation graders in dependency order.
package grading

import (
	"context"
	"fmt"

	"github.com/gauntlet-eval/gauntlet/internal/extractors"
	"github.com/gauntlet-eval/gauntlet/internal/graders"
	"github.com/gauntlet-eval/gauntlet/internal/models"
	"github.com/gauntlet-eval/gauntlet/internal/suite"
)

type primary struct {
	key     string
	grader  graders.Grader
	extract extractors.Extractor
}

type aggregation struct {
	key  string
	fn   graders.AggregationFunc
	deps []string
}

// Engine grades samples for one suite. It is built once, before any
// execution unit is scheduled, so every function reference and dependency
// ordering problem surfaces as a fail-fast configuration error. The engine
// holds no per-sample state and is safe for concurrent use.
type Engine struct {
	primaries []primary
	// aggregations is stored in topological order of depends_on; running
	// them front to back guarantees every dependency is computed first.
	aggregations []aggregation
}

// Option adjusts engine construction.
type Option func(*options)

type options struct {
	overrides map[string]graders.Grader
}

// WithGrader substitutes a pre-built primary grader for the given key,
// bypassing registry construction. Used by tests and by re-grading flows
// that inject judges with custom clients.
func WithGrader(key string, g graders.Grader) Option {
	return func(o *options) {
		o.overrides[key] = g
	}
}

// NewEngine resolves the suite's graders, extractors, and aggregation
// functions into a ready-to-run engine.
func NewEngine(spec *suite.Spec, opts ...Option) (*Engine, error) {
	o := options{overrides: map[string]graders.Grader{}}
	for _, opt := range opts {
		opt(&o)
	}

	e := &Engine{}

	for _, entry := range spec.Graders {
		if entry.Spec.IsAggregation() {
			continue
		}

		g, ok := o.overrides[entry.Key]
		if !ok {
			var err error
			g, err = graders.Create(entry.Key, &entry.Spec)
			if err != nil {
				return nil, err
			}
		}

		name, cfg := entry.Spec.ExtractorRef()
		extract, err := extractors.Resolve(name, cfg)
		if err != nil {
			return nil, fmt.Errorf("grading: grader %q: %w", entry.Key, err)
		}

		e.primaries = append(e.primaries, primary{key: entry.Key, grader: g, extract: extract})
	}

	for _, key := range suite.TopoOrderAggregations(spec.Graders) {
		gs, _ := spec.Graders.Get(key)
		fn, err := graders.ResolveAggregation(key, gs.Aggregation)
		if err != nil {
			return nil, err
		}
		e.aggregations = append(e.aggregations, aggregation{
			key:  key,
			fn:   fn,
			deps: gs.Aggregation.DependsOn,
		})
	}

	return e, nil
}

// GraderKeys returns every grader key the engine will produce a result
// for, primaries first, then aggregations in evaluation order.
func (e *Engine) GraderKeys() []string {
	keys := make([]string, 0, len(e.primaries)+len(e.aggregations))
	for _, p := range e.primaries {
		keys = append(keys, p.key)
	}
	for _, a := range e.aggregations {
		keys = append(keys, a.key)
	}
	return keys
}

// Grade produces one GradeResult per configured grader. Grader failures
// are isolated: a failing grader scores 0.0 with the failure as rationale
// and every other grader still runs.
func (e *Engine) Grade(ctx context.Context, sample *models.Sample, trajectory models.Trajectory) map[string]models.GradeResult {
	if sample.PerTurn {
		return e.gradePerTurn(ctx, sample, trajectory)
	}

	results := make(map[string]models.GradeResult, len(e.primaries)+len(e.aggregations))

	for _, p := range e.primaries {
		submission := p.extract(trajectory)
		results[p.key] = e.runPrimary(ctx, p, sample, submission)
	}

	scores := scoresOf(results)
	for _, a := range e.aggregations {
		result := e.runAggregation(a, scores)
		results[a.key] = result
		scores[a.key] = result.Score
	}

	return results
}

// gradePerTurn repeats the full grading pass once per turn. The extractor
// sees only messages up to and including the active turn, graders see only
// that turn's ground truth, and the final score for every grader is the
// arithmetic mean of its per-turn scores.
func (e *Engine) gradePerTurn(ctx context.Context, sample *models.Sample, trajectory models.Trajectory) map[string]models.GradeResult {
	turns := sample.Turns()
	perTurn := make(map[string][]models.TurnGrade, len(e.primaries)+len(e.aggregations))

	for turn := 0; turn < turns; turn++ {
		scoped := trajectory.UpToTurn(turn)
		truth := sample.TurnGroundTruth(turn)

		// The grader only ever sees the active turn's expectation.
		turnSample := *sample
		turnSample.GroundTruth = []string{truth}
		turnSample.PerTurn = false

		turnScores := make(map[string]float64, len(e.primaries))

		for _, p := range e.primaries {
			submission := p.extract(scoped)
			result := e.runPrimary(ctx, p, &turnSample, submission)
			turnScores[p.key] = result.Score
			perTurn[p.key] = append(perTurn[p.key], models.TurnGrade{
				TurnIndex:   turn,
				Score:       result.Score,
				Rationale:   result.Rationale,
				Submission:  submission,
				GroundTruth: truth,
			})
		}

		for _, a := range e.aggregations {
			result := e.runAggregation(a, turnScores)
			turnScores[a.key] = result.Score
			perTurn[a.key] = append(perTurn[a.key], models.TurnGrade{
				TurnIndex:   turn,
				Score:       result.Score,
				Rationale:   result.Rationale,
				GroundTruth: truth,
			})
		}
	}

	results := make(map[string]models.GradeResult, len(perTurn))
	for key, grades := range perTurn {
		results[key] = models.GradeResult{
			Score:         models.MeanTurnScore(grades),
			Rationale:     fmt.Sprintf("mean of %d per-turn scores", len(grades)),
			PerTurnGrades: grades,
		}
	}
	return results
}

func (e *Engine) runPrimary(ctx context.Context, p primary, sample *models.Sample, submission string) models.GradeResult {
	result, err := p.grader.Grade(ctx, sample, submission)
	if err != nil {
		return models.GradeResult{
			Score:     0.0,
			Rationale: fmt.Sprintf("grader failed: %v", err),
		}
	}
	return result
}

func (e *Engine) runAggregation(a aggregation, scores map[string]float64) models.GradeResult {
	metrics := make(map[string]float64, len(a.deps))
	for _, dep := range a.deps {
		score, ok := scores[dep]
		if !ok {
			// Unreachable on a validated suite; topological order
			// guarantees dependencies are computed first.
			return models.GradeResult{
				Score:     0.0,
				Rationale: fmt.Sprintf("grader failed: dependency %q was not computed", dep),
			}
		}
		metrics[dep] = score
	}

	score, err := a.fn(metrics)
	if err != nil {
		return models.GradeResult{
			Score:     0.0,
			Rationale: fmt.Sprintf("grader failed: %v", err),
		}
	}

	return models.GradeResult{
		Score:     score,
		Rationale: fmt.Sprintf("aggregated from metrics: %s", graders.DescribeMetrics(metrics)),
		Metadata:  map[string]any{"input_metrics": metrics},
	}
}

func scoresOf(results map[string]models.GradeResult) map[string]float64 {
	scores := make(map[string]float64, len(results))
	for key, r := range results {
		scores[key] = r.Score
	}
	return scores
}
