// Package gate evaluates pass/fail criteria over aggregated grader
// scores. Evaluation produces a full verdict tree mirroring the
// criterion's structure so reports can show which branch carried a
// failure; no branch is elided by short-circuiting.
package gate

import (
	"fmt"
	"sort"

	"github.com/gauntlet-eval/gauntlet/internal/models"
	"github.com/gauntlet-eval/gauntlet/internal/stats"
	"github.com/gauntlet-eval/gauntlet/internal/suite"
)

// ScoreSource supplies the per-grader score series a gate aggregates
// over. Only attempted results contribute scores.
type ScoreSource struct {
	// Scores maps grader key to the scores of attempted results.
	Scores map[string][]float64
	// PassThreshold feeds the accuracy aggregation.
	PassThreshold float64
}

// SourceFromResults collects scores from attempted results. Pass keys to
// restrict which graders are collected; with no keys every grade found in
// the results is collected.
func SourceFromResults(results []models.SampleResult, passThreshold float64, keys ...string) ScoreSource {
	src := ScoreSource{
		Scores:        map[string][]float64{},
		PassThreshold: passThreshold,
	}
	want := map[string]bool{}
	for _, k := range keys {
		want[k] = true
	}
	for _, r := range results {
		if !r.Attempted {
			continue
		}
		for key, grade := range r.Grades {
			if len(want) > 0 && !want[key] {
				continue
			}
			src.Scores[key] = append(src.Scores[key], grade.Score)
		}
	}
	return src
}

// Evaluate resolves a gate tree against a score source. The returned
// verdict always has the same shape as the gate; leaves with no
// underlying scores carry the no-data outcome, which is distinct from
// failure and propagates conservatively through composites.
func Evaluate(g *suite.GateSpec, src ScoreSource) models.GateVerdict {
	switch g.Kind {
	case suite.GateSimple:
		return evaluateSimple(g.Simple, src)
	case suite.GateLogical:
		return evaluateLogical(g.Logical, src)
	case suite.GateWeightedAverage:
		return evaluateWeighted(g.Weighted, src)
	default:
		return models.GateVerdict{
			Kind:    string(g.Kind),
			Label:   fmt.Sprintf("unknown gate kind %q", g.Kind),
			Outcome: models.GateNoData,
		}
	}
}

func evaluateSimple(g *suite.SimpleGateSpec, src ScoreSource) models.GateVerdict {
	label := fmt.Sprintf("%s(%s) %s %g", g.Aggregation, g.Metric, g.Op, g.Value)
	verdict := models.GateVerdict{
		Kind:  string(suite.GateSimple),
		Label: label,
	}

	scores := src.Scores[g.Metric]
	value, err := stats.Metric(g.Aggregation, scores, src.PassThreshold)
	if err != nil {
		verdict.Outcome = models.GateNoData
		return verdict
	}

	verdict.Value = value
	// Op validity is checked at suite load; an unknown op can't reach here.
	passed, _ := g.Op.Compare(value, g.Value)
	if passed {
		verdict.Outcome = models.GatePassed
	} else {
		verdict.Outcome = models.GateFailed
	}
	return verdict
}

func evaluateLogical(g *suite.LogicalGateSpec, src ScoreSource) models.GateVerdict {
	verdict := models.GateVerdict{
		Kind:  string(suite.GateLogical),
		Label: string(g.Op),
	}

	// Every condition is evaluated even once the composite outcome is
	// already decided, so the audit tree is complete.
	anyNoData := false
	passes := 0
	for i := range g.Conditions {
		child := Evaluate(&g.Conditions[i], src)
		verdict.Children = append(verdict.Children, child)
		switch child.Outcome {
		case models.GatePassed:
			passes++
		case models.GateNoData:
			anyNoData = true
		}
	}

	switch g.Op {
	case suite.LogicalAnd:
		switch {
		case passes == len(g.Conditions):
			verdict.Outcome = models.GatePassed
		case anyNoData && passes+countNoData(verdict.Children) == len(g.Conditions):
			// Nothing failed outright; the gate simply lacks evidence.
			verdict.Outcome = models.GateNoData
		default:
			verdict.Outcome = models.GateFailed
		}
	case suite.LogicalOr:
		switch {
		case passes > 0:
			verdict.Outcome = models.GatePassed
		case anyNoData:
			verdict.Outcome = models.GateNoData
		default:
			verdict.Outcome = models.GateFailed
		}
	default:
		verdict.Outcome = models.GateNoData
	}
	return verdict
}

func countNoData(children []models.GateVerdict) int {
	n := 0
	for _, c := range children {
		if c.Outcome == models.GateNoData {
			n++
		}
	}
	return n
}

// evaluateWeighted aggregates each referenced metric independently, then
// combines the aggregates as a weighted mean. Weights are normalized so
// authors can write ratios without making them sum to one.
func evaluateWeighted(g *suite.WeightedGateSpec, src ScoreSource) models.GateVerdict {
	verdict := models.GateVerdict{
		Kind:  string(suite.GateWeightedAverage),
		Label: fmt.Sprintf("weighted_average %s %g", g.Op, g.Value),
	}

	metrics := make([]string, 0, len(g.Weights))
	for m := range g.Weights {
		metrics = append(metrics, m)
	}
	sort.Strings(metrics)

	var weightedSum, totalWeight float64
	anyNoData := false
	for _, metric := range metrics {
		weight := g.Weights[metric]
		// Children are contributions to the weighted mean, not verdicts;
		// they carry no pass/fail outcome of their own.
		child := models.GateVerdict{
			Kind:  models.GateContribution,
			Label: fmt.Sprintf("%s(%s) * %g", g.Aggregation, metric, weight),
		}
		value, err := stats.Metric(g.Aggregation, src.Scores[metric], src.PassThreshold)
		if err != nil {
			child.Outcome = models.GateNoData
			anyNoData = true
		} else {
			child.Value = value
			weightedSum += weight * value
			totalWeight += weight
		}
		verdict.Children = append(verdict.Children, child)
	}

	if anyNoData || totalWeight == 0 {
		verdict.Outcome = models.GateNoData
		return verdict
	}

	combined := weightedSum / totalWeight
	verdict.Value = combined
	passed, _ := g.Op.Compare(combined, g.Value)
	if passed {
		verdict.Outcome = models.GatePassed
	} else {
		verdict.Outcome = models.GateFailed
	}
	return verdict
}
