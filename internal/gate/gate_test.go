package gate

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gauntlet-eval/gauntlet/internal/models"
	"github.com/gauntlet-eval/gauntlet/internal/suite"
)

func simpleGate(metric, aggregation string, op suite.Op, value float64) *suite.GateSpec {
	return &suite.GateSpec{
		Kind:   suite.GateSimple,
		Simple: &suite.SimpleGateSpec{Metric: metric, Aggregation: aggregation, Op: op, Value: value},
	}
}

func TestEvaluateSimple(t *testing.T) {
	src := ScoreSource{
		Scores:        map[string][]float64{"quality": {0.6, 0.8, 1.0}},
		PassThreshold: 1.0,
	}

	t.Run("passing threshold", func(t *testing.T) {
		v := Evaluate(simpleGate("quality", "avg_score", suite.OpGTE, 0.75), src)
		require.Equal(t, models.GatePassed, v.Outcome)
		require.InDelta(t, 0.8, v.Value, 1e-9)
		require.Equal(t, "avg_score(quality) gte 0.75", v.Label)
	})

	t.Run("failing threshold", func(t *testing.T) {
		v := Evaluate(simpleGate("quality", "avg_score", suite.OpGT, 0.8), src)
		require.Equal(t, models.GateFailed, v.Outcome)
	})

	t.Run("boundary is inclusive for gte", func(t *testing.T) {
		v := Evaluate(simpleGate("quality", "avg_score", suite.OpGTE, 0.8), src)
		require.Equal(t, models.GatePassed, v.Outcome)
	})

	t.Run("accuracy metric uses the pass threshold", func(t *testing.T) {
		v := Evaluate(simpleGate("quality", "accuracy", suite.OpGTE, 30), src)
		require.Equal(t, models.GatePassed, v.Outcome)
		require.InDelta(t, 100.0/3.0, v.Value, 1e-9)
	})

	t.Run("no scores yields no-data, not failure", func(t *testing.T) {
		v := Evaluate(simpleGate("missing", "avg_score", suite.OpGTE, 0.5), src)
		require.Equal(t, models.GateNoData, v.Outcome)
		require.False(t, v.Passed())
	})
}

func TestEvaluateLogical(t *testing.T) {
	src := ScoreSource{
		Scores: map[string][]float64{
			"quality": {0.9},
			"speed":   {0.2},
		},
		PassThreshold: 1.0,
	}

	logical := func(op suite.LogicalOp, conditions ...*suite.GateSpec) *suite.GateSpec {
		conds := make([]suite.GateSpec, 0, len(conditions))
		for _, c := range conditions {
			conds = append(conds, *c)
		}
		return &suite.GateSpec{
			Kind:    suite.GateLogical,
			Logical: &suite.LogicalGateSpec{Op: op, Conditions: conds},
		}
	}

	t.Run("and fails when any child fails", func(t *testing.T) {
		v := Evaluate(logical(suite.LogicalAnd,
			simpleGate("quality", "avg_score", suite.OpGTE, 0.5),
			simpleGate("speed", "avg_score", suite.OpGTE, 0.5),
		), src)
		require.Equal(t, models.GateFailed, v.Outcome)
	})

	t.Run("every child is recorded even after the verdict is decided", func(t *testing.T) {
		v := Evaluate(logical(suite.LogicalAnd,
			simpleGate("speed", "avg_score", suite.OpGTE, 0.5),
			simpleGate("quality", "avg_score", suite.OpGTE, 0.5),
		), src)
		require.Len(t, v.Children, 2)
		require.Equal(t, models.GateFailed, v.Children[0].Outcome)
		require.Equal(t, models.GatePassed, v.Children[1].Outcome)
	})

	t.Run("or passes when any child passes", func(t *testing.T) {
		v := Evaluate(logical(suite.LogicalOr,
			simpleGate("speed", "avg_score", suite.OpGTE, 0.5),
			simpleGate("quality", "avg_score", suite.OpGTE, 0.5),
		), src)
		require.Equal(t, models.GatePassed, v.Outcome)
	})

	t.Run("nested logical gates", func(t *testing.T) {
		v := Evaluate(logical(suite.LogicalAnd,
			simpleGate("quality", "avg_score", suite.OpGTE, 0.5),
			logical(suite.LogicalOr,
				simpleGate("speed", "avg_score", suite.OpGTE, 0.5),
				simpleGate("quality", "avg_score", suite.OpGTE, 0.8),
			),
		), src)
		require.Equal(t, models.GatePassed, v.Outcome)
		require.Len(t, v.Children, 2)
		require.Len(t, v.Children[1].Children, 2)
	})

	t.Run("and with only passes and no-data yields no-data", func(t *testing.T) {
		v := Evaluate(logical(suite.LogicalAnd,
			simpleGate("quality", "avg_score", suite.OpGTE, 0.5),
			simpleGate("missing", "avg_score", suite.OpGTE, 0.5),
		), src)
		require.Equal(t, models.GateNoData, v.Outcome)
	})

	t.Run("or with only failures and no-data yields no-data", func(t *testing.T) {
		v := Evaluate(logical(suite.LogicalOr,
			simpleGate("speed", "avg_score", suite.OpGTE, 0.5),
			simpleGate("missing", "avg_score", suite.OpGTE, 0.5),
		), src)
		require.Equal(t, models.GateNoData, v.Outcome)
	})
}

func TestEvaluateWeighted(t *testing.T) {
	weighted := func(weights map[string]float64, op suite.Op, value float64) *suite.GateSpec {
		return &suite.GateSpec{
			Kind: suite.GateWeightedAverage,
			Weighted: &suite.WeightedGateSpec{
				Weights:     weights,
				Aggregation: "avg_score",
				Op:          op,
				Value:       value,
			},
		}
	}

	src := ScoreSource{
		Scores: map[string][]float64{
			"quality": {0.8},
			"speed":   {0.5},
		},
		PassThreshold: 1.0,
	}

	t.Run("weighted mean compared against the threshold", func(t *testing.T) {
		// 0.7*0.8 + 0.3*0.5 = 0.71
		v := Evaluate(weighted(map[string]float64{"quality": 0.7, "speed": 0.3}, suite.OpGTE, 0.75), src)
		require.Equal(t, models.GateFailed, v.Outcome)
		require.InDelta(t, 0.71, v.Value, 1e-9)
		require.Len(t, v.Children, 2)
	})

	t.Run("children are contributions without a verdict of their own", func(t *testing.T) {
		v := Evaluate(weighted(map[string]float64{"quality": 0.7, "speed": 0.3}, suite.OpGTE, 0.75), src)
		for _, child := range v.Children {
			require.Equal(t, models.GateContribution, child.Kind)
			require.Empty(t, child.Outcome)
		}
		require.InDelta(t, 0.8, v.Children[0].Value, 1e-9)
		require.InDelta(t, 0.5, v.Children[1].Value, 1e-9)
	})

	t.Run("weights normalize so ratios work", func(t *testing.T) {
		v := Evaluate(weighted(map[string]float64{"quality": 7, "speed": 3}, suite.OpGTE, 0.7), src)
		require.Equal(t, models.GatePassed, v.Outcome)
		require.InDelta(t, 0.71, v.Value, 1e-9)
	})

	t.Run("any metric without data makes the gate no-data", func(t *testing.T) {
		v := Evaluate(weighted(map[string]float64{"quality": 0.5, "missing": 0.5}, suite.OpGTE, 0.1), src)
		require.Equal(t, models.GateNoData, v.Outcome)
	})
}

func TestSourceFromResults(t *testing.T) {
	results := []models.SampleResult{
		{SampleID: 0, Attempted: true, Grades: map[string]models.GradeResult{"q": {Score: 0.5}}},
		{SampleID: 1, Attempted: false, ErrorMsg: "timed out"},
		{SampleID: 2, Attempted: true, Grades: map[string]models.GradeResult{"q": {Score: 1.0}, "other": {Score: 0.1}}},
	}

	t.Run("unattempted results contribute nothing", func(t *testing.T) {
		src := SourceFromResults(results, 1.0)
		require.Equal(t, []float64{0.5, 1.0}, src.Scores["q"])
	})

	t.Run("key filter restricts collection", func(t *testing.T) {
		src := SourceFromResults(results, 1.0, "q")
		require.Contains(t, src.Scores, "q")
		require.NotContains(t, src.Scores, "other")
	})

	t.Run("all unattempted produces a no-data gate", func(t *testing.T) {
		src := SourceFromResults([]models.SampleResult{{Attempted: false}}, 1.0)
		v := Evaluate(simpleGate("q", "avg_score", suite.OpGTE, 0.5), src)
		require.Equal(t, models.GateNoData, v.Outcome)
	})
}
