package stats

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMean(t *testing.T) {
	require.Equal(t, 0.0, Mean(nil))
	require.Equal(t, 0.5, Mean([]float64{0.0, 1.0}))
	require.InDelta(t, 0.81, Mean([]float64{1.0, 0.9, 0.85, 0.7, 0.6}), 1e-9)
}

func TestAccuracy(t *testing.T) {
	t.Run("threshold boundary is inclusive", func(t *testing.T) {
		scores := []float64{1.0, 0.9, 0.85, 0.7, 0.6}
		require.Equal(t, 60.0, Accuracy(scores, 0.8))
	})

	t.Run("default threshold requires perfect scores", func(t *testing.T) {
		scores := []float64{1.0, 0.99, 1.0, 0.5}
		require.Equal(t, 50.0, Accuracy(scores, DefaultPassThreshold))
	})

	t.Run("empty", func(t *testing.T) {
		require.Equal(t, 0.0, Accuracy(nil, 0.8))
	})
}

func TestPercentile(t *testing.T) {
	scores := []float64{0.1, 0.2, 0.3, 0.4}

	t.Run("interpolates between order statistics", func(t *testing.T) {
		// rank = 0.5 * 3 = 1.5, halfway between 0.2 and 0.3
		require.InDelta(t, 0.25, Percentile(scores, 50), 1e-9)
	})

	t.Run("extremes clamp to min and max", func(t *testing.T) {
		require.Equal(t, 0.1, Percentile(scores, 0))
		require.Equal(t, 0.4, Percentile(scores, 100))
	})

	t.Run("single value", func(t *testing.T) {
		require.Equal(t, 0.7, Percentile([]float64{0.7}, 95))
	})

	t.Run("does not mutate input", func(t *testing.T) {
		unsorted := []float64{0.9, 0.1, 0.5}
		Percentile(unsorted, 50)
		require.Equal(t, []float64{0.9, 0.1, 0.5}, unsorted)
	})
}

func TestStdDev(t *testing.T) {
	require.Equal(t, 0.0, StdDev(nil))
	require.Equal(t, 0.0, StdDev([]float64{0.5, 0.5, 0.5}))
	require.InDelta(t, 0.5, StdDev([]float64{0.0, 1.0}), 1e-9)
}

func TestSummarize(t *testing.T) {
	s := Summarize([]float64{1.0, 0.9, 0.85, 0.7, 0.6}, 0.8)
	require.Equal(t, 5, s.Count)
	require.InDelta(t, 0.81, s.AvgScore, 1e-9)
	require.Equal(t, 60.0, s.Accuracy)
	require.Equal(t, 0.6, s.Min)
	require.Equal(t, 1.0, s.Max)
	require.Equal(t, 0.85, s.Median)

	require.Equal(t, Summary{}, Summarize(nil, 0.8))
}

func TestMetric(t *testing.T) {
	scores := []float64{0.2, 0.4, 0.6, 0.8, 1.0}

	cases := []struct {
		name string
		want float64
	}{
		{"avg_score", 0.6},
		{"min", 0.2},
		{"max", 1.0},
		{"median", 0.6},
		{"p50", 0.6},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Metric(tc.name, scores, 0.8)
			require.NoError(t, err)
			require.InDelta(t, tc.want, got, 1e-9)
		})
	}

	t.Run("accuracy uses the pass threshold", func(t *testing.T) {
		got, err := Metric("accuracy", scores, 0.8)
		require.NoError(t, err)
		require.Equal(t, 40.0, got)
	})

	t.Run("unknown function", func(t *testing.T) {
		_, err := Metric("geometric_mean", scores, 0.8)
		require.ErrorContains(t, err, "unknown aggregation function")
	})

	t.Run("empty distribution is an error, not zero", func(t *testing.T) {
		_, err := Metric("avg_score", nil, 0.8)
		require.ErrorContains(t, err, "no attempted samples")
	})
}

func TestKnownAggregation(t *testing.T) {
	require.True(t, KnownAggregation("avg_score"))
	require.True(t, KnownAggregation("p99"))
	require.False(t, KnownAggregation("sum"))
}
