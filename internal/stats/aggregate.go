package stats

import (
	"fmt"
	"math"
	"sort"
)

// DefaultPassThreshold is the score a sample must reach to count toward
// accuracy when the suite doesn't configure one.
const DefaultPassThreshold = 1.0

// Summary is the score distribution for one grader over one model's
// attempted samples. All fields are computed over attempted samples only;
// unattempted samples are excluded from the denominator and reported as an
// attempted/total ratio elsewhere.
type Summary struct {
	Count    int     `json:"count"`
	AvgScore float64 `json:"avg_score"`
	// Accuracy is the percentage (0-100) of samples scoring at or above the
	// configured pass threshold.
	Accuracy float64 `json:"accuracy"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Median   float64 `json:"median"`
	P95      float64 `json:"p95"`
	P99      float64 `json:"p99"`
	StdDev   float64 `json:"std_dev"`
}

// Summarize computes the full summary for a score distribution.
func Summarize(scores []float64, passThreshold float64) Summary {
	if len(scores) == 0 {
		return Summary{}
	}
	return Summary{
		Count:    len(scores),
		AvgScore: Mean(scores),
		Accuracy: Accuracy(scores, passThreshold),
		Min:      minOf(scores),
		Max:      maxOf(scores),
		Median:   Percentile(scores, 50),
		P95:      Percentile(scores, 95),
		P99:      Percentile(scores, 99),
		StdDev:   StdDev(scores),
	}
}

// Metric evaluates a named aggregation function over a score distribution.
// Recognized names: avg_score, accuracy, min, max, median, p50, p95, p99.
func Metric(name string, scores []float64, passThreshold float64) (float64, error) {
	if len(scores) == 0 {
		return 0, fmt.Errorf("stats: %q has no attempted samples", name)
	}
	switch name {
	case "avg_score":
		return Mean(scores), nil
	case "accuracy":
		return Accuracy(scores, passThreshold), nil
	case "min":
		return minOf(scores), nil
	case "max":
		return maxOf(scores), nil
	case "median", "p50":
		return Percentile(scores, 50), nil
	case "p95":
		return Percentile(scores, 95), nil
	case "p99":
		return Percentile(scores, 99), nil
	default:
		return 0, fmt.Errorf("stats: unknown aggregation function %q", name)
	}
}

// KnownAggregation reports whether name is a supported aggregation function.
func KnownAggregation(name string) bool {
	switch name {
	case "avg_score", "accuracy", "min", "max", "median", "p50", "p95", "p99":
		return true
	}
	return false
}

// Mean returns the arithmetic mean, or 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0.0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Accuracy returns the percentage (0-100) of values at or above threshold.
func Accuracy(values []float64, threshold float64) float64 {
	if len(values) == 0 {
		return 0.0
	}
	passed := 0
	for _, v := range values {
		if v >= threshold {
			passed++
		}
	}
	return float64(passed) / float64(len(values)) * 100.0
}

// Percentile returns the p-th percentile (0-100) of the distribution using
// linear interpolation between order statistics.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0.0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}

	rank := p / 100.0 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// StdDev returns the population standard deviation.
func StdDev(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0.0
	}
	mean := Mean(values)
	variance := 0.0
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	return math.Sqrt(variance / float64(n))
}

func minOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func maxOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
