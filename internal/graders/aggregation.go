package graders

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/gauntlet-eval/gauntlet/internal/suite"
)

// AggregationFunc derives a score from the scores of the graders an
// aggregation grader depends on. The metrics map holds exactly the
// declared depends_on keys.
type AggregationFunc func(metrics map[string]float64) (float64, error)

// AggregationFactory binds a validated aggregation spec (weights and
// dependency list) into a concrete function.
type AggregationFactory func(spec *suite.AggregationGraderSpec) (AggregationFunc, error)

var (
	aggMu       sync.RWMutex
	aggRegistry = map[string]AggregationFactory{}
)

// RegisterAggregation adds a named aggregation factory. Duplicate names
// panic.
func RegisterAggregation(name string, factory AggregationFactory) {
	aggMu.Lock()
	defer aggMu.Unlock()
	if _, exists := aggRegistry[name]; exists {
		panic(fmt.Sprintf("graders: aggregation function %q registered twice", name))
	}
	aggRegistry[name] = factory
}

// AggregationNames returns the registered aggregation function names,
// sorted.
func AggregationNames() []string {
	aggMu.RLock()
	defer aggMu.RUnlock()
	names := make([]string, 0, len(aggRegistry))
	for name := range aggRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResolveAggregation binds the spec's function reference. Unknown names
// are configuration errors, caught before any sample executes.
func ResolveAggregation(key string, spec *suite.AggregationGraderSpec) (AggregationFunc, error) {
	aggMu.RLock()
	factory, ok := aggRegistry[spec.Function]
	aggMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("graders: %q references unknown aggregation function %q (known: %v)",
			key, spec.Function, AggregationNames())
	}
	fn, err := factory(spec)
	if err != nil {
		return nil, fmt.Errorf("graders: %q: %w", key, err)
	}
	return fn, nil
}

// DescribeMetrics renders the input metrics for an aggregation rationale.
func DescribeMetrics(metrics map[string]float64) string {
	keys := make([]string, 0, len(metrics))
	for k := range metrics {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%.3f", k, metrics[k]))
	}
	return strings.Join(parts, ", ")
}

func init() {
	RegisterAggregation("mean", func(spec *suite.AggregationGraderSpec) (AggregationFunc, error) {
		return func(metrics map[string]float64) (float64, error) {
			total := 0.0
			for _, v := range metrics {
				total += v
			}
			return total / float64(len(metrics)), nil
		}, nil
	})

	RegisterAggregation("min", func(spec *suite.AggregationGraderSpec) (AggregationFunc, error) {
		return func(metrics map[string]float64) (float64, error) {
			first := true
			m := 0.0
			for _, v := range metrics {
				if first || v < m {
					m = v
					first = false
				}
			}
			return m, nil
		}, nil
	})

	RegisterAggregation("max", func(spec *suite.AggregationGraderSpec) (AggregationFunc, error) {
		return func(metrics map[string]float64) (float64, error) {
			first := true
			m := 0.0
			for _, v := range metrics {
				if first || v > m {
					m = v
					first = false
				}
			}
			return m, nil
		}, nil
	})

	// weighted_sum combines dependencies with the spec's weights after
	// normalizing them to sum to 1. Dependencies without a declared weight
	// get weight 1 before normalization.
	RegisterAggregation("weighted_sum", func(spec *suite.AggregationGraderSpec) (AggregationFunc, error) {
		weights := make(map[string]float64, len(spec.DependsOn))
		total := 0.0
		for _, dep := range spec.DependsOn {
			w, ok := spec.Weights[dep]
			if !ok {
				w = 1.0
			}
			weights[dep] = w
			total += w
		}
		if total == 0 {
			return nil, fmt.Errorf("weighted_sum weights sum to zero")
		}
		for dep := range weights {
			weights[dep] /= total
		}

		return func(metrics map[string]float64) (float64, error) {
			sum := 0.0
			for dep, w := range weights {
				v, ok := metrics[dep]
				if !ok {
					return 0, fmt.Errorf("missing dependency metric %q", dep)
				}
				sum += w * v
			}
			return sum, nil
		}, nil
	})
}
