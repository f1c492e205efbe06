package suite

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gauntlet-eval/gauntlet/internal/stats"
)

// Validate checks the suite for configuration errors. All of these are
// fatal and must be surfaced before any execution unit is scheduled.
func (s *Spec) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("suite: 'name' is required")
	}
	if s.Dataset == "" {
		return fmt.Errorf("suite: 'dataset' is required")
	}
	if s.Target.Kind == "" {
		return fmt.Errorf("suite: target 'kind' is required")
	}
	if len(s.Target.Models) == 0 {
		return fmt.Errorf("suite: target must declare at least one model")
	}

	seen := make(map[string]bool, len(s.Target.Models))
	for _, h := range s.Target.Models {
		if h.Model == "" {
			return fmt.Errorf("suite: model handle %q has no model identifier", h.Name)
		}
		if seen[h.Name] {
			return fmt.Errorf("suite: duplicate model handle name %q", h.Name)
		}
		seen[h.Name] = true
	}

	if s.GateScope != "" && s.GateScope != GateScopePerModel && s.GateScope != GateScopeCombined {
		return fmt.Errorf("suite: unknown gate_scope %q", s.GateScope)
	}
	if s.PassThreshold != nil && (*s.PassThreshold < 0 || *s.PassThreshold > 1) {
		return fmt.Errorf("suite: pass_threshold must be in [0,1], got %v", *s.PassThreshold)
	}

	if len(s.Graders) == 0 {
		return fmt.Errorf("suite: at least one grader is required")
	}
	for _, e := range s.Graders {
		if err := validateGrader(e.Key, &e.Spec, s.Graders); err != nil {
			return err
		}
	}

	if err := checkDependencyCycles(s.Graders); err != nil {
		return err
	}

	return validateGate(&s.Gate, s.Graders)
}

func validateGrader(key string, g *GraderSpec, all GraderList) error {
	switch g.Kind {
	case GraderTool:
		if g.Tool.Function == "" {
			return fmt.Errorf("suite: tool grader %q requires 'function'", key)
		}
	case GraderRubric:
		if g.Rubric.Prompt == "" && g.Rubric.PromptPath == "" {
			return fmt.Errorf("suite: rubric grader %q requires 'prompt' or 'prompt_path'", key)
		}
		if g.Rubric.Prompt != "" && g.Rubric.PromptPath != "" {
			return fmt.Errorf("suite: rubric grader %q cannot set both 'prompt' and 'prompt_path'", key)
		}
	case GraderAgentJudge:
		if g.AgentJudge.Prompt == "" && g.AgentJudge.PromptPath == "" {
			return fmt.Errorf("suite: agent_judge grader %q requires 'prompt' or 'prompt_path'", key)
		}
	case GraderAggregation:
		if g.Aggregation.Function == "" {
			return fmt.Errorf("suite: aggregation grader %q requires 'function'", key)
		}
		if len(g.Aggregation.DependsOn) == 0 {
			return fmt.Errorf("suite: aggregation grader %q requires at least one 'depends_on' entry", key)
		}
		for _, dep := range g.Aggregation.DependsOn {
			if dep == key {
				return fmt.Errorf("suite: aggregation grader %q depends on itself", key)
			}
			if _, ok := all.Get(dep); !ok {
				return fmt.Errorf("suite: aggregation grader %q depends on unknown grader %q", key, dep)
			}
		}
		for metric, w := range g.Aggregation.Weights {
			if w < 0 {
				return fmt.Errorf("suite: aggregation grader %q has negative weight for %q", key, metric)
			}
		}
	default:
		return fmt.Errorf("suite: grader %q has unknown kind %q", key, g.Kind)
	}
	return nil
}

// checkDependencyCycles runs Kahn's algorithm over the depends_on relation.
// A cycle is rejected with its member keys named; the scheduler never sees
// a suite that could deadlock the grading pass.
func checkDependencyCycles(graders GraderList) error {
	indegree := make(map[string]int, len(graders))
	dependents := make(map[string][]string)

	for _, e := range graders {
		if _, ok := indegree[e.Key]; !ok {
			indegree[e.Key] = 0
		}
		if !e.Spec.IsAggregation() {
			continue
		}
		for _, dep := range e.Spec.Aggregation.DependsOn {
			indegree[e.Key]++
			dependents[dep] = append(dependents[dep], e.Key)
		}
	}

	queue := make([]string, 0, len(indegree))
	for _, e := range graders {
		if indegree[e.Key] == 0 {
			queue = append(queue, e.Key)
		}
	}

	resolved := 0
	for len(queue) > 0 {
		key := queue[0]
		queue = queue[1:]
		resolved++
		for _, dep := range dependents[key] {
			indegree[dep]--
			if indegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	if resolved == len(indegree) {
		return nil
	}

	var cycle []string
	for key, deg := range indegree {
		if deg > 0 {
			cycle = append(cycle, key)
		}
	}
	sort.Strings(cycle)
	return fmt.Errorf("suite: cyclic grader dependencies among: %s", strings.Join(cycle, ", "))
}

// TopoOrderAggregations returns the aggregation grader keys in an order
// where every grader appears after all of its dependencies. Must only be
// called on a validated (acyclic) suite.
func TopoOrderAggregations(graders GraderList) []string {
	done := make(map[string]bool, len(graders))
	for _, e := range graders {
		if !e.Spec.IsAggregation() {
			done[e.Key] = true
		}
	}

	var order []string
	remaining := make([]GraderEntry, 0, len(graders))
	for _, e := range graders {
		if e.Spec.IsAggregation() {
			remaining = append(remaining, e)
		}
	}

	for len(remaining) > 0 {
		next := remaining[:0]
		for _, e := range remaining {
			ready := true
			for _, dep := range e.Spec.Aggregation.DependsOn {
				if !done[dep] {
					ready = false
					break
				}
			}
			if ready {
				order = append(order, e.Key)
				done[e.Key] = true
			} else {
				next = append(next, e)
			}
		}
		remaining = next
	}
	return order
}

func validateGate(g *GateSpec, graders GraderList) error {
	switch g.Kind {
	case GateSimple:
		if _, ok := graders.Get(g.Simple.Metric); !ok {
			return fmt.Errorf("suite: gate references unknown metric %q", g.Simple.Metric)
		}
		if !stats.KnownAggregation(g.Simple.Aggregation) {
			return fmt.Errorf("suite: gate uses unknown aggregation %q", g.Simple.Aggregation)
		}
		if _, err := g.Simple.Op.Compare(0, 0); err != nil {
			return err
		}
	case GateLogical:
		if g.Logical.Op != LogicalAnd && g.Logical.Op != LogicalOr {
			return fmt.Errorf("suite: logical gate has unknown op %q", g.Logical.Op)
		}
		if len(g.Logical.Conditions) == 0 {
			return fmt.Errorf("suite: logical gate requires at least one condition")
		}
		for i := range g.Logical.Conditions {
			if err := validateGate(&g.Logical.Conditions[i], graders); err != nil {
				return err
			}
		}
	case GateWeightedAverage:
		if len(g.Weighted.Weights) == 0 {
			return fmt.Errorf("suite: weighted_average gate requires at least one weight")
		}
		sum := 0.0
		for metric, w := range g.Weighted.Weights {
			if _, ok := graders.Get(metric); !ok {
				return fmt.Errorf("suite: gate references unknown metric %q", metric)
			}
			if w < 0 {
				return fmt.Errorf("suite: weighted_average gate has negative weight for %q", metric)
			}
			sum += w
		}
		if sum == 0 {
			return fmt.Errorf("suite: weighted_average gate weights sum to zero")
		}
		if !stats.KnownAggregation(g.Weighted.Aggregation) {
			return fmt.Errorf("suite: gate uses unknown aggregation %q", g.Weighted.Aggregation)
		}
		if _, err := g.Weighted.Op.Compare(0, 0); err != nil {
			return err
		}
	default:
		return fmt.Errorf("suite: gate has unknown kind %q", g.Kind)
	}
	return nil
}
