// Package graders scores submissions. Primary graders (tool, rubric,
// agent_judge) map (sample, submission) to a score in [0,1] with a
// rationale; aggregation graders derive a score from other graders'
// results and are evaluated by the grading engine in dependency order.
package graders

import (
	"context"
	"fmt"

	"github.com/gauntlet-eval/gauntlet/internal/models"
	"github.com/gauntlet-eval/gauntlet/internal/suite"
)

// Grader is the interface for all primary graders.
type Grader interface {
	// Key returns the grader's key from the suite document.
	Key() string

	// Kind returns the grader variant.
	Kind() suite.GraderKind

	// Grade scores one submission. Scores are in [0,1] by contract; an
	// error return is recorded by the engine as a zero score with the
	// failure as rationale, isolated to this grader.
	Grade(ctx context.Context, sample *models.Sample, submission string) (models.GradeResult, error)
}

// Create builds a primary grader from its validated spec. Aggregation
// specs are rejected here; they are resolved by the grading engine through
// [ResolveAggregation].
func Create(key string, spec *suite.GraderSpec) (Grader, error) {
	switch spec.Kind {
	case suite.GraderTool:
		return NewToolGrader(key, spec.Tool)
	case suite.GraderRubric:
		return NewRubricGrader(key, spec.Rubric)
	case suite.GraderAgentJudge:
		return NewAgentJudgeGrader(key, spec.AgentJudge)
	case suite.GraderAggregation:
		return nil, fmt.Errorf("graders: %q is an aggregation grader, not a primary grader", key)
	default:
		return nil, fmt.Errorf("graders: %q has unknown kind %q", key, spec.Kind)
	}
}
