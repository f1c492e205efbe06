package models

// Sample is a single evaluation case. Samples are created once at dataset
// load time and never mutated afterwards, so they are safe to share across
// concurrently executing units.
type Sample struct {
	// ID is assigned by load order and is stable for the lifetime of a run.
	ID int `json:"id"`

	// Input holds the ordered conversation turns sent to the target. A
	// single-message sample has exactly one entry.
	Input []string `json:"input"`

	// GroundTruth is empty (no expected answer), a single entry (scalar
	// expected answer), or aligned 1:1 with Input when the sample is in
	// per-turn mode.
	GroundTruth []string `json:"ground_truth,omitempty"`

	// PerTurn is set by the loader when both input and ground truth were
	// authored as sequences of equal length. In per-turn mode every turn is
	// extracted and graded independently against its own ground truth.
	PerTurn bool `json:"per_turn,omitempty"`

	// AgentArgs is opaque context handed to target construction.
	AgentArgs map[string]any `json:"agent_args,omitempty"`

	// RubricVars is opaque context available to judge prompt templating.
	RubricVars map[string]string `json:"rubric_vars,omitempty"`

	// ExtraVars is opaque context available to custom extractors/graders.
	ExtraVars map[string]any `json:"extra_vars,omitempty"`

	Tags []string `json:"tags,omitempty"`
}

// ScalarGroundTruth returns the single expected answer for non-per-turn
// samples, or "" when the sample has no ground truth.
func (s *Sample) ScalarGroundTruth() string {
	if len(s.GroundTruth) == 0 {
		return ""
	}
	return s.GroundTruth[0]
}

// TurnGroundTruth returns the expected answer for one turn in per-turn mode.
func (s *Sample) TurnGroundTruth(turn int) string {
	if turn < 0 || turn >= len(s.GroundTruth) {
		return ""
	}
	return s.GroundTruth[turn]
}

// Turns returns the number of conversation turns in the sample input.
func (s *Sample) Turns() int {
	return len(s.Input)
}

// HasTag reports whether the sample carries any of the given tags.
func (s *Sample) HasTag(tags ...string) bool {
	for _, want := range tags {
		for _, have := range s.Tags {
			if have == want {
				return true
			}
		}
	}
	return false
}
