package models

// TurnGrade is the grading detail for a single turn of a per-turn sample,
// kept for audit so a mean score can always be traced back to its parts.
type TurnGrade struct {
	TurnIndex   int     `json:"turn_index"`
	Score       float64 `json:"score"`
	Rationale   string  `json:"rationale,omitempty"`
	Submission  string  `json:"submission"`
	GroundTruth string  `json:"ground_truth,omitempty"`
}

// GradeResult is the outcome of running one grader against one submission.
//
// Score is in [0,1] by grader contract. The grading engine does not clamp
// on a grader's behalf: an out-of-range score is an authoring bug and is
// reported verbatim so it is visible in output.
type GradeResult struct {
	Score     float64        `json:"score"`
	Rationale string         `json:"rationale,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`

	// PerTurnGrades is populated only in per-turn mode. When present, Score
	// is the arithmetic mean of the per-turn scores.
	PerTurnGrades []TurnGrade `json:"per_turn_grades,omitempty"`
}

// MeanTurnScore returns the arithmetic mean of the per-turn scores, or 0
// when there are none.
func MeanTurnScore(grades []TurnGrade) float64 {
	if len(grades) == 0 {
		return 0.0
	}
	total := 0.0
	for _, g := range grades {
		total += g.Score
	}
	return total / float64(len(grades))
}
