package models

import (
	"sort"
	"time"

	"github.com/gauntlet-eval/gauntlet/internal/stats"
)

// SampleResult is the finalized outcome for one (sample, model) execution
// unit. Exactly one instance exists per pair per run; it is immutable once
// the scheduler finalizes it.
type SampleResult struct {
	SampleID int    `json:"sample_id"`
	Model    string `json:"model"`
	Run      int    `json:"run,omitempty"`

	// Attempted is false when execution failed after exhausting retries. An
	// unattempted sample carries no trajectory or grades, only ErrorMsg.
	Attempted bool `json:"attempted"`
	Attempts  int  `json:"attempts"`

	Trajectory Trajectory `json:"trajectory,omitempty"`
	ErrorMsg   string     `json:"error_msg,omitempty"`

	// Grades maps grader key to its result, one entry per configured grader.
	Grades map[string]GradeResult `json:"grades,omitempty"`

	DurationMs int64    `json:"duration_ms"`
	Cost       *float64 `json:"cost,omitempty"`
}

// GateOutcome is the verdict of one gate node.
type GateOutcome string

const (
	GatePassed GateOutcome = "passed"
	GateFailed GateOutcome = "failed"
	// GateNoData is reported when a gate references metrics for which no
	// attempted samples exist. It is distinct from a scored failure.
	GateNoData GateOutcome = "no_data"
)

// GateContribution is the verdict-tree kind for a weighted-average input.
// Contribution nodes report their aggregated value but carry no pass/fail
// outcome; only the composite is judged against the threshold.
const GateContribution = "contribution"

// GateVerdict is one node of the evaluated gate tree. Every node of the
// configured gate appears here, including children of logical combinators
// whose outcome was already decided, so gate failures are diagnosable
// without re-running the suite.
type GateVerdict struct {
	Kind     string        `json:"kind"`
	Label    string        `json:"label"`
	Value    float64       `json:"value"`
	Outcome  GateOutcome   `json:"outcome,omitempty"`
	Children []GateVerdict `json:"children,omitempty"`
}

// Passed reports whether this node's verdict is a pass. A no-data verdict
// is not a pass.
func (v GateVerdict) Passed() bool { return v.Outcome == GatePassed }

// ModelReport holds the aggregate view of one model handle's results.
type ModelReport struct {
	Model     string `json:"model"`
	Attempted int    `json:"attempted"`
	Total     int    `json:"total"`

	// GraderStats maps grader key to the score distribution summary over
	// this model's attempted samples.
	GraderStats map[string]stats.Summary `json:"grader_stats"`

	// PerRun holds one summary per repeat when the suite ran the unit set
	// more than once, used to quantify evaluation noise.
	PerRun []RunStats `json:"per_run,omitempty"`

	// Confidence maps grader key to a bootstrap confidence interval over
	// the pooled scores. Populated only for multi-run suites.
	Confidence map[string]stats.ConfidenceInterval `json:"confidence,omitempty"`

	Gate *GateVerdict `json:"gate,omitempty"`
}

// RunStats is the per-repeat aggregate used in multi-run variance mode.
type RunStats struct {
	Run         int                      `json:"run"`
	Attempted   int                      `json:"attempted"`
	GraderStats map[string]stats.Summary `json:"grader_stats"`
}

// ReportSetup echoes the configuration a report was produced under.
type ReportSetup struct {
	Models      []string `json:"models"`
	Concurrency int      `json:"concurrency"`
	MaxAttempts int      `json:"max_attempts"`
	TimeoutSec  int      `json:"timeout_sec"`
	Runs        int      `json:"runs"`
	GraderKeys  []string `json:"grader_keys"`
}

// RunReport is the terminal artifact of an evaluation run.
type RunReport struct {
	RunID     string      `json:"run_id"`
	SuiteName string      `json:"suite"`
	Timestamp time.Time   `json:"timestamp"`
	Setup     ReportSetup `json:"config"`

	// Results is sorted by (model, sample id, run), never by completion
	// order, so identical inputs always produce diffable artifacts.
	Results []SampleResult `json:"results"`

	ModelReports []ModelReport `json:"model_reports"`

	// Gate is the overall verdict tree; GatePassed mirrors its outcome for
	// quick checks.
	Gate       *GateVerdict `json:"gate,omitempty"`
	GatePassed bool         `json:"gate_passed"`

	DurationMs int64 `json:"duration_ms"`
}

// SortResults puts sample results into the canonical report order.
func SortResults(results []SampleResult) {
	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Model != b.Model {
			return a.Model < b.Model
		}
		if a.SampleID != b.SampleID {
			return a.SampleID < b.SampleID
		}
		return a.Run < b.Run
	})
}

// ModelReportFor returns the report for the named model, or nil.
func (r *RunReport) ModelReportFor(model string) *ModelReport {
	for i := range r.ModelReports {
		if r.ModelReports[i].Model == model {
			return &r.ModelReports[i]
		}
	}
	return nil
}
