package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-runewidth"
	"golang.org/x/term"

	"github.com/gauntlet-eval/gauntlet/internal/models"
	"github.com/gauntlet-eval/gauntlet/internal/scheduler"
)

// formatDuration formats a duration in a consistent, human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.Round(100 * time.Millisecond).String()
}

// consoleReporter renders scheduler progress and the final summary.
// Progress events arrive from worker goroutines.
type consoleReporter struct {
	mu      sync.Mutex
	out     io.Writer
	verbose bool
	done    int
	total   int
}

func newConsoleReporter(out io.Writer, verbose bool) *consoleReporter {
	return &consoleReporter{out: out, verbose: verbose}
}

func (r *consoleReporter) Handle(e scheduler.ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch e.Type {
	case scheduler.EventSuiteStart:
		r.total = e.TotalUnits
		fmt.Fprintf(r.out, "Running %d units\n", e.TotalUnits)

	case scheduler.EventUnitRetry:
		if r.verbose {
			fmt.Fprintf(r.out, "  retry %s (attempt %d): %s\n",
				scheduler.Describe(e.Model, e.SampleID, e.Run), e.Attempt, e.ErrorMsg)
		}

	case scheduler.EventUnitComplete:
		r.done++
		if r.verbose {
			fmt.Fprintf(r.out, "  [%d/%d] %s done in %s\n",
				r.done, r.total, scheduler.Describe(e.Model, e.SampleID, e.Run),
				formatDuration(time.Duration(e.DurationMs)*time.Millisecond))
		}

	case scheduler.EventUnitFailed:
		r.done++
		fmt.Fprintf(r.out, "  [%d/%d] %s FAILED after %d attempts: %s\n",
			r.done, r.total, scheduler.Describe(e.Model, e.SampleID, e.Run),
			e.Attempt, e.ErrorMsg)
	}
}

// PrintSummary renders the per-model statistics table and the gate verdict
// tree.
func (r *consoleReporter) PrintSummary(rpt *models.RunReport) {
	r.mu.Lock()
	defer r.mu.Unlock()

	width := terminalWidth()
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, strings.Repeat("=", min(width, 72)))
	fmt.Fprintf(r.out, "Suite: %s\n", rpt.SuiteName)
	fmt.Fprintf(r.out, "Duration: %s\n", formatDuration(time.Duration(rpt.DurationMs)*time.Millisecond))

	for _, mr := range rpt.ModelReports {
		fmt.Fprintf(r.out, "\n%s  (%d/%d attempted)\n", mr.Model, mr.Attempted, mr.Total)

		keys := make([]string, 0, len(mr.GraderStats))
		for k := range mr.GraderStats {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		keyWidth := len("grader")
		for _, k := range keys {
			if w := runewidth.StringWidth(k); w > keyWidth {
				keyWidth = w
			}
		}

		fmt.Fprintf(r.out, "  %s  %8s  %9s  %6s  %6s\n",
			runewidth.FillRight("grader", keyWidth), "avg", "accuracy", "min", "max")
		for _, k := range keys {
			s := mr.GraderStats[k]
			fmt.Fprintf(r.out, "  %s  %8.3f  %8.1f%%  %6.3f  %6.3f\n",
				runewidth.FillRight(k, keyWidth), s.AvgScore, s.Accuracy, s.Min, s.Max)
		}

		for key, ci := range mr.Confidence {
			fmt.Fprintf(r.out, "  %s 95%% CI: [%.3f, %.3f]\n", key, ci.Lower, ci.Upper)
		}
	}

	if rpt.Gate != nil {
		fmt.Fprintln(r.out, "\nGate:")
		printVerdict(r.out, rpt.Gate, 1)
		if rpt.GatePassed {
			fmt.Fprintln(r.out, "\nGATE PASSED")
		} else {
			fmt.Fprintln(r.out, "\nGATE FAILED")
		}
	}
}

func printVerdict(out io.Writer, v *models.GateVerdict, depth int) {
	indent := strings.Repeat("  ", depth)
	mark := map[models.GateOutcome]string{
		models.GatePassed: "PASS",
		models.GateFailed: "FAIL",
		models.GateNoData: "NO DATA",
	}[v.Outcome]

	switch {
	case mark == "":
		// Weighted-average contributions have a value but no verdict.
		fmt.Fprintf(out, "%s%s = %.3f\n", indent, v.Label, v.Value)
	case len(v.Children) == 0 && v.Outcome != models.GateNoData:
		fmt.Fprintf(out, "%s%s = %.3f  [%s]\n", indent, v.Label, v.Value, mark)
	default:
		fmt.Fprintf(out, "%s%s  [%s]\n", indent, v.Label, mark)
	}
	for i := range v.Children {
		printVerdict(out, &v.Children[i], depth+1)
	}
}

func terminalWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return 80
}
