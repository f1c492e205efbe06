package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/gauntlet-eval/gauntlet/internal/dataset"
	"github.com/gauntlet-eval/gauntlet/internal/grading"
	"github.com/gauntlet-eval/gauntlet/internal/report"
	"github.com/gauntlet-eval/gauntlet/internal/scheduler"
	"github.com/gauntlet-eval/gauntlet/internal/suite"
	"github.com/gauntlet-eval/gauntlet/internal/target"
)

var (
	runConcurrency    int
	runOutputPath     string
	runGzip           bool
	runRepeats        int
	runModelOverrides []string
	runMaxSamples     int
	runTagFilters     []string
	runVerbose        bool
)

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <suite.yaml>",
		Short: "Run an evaluation suite",
		Long: `Run an evaluation suite from a suite file.

Every sample is executed against every target model, graded, and aggregated
into a report. When the suite defines a gate, the exit code reflects its
verdict.`,
		Args: cobra.ExactArgs(1),
		RunE: runCommandE,
	}

	cmd.Flags().IntVar(&runConcurrency, "concurrency", 0, "Maximum in-flight execution units (overrides suite config)")
	cmd.Flags().StringVarP(&runOutputPath, "output", "o", "", "Output JSON file for the report")
	cmd.Flags().BoolVar(&runGzip, "gzip", false, "Compress the report (appends .gz to the output path)")
	cmd.Flags().IntVar(&runRepeats, "runs", 0, "Repeat the whole unit set N times (overrides suite config)")
	cmd.Flags().StringArrayVar(&runModelOverrides, "model", nil, "Model to evaluate (overrides suite config, can be repeated)")
	cmd.Flags().IntVar(&runMaxSamples, "max-samples", 0, "Limit the number of dataset samples (overrides suite config)")
	cmd.Flags().StringArrayVar(&runTagFilters, "tag", nil, "Only run samples carrying this tag (can be repeated)")
	cmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "Verbose output with per-unit progress")

	return cmd
}

func runCommandE(cmd *cobra.Command, args []string) error {
	spec, err := suite.Load(args[0])
	if err != nil {
		return err
	}

	// CLI flags override the suite document.
	if runConcurrency > 0 {
		spec.Runner.Concurrency = runConcurrency
	}
	if runRepeats > 0 {
		spec.Runner.Runs = runRepeats
	}
	if runMaxSamples > 0 {
		spec.MaxSamples = runMaxSamples
	}
	if len(runTagFilters) > 0 {
		spec.SampleTags = runTagFilters
	}
	if len(runModelOverrides) > 0 {
		handles := make([]suite.ModelHandle, len(runModelOverrides))
		for i, m := range runModelOverrides {
			handles[i] = suite.ModelHandle{Name: m, Model: m}
		}
		spec.Target.Models = handles
	}

	samples, err := dataset.Load(spec.DatasetPath(), dataset.Options{
		MaxSamples: spec.MaxSamples,
		Tags:       spec.SampleTags,
	})
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		return fmt.Errorf("dataset %s matched no samples", spec.DatasetPath())
	}

	tgt, err := target.New(spec.Target)
	if err != nil {
		return err
	}

	engine, err := grading.NewEngine(spec)
	if err != nil {
		return err
	}

	sched := scheduler.New(tgt, engine, scheduler.FromRunnerSpec(spec.Runner))
	reporter := newConsoleReporter(cmd.OutOrStdout(), runVerbose)
	sched.OnProgress(reporter.Handle)

	start := time.Now()
	results, runErr := sched.Run(cmd.Context(), samples, spec.Target.Models)
	if runErr != nil && len(results) == 0 {
		return runErr
	}

	rpt := report.Build(spec, results, time.Since(start))
	reporter.PrintSummary(rpt)

	if runOutputPath != "" {
		path := runOutputPath
		if runGzip && !strings.HasSuffix(path, ".gz") {
			path += ".gz"
		}
		if err := report.Write(rpt, path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Report written to %s\n", path)
	}

	if runErr != nil {
		return fmt.Errorf("run interrupted: %w", runErr)
	}
	if spec.Gate.Kind != "" && !rpt.GatePassed {
		return &GateFailureError{Message: "gate did not pass"}
	}
	return nil
}
