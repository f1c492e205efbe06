package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gauntlet-eval/gauntlet/internal/dataset"
	"github.com/gauntlet-eval/gauntlet/internal/report"
	"github.com/gauntlet-eval/gauntlet/internal/suite"
)

var regradeOutputPath string

func newRegradeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "regrade <suite.yaml> <report.json>",
		Short: "Re-grade a stored report's trajectories with the current suite config",
		Long: `Re-grade the trajectories stored in an existing report.

Target execution is skipped; grader and gate changes in the suite file are
applied to the stored trajectories and a fresh report is assembled.`,
		Args: cobra.ExactArgs(2),
		RunE: regradeCommandE,
	}
	cmd.Flags().StringVarP(&regradeOutputPath, "output", "o", "", "Output JSON file for the regraded report")
	return cmd
}

func regradeCommandE(cmd *cobra.Command, args []string) error {
	spec, err := suite.Load(args[0])
	if err != nil {
		return err
	}

	prior, err := report.Read(args[1])
	if err != nil {
		return err
	}

	samples, err := dataset.Load(spec.DatasetPath(), dataset.Options{
		MaxSamples: spec.MaxSamples,
		Tags:       spec.SampleTags,
	})
	if err != nil {
		return err
	}

	rpt, err := report.Regrade(cmd.Context(), spec, samples, prior)
	if err != nil {
		return err
	}

	reporter := newConsoleReporter(cmd.OutOrStdout(), false)
	reporter.PrintSummary(rpt)

	if regradeOutputPath != "" {
		if err := report.Write(rpt, regradeOutputPath); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Report written to %s\n", regradeOutputPath)
	}

	if spec.Gate.Kind != "" && !rpt.GatePassed {
		return &GateFailureError{Message: "gate did not pass"}
	}
	return nil
}
