package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gauntlet-eval/gauntlet/internal/dataset"
	"github.com/gauntlet-eval/gauntlet/internal/suite"
)

func newCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check <suite.yaml>",
		Short: "Validate a suite file and its dataset without running anything",
		Args:  cobra.ExactArgs(1),
		RunE:  checkCommandE,
	}
}

func checkCommandE(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	path := args[0]

	// Schema validation first so structural mistakes surface with paths
	// into the document rather than as decode errors.
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if issues := suite.ValidateBytes(raw); len(issues) > 0 {
		for _, issue := range issues {
			fmt.Fprintf(out, "  schema: %s\n", issue)
		}
		return fmt.Errorf("%s failed schema validation", path)
	}

	spec, err := suite.Load(path)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Suite: %s\n", spec.Name)
	if spec.Description != "" {
		fmt.Fprintf(out, "  %s\n", spec.Description)
	}
	fmt.Fprintf(out, "Target: %s (%d model(s))\n", spec.Target.Kind, len(spec.Target.Models))
	for _, h := range spec.Target.Models {
		fmt.Fprintf(out, "  - %s\n", h.Name)
	}
	fmt.Fprintf(out, "Graders: %s\n", strings.Join(spec.Graders.Keys(), ", "))
	if spec.Gate.Kind != "" {
		fmt.Fprintf(out, "Gate: %s (%s scope)\n", spec.Gate.Kind, spec.EffectiveGateScope())
	}

	samples, err := dataset.Load(spec.DatasetPath(), dataset.Options{
		MaxSamples: spec.MaxSamples,
		Tags:       spec.SampleTags,
	})
	if err != nil {
		return err
	}
	perTurn := 0
	for _, s := range samples {
		if s.PerTurn {
			perTurn++
		}
	}
	fmt.Fprintf(out, "Dataset: %s (%d samples, %d per-turn)\n", spec.DatasetPath(), len(samples), perTurn)

	fmt.Fprintln(out, "OK")
	return nil
}
