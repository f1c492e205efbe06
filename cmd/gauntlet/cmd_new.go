package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

var newOutputDir string

func newNewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "new [name]",
		Short: "Scaffold a new evaluation suite interactively",
		Args:  cobra.MaximumNArgs(1),
		RunE:  newCommandE,
	}
	cmd.Flags().StringVarP(&newOutputDir, "dir", "d", ".", "Directory to create the suite in")
	return cmd
}

func newCommandE(cmd *cobra.Command, args []string) error {
	name := ""
	if len(args) > 0 {
		name = args[0]
	}
	model := "gpt-4o-mini"
	graderKind := "tool"
	graderFunction := "exact_match"

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Suite name").
				Value(&name).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("name is required")
					}
					return nil
				}),
			huh.NewInput().
				Title("Model").
				Value(&model),
			huh.NewSelect[string]().
				Title("Grader kind").
				Options(
					huh.NewOption("Tool (deterministic function)", "tool"),
					huh.NewOption("Rubric (LLM judge)", "rubric"),
				).
				Value(&graderKind),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}

	dir := filepath.Join(newOutputDir, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	suitePath := filepath.Join(dir, "suite.yaml")
	datasetPath := filepath.Join(dir, "dataset.jsonl")
	if _, err := os.Stat(suitePath); err == nil {
		return fmt.Errorf("%s already exists", suitePath)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "name: %s\n", name)
	fmt.Fprintf(&b, "dataset: dataset.jsonl\n\n")
	fmt.Fprintf(&b, "target:\n  kind: chat\n  models:\n    - %s\n\n", model)
	fmt.Fprintf(&b, "graders:\n")
	switch graderKind {
	case "rubric":
		fmt.Fprintf(&b, "  quality:\n    kind: rubric\n    prompt: |\n      Score 1.0 if the submission fully answers the question, 0.0 otherwise.\n")
	default:
		fmt.Fprintf(&b, "  correctness:\n    kind: %s\n    function: %s\n", graderKind, graderFunction)
	}
	metric := "correctness"
	if graderKind == "rubric" {
		metric = "quality"
	}
	fmt.Fprintf(&b, "\ngate:\n  kind: simple\n  metric: %s\n  aggregation: avg_score\n  op: gte\n  value: 0.8\n", metric)

	if err := os.WriteFile(suitePath, []byte(b.String()), 0o644); err != nil {
		return err
	}

	sampleData := `{"input": "What is 2 + 2?", "ground_truth": "4"}
{"input": "What is the capital of France?", "ground_truth": "Paris"}
`
	if err := os.WriteFile(datasetPath, []byte(sampleData), 0o644); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created %s\n", suitePath)
	fmt.Fprintf(out, "Created %s\n", datasetPath)
	fmt.Fprintf(out, "\nRun it with:\n  gauntlet run %s\n", suitePath)
	return nil
}
