package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newScoreCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "score <file>",
		Short: "Score a report with the IAM-SDAI rubric",
		Long: `Score runs the Tier 3 IAM-SDAI scorer over a report file, or stdin when
the file is "-", and prints each dimension, the overall score and the gate
outcome.

Examples:
  researchd score report.md
  cat report.md | researchd score -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return scoreFile(cmd.Context(), global, args[0], cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func scoreFile(ctx context.Context, global *globalOptions, path string, stdin io.Reader, out io.Writer) error {
	a, err := loadApp(ctx, global)
	if err != nil {
		return err
	}
	defer a.close(context.WithoutCancel(ctx))

	var content []byte
	if path == "-" {
		content, err = io.ReadAll(stdin)
	} else {
		content, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	scores := a.scorer(nil).Score(string(content))
	for _, d := range scores.Dimensions() {
		fmt.Fprintf(out, "%-12s %.2f\n", d.Name, d.Score)
	}
	fmt.Fprintf(out, "%-12s %.2f\n", "overall", scores.Overall)
	fmt.Fprintf(out, "%-12s %.2f\n", "threshold", scores.Threshold)
	if scores.Passed {
		color.New(color.FgGreen).Fprintln(out, "PASS")
	} else {
		color.New(color.FgRed).Fprintln(out, "FAIL")
	}
	return nil
}
