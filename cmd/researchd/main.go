// Package main implements the researchd CLI: run the three-phase research
// workflow, inspect project memory, score reports and serve the read-only
// HTTP surface.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:   "researchd",
		Short: "Multi-phase research workflow with tiered quality validation",
		Long: `researchd plans and runs a three-phase research workflow. A leader plans
each phase, short-lived executors carry out the tasks, and results pass
through self-check, cross-validation and IAM-SDAI scoring. Progress is kept
in a markdown memory document per project.

Configuration is read from the --config YAML file and the environment
(ANTHROPIC_API_KEY, MODEL_MODEL, MEMORY_DATA_DIR, ...).`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to config YAML")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override logging.level")

	root.AddCommand(
		newRunCmd(opts),
		newShowCmd(opts),
		newScoreCmd(opts),
		newServeCmd(opts),
	)
	return root
}
