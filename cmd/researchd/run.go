package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/researchd/internal/executor"
	"github.com/fyrsmithlabs/researchd/internal/lifecycle"
	"github.com/fyrsmithlabs/researchd/internal/llm"
	"github.com/fyrsmithlabs/researchd/internal/logging"
	"github.com/fyrsmithlabs/researchd/internal/orchestrator"
	"github.com/fyrsmithlabs/researchd/internal/prompts"
	"github.com/fyrsmithlabs/researchd/internal/quality"
	"github.com/fyrsmithlabs/researchd/internal/research"
	"github.com/fyrsmithlabs/researchd/internal/secrets"
)

type runOptions struct {
	project string
}

func newRunCmd(global *globalOptions) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run [flags] <query>",
		Short: "Run all research phases for a query",
		Long: `Run plans and executes phases 1 to 3 for the query, then scores the
final report. The report is printed to stdout and a pass/fail line to
stderr. A fresh project id is generated when --project is not set.

Examples:
  researchd run --project acme "Assess the solid-state battery market"
  ANTHROPIC_API_KEY=... researchd run --config researchd.yaml "..."`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResearch(cmd.Context(), global, opts, strings.Join(args, " "), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	cmd.Flags().StringVar(&opts.project, "project", "", "project id (default: random)")
	return cmd
}

func runResearch(ctx context.Context, global *globalOptions, opts *runOptions, query string, stdout, stderr io.Writer) error {
	a, err := loadApp(ctx, global)
	if err != nil {
		return err
	}
	defer a.close(context.WithoutCancel(ctx))

	if err := a.cfg.RequireCredential(); err != nil {
		return fmt.Errorf("%w: set ANTHROPIC_API_KEY or model.api_key", err)
	}

	projectID := opts.project
	if projectID == "" {
		projectID = uuid.NewString()
	}
	ctx = logging.WithRunID(logging.WithProject(ctx, projectID), uuid.NewString())

	leader, err := a.buildLeader(ctx, projectID)
	if err != nil {
		return err
	}

	progress := color.New(color.FgCyan)
	leader.OnProgress(func(p orchestrator.Progress) {
		progress.Fprintf(stderr, "[%s] %s\n", p.Stage, p.Message)
	})

	report, err := leader.Run(ctx, query)
	if err != nil {
		return err
	}

	fmt.Fprintln(stdout, report.Text)
	printOutcome(stderr, report)
	return nil
}

func (a *app) buildLeader(ctx context.Context, projectID string) (*orchestrator.Leader, error) {
	cfg := a.cfg

	var scrubber *secrets.Scrubber
	if cfg.Model.ScrubSecrets {
		scrubber = secrets.Default()
	}
	client, err := llm.NewAnthropicClient(llm.AnthropicConfig{
		APIKey:            cfg.Model.APIKey.Value(),
		BaseURL:           cfg.Model.BaseURL,
		Model:             cfg.Model.Model,
		Timeout:           cfg.Model.Timeout.Duration(),
		MaxRetries:        cfg.Model.MaxRetries,
		RequestsPerMinute: cfg.Model.RequestsPerMinute,
		Burst:             cfg.Model.Burst,
		Scrubber:          scrubber,
		Logger:            a.logger,
	})
	if err != nil {
		return nil, err
	}

	store, err := a.store()
	if err != nil {
		return nil, err
	}
	mem, err := store.Open(projectID)
	if err != nil {
		return nil, err
	}

	src := prompts.NewFileSource(cfg.Prompts.Dir, a.logger)
	if cfg.Prompts.Watch {
		go func() {
			if err := src.Watch(ctx); err != nil {
				a.logger.Warn(ctx, "prompt watcher stopped", zap.Error(err))
			}
		}()
	}

	qm := quality.NewMetrics(prometheus.NewRegistry())
	checker := quality.NewSelfChecker(
		quality.WithMinCitations(cfg.Quality.MinCitations),
		quality.WithSelfCheckMetrics(qm),
	)
	validator := quality.NewCrossValidator(quality.CrossValidatorConfig{
		Tolerance:            cfg.Quality.Tolerance,
		MinContextSimilarity: cfg.Quality.MinContextSimilarity,
		ContextWords:         cfg.Quality.ContextWords,
		MinSharedTokens:      cfg.Quality.MinSharedTokens,
	}, quality.WithCrossValidatorMetrics(qm))

	factory := executor.Factory{Generator: client, Prompts: src, Checker: checker, Logger: a.logger}
	lm, err := lifecycle.NewMetrics(a.telemetry.Meter(lifecycle.InstrumentationName))
	if err != nil {
		return nil, err
	}
	table := research.DefaultPhaseTable()
	phases := lifecycle.NewManager(table,
		lifecycle.SummonFunc(func(t research.ExecutorType) lifecycle.Executor { return factory.New(t) }),
		lifecycle.WithConcurrency(cfg.Lifecycle.Concurrent, cfg.Lifecycle.MaxConcurrency),
		lifecycle.WithExecutorTimeout(cfg.Lifecycle.ExecutorTimeout.Duration()),
		lifecycle.WithLogger(a.logger),
		lifecycle.WithMetrics(lm),
	)

	om, err := orchestrator.NewMetrics(a.telemetry.Meter(orchestrator.InstrumentationName))
	if err != nil {
		return nil, err
	}
	return orchestrator.NewLeader(orchestrator.Deps{
		Memory:    mem,
		Planner:   client,
		Prompts:   src,
		Phases:    phases,
		Validator: validator,
		Scorer:    a.scorer(qm),
		Table:     table,
	}, orchestrator.WithLogger(a.logger), orchestrator.WithMetrics(om))
}

func printOutcome(w io.Writer, report *orchestrator.FinalReport) {
	line := fmt.Sprintf("quality gate: overall %.2f (threshold %.2f), project %s",
		report.Scores.Overall, report.Scores.Threshold, report.ProjectID)
	if report.Passed {
		color.New(color.FgGreen, color.Bold).Fprintln(w, "PASS "+line)
		return
	}
	color.New(color.FgRed, color.Bold).Fprintln(w, "FAIL "+line)
}
