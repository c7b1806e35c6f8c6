package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/researchd/internal/lifecycle"
	"github.com/fyrsmithlabs/researchd/internal/llm"
	"github.com/fyrsmithlabs/researchd/internal/logging"
	"github.com/fyrsmithlabs/researchd/internal/memory"
	"github.com/fyrsmithlabs/researchd/internal/prompts"
	"github.com/fyrsmithlabs/researchd/internal/quality"
	"github.com/fyrsmithlabs/researchd/internal/research"
)

const (
	PlanTemperature = 0.1
	PlanMaxTokens   = 4096
)

// Phases runs executors for one phase. *lifecycle.Manager implements it.
type Phases interface {
	Run(ctx context.Context, phase int, plan research.Plan, projectContext string) (*lifecycle.PhaseRun, error)
}

// Deps are the leader's collaborators. Memory, Planner, Prompts and Phases
// are required.
type Deps struct {
	Memory    *memory.Memory
	Planner   llm.Generator
	Prompts   prompts.Source
	Phases    Phases
	Validator *quality.CrossValidator
	Scorer    *quality.Scorer
	Table     research.PhaseTable
}

// Option configures a Leader.
type Option func(*Leader)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(ld *Leader) { ld.logger = l }
}

// WithMetrics records leader metrics in m.
func WithMetrics(m *Metrics) Option {
	return func(ld *Leader) { ld.metrics = m }
}

// WithClock overrides time.Now for start and end timestamps.
func WithClock(now func() time.Time) Option {
	return func(ld *Leader) { ld.now = now }
}

// Leader plans phases, delegates them, and gates the final report.
// Phases of one project are driven sequentially.
type Leader struct {
	deps     Deps
	logger   *logging.Logger
	metrics  *Metrics
	now      func() time.Time
	progress ProgressCallback

	mu        sync.Mutex
	query     string
	plans     map[int]research.Plan
	envelopes map[int]research.ValidationEnvelope
}

// NewLeader validates deps and returns a Leader.
func NewLeader(deps Deps, opts ...Option) (*Leader, error) {
	switch {
	case deps.Memory == nil:
		return nil, errors.New("leader: memory is required")
	case deps.Planner == nil:
		return nil, errors.New("leader: planner is required")
	case deps.Prompts == nil:
		return nil, errors.New("leader: prompt source is required")
	case deps.Phases == nil:
		return nil, errors.New("leader: phase runner is required")
	}
	if deps.Validator == nil {
		deps.Validator = quality.NewCrossValidator(quality.DefaultCrossValidatorConfig())
	}
	if deps.Scorer == nil {
		deps.Scorer = quality.NewScorer()
	}
	if deps.Table == nil {
		deps.Table = research.DefaultPhaseTable()
	}
	l := &Leader{
		deps:      deps,
		now:       time.Now,
		plans:     make(map[int]research.Plan),
		envelopes: make(map[int]research.ValidationEnvelope),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// OnProgress sets the progress callback.
func (l *Leader) OnProgress(cb ProgressCallback) {
	l.progress = cb
}

func (l *Leader) report(p Progress) {
	if l.progress != nil {
		l.progress(p)
	}
}

func (l *Leader) ctx(ctx context.Context) context.Context {
	return logging.WithProject(ctx, l.deps.Memory.ProjectID())
}

// StartProject records the query and the start time.
func (l *Leader) StartProject(ctx context.Context, query string) error {
	query = strings.TrimSpace(query)
	if query == "" {
		return ErrEmptyQuery
	}
	ctx = l.ctx(ctx)
	mem := l.deps.Memory
	if err := mem.WriteSection(ctx, research.SectionUserQuery, query); err != nil {
		return fmt.Errorf("record query: %w", err)
	}
	if err := mem.WriteSection(ctx, research.SectionStartTime, l.now().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("record start time: %w", err)
	}

	l.mu.Lock()
	l.query = query
	l.mu.Unlock()

	l.logger.Info(ctx, "project started", zap.Int("query.length", len(query)))
	l.report(Progress{Stage: StageStarted, Message: "project started"})
	return nil
}

// Query returns the recorded query, reading it from memory when the
// project was started by an earlier process.
func (l *Leader) Query() (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.query != "" {
		return l.query, nil
	}
	q, ok, err := l.deps.Memory.ReadSection(research.SectionUserQuery)
	if err != nil {
		return "", err
	}
	if !ok || strings.TrimSpace(q) == "" {
		return "", ErrNotStarted
	}
	l.query = strings.TrimSpace(q)
	return l.query, nil
}

func (l *Leader) checkPhase(phase int) ([]research.ExecutorType, error) {
	types := l.deps.Table.Types(phase)
	if types == nil {
		return nil, fmt.Errorf("%w: %d", ErrUnknownPhase, phase)
	}
	_, sealed, err := l.deps.Memory.ReadSection(research.ResultsSection(phase))
	if err != nil {
		return nil, err
	}
	if sealed {
		return nil, fmt.Errorf("%w: phase %d", ErrPhaseSealed, phase)
	}
	return types, nil
}

// planContext is the memory summary plus the previous phase's results.
func (l *Leader) planContext(phase int) (string, error) {
	names := []string{research.SectionUserQuery}
	prev := 0
	for _, n := range l.deps.Table.Phases() {
		if n < phase {
			names = append(names, research.PlanSection(n))
			prev = n
		}
	}
	if prev > 0 {
		names = append(names, research.ResultsSection(prev))
	}
	return l.deps.Memory.Summarize(names...)
}

// PlanPhase asks the planner for a phase plan, records it, and returns the
// tasks parsed from it.
func (l *Leader) PlanPhase(ctx context.Context, phase int) (research.Plan, error) {
	ctx = logging.WithPhase(l.ctx(ctx), phase)
	ctx, span := Tracer().Start(ctx, "orchestrator.plan", trace.WithAttributes(attribute.Int("phase", phase)))
	defer span.End()

	plan, err := l.planPhase(ctx, phase)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "plan failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("tasks", len(plan)))
	return plan, nil
}

func (l *Leader) planPhase(ctx context.Context, phase int) (research.Plan, error) {
	types, err := l.checkPhase(phase)
	if err != nil {
		return nil, err
	}
	query, err := l.Query()
	if err != nil {
		return nil, err
	}
	in, err := l.deps.Prompts.Load(ctx, prompts.LeaderID)
	if err != nil {
		return nil, fmt.Errorf("load leader instructions: %w", err)
	}
	summary, err := l.planContext(phase)
	if err != nil {
		return nil, fmt.Errorf("summarize memory: %w", err)
	}

	user := fmt.Sprintf("Create Phase %d plan for: %s", phase, query)
	if summary != "" {
		user += "\n\nProject Context:\n" + summary
	}
	req := llm.Request{System: in.Text, User: user, Temperature: PlanTemperature, MaxTokens: PlanMaxTokens}
	if in.Temperature > 0 {
		req.Temperature = in.Temperature
	}
	if in.MaxTokens > 0 {
		req.MaxTokens = in.MaxTokens
	}

	text, err := l.deps.Planner.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("plan phase %d: %w", phase, err)
	}
	if err := l.deps.Memory.WriteSection(ctx, research.PlanSection(phase), text); err != nil {
		return nil, fmt.Errorf("record plan: %w", err)
	}

	plan := ParsePlan(text, types)
	l.mu.Lock()
	l.plans[phase] = plan
	l.mu.Unlock()

	l.logger.Info(ctx, "phase planned", zap.Int("tasks", len(plan)), zap.Int("executor_types", len(types)))
	l.report(Progress{Phase: phase, Stage: StagePlanned, Message: fmt.Sprintf("phase %d planned: %d tasks", phase, len(plan))})
	return plan, nil
}

// lookupPlan returns the plan from this process, or parses the recorded
// plan section when the phase was planned earlier.
func (l *Leader) lookupPlan(phase int, types []research.ExecutorType) (research.Plan, error) {
	l.mu.Lock()
	plan, ok := l.plans[phase]
	l.mu.Unlock()
	if ok {
		return plan, nil
	}
	text, ok, err := l.deps.Memory.ReadSection(research.PlanSection(phase))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: phase %d", ErrPhaseNotPlanned, phase)
	}
	return ParsePlan(text, types), nil
}

// ExecutePhase runs the planned phase, cross-validates the results, and
// writes the envelope to memory. A written phase is sealed.
func (l *Leader) ExecutePhase(ctx context.Context, phase int) (research.ValidationEnvelope, error) {
	ctx = logging.WithPhase(l.ctx(ctx), phase)
	ctx, span := Tracer().Start(ctx, "orchestrator.execute", trace.WithAttributes(attribute.Int("phase", phase)))
	defer span.End()

	env, err := l.executePhase(ctx, phase)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "execute failed")
		l.metrics.recordPhase(ctx, phase, "error", 0)
		return research.ValidationEnvelope{}, err
	}
	outcome := "passed"
	if !env.ValidationPassed {
		outcome = "contradictions"
	}
	span.SetAttributes(
		attribute.Int("results", len(env.Results)),
		attribute.Int("contradictions", len(env.Contradictions)),
		attribute.Bool("validation_passed", env.ValidationPassed),
	)
	l.metrics.recordPhase(ctx, phase, outcome, len(env.Contradictions))
	return env, nil
}

func (l *Leader) executePhase(ctx context.Context, phase int) (research.ValidationEnvelope, error) {
	types, err := l.checkPhase(phase)
	if err != nil {
		return research.ValidationEnvelope{}, err
	}
	plan, err := l.lookupPlan(phase, types)
	if err != nil {
		return research.ValidationEnvelope{}, err
	}
	projectContext, err := l.deps.Memory.Summary()
	if err != nil {
		return research.ValidationEnvelope{}, fmt.Errorf("summarize memory: %w", err)
	}

	run, err := l.deps.Phases.Run(ctx, phase, plan, projectContext)
	if err != nil {
		return research.ValidationEnvelope{}, err
	}
	if len(run.Invoked) > 0 && len(run.Results) == 0 {
		errs := make([]error, 0, len(run.Failures)+1)
		errs = append(errs, fmt.Errorf("%w: phase %d", ErrNoResults, phase))
		for _, f := range run.Failures {
			errs = append(errs, f)
		}
		return research.ValidationEnvelope{}, errors.Join(errs...)
	}

	env := l.deps.Validator.Validate(run.Results)
	env.Phase = phase
	env.Failed = run.FailedTypes()

	if err := l.deps.Memory.WriteSection(ctx, research.ResultsSection(phase), env.Markdown()); err != nil {
		return research.ValidationEnvelope{}, fmt.Errorf("record results: %w", err)
	}

	l.mu.Lock()
	l.envelopes[phase] = env
	l.mu.Unlock()

	if !env.ValidationPassed {
		l.logger.Warn(ctx, "contradictions detected",
			zap.Int("count", len(env.Contradictions)),
			zap.Strings("contradictions", env.Descriptions()),
		)
	}
	for _, f := range run.Failures {
		l.logger.Warn(ctx, "executor failed", zap.String("executor.type", string(f.Type)), zap.Error(f.Err))
	}
	l.logger.Info(ctx, "phase executed",
		zap.Int("results", len(env.Results)),
		zap.Int("failed", len(env.Failed)),
		zap.Bool("validation_passed", env.ValidationPassed),
	)
	l.report(Progress{
		Phase:   phase,
		Stage:   StageExecuted,
		Message: fmt.Sprintf("phase %d executed: %d results, %d contradictions", phase, len(env.Results), len(env.Contradictions)),
	})
	return env, nil
}

// Envelope returns the envelope of a phase executed by this leader.
func (l *Leader) Envelope(phase int) (research.ValidationEnvelope, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	env, ok := l.envelopes[phase]
	return env, ok
}

func (l *Leader) finalPhase() int {
	phases := l.deps.Table.Phases()
	if len(phases) == 0 {
		return 0
	}
	return phases[len(phases)-1]
}

// finalText is the report text of the final phase. A phase executed by an
// earlier process is read back from its results section.
func (l *Leader) finalText(final int) (string, error) {
	if env, ok := l.Envelope(final); ok {
		return strings.Join(env.Results, "\n\n"), nil
	}
	text, ok, err := l.deps.Memory.ReadSection(research.ResultsSection(final))
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: phase %d", ErrPhaseNotExecuted, final)
	}
	return text, nil
}

// Complete scores the final phase's results and records the scores and the
// end time. A report below threshold is still returned; see FinalReport.Err.
func (l *Leader) Complete(ctx context.Context) (*FinalReport, error) {
	ctx = l.ctx(ctx)
	ctx, span := Tracer().Start(ctx, "orchestrator.complete")
	defer span.End()

	final := l.finalPhase()
	text, err := l.finalText(final)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "not executed")
		return nil, err
	}

	scores := l.deps.Scorer.Score(text)
	mem := l.deps.Memory
	if err := mem.WriteSection(ctx, research.SectionScores, scores.Markdown()); err != nil {
		return nil, fmt.Errorf("record scores: %w", err)
	}
	if err := mem.WriteSection(ctx, research.SectionEndTime, l.now().Format(time.RFC3339)); err != nil {
		return nil, fmt.Errorf("record end time: %w", err)
	}

	span.SetAttributes(attribute.Float64("overall", scores.Overall), attribute.Bool("passed", scores.Passed))
	l.metrics.recordReport(ctx, scores.Overall, scores.Passed)
	if scores.Passed {
		l.logger.Info(ctx, "quality gate passed", zap.Float64("overall", scores.Overall))
	} else {
		l.logger.Warn(ctx, "quality gate failed", zap.Float64("overall", scores.Overall), zap.Float64("threshold", scores.Threshold))
	}
	l.report(Progress{Phase: final, Stage: StageCompleted, Message: fmt.Sprintf("overall score %.2f", scores.Overall)})

	return &FinalReport{
		ProjectID: mem.ProjectID(),
		Text:      text,
		Scores:    scores,
		Passed:    scores.Passed,
	}, nil
}

// Run executes every phase of the table for query and completes the
// project.
func (l *Leader) Run(ctx context.Context, query string) (*FinalReport, error) {
	if err := l.StartProject(ctx, query); err != nil {
		return nil, err
	}
	for _, phase := range l.deps.Table.Phases() {
		if _, err := l.PlanPhase(ctx, phase); err != nil {
			return nil, err
		}
		if _, err := l.ExecutePhase(ctx, phase); err != nil {
			return nil, err
		}
	}
	return l.Complete(ctx)
}
