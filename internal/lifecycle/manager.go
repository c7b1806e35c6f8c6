package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/researchd/internal/logging"
	"github.com/fyrsmithlabs/researchd/internal/prompts"
	"github.com/fyrsmithlabs/researchd/internal/research"
)

// Executor is a single-use task performer owned by one phase run.
type Executor interface {
	ID() string
	Type() research.ExecutorType
	Execute(ctx context.Context, task, projectContext string) (research.ExecutorResult, error)
	Retire()
}

// Summoner creates a fresh executor for a type.
type Summoner interface {
	Summon(t research.ExecutorType) Executor
}

// SummonFunc adapts a function to Summoner.
type SummonFunc func(t research.ExecutorType) Executor

// Summon calls f.
func (f SummonFunc) Summon(t research.ExecutorType) Executor { return f(t) }

// ExecutorFailure is the outcome of a slot whose invocation failed.
type ExecutorFailure struct {
	Type       research.ExecutorType
	ExecutorID string
	Err        error
}

func (f ExecutorFailure) Error() string {
	return fmt.Sprintf("%s: %v", f.Type, f.Err)
}

func (f ExecutorFailure) Unwrap() error { return f.Err }

// PhaseRun records one pass through the lifecycle.
type PhaseRun struct {
	Phase    int
	State    State
	Results  []research.ExecutorResult
	Failures []ExecutorFailure
	Summoned []research.ExecutorType
	Invoked  []research.ExecutorType
	Retired  int
	Duration time.Duration
}

// FailedTypes returns the types of failed slots in table order.
func (r *PhaseRun) FailedTypes() []research.ExecutorType {
	out := make([]research.ExecutorType, len(r.Failures))
	for i, f := range r.Failures {
		out[i] = f.Type
	}
	return out
}

func (r *PhaseRun) transition(to State) error {
	if !r.State.CanTransitionTo(to) {
		return transitionError(r.State, to)
	}
	r.State = to
	return nil
}

// Manager drives phase runs. It is safe for concurrent use.
type Manager struct {
	table      research.PhaseTable
	summoner   Summoner
	concurrent bool
	limit      int
	timeout    time.Duration
	logger     *logging.Logger
	metrics    *Metrics

	active atomic.Int64
}

// Option configures a Manager.
type Option func(*Manager)

// WithConcurrency runs a phase's executors in parallel, at most limit at a
// time. A limit of zero bounds by the number of types in the phase.
func WithConcurrency(concurrent bool, limit int) Option {
	return func(m *Manager) {
		m.concurrent = concurrent
		if limit >= 0 {
			m.limit = limit
		}
	}
}

// WithExecutorTimeout bounds each invocation. Zero disables the bound.
func WithExecutorTimeout(d time.Duration) Option {
	return func(m *Manager) { m.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithMetrics records lifecycle metrics in mt.
func WithMetrics(mt *Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// NewManager returns a Manager for table.
func NewManager(table research.PhaseTable, summoner Summoner, opts ...Option) *Manager {
	m := &Manager{table: table, summoner: summoner, concurrent: true}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Active reports executors summoned but not yet retired, across all runs.
func (m *Manager) Active() int {
	return int(m.active.Load())
}

type slot struct {
	executor Executor
	typ      research.ExecutorType
	task     string
	invoked  bool
	result   research.ExecutorResult
	err      error
	retire   sync.Once
}

// Run summons one executor per type of phase, gives each its task from
// plan, and retires them all before returning. Types without a non-blank task are
// summoned and retired without being invoked. A failed invocation becomes
// an ExecutorFailure; missing instructions are returned as an error once
// every executor has been retired.
func (m *Manager) Run(ctx context.Context, phase int, plan research.Plan, projectContext string) (*PhaseRun, error) {
	types := m.table.Types(phase)
	if types == nil {
		return nil, fmt.Errorf("%w: %d", ErrUnknownPhase, phase)
	}

	ctx = logging.WithPhase(ctx, phase)
	ctx, span := Tracer().Start(ctx, "lifecycle.phase", trace.WithAttributes(
		attribute.Int("phase", phase),
		attribute.Int("executors", len(types)),
	))
	defer span.End()

	start := time.Now()
	run := &PhaseRun{Phase: phase, State: StatePlanned}
	slots := make([]*slot, len(types))
	var retired atomic.Int64

	retire := func(s *slot) {
		s.retire.Do(func() {
			s.executor.Retire()
			s.executor = nil
			m.active.Add(-1)
			retired.Add(1)
			m.metrics.recordRetired(ctx, s.typ)
		})
	}
	defer func() {
		for _, s := range slots {
			if s != nil {
				retire(s)
			}
		}
		run.Retired = int(retired.Load())
	}()

	for i, t := range types {
		ex := m.summoner.Summon(t)
		m.active.Add(1)
		m.metrics.recordSummoned(ctx, t)
		task, ok := plan[t]
		slots[i] = &slot{executor: ex, typ: t, task: task, invoked: ok && strings.TrimSpace(task) != ""}
		run.Summoned = append(run.Summoned, t)
	}
	if err := run.transition(StateWorkersSummoned); err != nil {
		return run, err
	}
	m.logger.Debug(ctx, "executors summoned", zap.Int("count", len(slots)))

	if err := run.transition(StateExecuting); err != nil {
		return run, err
	}

	limit := 1
	if m.concurrent {
		limit = len(slots)
		if m.limit > 0 && m.limit < limit {
			limit = m.limit
		}
	}
	var g errgroup.Group
	g.SetLimit(limit)
	for _, s := range slots {
		if !s.invoked {
			m.logger.Debug(ctx, "no task for executor type, skipping", zap.String("executor.type", string(s.typ)))
			retire(s)
			continue
		}
		g.Go(func() error {
			m.invoke(ctx, s, projectContext)
			retire(s)
			return nil
		})
	}
	_ = g.Wait()

	var missing error
	for _, s := range slots {
		if !s.invoked {
			continue
		}
		run.Invoked = append(run.Invoked, s.typ)
		if s.err != nil {
			run.Failures = append(run.Failures, ExecutorFailure{Type: s.typ, ExecutorID: s.result.ExecutorID, Err: s.err})
			if missing == nil && errors.Is(s.err, prompts.ErrNotFound) {
				missing = s.err
			}
			continue
		}
		run.Results = append(run.Results, s.result)
	}
	if err := run.transition(StateResultsCollected); err != nil {
		return run, err
	}

	for _, s := range slots {
		retire(s)
	}
	if err := run.transition(StateWorkersRetired); err != nil {
		return run, err
	}
	run.Duration = time.Since(start)
	m.metrics.recordPhase(ctx, phase, run.Duration)

	span.SetAttributes(
		attribute.Int("results", len(run.Results)),
		attribute.Int("failures", len(run.Failures)),
	)
	m.logger.Info(ctx, "phase executors retired",
		zap.Int("invoked", len(run.Invoked)),
		zap.Int("results", len(run.Results)),
		zap.Int("failures", len(run.Failures)),
		zap.Duration("duration", run.Duration),
	)

	if missing != nil {
		span.RecordError(missing)
		span.SetStatus(codes.Error, "missing instructions")
		return run, fmt.Errorf("phase %d: %w", phase, missing)
	}
	return run, nil
}

func (m *Manager) invoke(ctx context.Context, s *slot, projectContext string) {
	ctx = logging.WithExecutor(ctx, string(s.typ), s.executor.ID())
	ctx, span := Tracer().Start(ctx, "lifecycle.executor", trace.WithAttributes(
		attribute.String("executor.type", string(s.typ)),
		attribute.String("executor.id", s.executor.ID()),
	))
	defer span.End()

	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	start := time.Now()
	s.result, s.err = m.execute(ctx, s.executor, s.task, projectContext)
	s.result.ExecutorID = s.executor.ID()
	s.result.ExecutorType = s.typ
	elapsed := time.Since(start)
	m.metrics.recordInvocation(ctx, s.typ, elapsed, s.err)

	if s.err != nil {
		span.RecordError(s.err)
		span.SetStatus(codes.Error, "executor failed")
		m.logger.Warn(ctx, "executor failed", zap.Error(s.err), zap.Duration("duration", elapsed))
		return
	}
	m.logger.Debug(ctx, "executor finished",
		zap.Int("citations", len(s.result.Citations)),
		zap.Int("warnings", len(s.result.Warnings)),
		zap.Duration("duration", elapsed),
	)
}

// execute turns a panicking executor into an error for its slot alone.
func (m *Manager) execute(ctx context.Context, ex Executor, task, projectContext string) (res research.ExecutorResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = research.ExecutorResult{}
			err = fmt.Errorf("%w: %v", ErrExecutorPanic, r)
		}
	}()
	return ex.Execute(ctx, task, projectContext)
}
