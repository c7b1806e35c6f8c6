package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"github.com/fyrsmithlabs/researchd/internal/executor"
	"github.com/fyrsmithlabs/researchd/internal/lifecycle"
	"github.com/fyrsmithlabs/researchd/internal/llm"
	"github.com/fyrsmithlabs/researchd/internal/memory"
	"github.com/fyrsmithlabs/researchd/internal/prompts"
	"github.com/fyrsmithlabs/researchd/internal/research"
	"github.com/fyrsmithlabs/researchd/internal/telemetry"
)

const leaderInstructions = "You are the leader."

var fixedNow = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

// harness wires a leader to a real lifecycle manager and executors over a
// scripted generator.
type harness struct {
	t      *testing.T
	mem    *memory.Memory
	src    *prompts.Static
	leader *Leader

	mu       sync.Mutex
	plans    map[int]string
	outputs  map[research.ExecutorType]string
	failures map[research.ExecutorType]error
	requests []llm.Request
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store, err := memory.NewStore(t.TempDir(), memory.WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	mem, err := store.Open("ev-batteries")
	require.NoError(t, err)

	texts := map[string]string{prompts.LeaderID: leaderInstructions}
	for _, n := range research.DefaultPhaseTable().Phases() {
		for _, typ := range research.DefaultPhaseTable().Types(n) {
			texts[string(typ)] = "instructions for " + string(typ)
		}
	}

	h := &harness{
		t:        t,
		mem:      mem,
		src:      prompts.NewStatic(texts),
		plans:    map[int]string{},
		outputs:  map[research.ExecutorType]string{},
		failures: map[research.ExecutorType]error{},
	}
	h.leader = h.newLeader()
	return h
}

func (h *harness) newLeader(opts ...Option) *Leader {
	gen := llm.Func(h.generate)
	factory := executor.Factory{Generator: gen, Prompts: h.src}
	mgr := lifecycle.NewManager(research.DefaultPhaseTable(), lifecycle.SummonFunc(func(t research.ExecutorType) lifecycle.Executor {
		return factory.New(t)
	}))
	l, err := NewLeader(Deps{
		Memory:  h.mem,
		Planner: gen,
		Prompts: h.src,
		Phases:  mgr,
	}, append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)...)
	require.NoError(h.t, err)
	return l
}

func (h *harness) generate(_ context.Context, req llm.Request) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.requests = append(h.requests, req)

	if req.System == leaderInstructions {
		var phase int
		_, _ = fmt.Sscanf(req.User, "Create Phase %d", &phase)
		if plan, ok := h.plans[phase]; ok {
			return plan, nil
		}
		var b strings.Builder
		for _, typ := range research.DefaultPhaseTable().Types(phase) {
			fmt.Fprintf(&b, "- %s: work on %s\n", typ, typ)
		}
		return b.String(), nil
	}

	typ := research.ExecutorType(strings.TrimPrefix(req.System, "instructions for "))
	if err := h.failures[typ]; err != nil {
		return "", err
	}
	if out, ok := h.outputs[typ]; ok {
		return out, nil
	}
	return fmt.Sprintf("According to Reuters the %s findings hold [cite:1] [cite:2].", typ), nil
}

func (h *harness) requestsFor(system string) []llm.Request {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []llm.Request
	for _, r := range h.requests {
		if r.System == system {
			out = append(out, r)
		}
	}
	return out
}

func (h *harness) section(name string) (string, bool) {
	h.t.Helper()
	content, ok, err := h.mem.ReadSection(name)
	require.NoError(h.t, err)
	return content, ok
}

func TestNewLeader_RequiresDeps(t *testing.T) {
	_, err := NewLeader(Deps{})
	assert.Error(t, err)
}

func TestLeader_RunEndToEnd(t *testing.T) {
	h := newHarness(t)
	h.outputs[research.ReportWriter] = "Final report: as discussed, adoption should grow because costs fall [cite:1]."

	var events []Progress
	h.leader.OnProgress(func(p Progress) { events = append(events, p) })

	report, err := h.leader.Run(context.Background(), "EV battery market outlook")
	require.NoError(t, err)

	assert.Equal(t, "ev-batteries", report.ProjectID)
	assert.Equal(t, h.outputs[research.ReportWriter]+"\n\n**L1 Validation Warnings:**\n- Insufficient citations: 1 (min: 2)\n- No source attribution found\n", report.Text)
	assert.False(t, report.Passed)
	assert.ErrorIs(t, report.Err(), ErrQualityGateFailed)

	for _, name := range []string{
		research.SectionUserQuery, research.SectionStartTime,
		"phase1_plan", "phase1_results", "phase2_plan", "phase2_results", "phase3_plan", "phase3_results",
		research.SectionScores, research.SectionEndTime,
	} {
		_, ok := h.section(name)
		assert.True(t, ok, "section %s written", name)
	}
	query, _ := h.section(research.SectionUserQuery)
	assert.Equal(t, "EV battery market outlook", query)
	start, _ := h.section(research.SectionStartTime)
	assert.Equal(t, fixedNow.Format(time.RFC3339), start)
	scores, _ := h.section(research.SectionScores)
	assert.Contains(t, scores, "- passed: false")

	assert.Len(t, h.requestsFor(leaderInstructions), 3)
	assert.Len(t, h.requestsFor("instructions for market_research"), 1)
	assert.Len(t, h.requestsFor("instructions for report_writer"), 1)

	stages := make([]Stage, len(events))
	for i, e := range events {
		stages[i] = e.Stage
	}
	assert.Equal(t, []Stage{
		StageStarted,
		StagePlanned, StageExecuted,
		StagePlanned, StageExecuted,
		StagePlanned, StageExecuted,
		StageCompleted,
	}, stages)
}

func TestLeader_PlanRequest(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.leader.StartProject(ctx, "  solid-state batteries  "))

	_, err := h.leader.PlanPhase(ctx, 1)
	require.NoError(t, err)
	_, err = h.leader.ExecutePhase(ctx, 1)
	require.NoError(t, err)
	_, err = h.leader.PlanPhase(ctx, 2)
	require.NoError(t, err)

	reqs := h.requestsFor(leaderInstructions)
	require.Len(t, reqs, 2)
	assert.InDelta(t, PlanTemperature, reqs[0].Temperature, 1e-9)
	assert.Equal(t, PlanMaxTokens, reqs[0].MaxTokens)
	assert.True(t, strings.HasPrefix(reqs[0].User, "Create Phase 1 plan for: solid-state batteries"))
	assert.True(t, strings.HasPrefix(reqs[1].User, "Create Phase 2 plan for: solid-state batteries"))
	assert.Contains(t, reqs[1].User, "Project Context:\n**user_query**: solid-state batteries")
	assert.Contains(t, reqs[1].User, "**phase1_plan**:")
	assert.Contains(t, reqs[1].User, "**phase1_results**:")

	plan, _ := h.section("phase2_plan")
	assert.Contains(t, plan, "risk_analysis: work on risk_analysis")
}

func TestLeader_ExecutorsGetTasksAndContext(t *testing.T) {
	h := newHarness(t)
	h.plans[1] = "market_research: size the market\ncompetition: map rivals"
	ctx := context.Background()
	require.NoError(t, h.leader.StartProject(ctx, "q"))
	_, err := h.leader.PlanPhase(ctx, 1)
	require.NoError(t, err)

	env, err := h.leader.ExecutePhase(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []research.ExecutorType{research.MarketResearch, research.Competition}, env.Executors)
	assert.Empty(t, h.requestsFor("instructions for tech_analysis"))

	reqs := h.requestsFor("instructions for market_research")
	require.Len(t, reqs, 1)
	assert.True(t, strings.HasPrefix(reqs[0].User, "Task: size the market\n\nProject Context: **user_query**: q"))
}

func TestLeader_PlanFallback(t *testing.T) {
	h := newHarness(t)
	h.plans[2] = "Think hard about downside scenarios."
	ctx := context.Background()
	require.NoError(t, h.leader.StartProject(ctx, "q"))

	plan, err := h.leader.PlanPhase(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, plan, 3)
	for _, task := range plan {
		assert.Equal(t, "Think hard about downside scenarios.", task)
	}
}

func TestLeader_EmptyPlanProceedsWithEmptyEnvelope(t *testing.T) {
	h := newHarness(t)
	h.plans[3] = ""
	ctx := context.Background()
	require.NoError(t, h.leader.StartProject(ctx, "q"))
	_, err := h.leader.PlanPhase(ctx, 3)
	require.NoError(t, err)

	env, err := h.leader.ExecutePhase(ctx, 3)
	require.NoError(t, err)
	assert.Empty(t, env.Results)
	assert.True(t, env.ValidationPassed)
	assert.Empty(t, h.requestsFor("instructions for report_writer"))

	report, err := h.leader.Complete(ctx)
	require.NoError(t, err)
	assert.Equal(t, "", report.Text)
	assert.InDelta(t, 0.0, report.Scores.Overall, 1e-9)
}

func TestLeader_QuorumFailure(t *testing.T) {
	h := newHarness(t)
	boom := errors.New("model unavailable")
	for _, typ := range research.DefaultPhaseTable().Types(2) {
		h.failures[typ] = boom
	}
	ctx := context.Background()
	require.NoError(t, h.leader.StartProject(ctx, "q"))
	_, err := h.leader.PlanPhase(ctx, 2)
	require.NoError(t, err)

	_, err = h.leader.ExecutePhase(ctx, 2)
	require.ErrorIs(t, err, ErrNoResults)
	assert.ErrorIs(t, err, boom)

	_, ok := h.section("phase2_results")
	assert.False(t, ok)
}

func TestLeader_PartialFailureRecorded(t *testing.T) {
	h := newHarness(t)
	h.failures[research.TechAnalysis] = errors.New("timeout")
	ctx := context.Background()
	require.NoError(t, h.leader.StartProject(ctx, "q"))
	_, err := h.leader.PlanPhase(ctx, 1)
	require.NoError(t, err)

	env, err := h.leader.ExecutePhase(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, env.Results, 3)
	assert.Equal(t, []research.ExecutorType{research.TechAnalysis}, env.Failed)

	results, _ := h.section("phase1_results")
	assert.Contains(t, results, "**Failed**: tech_analysis")
}

func TestLeader_ContradictionsWrittenToMemory(t *testing.T) {
	h := newHarness(t)
	h.outputs[research.MarketResearch] = "According to IDC the market size is $50M [cite:1] [cite:2]."
	h.outputs[research.TechAnalysis] = "According to IDC the market size is $500M [cite:3] [cite:4]."
	ctx := context.Background()
	require.NoError(t, h.leader.StartProject(ctx, "q"))
	_, err := h.leader.PlanPhase(ctx, 1)
	require.NoError(t, err)

	env, err := h.leader.ExecutePhase(ctx, 1)
	require.NoError(t, err)
	assert.False(t, env.ValidationPassed)
	require.NotEmpty(t, env.Contradictions)

	results, _ := h.section("phase1_results")
	assert.Contains(t, results, "**Validation**: failed")
	assert.Contains(t, results, "### Contradictions")
	assert.Contains(t, results, "market_research reports $50M and tech_analysis reports $500M")
}

func TestLeader_PhaseSealed(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.leader.StartProject(ctx, "q"))
	_, err := h.leader.PlanPhase(ctx, 3)
	require.NoError(t, err)
	_, err = h.leader.ExecutePhase(ctx, 3)
	require.NoError(t, err)

	_, err = h.leader.ExecutePhase(ctx, 3)
	assert.ErrorIs(t, err, ErrPhaseSealed)
	_, err = h.leader.PlanPhase(ctx, 3)
	assert.ErrorIs(t, err, ErrPhaseSealed)
	assert.Len(t, h.requestsFor("instructions for report_writer"), 1)
}

func TestLeader_OrderingErrors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.leader.PlanPhase(ctx, 1)
	assert.ErrorIs(t, err, ErrNotStarted)

	assert.ErrorIs(t, h.leader.StartProject(ctx, "   "), ErrEmptyQuery)
	require.NoError(t, h.leader.StartProject(ctx, "q"))

	_, err = h.leader.ExecutePhase(ctx, 1)
	assert.ErrorIs(t, err, ErrPhaseNotPlanned)

	_, err = h.leader.PlanPhase(ctx, 7)
	assert.ErrorIs(t, err, ErrUnknownPhase)

	_, err = h.leader.Complete(ctx)
	assert.ErrorIs(t, err, ErrPhaseNotExecuted)
}

func TestLeader_ResumesFromMemory(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.leader.StartProject(ctx, "resumable query"))
	_, err := h.leader.PlanPhase(ctx, 1)
	require.NoError(t, err)

	// A second leader over the same document picks up the query and plan.
	next := h.newLeader()
	q, err := next.Query()
	require.NoError(t, err)
	assert.Equal(t, "resumable query", q)

	env, err := next.ExecutePhase(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, env.Results, 4)
}

func TestLeader_CompleteAfterResume(t *testing.T) {
	h := newHarness(t)
	h.outputs[research.ReportWriter] = "According to Reuters, adoption should grow because costs fall [cite:1] [cite:2]."
	ctx := context.Background()
	require.NoError(t, h.leader.StartProject(ctx, "EV battery market outlook"))
	for _, phase := range research.DefaultPhaseTable().Phases() {
		_, err := h.leader.PlanPhase(ctx, phase)
		require.NoError(t, err)
		_, err = h.leader.ExecutePhase(ctx, phase)
		require.NoError(t, err)
	}

	// The process exits before Complete; a new leader finishes the project.
	next := h.newLeader()
	_, err := next.ExecutePhase(ctx, 3)
	assert.ErrorIs(t, err, ErrPhaseSealed)

	report, err := next.Complete(ctx)
	require.NoError(t, err)
	results, _ := h.section("phase3_results")
	assert.Equal(t, results, report.Text)
	assert.Contains(t, report.Text, h.outputs[research.ReportWriter])
	assert.Equal(t, "ev-batteries", report.ProjectID)

	scores, ok := h.section(research.SectionScores)
	require.True(t, ok)
	assert.Contains(t, scores, "- overall:")
	_, ok = h.section(research.SectionEndTime)
	assert.True(t, ok)
}

func TestLeader_MissingExecutorInstructionsIsFatal(t *testing.T) {
	h := newHarness(t)
	h.src = prompts.NewStatic(map[string]string{prompts.LeaderID: leaderInstructions})
	h.leader = h.newLeader()
	ctx := context.Background()

	_, err := h.leader.Run(ctx, "q")
	require.ErrorIs(t, err, prompts.ErrNotFound)
	_, ok := h.section("phase1_results")
	assert.False(t, ok)
}

func TestLeader_MissingLeaderInstructionsIsFatal(t *testing.T) {
	h := newHarness(t)
	h.src = prompts.NewStatic(nil)
	h.leader = h.newLeader()

	_, err := h.leader.Run(context.Background(), "q")
	assert.ErrorIs(t, err, prompts.ErrNotFound)
}

func TestLeader_Telemetry(t *testing.T) {
	tel := telemetry.NewTestTelemetry(t)
	otel.SetTracerProvider(tel.TracerProvider)
	metrics, err := NewMetrics(tel.Meter("test"))
	require.NoError(t, err)

	h := newHarness(t)
	h.leader = h.newLeader(WithMetrics(metrics))
	_, err = h.leader.Run(context.Background(), "q")
	require.NoError(t, err)

	assert.Equal(t, 3, tel.CountSpans("orchestrator.plan"))
	assert.Equal(t, 3, tel.CountSpans("orchestrator.execute"))
	assert.Equal(t, 1, tel.CountSpans("orchestrator.complete"))
	assert.Equal(t, 3, tel.CountSpans("lifecycle.phase"))
	assert.Equal(t, 8, tel.CountSpans("lifecycle.executor"))

	assert.Equal(t, int64(3), tel.Sum(t, "orchestrator.phases.total"))
	assert.Equal(t, int64(1), tel.Sum(t, "orchestrator.reports.total"))
}
