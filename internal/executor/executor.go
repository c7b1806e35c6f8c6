// Package executor implements the single-use task performer that the
// lifecycle manager summons for one executor type and one task.
package executor

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/researchd/internal/llm"
	"github.com/fyrsmithlabs/researchd/internal/logging"
	"github.com/fyrsmithlabs/researchd/internal/prompts"
	"github.com/fyrsmithlabs/researchd/internal/quality"
	"github.com/fyrsmithlabs/researchd/internal/research"
)

const (
	DefaultTemperature = 0.3
	DefaultMaxTokens   = 8192
)

// ErrExecutorRetired is returned when an executor is invoked a second time
// or after Retire.
var ErrExecutorRetired = errors.New("executor retired")

var citationPattern = regexp.MustCompile(`\[cite:\d+\]`)

// Executor performs exactly one task. It holds the generator and prompt
// source only until it is retired.
type Executor struct {
	id  string
	typ research.ExecutorType

	mu      sync.Mutex
	used    bool
	retired bool
	gen     llm.Generator
	prompts prompts.Source
	checker *quality.SelfChecker
	logger  *logging.Logger
	now     func() time.Time
}

// Factory summons fresh executors that share collaborators but no state.
type Factory struct {
	Generator llm.Generator
	Prompts   prompts.Source
	Checker   *quality.SelfChecker
	Logger    *logging.Logger
}

// New returns a fresh executor for typ.
func (f Factory) New(typ research.ExecutorType) *Executor {
	checker := f.Checker
	if checker == nil {
		checker = quality.NewSelfChecker()
	}
	return &Executor{
		id:      uuid.NewString(),
		typ:     typ,
		gen:     f.Generator,
		prompts: f.Prompts,
		checker: checker,
		logger:  f.Logger,
		now:     time.Now,
	}
}

// ID is unique per executor instance.
func (e *Executor) ID() string { return e.id }

// Type is the executor type this instance serves.
func (e *Executor) Type() research.ExecutorType { return e.typ }

// Execute loads the type's instructions, calls the model, and runs the
// self-check over the answer. Warnings are appended to the result text and
// never fail the call.
func (e *Executor) Execute(ctx context.Context, task, projectContext string) (research.ExecutorResult, error) {
	e.mu.Lock()
	if e.used || e.retired {
		e.mu.Unlock()
		return research.ExecutorResult{}, fmt.Errorf("%w: %s %s", ErrExecutorRetired, e.typ, e.id)
	}
	e.used = true
	gen, src, checker, logger, now := e.gen, e.prompts, e.checker, e.logger, e.now
	e.mu.Unlock()

	ctx = logging.WithExecutor(ctx, string(e.typ), e.id)
	start := now()

	in, err := src.Load(ctx, string(e.typ))
	if err != nil {
		return research.ExecutorResult{}, fmt.Errorf("load instructions for %s: %w", e.typ, err)
	}

	req := llm.Request{
		System:      in.Text,
		User:        fmt.Sprintf("Task: %s\n\nProject Context: %s", task, projectContext),
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
	}
	if in.Temperature > 0 {
		req.Temperature = in.Temperature
	}
	if in.MaxTokens > 0 {
		req.MaxTokens = in.MaxTokens
	}

	output, err := gen.Generate(ctx, req)
	if err != nil {
		return research.ExecutorResult{}, fmt.Errorf("generate %s: %w", e.typ, err)
	}

	checked, warnings := checker.Review(output, e.typ)
	messages := make([]string, len(warnings))
	for i, w := range warnings {
		messages[i] = w.Message
	}
	if len(warnings) > 0 {
		logger.Debug(ctx, "self-check warnings", zap.Strings("warnings", messages))
	}

	return research.ExecutorResult{
		ExecutorID:   e.id,
		ExecutorType: e.typ,
		Result:       checked,
		Citations:    Citations(checked),
		Warnings:     messages,
		Duration:     now().Sub(start),
	}, nil
}

// Retire drops every collaborator handle. Further Execute calls fail.
func (e *Executor) Retire() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.retired = true
	e.gen = nil
	e.prompts = nil
	e.checker = nil
}

// Retired reports whether Retire has been called.
func (e *Executor) Retired() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.retired
}

// Citations returns the distinct [cite:N] markers in first-seen order.
func Citations(text string) []string {
	matches := citationPattern.FindAllString(text, -1)
	seen := make(map[string]bool, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	return out
}
