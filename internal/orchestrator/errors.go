package orchestrator

import "errors"

var (
	// ErrEmptyQuery is returned by StartProject for a blank query.
	ErrEmptyQuery = errors.New("research query is empty")

	// ErrNotStarted is returned when no user query has been recorded.
	ErrNotStarted = errors.New("project not started")

	// ErrUnknownPhase is returned for a phase absent from the phase table.
	ErrUnknownPhase = errors.New("unknown phase")

	// ErrPhaseNotPlanned is returned by ExecutePhase before PlanPhase.
	ErrPhaseNotPlanned = errors.New("phase not planned")

	// ErrPhaseSealed is returned when a phase whose results were written is
	// planned or executed again.
	ErrPhaseSealed = errors.New("phase results already written")

	// ErrPhaseNotExecuted is returned by Complete before the final phase ran.
	ErrPhaseNotExecuted = errors.New("final phase not executed")

	// ErrNoResults is returned when every invoked executor of a phase failed.
	ErrNoResults = errors.New("no executor produced a result")

	// ErrQualityGateFailed reports a final report scored below threshold.
	ErrQualityGateFailed = errors.New("quality gate failed")
)
