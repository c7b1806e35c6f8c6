// Package lifecycle summons, runs, and retires the executors of one phase.
package lifecycle

import (
	"errors"
	"fmt"
)

// State is the position of a phase run in its lifecycle.
type State string

const (
	StatePlanned          State = "PLANNED"
	StateWorkersSummoned  State = "WORKERS_SUMMONED"
	StateExecuting        State = "EXECUTING"
	StateResultsCollected State = "RESULTS_COLLECTED"
	StateWorkersRetired   State = "WORKERS_RETIRED"
)

// ValidTransitions defines allowed state transitions.
var ValidTransitions = map[State][]State{
	StatePlanned:          {StateWorkersSummoned},
	StateWorkersSummoned:  {StateExecuting},
	StateExecuting:        {StateResultsCollected},
	StateResultsCollected: {StateWorkersRetired},
	StateWorkersRetired:   {}, // terminal
}

// CanTransitionTo checks if a transition from s to target is valid.
func (s State) CanTransitionTo(target State) bool {
	for _, t := range ValidTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// IsTerminal returns true for WORKERS_RETIRED.
func (s State) IsTerminal() bool {
	allowed, ok := ValidTransitions[s]
	return ok && len(allowed) == 0
}

var (
	// ErrInvalidTransition is returned for a transition not in ValidTransitions.
	ErrInvalidTransition = errors.New("invalid lifecycle transition")

	// ErrUnknownPhase is returned when the phase table has no entry.
	ErrUnknownPhase = errors.New("unknown phase")

	// ErrExecutorPanic wraps a panic recovered from an executor.
	ErrExecutorPanic = errors.New("executor panicked")
)

func transitionError(from, to State) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}
