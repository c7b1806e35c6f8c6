package orchestrator

import (
	"fmt"

	"github.com/fyrsmithlabs/researchd/internal/research"
)

// FinalReport is the released output of a project.
type FinalReport struct {
	ProjectID string
	Text      string
	Scores    research.QualityScoreSet
	Passed    bool
}

// Err returns ErrQualityGateFailed when the report scored below threshold.
// The report is usable either way.
func (r *FinalReport) Err() error {
	if r == nil || r.Passed {
		return nil
	}
	return fmt.Errorf("%w: overall %.2f < %.2f", ErrQualityGateFailed, r.Scores.Overall, r.Scores.Threshold)
}

// Stage names a step reported through the progress callback.
type Stage string

const (
	StageStarted   Stage = "started"
	StagePlanned   Stage = "planned"
	StageExecuted  Stage = "executed"
	StageCompleted Stage = "completed"
)

// Progress is one progress update.
type Progress struct {
	Phase   int
	Stage   Stage
	Message string
}

// ProgressCallback receives progress updates.
type ProgressCallback func(Progress)
