package research

import "fmt"

// Section names used in the project memory document.
const (
	SectionUserQuery = "user_query"
	SectionStartTime = "start_time"
	SectionEndTime   = "end_time"
	SectionScores    = "iam_sdai_scores"
)

// PlanSection returns the plan section name for a phase.
func PlanSection(phase int) string {
	return fmt.Sprintf("phase%d_plan", phase)
}

// ResultsSection returns the results section name for a phase.
func ResultsSection(phase int) string {
	return fmt.Sprintf("phase%d_results", phase)
}
