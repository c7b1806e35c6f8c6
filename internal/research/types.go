package research

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// ExecutorType identifies a specialized executor role.
type ExecutorType string

const (
	MarketResearch   ExecutorType = "market_research"
	TechAnalysis     ExecutorType = "tech_analysis"
	Competition      ExecutorType = "competition"
	PatentAnalysis   ExecutorType = "patent_analysis"
	RiskAnalysis     ExecutorType = "risk_analysis"
	FuturePrediction ExecutorType = "future_prediction"
	NewBusiness      ExecutorType = "new_business"
	ReportWriter     ExecutorType = "report_writer"
)

// String returns the executor type name.
func (t ExecutorType) String() string {
	return string(t)
}

// PhaseTable maps a phase number to the executor types it requires.
// The order of types is the order results are reported in.
type PhaseTable map[int][]ExecutorType

// DefaultPhaseTable returns the fixed three-phase configuration.
func DefaultPhaseTable() PhaseTable {
	return PhaseTable{
		1: {MarketResearch, TechAnalysis, Competition, PatentAnalysis},
		2: {RiskAnalysis, FuturePrediction, NewBusiness},
		3: {ReportWriter},
	}
}

// Types returns a copy of the executor types for a phase, or nil when the
// phase is not configured.
func (t PhaseTable) Types(phase int) []ExecutorType {
	types, ok := t[phase]
	if !ok {
		return nil
	}
	out := make([]ExecutorType, len(types))
	copy(out, types)
	return out
}

// Phases returns configured phase numbers in ascending order.
func (t PhaseTable) Phases() []int {
	phases := make([]int, 0, len(t))
	for n := range t {
		phases = append(phases, n)
	}
	sort.Ints(phases)
	return phases
}

// Requires reports whether the phase requires the executor type.
func (t PhaseTable) Requires(phase int, typ ExecutorType) bool {
	for _, candidate := range t[phase] {
		if candidate == typ {
			return true
		}
	}
	return false
}

// Plan maps executor types to task descriptions for one phase.
type Plan map[ExecutorType]string

// ExecutorResult is the output of exactly one executor invocation.
type ExecutorResult struct {
	ExecutorID   string        `json:"executor_id"`
	ExecutorType ExecutorType  `json:"executor_type"`
	Result       string        `json:"result"`
	Citations    []string      `json:"citations"`
	Warnings     []string      `json:"warnings,omitempty"`
	Duration     time.Duration `json:"duration"`
}

// ContradictionKind classifies a Tier 2 finding.
type ContradictionKind string

const (
	NumericContradiction ContradictionKind = "numeric"
	ClaimContradiction   ContradictionKind = "claim"
)

// Contradiction is one inconsistency between two executor outputs.
type Contradiction struct {
	Kind        ContradictionKind `json:"kind"`
	Description string            `json:"description"`
}

// ValidationEnvelope is the Tier 2 verdict for one phase.
type ValidationEnvelope struct {
	Phase            int             `json:"phase"`
	Executors        []ExecutorType  `json:"executors"`
	Results          []string        `json:"results"`
	Contradictions   []Contradiction `json:"contradictions"`
	Failed           []ExecutorType  `json:"failed,omitempty"`
	ValidationPassed bool            `json:"validation_passed"`
}

// Descriptions returns the contradiction descriptions in envelope order.
func (e ValidationEnvelope) Descriptions() []string {
	out := make([]string, len(e.Contradictions))
	for i, c := range e.Contradictions {
		out[i] = c.Description
	}
	return out
}

// Markdown renders the envelope as the body of a phase results section.
func (e ValidationEnvelope) Markdown() string {
	var b strings.Builder
	status := "passed"
	if !e.ValidationPassed {
		status = "failed"
	}
	fmt.Fprintf(&b, "**Validation**: %s\n", status)
	names := make([]string, len(e.Executors))
	for i, t := range e.Executors {
		names[i] = string(t)
	}
	fmt.Fprintf(&b, "**Executors**: %s\n", strings.Join(names, ", "))
	if len(e.Failed) > 0 {
		failed := make([]string, len(e.Failed))
		for i, t := range e.Failed {
			failed[i] = string(t)
		}
		fmt.Fprintf(&b, "**Failed**: %s\n", strings.Join(failed, ", "))
	}
	for i, text := range e.Results {
		name := "result"
		if i < len(e.Executors) {
			name = string(e.Executors[i])
		}
		fmt.Fprintf(&b, "\n### %s\n%s\n", name, strings.TrimRight(text, "\n"))
	}
	if len(e.Contradictions) > 0 {
		b.WriteString("\n### Contradictions\n")
		for _, c := range e.Contradictions {
			fmt.Fprintf(&b, "- [%s] %s\n", c.Kind, c.Description)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// QualityScoreSet is the Tier 3 score for a final report.
type QualityScoreSet struct {
	Impact      float64 `json:"impact"`
	Accuracy    float64 `json:"accuracy"`
	Coverage    float64 `json:"coverage"`
	Diversity   float64 `json:"diversity"`
	Depth       float64 `json:"depth"`
	Integration float64 `json:"integration"`
	Overall     float64 `json:"overall"`
	Threshold   float64 `json:"threshold"`
	Passed      bool    `json:"passed"`
}

// Dimension is one named score.
type Dimension struct {
	Name  string
	Score float64
}

// Dimensions returns the six dimension scores in rubric order.
func (s QualityScoreSet) Dimensions() []Dimension {
	return []Dimension{
		{"impact", s.Impact},
		{"accuracy", s.Accuracy},
		{"coverage", s.Coverage},
		{"diversity", s.Diversity},
		{"depth", s.Depth},
		{"integration", s.Integration},
	}
}

// Markdown renders the score set as the body of the scores section.
func (s QualityScoreSet) Markdown() string {
	var b strings.Builder
	for _, d := range s.Dimensions() {
		fmt.Fprintf(&b, "- %s: %.2f\n", d.Name, d.Score)
	}
	fmt.Fprintf(&b, "- overall: %.2f\n", s.Overall)
	fmt.Fprintf(&b, "- threshold: %.2f\n", s.Threshold)
	fmt.Fprintf(&b, "- passed: %t", s.Passed)
	return b.String()
}
