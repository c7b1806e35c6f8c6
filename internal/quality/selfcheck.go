package quality

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/fyrsmithlabs/researchd/internal/research"
)

// DefaultMinCitations is the Tier 1 citation threshold.
const DefaultMinCitations = 2

// WarningHeader introduces the block appended to annotated output.
const WarningHeader = "**L1 Validation Warnings:**"

// Rule names a Tier 1 check.
type Rule string

const (
	RuleCitations   Rule = "citations"
	RuleRange       Rule = "range"
	RuleAttribution Rule = "attribution"
)

// Warning is one non-blocking Tier 1 finding.
type Warning struct {
	Rule    Rule
	Message string
}

var (
	citationPattern = regexp.MustCompile(`\[cite:\d+\]`)

	// A-B pairs with optional currency and magnitude markers, e.g.
	// "10-20%", "$5M - $12M", "1.5-3B".
	rangePattern = regexp.MustCompile(`\$?(\d+(?:\.\d+)?)\s*(%|[KMBT]\b)?\s*-\s*\$?(\d+(?:\.\d+)?)(?:\s*(%|[KMBT]\b))?`)

	attributionPattern = regexp.MustCompile(`\b(?:[Aa]ccording to|[Bb]ased on|[Pp]er|[Ff]rom)\s+[A-Z]`)
)

var magnitude = map[string]float64{
	"":  1,
	"%": 1,
	"K": 1e3,
	"M": 1e6,
	"B": 1e9,
	"T": 1e12,
}

// SelfChecker is the Tier 1 validator.
type SelfChecker struct {
	minCitations int
	metrics      *Metrics
}

// SelfCheckOption configures a SelfChecker.
type SelfCheckOption func(*SelfChecker)

// WithMinCitations overrides the citation threshold.
func WithMinCitations(n int) SelfCheckOption {
	return func(c *SelfChecker) {
		if n >= 0 {
			c.minCitations = n
		}
	}
}

// WithSelfCheckMetrics records warnings in m.
func WithSelfCheckMetrics(m *Metrics) SelfCheckOption {
	return func(c *SelfChecker) {
		c.metrics = m
	}
}

// NewSelfChecker creates a Tier 1 validator.
func NewSelfChecker(opts ...SelfCheckOption) *SelfChecker {
	c := &SelfChecker{minCitations: DefaultMinCitations}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check returns output with a warning block appended when any rule fails,
// or output unchanged when all rules pass.
func (c *SelfChecker) Check(output string, executorType research.ExecutorType) string {
	annotated, _ := c.Review(output, executorType)
	return annotated
}

// Review is Check that also returns the structured warnings.
func (c *SelfChecker) Review(output string, executorType research.ExecutorType) (string, []Warning) {
	warnings := c.Inspect(output)
	c.metrics.recordWarnings(executorType, warnings)
	return Annotate(output, warnings), warnings
}

// Inspect evaluates every rule and returns the warnings in rule order.
func (c *SelfChecker) Inspect(output string) []Warning {
	var warnings []Warning

	if n := len(citationPattern.FindAllStringIndex(output, -1)); n < c.minCitations {
		warnings = append(warnings, Warning{
			Rule:    RuleCitations,
			Message: fmt.Sprintf("Insufficient citations: %d (min: %d)", n, c.minCitations),
		})
	}

	for _, r := range invalidRanges(output) {
		warnings = append(warnings, Warning{
			Rule:    RuleRange,
			Message: fmt.Sprintf("Invalid numerical range: %s (start exceeds end)", r),
		})
	}

	if !attributionPattern.MatchString(output) {
		warnings = append(warnings, Warning{
			Rule:    RuleAttribution,
			Message: "No source attribution found",
		})
	}

	return warnings
}

// Annotate appends the warning block to output.
func Annotate(output string, warnings []Warning) string {
	if len(warnings) == 0 {
		return output
	}
	var b strings.Builder
	b.WriteString(output)
	b.WriteString("\n\n" + WarningHeader + "\n")
	for _, w := range warnings {
		b.WriteString("- " + w.Message + "\n")
	}
	return b.String()
}

// invalidRanges returns the text of every A-B pair with A > B.
func invalidRanges(text string) []string {
	var invalid []string
	for _, m := range rangePattern.FindAllStringSubmatchIndex(text, -1) {
		start, end := m[0], m[1]
		if chained(text, start, end) {
			continue
		}
		aText := text[m[2]:m[3]]
		bText := text[m[6]:m[7]]
		aUnit, bUnit := group(text, m, 2), group(text, m, 4)
		if aUnit == "" {
			aUnit = bUnit
		}
		if bUnit == "" {
			bUnit = aUnit
		}
		if aUnit == "" && yearShorthand(aText, bText) {
			continue
		}

		a, errA := strconv.ParseFloat(aText, 64)
		b, errB := strconv.ParseFloat(bText, 64)
		if errA != nil || errB != nil {
			continue
		}
		if a*magnitude[aUnit] > b*magnitude[bUnit] {
			invalid = append(invalid, strings.TrimSpace(text[start:end]))
		}
	}
	return invalid
}

// group returns submatch i (1-based group index), or "".
func group(text string, m []int, i int) string {
	if m[2*i] < 0 {
		return ""
	}
	return text[m[2*i]:m[2*i+1]]
}

// chained reports dash-joined number runs such as ISO dates or phone
// numbers, which are not ranges.
func chained(text string, start, end int) bool {
	if end+1 < len(text) && text[end] == '-' && isDigit(text[end+1]) {
		return true
	}
	if start >= 2 && text[start-1] == '-' && isDigit(text[start-2]) {
		return true
	}
	return false
}

// yearShorthand matches "2020-21" style spans.
func yearShorthand(a, b string) bool {
	if len(a) != 4 || len(b) != 2 {
		return false
	}
	year, err := strconv.Atoi(a)
	if err != nil {
		return false
	}
	short, err := strconv.Atoi(b)
	if err != nil {
		return false
	}
	return short > year%100
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
