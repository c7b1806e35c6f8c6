package quality

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/researchd/internal/research"
)

func TestSelfChecker_CleanOutputUnchanged(t *testing.T) {
	c := NewSelfChecker()
	input := "Market size is $10B [cite:1]. Growth rate is 15% [cite:2], according to Acme Corp."

	assert.Equal(t, input, c.Check(input, research.MarketResearch))
	assert.Empty(t, c.Inspect(input))
}

func TestSelfChecker_InsufficientCitations(t *testing.T) {
	c := NewSelfChecker()
	out := c.Check("Market size is $10B.", research.MarketResearch)

	assert.True(t, strings.HasPrefix(out, "Market size is $10B.\n\n"+WarningHeader+"\n"))
	assert.Contains(t, out, "- Insufficient citations: 0 (min: 2)\n")
	assert.Contains(t, out, "- No source attribution found\n")
}

func TestSelfChecker_Ranges(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		invalid []string
	}{
		{"ascending percent", "Growth of 10-20% is expected", nil},
		{"descending percent", "Growth of 20-10% is expected", []string{"20-10%"}},
		{"spaced currency", "Budget of $5M - $12M", nil},
		{"descending currency", "Budget of $12M - $5M", []string{"$12M - $5M"}},
		{"scaled units ascending", "Valuation 500M-1.2B", nil},
		{"scaled units descending", "Valuation 2B-900M", []string{"2B-900M"}},
		{"iso date", "Released on 2025-10-14 to partners", nil},
		{"year shorthand", "During fiscal 2020-21 sales rose", nil},
		{"two invalid pairs", "Ranges 9-3 and 7.5-2.5", []string{"9-3", "7.5-2.5"}},
		{"decimals ascending", "Between 1.5-3.25 units", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.invalid, invalidRanges(tt.text))
		})
	}
}

func TestSelfChecker_RangeWarningPerPair(t *testing.T) {
	c := NewSelfChecker()
	text := "Share 20-10% and 9-3 [cite:1] [cite:2] according to Gartner."
	warnings := c.Inspect(text)

	require.Len(t, warnings, 2)
	assert.Equal(t, RuleRange, warnings[0].Rule)
	assert.Equal(t, "Invalid numerical range: 20-10% (start exceeds end)", warnings[0].Message)
	assert.Equal(t, "Invalid numerical range: 9-3 (start exceeds end)", warnings[1].Message)
}

func TestSelfChecker_Attribution(t *testing.T) {
	c := NewSelfChecker(WithMinCitations(0))
	cases := map[string]bool{
		"According to IDC the market grows.":      true,
		"This is based on Statista figures.":      true,
		"Per Gartner, adoption is rising.":        true,
		"Data from World Bank shows growth.":      true,
		"Data from various sources shows growth.": false,
		"Superior Results were observed.":         false,
		"No attribution here.":                    false,
	}
	for text, attributed := range cases {
		warnings := c.Inspect(text)
		if attributed {
			assert.Empty(t, warnings, text)
		} else {
			require.Len(t, warnings, 1, text)
			assert.Equal(t, RuleAttribution, warnings[0].Rule)
		}
	}
}

func TestSelfChecker_MinCitationsOption(t *testing.T) {
	c := NewSelfChecker(WithMinCitations(3))
	warnings := c.Inspect("Two [cite:1] [cite:2] according to Acme.")

	require.Len(t, warnings, 1)
	assert.Equal(t, "Insufficient citations: 2 (min: 3)", warnings[0].Message)
}

func TestSelfChecker_ReviewRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	c := NewSelfChecker(WithSelfCheckMetrics(m))

	annotated, warnings := c.Review("nothing cited", research.TechAnalysis)
	assert.Len(t, warnings, 2)
	assert.Contains(t, annotated, WarningHeader)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.warnings.WithLabelValues("citations", "tech_analysis")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.warnings.WithLabelValues("attribution", "tech_analysis")))
}

func TestAnnotate_NoWarnings(t *testing.T) {
	assert.Equal(t, "text", Annotate("text", nil))
}
