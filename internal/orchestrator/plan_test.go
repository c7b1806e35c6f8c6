package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fyrsmithlabs/researchd/internal/research"
)

func TestParsePlan(t *testing.T) {
	phase1 := research.DefaultPhaseTable().Types(1)

	tests := []struct {
		name string
		text string
		want research.Plan
	}{
		{
			name: "plain lines",
			text: "market_research: size the market\ntech_analysis: review batteries",
			want: research.Plan{
				research.MarketResearch: "size the market",
				research.TechAnalysis:   "review batteries",
			},
		},
		{
			name: "bullets and bold",
			text: "## Phase 1\n- **market_research**: size it\n* **competition:** map rivals\n1. `patent_analysis`: search filings",
			want: research.Plan{
				research.MarketResearch: "size it",
				research.Competition:    "map rivals",
				research.PatentAnalysis: "search filings",
			},
		},
		{
			name: "title case with spaces",
			text: "Tech Analysis: compare chemistries",
			want: research.Plan{research.TechAnalysis: "compare chemistries"},
		},
		{
			name: "repeated key appends",
			text: "competition: list rivals\ncompetition: rank them",
			want: research.Plan{research.Competition: "list rivals\nrank them"},
		},
		{
			name: "types of other phases ignored",
			text: "market_research: size\nrisk_analysis: assess",
			want: research.Plan{research.MarketResearch: "size"},
		},
		{
			name: "empty task ignored",
			text: "market_research:\ntech_analysis: go",
			want: research.Plan{research.TechAnalysis: "go"},
		},
		{
			name: "fallback gives whole plan to every type",
			text: "  Investigate the EV battery supply chain.  ",
			want: research.Plan{
				research.MarketResearch: "Investigate the EV battery supply chain.",
				research.TechAnalysis:   "Investigate the EV battery supply chain.",
				research.Competition:    "Investigate the EV battery supply chain.",
				research.PatentAnalysis: "Investigate the EV battery supply chain.",
			},
		},
		{name: "blank plan", text: " \n ", want: research.Plan{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParsePlan(tt.text, phase1))
		})
	}
}
