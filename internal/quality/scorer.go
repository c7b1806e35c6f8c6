package quality

import (
	"math"
	"regexp"
	"strings"

	"github.com/fyrsmithlabs/researchd/internal/research"
)

// DefaultPassThreshold is the overall score a report needs to pass.
const DefaultPassThreshold = 0.85

// coverageWords is the word count that saturates coverage.
const coverageWords = 5000

var (
	actionPattern   = regexp.MustCompile(`(?i)should|must|recommend|suggest`)
	examplePattern  = regexp.MustCompile(`(?i)for example|such as|specifically`)
	contrastPattern = regexp.MustCompile(`(?i)however|alternatively|on the other hand|conversely`)
	causalPattern   = regexp.MustCompile(`(?i)because|therefore|consequently|thus|implies`)
	crossRefPattern = regexp.MustCompile(`(?i)as mentioned|as discussed|referring to`)
)

// Scorer is the Tier 3 IAM-SDAI scorer.
type Scorer struct {
	threshold float64
	metrics   *Metrics
}

// ScorerOption configures a Scorer.
type ScorerOption func(*Scorer)

// WithThreshold overrides the pass threshold.
func WithThreshold(t float64) ScorerOption {
	return func(s *Scorer) {
		if t >= 0 && t <= 1 {
			s.threshold = t
		}
	}
}

// WithScorerMetrics records scores in m.
func WithScorerMetrics(m *Metrics) ScorerOption {
	return func(s *Scorer) {
		s.metrics = m
	}
}

// NewScorer creates a Tier 3 scorer.
func NewScorer(opts ...ScorerOption) *Scorer {
	s := &Scorer{threshold: DefaultPassThreshold}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Threshold returns the pass threshold.
func (s *Scorer) Threshold() float64 {
	return s.threshold
}

// Score computes the six dimension scores, their mean and the verdict.
// Each dimension is a count-weighted value capped at 1 and rounded to two
// decimals.
func (s *Scorer) Score(report string) research.QualityScoreSet {
	set := research.QualityScoreSet{
		Impact:      saturate(0.05*count(actionPattern, report) + 0.10*count(examplePattern, report)),
		Accuracy:    saturate(0.02 * count(citationPattern, report)),
		Coverage:    saturate(float64(len(strings.Fields(report))) / coverageWords),
		Diversity:   saturate(0.15 * count(contrastPattern, report)),
		Depth:       saturate(0.05 * count(causalPattern, report)),
		Integration: saturate(0.10 * count(crossRefPattern, report)),
		Threshold:   s.threshold,
	}

	var sum float64
	for _, d := range set.Dimensions() {
		sum += d.Score
	}
	set.Overall = sum / 6
	set.Passed = set.Overall >= s.threshold

	s.metrics.recordScores(set)
	return set
}

func count(re *regexp.Regexp, text string) float64 {
	return float64(len(re.FindAllStringIndex(text, -1)))
}

func saturate(x float64) float64 {
	return math.Round(math.Min(1, x)*100) / 100
}
