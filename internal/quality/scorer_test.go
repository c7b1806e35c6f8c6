package quality

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestScorer_EmptyReport(t *testing.T) {
	s := NewScorer().Score("")

	assert.Equal(t, 0.0, s.Overall)
	assert.False(t, s.Passed)
	for _, d := range s.Dimensions() {
		assert.Equal(t, 0.0, d.Score, d.Name)
	}
	assert.Equal(t, DefaultPassThreshold, s.Threshold)
}

func TestScorer_SaturatedReportPasses(t *testing.T) {
	sentence := "As mentioned, we should act because demand rises [cite:1]; however, for example, costs stay flat. "
	report := strings.Repeat(sentence, 334)
	s := NewScorer().Score(report)

	assert.GreaterOrEqual(t, len(strings.Fields(report)), 5000)
	assert.Equal(t, 1.0, s.Coverage)
	assert.Equal(t, 1.0, s.Accuracy)
	assert.Equal(t, 1.0, s.Diversity)
	assert.Equal(t, 1.0, s.Depth)
	assert.Equal(t, 1.0, s.Impact)
	assert.Equal(t, 1.0, s.Integration)
	assert.GreaterOrEqual(t, s.Overall, 0.85)
	assert.True(t, s.Passed)
}

func TestScorer_Weights(t *testing.T) {
	report := "We should act. We must act. For example, costs fall [cite:1] [cite:2] [cite:3]. " +
		"However, because demand is high, as discussed, prices rise."
	s := NewScorer().Score(report)

	assert.Equal(t, 0.2, s.Impact)
	assert.Equal(t, 0.06, s.Accuracy)
	assert.Equal(t, 0.0, s.Coverage)
	assert.Equal(t, 0.15, s.Diversity)
	assert.Equal(t, 0.05, s.Depth)
	assert.Equal(t, 0.1, s.Integration)
	assert.InDelta(t, 0.56/6, s.Overall, 1e-9)
	assert.False(t, s.Passed)
}

func TestScorer_CaseInsensitiveAndCapped(t *testing.T) {
	s := NewScorer().Score(strings.Repeat("HOWEVER ", 10) + "Conversely On The Other Hand")
	assert.Equal(t, 1.0, s.Diversity)

	s = NewScorer().Score("THEREFORE thus Implies")
	assert.Equal(t, 0.15, s.Depth)
}

func TestScorer_CoverageRatio(t *testing.T) {
	s := NewScorer().Score(strings.Repeat("word ", 2500))
	assert.Equal(t, 0.5, s.Coverage)
}

func TestScorer_Threshold(t *testing.T) {
	report := "We should act. We must act. For example, costs fall [cite:1] [cite:2] [cite:3]. " +
		"However, because demand is high, as discussed, prices rise."

	s := NewScorer(WithThreshold(0.05)).Score(report)
	assert.True(t, s.Passed)
	assert.Equal(t, 0.05, s.Threshold)

	// Out of range thresholds are ignored.
	assert.Equal(t, DefaultPassThreshold, NewScorer(WithThreshold(2)).Threshold())
}

func TestScorer_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	NewScorer(WithScorerMetrics(m)).Score("")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.gates.WithLabelValues("failed")))
	assert.Equal(t, 7, testutil.CollectAndCount(m.scores))
}
