package quality

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/fyrsmithlabs/researchd/internal/research"
)

// CrossValidatorConfig holds the Tier 2 heuristic parameters.
type CrossValidatorConfig struct {
	// Tolerance is the max/min magnitude ratio above which two values
	// of the same metric contradict.
	Tolerance float64 `json:"tolerance" koanf:"tolerance"`

	// MinContextSimilarity is the Jaccard similarity of the words before
	// two numbers required to treat them as the same metric.
	MinContextSimilarity float64 `json:"min_context_similarity" koanf:"min_context_similarity"`

	// ContextWords caps the words kept before each number.
	ContextWords int `json:"context_words" koanf:"context_words"`

	// MinSharedTokens is the overlap two claims need to be compared.
	MinSharedTokens int `json:"min_shared_tokens" koanf:"min_shared_tokens"`
}

// DefaultCrossValidatorConfig returns the default Tier 2 parameters.
func DefaultCrossValidatorConfig() CrossValidatorConfig {
	return CrossValidatorConfig{
		Tolerance:            2.0,
		MinContextSimilarity: 0.5,
		ContextWords:         6,
		MinSharedTokens:      3,
	}
}

var (
	numberPattern = regexp.MustCompile(`(\$)?(\d[\d,]*(?:\.\d+)?)(?:\s?(%|[KMBT]\b))?`)
	modalPattern  = regexp.MustCompile(`(?i)\b(?:will|is|are|won['’]t|isn['’]t|aren['’]t)\b`)
)

// maxClaimQuote caps claim text quoted in descriptions.
const maxClaimQuote = 160

// CrossValidator is the Tier 2 validator.
type CrossValidator struct {
	cfg     CrossValidatorConfig
	metrics *Metrics
}

// CrossValidatorOption configures a CrossValidator.
type CrossValidatorOption func(*CrossValidator)

// WithCrossValidatorMetrics records envelopes in m.
func WithCrossValidatorMetrics(m *Metrics) CrossValidatorOption {
	return func(v *CrossValidator) {
		v.metrics = m
	}
}

// NewCrossValidator creates a Tier 2 validator. Zero config fields take
// their defaults.
func NewCrossValidator(cfg CrossValidatorConfig, opts ...CrossValidatorOption) *CrossValidator {
	def := DefaultCrossValidatorConfig()
	if cfg.Tolerance <= 1 {
		cfg.Tolerance = def.Tolerance
	}
	if cfg.MinContextSimilarity <= 0 {
		cfg.MinContextSimilarity = def.MinContextSimilarity
	}
	if cfg.ContextWords <= 0 {
		cfg.ContextWords = def.ContextWords
	}
	if cfg.MinSharedTokens <= 0 {
		cfg.MinSharedTokens = def.MinSharedTokens
	}
	v := &CrossValidator{cfg: cfg}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Config returns the effective parameters.
func (v *CrossValidator) Config() CrossValidatorConfig {
	return v.cfg
}

// Validate runs the numeric and claim scans over every pair of distinct
// results. The contradiction list is sorted and deduplicated, so it does
// not depend on the order of results.
func (v *CrossValidator) Validate(results []research.ExecutorResult) research.ValidationEnvelope {
	env := research.ValidationEnvelope{
		Executors:      make([]research.ExecutorType, len(results)),
		Results:        make([]string, len(results)),
		Contradictions: []research.Contradiction{},
	}
	for i, r := range results {
		env.Executors[i] = r.ExecutorType
		env.Results[i] = r.Result
	}

	found := make(map[research.Contradiction]bool)
	for _, c := range v.numericContradictions(results) {
		found[c] = true
	}
	for _, c := range v.claimContradictions(results) {
		found[c] = true
	}
	for c := range found {
		env.Contradictions = append(env.Contradictions, c)
	}
	sort.Slice(env.Contradictions, func(i, j int) bool {
		a, b := env.Contradictions[i], env.Contradictions[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.Description < b.Description
	})

	env.ValidationPassed = len(env.Contradictions) == 0
	v.metrics.recordEnvelope(env)
	return env
}

// quantity is a number with a unit found in one result.
type quantity struct {
	family  string // "%", "$" or "#"
	value   float64
	raw     string
	context map[string]bool
	words   string
}

func (v *CrossValidator) quantities(text string) []quantity {
	var out []quantity
	prevEnd := 0
	for _, m := range numberPattern.FindAllStringSubmatchIndex(text, -1) {
		start, end := m[0], m[1]
		dollar := m[2] >= 0
		if !dollar && start > 0 {
			if r, _ := utf8.DecodeLastRuneInString(text[:start]); unicode.IsLetter(r) || unicode.IsDigit(r) {
				continue
			}
		}
		unit := group(text, m, 3)
		if !dollar && unit == "" {
			continue
		}

		number := strings.TrimRight(strings.ReplaceAll(text[m[4]:m[5]], ",", ""), ".")
		value, err := strconv.ParseFloat(number, 64)
		if err != nil {
			continue
		}

		family := "#"
		switch {
		case unit == "%":
			family = "%"
		case dollar:
			family = "$"
		}
		value *= magnitude[unit]

		from := sentenceStart(text, start)
		if prevEnd > from {
			from = prevEnd
		}
		prevEnd = end

		words := significant(tokensOf(text[from:start]))
		if len(words) > v.cfg.ContextWords {
			words = words[len(words)-v.cfg.ContextWords:]
		}
		out = append(out, quantity{
			family:  family,
			value:   value,
			raw:     strings.TrimSpace(text[start:end]),
			context: toSet(words),
			words:   strings.Join(words, " "),
		})
	}
	return out
}

func (v *CrossValidator) numericContradictions(results []research.ExecutorResult) []research.Contradiction {
	perResult := make([][]quantity, len(results))
	for i, r := range results {
		perResult[i] = v.quantities(r.Result)
	}

	var out []research.Contradiction
	for i := 0; i < len(results); i++ {
		for j := i + 1; j < len(results); j++ {
			for _, a := range perResult[i] {
				for _, b := range perResult[j] {
					if !v.sameMetric(a, b) || !v.materiallyDifferent(a.value, b.value) {
						continue
					}
					out = append(out, research.Contradiction{
						Kind:        research.NumericContradiction,
						Description: describeNumeric(results[i].ExecutorType, a, results[j].ExecutorType, b),
					})
				}
			}
		}
	}
	return out
}

func (v *CrossValidator) sameMetric(a, b quantity) bool {
	if a.family != b.family || len(a.context) == 0 || len(b.context) == 0 {
		return false
	}
	return jaccard(a.context, b.context) >= v.cfg.MinContextSimilarity
}

func (v *CrossValidator) materiallyDifferent(a, b float64) bool {
	lo, hi := a, b
	if lo > hi {
		lo, hi = hi, lo
	}
	if lo == 0 {
		return hi > 0
	}
	return hi/lo > v.cfg.Tolerance
}

func describeNumeric(ta research.ExecutorType, a quantity, tb research.ExecutorType, b quantity) string {
	keyA := string(ta) + "\x00" + a.raw + "\x00" + a.words
	keyB := string(tb) + "\x00" + b.raw + "\x00" + b.words
	if keyB < keyA {
		ta, a, tb, b = tb, b, ta, a
	}
	return fmt.Sprintf("%s reports %s and %s reports %s for %q", ta, a.raw, tb, b.raw, a.words)
}

// claim is a definitive sentence from one result.
type claim struct {
	text    string
	negated bool
	tokens  map[string]bool
}

func claimsOf(text string) []claim {
	var out []claim
	for _, s := range sentences(text) {
		if !modalPattern.MatchString(s) {
			continue
		}
		tokens := tokensOf(s)
		c := claim{text: s, tokens: toSet(significant(tokens))}
		for _, t := range tokens {
			if isNegation(t) {
				c.negated = true
				break
			}
		}
		out = append(out, c)
	}
	return out
}

func (v *CrossValidator) claimContradictions(results []research.ExecutorResult) []research.Contradiction {
	perResult := make([][]claim, len(results))
	for i, r := range results {
		perResult[i] = claimsOf(r.Result)
	}

	var out []research.Contradiction
	for i := 0; i < len(results); i++ {
		for j := i + 1; j < len(results); j++ {
			for _, a := range perResult[i] {
				for _, b := range perResult[j] {
					if a.negated == b.negated || overlap(a.tokens, b.tokens) < v.cfg.MinSharedTokens {
						continue
					}
					affType, aff := results[i].ExecutorType, a
					negType, neg := results[j].ExecutorType, b
					if a.negated {
						affType, aff, negType, neg = negType, neg, affType, aff
					}
					out = append(out, research.Contradiction{
						Kind: research.ClaimContradiction,
						Description: fmt.Sprintf("%s asserts %q but %s asserts %q",
							affType, quote(aff.text), negType, quote(neg.text)),
					})
				}
			}
		}
	}
	return out
}

func quote(s string) string {
	if utf8.RuneCountInString(s) <= maxClaimQuote {
		return s
	}
	return string([]rune(s)[:maxClaimQuote]) + "..."
}
