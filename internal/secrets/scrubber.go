package secrets

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// DefaultRedaction replaces every detected secret.
const DefaultRedaction = "[REDACTED]"

type compiledRule struct {
	id       string
	pattern  *regexp.Regexp
	keywords []string
}

// Scrubber redacts matches of its rules. A nil *Scrubber passes input through.
type Scrubber struct {
	rules     []compiledRule
	allow     []*regexp.Regexp
	redaction string
}

// Option configures a Scrubber.
type Option func(*Scrubber) error

// WithRedaction sets the replacement string.
func WithRedaction(s string) Option {
	return func(sc *Scrubber) error {
		if s == "" {
			return fmt.Errorf("redaction string cannot be empty")
		}
		sc.redaction = s
		return nil
	}
}

// WithAllowList skips matches that also match one of the patterns.
func WithAllowList(patterns ...string) Option {
	return func(sc *Scrubber) error {
		for i, p := range patterns {
			re, err := regexp.Compile(p)
			if err != nil {
				return fmt.Errorf("allow list %d: invalid pattern: %w", i, err)
			}
			sc.allow = append(sc.allow, re)
		}
		return nil
	}
}

// New compiles rules into a Scrubber.
func New(rules []Rule, opts ...Option) (*Scrubber, error) {
	s := &Scrubber{redaction: DefaultRedaction}
	for i, r := range rules {
		if r.ID == "" {
			return nil, fmt.Errorf("rule %d: ID is required", i)
		}
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rule %s: invalid pattern: %w", r.ID, err)
		}
		kws := make([]string, len(r.Keywords))
		for j, kw := range r.Keywords {
			kws[j] = strings.ToLower(kw)
		}
		s.rules = append(s.rules, compiledRule{id: r.ID, pattern: re, keywords: kws})
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Default returns a Scrubber with DefaultRules.
func Default() *Scrubber {
	s, err := New(DefaultRules())
	if err != nil {
		panic(err)
	}
	return s
}

// Result is the outcome of a Scrub call. Matched values are never retained.
type Result struct {
	Text   string
	ByRule map[string]int
}

// Total is the number of redacted matches.
func (r Result) Total() int {
	n := 0
	for _, c := range r.ByRule {
		n += c
	}
	return n
}

// Rules returns the IDs of rules that matched, sorted.
func (r Result) Rules() []string {
	ids := make([]string, 0, len(r.ByRule))
	for id := range r.ByRule {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

type span struct{ start, end int }

// Scrub redacts content. Overlapping matches from different rules collapse
// into a single redaction.
func (s *Scrubber) Scrub(content string) Result {
	res := Result{Text: content, ByRule: map[string]int{}}
	if s == nil || content == "" {
		return res
	}

	lower := strings.ToLower(content)
	var spans []span
	for _, r := range s.rules {
		if !gated(lower, r.keywords) {
			continue
		}
		for _, m := range r.pattern.FindAllStringIndex(content, -1) {
			if s.allowed(content[m[0]:m[1]]) {
				continue
			}
			res.ByRule[r.id]++
			spans = append(spans, span{m[0], m[1]})
		}
	}
	if len(spans) == 0 {
		return res
	}

	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	merged := spans[:1]
	for _, sp := range spans[1:] {
		last := &merged[len(merged)-1]
		if sp.start <= last.end {
			if sp.end > last.end {
				last.end = sp.end
			}
			continue
		}
		merged = append(merged, sp)
	}

	var b strings.Builder
	b.Grow(len(content))
	prev := 0
	for _, sp := range merged {
		b.WriteString(content[prev:sp.start])
		b.WriteString(s.redaction)
		prev = sp.end
	}
	b.WriteString(content[prev:])
	res.Text = b.String()
	return res
}

// String scrubs and returns only the text.
func (s *Scrubber) String(content string) string {
	return s.Scrub(content).Text
}

func gated(lower string, keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func (s *Scrubber) allowed(match string) bool {
	for _, re := range s.allow {
		if re.MatchString(match) {
			return true
		}
	}
	return false
}
