package quality

import (
	"regexp"
	"strings"
	"unicode"
)

var wordPattern = regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}]+)?`)

// stopwords are excluded from context and claim comparison.
var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "that": true, "this": true,
	"with": true, "from": true, "are": true, "was": true, "were": true,
	"will": true, "has": true, "have": true, "had": true, "been": true,
	"its": true, "their": true, "our": true, "into": true, "than": true,
	"then": true, "also": true, "which": true, "who": true, "what": true,
	"when": true, "where": true, "can": true, "may": true, "would": true,
	"could": true, "should": true, "about": true, "over": true, "under": true,
	"more": true, "most": true, "less": true, "such": true, "these": true,
	"those": true, "there": true, "they": true, "them": true, "not": true,
	"never": true, "cannot": true, "all": true, "any": true, "each": true,
	"per": true, "via": true, "but": true, "very": true, "only": true,
}

var negationWords = map[string]bool{
	"not": true, "no": true, "never": true, "cannot": true, "none": true,
}

// tokensOf returns the lowercase words of text with contractions kept
// whole ("won't", "isn't").
func tokensOf(text string) []string {
	raw := wordPattern.FindAllString(text, -1)
	out := make([]string, len(raw))
	for i, w := range raw {
		out[i] = strings.ToLower(strings.ReplaceAll(w, "’", "'"))
	}
	return out
}

// isNegation reports negation markers, including n't contractions.
func isNegation(token string) bool {
	return negationWords[token] || strings.HasSuffix(token, "n't")
}

// significant filters tokens down to comparison words.
func significant(tokens []string) []string {
	var out []string
	for _, t := range tokens {
		if isNegation(t) {
			continue
		}
		if i := strings.IndexByte(t, '\''); i >= 0 {
			t = t[:i]
		}
		if len([]rune(t)) < 3 || stopwords[t] || isNumeric(t) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func isNumeric(t string) bool {
	for _, r := range t {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func toSet(words []string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}

func overlap(a, b map[string]bool) int {
	n := 0
	for w := range a {
		if b[w] {
			n++
		}
	}
	return n
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	shared := overlap(a, b)
	return float64(shared) / float64(len(a)+len(b)-shared)
}

// sentences splits text on terminal punctuation followed by whitespace and
// on line breaks. Decimal points stay inside their sentence.
func sentences(text string) []string {
	var out []string
	start := 0
	for i := 0; i < len(text); i++ {
		c := text[i]
		end := -1
		switch {
		case c == '\n':
			end = i
		case (c == '.' || c == '!' || c == '?') && (i+1 == len(text) || isSpace(text[i+1])):
			end = i + 1
		}
		if end < 0 {
			continue
		}
		if s := strings.TrimSpace(text[start:end]); s != "" {
			out = append(out, s)
		}
		start = i + 1
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		out = append(out, s)
	}
	return out
}

// sentenceStart returns the offset where the sentence containing pos
// begins.
func sentenceStart(text string, pos int) int {
	for i := pos - 1; i >= 0; i-- {
		c := text[i]
		if c == '\n' {
			return i + 1
		}
		if (c == '.' || c == '!' || c == '?') && i+1 < len(text) && isSpace(text[i+1]) {
			return i + 1
		}
	}
	return 0
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
