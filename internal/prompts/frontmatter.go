package prompts

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

type frontMatter struct {
	Temperature *float64 `yaml:"temperature"`
	MaxTokens   int      `yaml:"max_tokens"`
}

// parse splits optional `---` fenced YAML front matter from the body.
// Files without a leading fence are returned whole.
func parse(id string, raw []byte) (Instructions, error) {
	in := Instructions{ID: id}
	normalized := bytes.ReplaceAll(raw, []byte("\r\n"), []byte("\n"))
	if !bytes.HasPrefix(normalized, []byte("---\n")) {
		in.Text = string(bytes.TrimSpace(normalized))
		return in, nil
	}

	rest := normalized[len("---\n"):]
	head, body, ok := bytes.Cut(rest, []byte("\n---\n"))
	if !ok {
		if h, found := bytes.CutSuffix(rest, []byte("\n---")); found {
			head, body, ok = h, nil, true
		}
	}
	if !ok {
		return Instructions{}, fmt.Errorf("prompt %s: unterminated front matter", id)
	}

	var fm frontMatter
	if err := yaml.Unmarshal(head, &fm); err != nil {
		return Instructions{}, fmt.Errorf("prompt %s: parse front matter: %w", id, err)
	}
	if fm.Temperature != nil {
		if *fm.Temperature < 0 || *fm.Temperature > 1 {
			return Instructions{}, fmt.Errorf("prompt %s: temperature %v out of range [0,1]", id, *fm.Temperature)
		}
		in.Temperature = *fm.Temperature
	}
	if fm.MaxTokens < 0 {
		return Instructions{}, fmt.Errorf("prompt %s: max_tokens must be >= 0", id)
	}
	in.MaxTokens = fm.MaxTokens
	in.Text = string(bytes.TrimSpace(body))
	return in, nil
}
