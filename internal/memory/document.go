package memory

import (
	"regexp"
	"strings"
	"time"
)

const (
	titlePrefix       = "# PROJECT_MEMORY: "
	lastUpdatedPrefix = "**Last Updated**: "
	markerPrefix      = "## "
)

var lastUpdatedLine = regexp.MustCompile(`(?m)^\*\*Last Updated\*\*:.*$`)

// document is a parsed memory file. Sections keep their raw bytes so that
// untouched sections render back exactly as read.
type document struct {
	preamble string
	sections []section
}

type section struct {
	name string
	raw  string // marker line through the byte before the next marker
}

func newDocument(projectID, version string, now time.Time) *document {
	ts := now.UTC().Format(time.RFC3339)
	var b strings.Builder
	b.WriteString(titlePrefix + projectID + "\n\n")
	b.WriteString("**Created**: " + ts + "\n")
	b.WriteString("**Version**: " + version + "\n")
	b.WriteString(lastUpdatedPrefix + ts + "\n\n")
	b.WriteString("---\n\n")
	return &document{preamble: b.String()}
}

// isMarker reports whether a line (without its newline) starts a section.
func isMarker(line string) bool {
	return line == "##" || strings.HasPrefix(line, markerPrefix)
}

func parseDocument(text string) (*document, error) {
	if !strings.HasPrefix(text, titlePrefix) {
		return nil, ErrDocumentCorrupted
	}

	doc := &document{}
	var (
		cur   *section
		chunk strings.Builder
	)
	flush := func() {
		if cur == nil {
			doc.preamble = chunk.String()
		} else {
			cur.raw = chunk.String()
			doc.sections = append(doc.sections, *cur)
		}
		chunk.Reset()
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		if line == "" {
			continue
		}
		bare := strings.TrimSuffix(line, "\n")
		if isMarker(bare) {
			flush()
			cur = &section{name: strings.TrimPrefix(strings.TrimPrefix(bare, "##"), " ")}
		}
		chunk.WriteString(line)
	}
	flush()
	return doc, nil
}

func (d *document) render() string {
	var b strings.Builder
	b.WriteString(d.preamble)
	for _, s := range d.sections {
		b.WriteString(s.raw)
	}
	return b.String()
}

func (d *document) find(name string) int {
	for i, s := range d.sections {
		if s.name == name {
			return i
		}
	}
	return -1
}

// body returns the content stored in a section block.
func (s section) body() string {
	_, rest, found := strings.Cut(s.raw, "\n")
	if !found {
		return ""
	}
	if strings.HasSuffix(rest, "\n\n") {
		return rest[:len(rest)-2]
	}
	return strings.TrimSuffix(rest, "\n")
}

// upsert replaces the named section in place or appends it.
func (d *document) upsert(name, content string) {
	block := markerPrefix + name + "\n" + demoteMarkers(content) + "\n\n"

	if i := d.find(name); i >= 0 {
		d.sections[i].raw = block
		return
	}

	if n := len(d.sections); n > 0 {
		if !strings.HasSuffix(d.sections[n-1].raw, "\n") {
			d.sections[n-1].raw += "\n"
		}
	} else if !strings.HasSuffix(d.preamble, "\n") {
		d.preamble += "\n"
	}
	d.sections = append(d.sections, section{name: name, raw: block})
}

func (d *document) touch(now time.Time) {
	line := lastUpdatedPrefix + now.UTC().Format(time.RFC3339)
	if loc := lastUpdatedLine.FindStringIndex(d.preamble); loc != nil {
		d.preamble = d.preamble[:loc[0]] + line + d.preamble[loc[1]:]
		return
	}
	d.preamble += line + "\n\n"
}

// demoteMarkers turns content lines that would parse as section markers
// into third-level headings.
func demoteMarkers(content string) string {
	if !strings.Contains(content, "##") {
		return content
	}
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		if isMarker(line) {
			lines[i] = "#" + line
		}
	}
	return strings.Join(lines, "\n")
}
