package memory

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/researchd/internal/logging"
)

// truncationMarker ends a preview that was cut to the character budget.
const truncationMarker = "..."

// Memory is the memory document of one project.
type Memory struct {
	mu   sync.RWMutex
	id   string
	path string

	summaryChars int
	now          func() time.Time
	logger       *logging.Logger
}

// ProjectID returns the project id.
func (m *Memory) ProjectID() string {
	return m.id
}

// Path returns the document file path.
func (m *Memory) Path() string {
	return m.path
}

// WriteSection upserts a section and updates the Last Updated line.
// Every other section is preserved byte for byte.
func (m *Memory) WriteSection(ctx context.Context, name, content string) error {
	if err := validateSectionName(name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	doc, err := m.load()
	if err != nil {
		return err
	}
	_, existed := doc.lookup(name)
	doc.upsert(name, content)
	doc.touch(m.now())

	if err := writeAtomic(m.path, doc.render()); err != nil {
		return fmt.Errorf("writing section %q: %w", name, err)
	}

	m.logger.Debug(ctx, "memory section written",
		zap.String("section", name),
		zap.Bool("replaced", existed),
		zap.Int("bytes", len(content)),
	)
	return nil
}

// ReadSection returns the section content. ok is false when the section
// does not exist.
func (m *Memory) ReadSection(name string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, err := m.load()
	if err != nil {
		return "", false, err
	}
	content, ok := doc.lookup(name)
	return content, ok, nil
}

// ReadSectionStrict is ReadSection returning ErrSectionNotFound for absent
// sections.
func (m *Memory) ReadSectionStrict(name string) (string, error) {
	content, ok, err := m.ReadSection(name)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrSectionNotFound, name)
	}
	return content, nil
}

// Sections returns section names in document order.
func (m *Memory) Sections() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, err := m.load()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(doc.sections))
	for i, s := range doc.sections {
		names[i] = s.name
	}
	return names, nil
}

// ReadAll returns the full document text.
func (m *Memory) ReadAll() (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, err := os.ReadFile(m.path)
	if err != nil {
		return "", fmt.Errorf("reading project memory: %w", err)
	}
	return string(data), nil
}

// Summarize emits "**<name>**: <preview>" for each named section present,
// one per line. Previews longer than the character budget are cut and end
// with "...".
func (m *Memory) Summarize(names ...string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, err := m.load()
	if err != nil {
		return "", err
	}

	lines := make([]string, 0, len(names))
	for _, name := range names {
		content, ok := doc.lookup(name)
		if !ok {
			continue
		}
		lines = append(lines, fmt.Sprintf("**%s**: %s", name, preview(content, m.summaryChars)))
	}
	return strings.Join(lines, "\n"), nil
}

// Summary summarizes the query and the three phase plans.
func (m *Memory) Summary() (string, error) {
	return m.Summarize("user_query", "phase1_plan", "phase2_plan", "phase3_plan")
}

func (m *Memory) load() (*document, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, m.id)
		}
		return nil, fmt.Errorf("reading project memory: %w", err)
	}
	doc, err := parseDocument(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", m.path, err)
	}
	return doc, nil
}

func (d *document) lookup(name string) (string, bool) {
	i := d.find(name)
	if i < 0 {
		return "", false
	}
	return d.sections[i].body(), true
}

func preview(content string, budget int) string {
	if utf8.RuneCountInString(content) <= budget {
		return content
	}
	runes := []rune(content)
	return string(runes[:budget]) + truncationMarker
}

func validateSectionName(name string) error {
	if name == "" || strings.TrimSpace(name) != name || strings.ContainsAny(name, "\r\n") {
		return fmt.Errorf("%w: %q", ErrInvalidSectionName, name)
	}
	return nil
}

// writeAtomic replaces path with content via a temp file in the same
// directory.
func writeAtomic(path, content string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
