package memory

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fyrsmithlabs/researchd/internal/logging"
)

const (
	filePrefix = "PROJECT_MEMORY_"
	fileSuffix = ".md"

	// DefaultVersion is written into new document preambles.
	DefaultVersion = "4.0"

	// DefaultSummaryChars is the preview budget used by Summarize.
	DefaultSummaryChars = 200
)

var projectIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// Store manages the memory documents under one data directory.
type Store struct {
	mu       sync.Mutex
	dir      string
	projects map[string]*Memory

	version      string
	summaryChars int
	now          func() time.Time
	logger       *logging.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithVersion sets the version written to new documents.
func WithVersion(version string) Option {
	return func(s *Store) {
		if version != "" {
			s.version = version
		}
	}
}

// WithSummaryChars sets the Summarize preview budget.
func WithSummaryChars(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.summaryChars = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// NewStore creates the data directory if needed.
func NewStore(dir string, opts ...Option) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("memory: data directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory %s: %w", dir, err)
	}
	s := &Store{
		dir:          dir,
		projects:     make(map[string]*Memory),
		version:      DefaultVersion,
		summaryChars: DefaultSummaryChars,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Dir returns the data directory.
func (s *Store) Dir() string {
	return s.dir
}

// Open returns the project memory, creating the document when it does not
// exist yet. Repeated calls return the same *Memory.
func (s *Store) Open(projectID string) (*Memory, error) {
	m, err := s.handle(projectID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	_, err = os.Stat(m.path)
	if err == nil {
		return m, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("stat project memory: %w", err)
	}
	doc := newDocument(projectID, s.version, s.now())
	if err := writeAtomic(m.path, doc.render()); err != nil {
		return nil, fmt.Errorf("creating project memory: %w", err)
	}
	return m, nil
}

// Get returns the memory of an existing project.
func (s *Store) Get(projectID string) (*Memory, error) {
	m, err := s.handle(projectID)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(m.path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, projectID)
		}
		return nil, fmt.Errorf("stat project memory: %w", err)
	}
	return m, nil
}

// List returns the ids of all projects with a document, sorted.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("listing data directory: %w", err)
	}
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		id := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix)
		if projectIDPattern.MatchString(id) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) handle(projectID string) (*Memory, error) {
	if !projectIDPattern.MatchString(projectID) || strings.Contains(projectID, "..") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidProjectID, projectID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if m, ok := s.projects[projectID]; ok {
		return m, nil
	}
	m := &Memory{
		id:           projectID,
		path:         filepath.Join(s.dir, filePrefix+projectID+fileSuffix),
		summaryChars: s.summaryChars,
		now:          s.now,
		logger:       s.logger,
	}
	s.projects[projectID] = m
	return m, nil
}
