package prompts

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/researchd/internal/logging"
)

const (
	leaderFile = "master_prompt_v4.0b.md"
	workerDir  = "worker_prompts"
)

var idPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

// FileSource reads instructions from a directory laid out as
//
//	<dir>/master_prompt_v4.0b.md
//	<dir>/worker_prompts/<type>.md
//
// Loaded files are cached until Watch sees them change.
type FileSource struct {
	dir    string
	logger *logging.Logger

	mu    sync.RWMutex
	cache map[string]Instructions
}

// NewFileSource returns a FileSource rooted at dir.
func NewFileSource(dir string, logger *logging.Logger) *FileSource {
	return &FileSource{dir: dir, logger: logger, cache: make(map[string]Instructions)}
}

// Path returns the file backing id.
func (s *FileSource) Path(id string) string {
	if id == LeaderID {
		return filepath.Join(s.dir, leaderFile)
	}
	return filepath.Join(s.dir, workerDir, id+".md")
}

// Load implements Source.
func (s *FileSource) Load(ctx context.Context, id string) (Instructions, error) {
	if !idPattern.MatchString(id) {
		return Instructions{}, fmt.Errorf("%w: invalid id %q", ErrNotFound, id)
	}

	s.mu.RLock()
	in, ok := s.cache[id]
	s.mu.RUnlock()
	if ok {
		return in, nil
	}

	raw, err := os.ReadFile(s.Path(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Instructions{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return Instructions{}, fmt.Errorf("read prompt %s: %w", id, err)
	}
	in, err = parse(id, raw)
	if err != nil {
		return Instructions{}, err
	}

	s.mu.Lock()
	s.cache[id] = in
	s.mu.Unlock()
	s.logger.Debug(ctx, "prompt loaded", zap.String("prompt.id", id), zap.Int("prompt.bytes", len(in.Text)))
	return in, nil
}

// Invalidate drops cached entries; with no ids it clears the cache.
func (s *FileSource) Invalidate(ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(ids) == 0 {
		s.cache = make(map[string]Instructions)
		return
	}
	for _, id := range ids {
		delete(s.cache, id)
	}
}

// Cached reports whether id is currently cached.
func (s *FileSource) Cached(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.cache[id]
	return ok
}

// Watch invalidates cache entries when their files change. It blocks until
// ctx is done or the watcher fails to start. Missing directories are
// skipped.
func (s *FileSource) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create prompt watcher: %w", err)
	}
	defer watcher.Close()

	watched := 0
	for _, dir := range []string{s.dir, filepath.Join(s.dir, workerDir)} {
		if err := watcher.Add(dir); err != nil {
			s.logger.Warn(ctx, "prompt directory not watched", zap.String("dir", dir), zap.Error(err))
			continue
		}
		watched++
	}
	if watched == 0 {
		return fmt.Errorf("no prompt directories to watch under %s", s.dir)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if id, ok := s.idFor(event.Name); ok {
				s.Invalidate(id)
				s.logger.Info(ctx, "prompt changed", zap.String("prompt.id", id), zap.String("op", event.Op.String()))
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn(ctx, "prompt watcher error", zap.Error(err))
		}
	}
}

func (s *FileSource) idFor(path string) (string, bool) {
	clean := filepath.Clean(path)
	if clean == filepath.Clean(filepath.Join(s.dir, leaderFile)) {
		return LeaderID, true
	}
	if filepath.Dir(clean) != filepath.Clean(filepath.Join(s.dir, workerDir)) || filepath.Ext(clean) != ".md" {
		return "", false
	}
	base := filepath.Base(clean)
	return base[:len(base)-len(".md")], true
}

var _ Source = (*FileSource)(nil)
