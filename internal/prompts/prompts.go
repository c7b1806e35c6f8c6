// Package prompts loads instruction text for the leader and for each
// executor type.
package prompts

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// LeaderID identifies the leader's instructions.
const LeaderID = "leader"

// ErrNotFound is returned when no instructions exist for an id.
var ErrNotFound = errors.New("instructions not found")

// Instructions is loaded instruction text. Zero Temperature or MaxTokens
// mean the caller's default applies.
type Instructions struct {
	ID          string
	Text        string
	Temperature float64
	MaxTokens   int
}

// Source looks up instructions by id.
type Source interface {
	Load(ctx context.Context, id string) (Instructions, error)
}

// Static is an in-memory Source.
type Static struct {
	mu    sync.RWMutex
	items map[string]Instructions
}

// NewStatic returns a Static seeded with plain texts keyed by id.
func NewStatic(texts map[string]string) *Static {
	s := &Static{items: make(map[string]Instructions, len(texts))}
	for id, text := range texts {
		s.items[id] = Instructions{ID: id, Text: text}
	}
	return s
}

// Set stores or replaces instructions.
func (s *Static) Set(in Instructions) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[in.ID] = in
}

// Load implements Source.
func (s *Static) Load(_ context.Context, id string) (Instructions, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	in, ok := s.items[id]
	if !ok {
		return Instructions{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return in, nil
}

var _ Source = (*Static)(nil)
