package inmemorystore

import (
	"context"
	"fmt"
	"sync"

	"github.com/vk/paramfn/internal/model"
	"github.com/vk/paramfn/internal/store"
)

var _ store.Store = (*Store)(nil)

// Store keeps the last saved set of definitions in memory.
//
// Every definition is deep-copied on the way in and on the way out, so
// callers can never mutate the stored state through a returned pointer.
type Store struct {
	mu    sync.RWMutex
	defs  []*model.Definition
	saves int
	fail  error // returned by the next Save, then cleared
}

// New creates a new, empty in-memory store.
func New() *Store {
	return &Store{}
}

// NewWith creates a store pre-populated with defs, as if they had been saved.
func NewWith(defs ...*model.Definition) *Store {
	return &Store{defs: cloneAll(defs)}
}

// Load returns copies of the saved definitions in their saved order.
func (s *Store) Load(ctx context.Context) ([]*model.Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAll(s.defs), nil
}

// Save replaces the stored definitions.
func (s *Store) Save(ctx context.Context, defs []*model.Definition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fail != nil {
		err := s.fail
		s.fail = nil
		return fmt.Errorf("%w: %w", model.ErrSerialization, err)
	}
	s.defs = cloneAll(defs)
	s.saves++
	return nil
}

// Saves returns how many times Save succeeded.
func (s *Store) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}

// FailNextSave makes the next Save return err without storing anything.
func (s *Store) FailNextSave(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = err
}

func cloneAll(defs []*model.Definition) []*model.Definition {
	out := make([]*model.Definition, 0, len(defs))
	for _, d := range defs {
		out = append(out, d.Clone())
	}
	return out
}
