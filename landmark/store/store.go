// Package store holds the landmark sets of a run, keyed by task identifier
// and kept in insertion order.
package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/example/landmark-lite/landmark/domain"
)

// Entry is one solved task in a store.
type Entry struct {
	ID        domain.TaskID
	Landmarks domain.LandmarkSet
}

// Store is an insertion-ordered mapping from task identifier to landmark set.
//
// Put with an identifier already present replaces its landmarks and keeps
// the entry's original position. Implementations are safe for concurrent use.
type Store interface {
	// Put inserts or replaces the landmarks of a task.
	Put(ctx context.Context, id domain.TaskID, set domain.LandmarkSet) error

	// Get returns the landmarks of a task, or domain.ErrNotFound.
	Get(ctx context.Context, id domain.TaskID) (domain.LandmarkSet, error)

	// All returns every entry in insertion order.
	All(ctx context.Context) ([]Entry, error)

	// Len returns the number of entries.
	Len(ctx context.Context) (int, error)

	// IntersectAll returns the landmarks common to every entry,
	// or domain.ErrEmptyStore when there are none.
	IntersectAll(ctx context.Context) (domain.LandmarkSet, error)
}

// MemoryStore is the in-memory Store.
type MemoryStore struct {
	mu    sync.RWMutex
	order []domain.TaskID
	sets  map[domain.TaskID]domain.LandmarkSet
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sets: make(map[domain.TaskID]domain.LandmarkSet),
	}
}

// Put implements Store.
func (s *MemoryStore) Put(ctx context.Context, id domain.TaskID, set domain.LandmarkSet) error {
	if id == "" {
		return fmt.Errorf("%w: empty task id", domain.ErrInvalidArgument)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sets[id]; !exists {
		s.order = append(s.order, id)
	}
	s.sets[id] = set
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, id domain.TaskID) (domain.LandmarkSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set, ok := s.sets[id]
	if !ok {
		return domain.LandmarkSet{}, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	return set, nil
}

// All implements Store.
func (s *MemoryStore) All(ctx context.Context) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := make([]Entry, len(s.order))
	for i, id := range s.order {
		entries[i] = Entry{ID: id, Landmarks: s.sets[id]}
	}
	return entries, nil
}

// Len implements Store.
func (s *MemoryStore) Len(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order), nil
}

// IntersectAll implements Store.
func (s *MemoryStore) IntersectAll(ctx context.Context) (domain.LandmarkSet, error) {
	entries, err := s.All(ctx)
	if err != nil {
		return domain.LandmarkSet{}, err
	}
	return Reduce(entries)
}

// Reduce intersects the landmark sets of the given entries.
func Reduce(entries []Entry) (domain.LandmarkSet, error) {
	sets := make([]domain.LandmarkSet, len(entries))
	for i, e := range entries {
		sets[i] = e.Landmarks
	}
	return domain.IntersectSets(sets...)
}

// IDs returns the identifiers of the entries in order.
func IDs(entries []Entry) []domain.TaskID {
	ids := make([]domain.TaskID, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	return ids
}
