package reminder

import (
	"maps"
	"slices"
	"sync"
)

// DismissalStore tracks the session ids a viewer asked not to be reminded about.
// It lives exactly as long as the view that owns it and is never persisted.
type DismissalStore struct {
	mu  sync.RWMutex
	ids map[string]struct{}
}

// NewDismissalStore returns an empty store.
func NewDismissalStore() *DismissalStore {
	return &DismissalStore{ids: make(map[string]struct{})}
}

// Dismiss adds id to the store. It reports whether the id was newly added.
func (s *DismissalStore) Dismiss(id string) bool {
	if s == nil || id == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[id]; ok {
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

// Clear empties the store so still-eligible reminders reappear on the next evaluation.
func (s *DismissalStore) Clear() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.ids = make(map[string]struct{})
	s.mu.Unlock()
}

// Contains implements Dismissed.
func (s *DismissalStore) Contains(id string) bool {
	if s == nil {
		return false
	}
	s.mu.RLock()
	_, ok := s.ids[id]
	s.mu.RUnlock()
	return ok
}

func (s *DismissalStore) size() int {
	if s == nil {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}

// sorted returns the dismissed ids in lexical order.
func (s *DismissalStore) sorted() []string {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.ids))
}
