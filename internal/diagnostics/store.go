package diagnostics

import (
	"sort"
	"sync"
)

// Store maps document keys to their current diagnostic set.
// Only the Reconciler mutates it; readers always receive copies.
type Store struct {
	mu      sync.RWMutex
	entries map[string][]Diagnostic
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{entries: make(map[string][]Diagnostic)}
}

func (s *Store) replace(key string, diags []Diagnostic) {
	s.mu.Lock()
	s.entries[key] = diags
	s.mu.Unlock()
}

func (s *Store) remove(key string) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

// Get returns a copy of the diagnostics stored for key and whether an entry exists.
func (s *Store) Get(key string) ([]Diagnostic, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	diags, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	return append([]Diagnostic{}, diags...), true
}

// Keys returns the stored document keys in sorted order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	s.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

// Snapshot returns a deep copy of every entry.
func (s *Store) Snapshot() map[string][]Diagnostic {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]Diagnostic, len(s.entries))
	for k, v := range s.entries {
		out[k] = append([]Diagnostic{}, v...)
	}
	return out
}

// Len returns the number of documents with an entry.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
