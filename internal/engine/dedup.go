package engine

import (
	"sort"
	"strings"
	"sync"
)

// SlugSet tracks product slugs already handled in the current run.
// It only grows; a restarted run rebuilds its effect from the records on disk.
type SlugSet struct {
	mu   sync.RWMutex
	seen map[string]struct{}
}

// NewSlugSet creates a SlugSet with the given estimated capacity.
func NewSlugSet(estimatedCapacity int) *SlugSet {
	return &SlugSet{
		seen: make(map[string]struct{}, estimatedCapacity),
	}
}

// Has reports whether slug has been marked.
func (s *SlugSet) Has(slug string) bool {
	key := canonicalSlug(slug)

	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.seen[key]
	return ok
}

// Add marks slug as handled and reports whether it was new.
func (s *SlugSet) Add(slug string) bool {
	key := canonicalSlug(slug)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[key]; ok {
		return false
	}
	s.seen[key] = struct{}{}
	return true
}

// Count returns the number of unique slugs marked.
func (s *SlugSet) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.seen)
}

// Export returns the marked slugs in sorted order.
func (s *SlugSet) Export() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	slugs := make([]string, 0, len(s.seen))
	for slug := range s.seen {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)
	return slugs
}

// canonicalSlug trims surrounding whitespace. Slugs are otherwise compared
// byte for byte since they double as directory names.
func canonicalSlug(slug string) string {
	return strings.TrimSpace(slug)
}
