package crawlstate

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"

	"github.com/sitescout/discovery/internal/canon"
)

// VisitedSet tracks canonical URLs dequeued for fetch (spec invariant I2:
// a URL is dequeued at most once), with a bloom-filter pre-check in front
// of an exact map to keep the common case — checking a URL that was never
// seen — allocation-free. Grounded directly on the teacher's
// internal/state.Deduplicator.
type VisitedSet struct {
	mu     sync.RWMutex
	filter *bloom.BloomFilter
	exact  map[string]struct{}
}

const defaultEstimatedItems = 2000

// NewVisitedSet creates a VisitedSet sized for an expected crawl of
// estimatedPages pages (the page cap is a reasonable estimate).
func NewVisitedSet(estimatedPages int) *VisitedSet {
	if estimatedPages < 1000 {
		estimatedPages = defaultEstimatedItems
	}
	return &VisitedSet{
		filter: bloom.NewWithEstimates(uint(estimatedPages), 0.001),
		exact:  make(map[string]struct{}),
	}
}

// MarkVisited records rawURL's canonical form as visited.
func (v *VisitedSet) MarkVisited(rawURL string) {
	key := canon.Canonicalize(rawURL)
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.exact[key]; ok {
		return
	}
	v.filter.AddString(key)
	v.exact[key] = struct{}{}
}

// HasVisited reports whether rawURL's canonical form was already marked.
func (v *VisitedSet) HasVisited(rawURL string) bool {
	key := canon.Canonicalize(rawURL)
	v.mu.RLock()
	defer v.mu.RUnlock()
	if !v.filter.TestString(key) {
		return false
	}
	_, ok := v.exact[key]
	return ok
}

// Count returns the number of distinct canonical URLs visited.
func (v *VisitedSet) Count() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.exact)
}
