package store

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/vheastro/bkgdata/internal/astro"
	"github.com/vheastro/bkgdata/internal/events"
	"github.com/vheastro/bkgdata/internal/runs"
)

// RunIndex provides thread-safe storage for run summaries keyed by
// observation ID, with an LRU side-cache holding the event samples of
// the most recently used runs. Summaries are small and kept for every
// run; samples are large, so only the cache holds them.
type RunIndex struct {
	mu        sync.RWMutex
	order     []int64
	summaries map[int64]*runs.Summary
	samples   *lru.Cache[int64, *events.Sample]
	cacheCap  int
}

// NewRunIndex creates a run index whose sample cache holds up to
// sampleCacheSize entries.
func NewRunIndex(sampleCacheSize int) *RunIndex {
	if sampleCacheSize < 1 {
		sampleCacheSize = 1
	}
	cache, _ := lru.New[int64, *events.Sample](sampleCacheSize)

	return &RunIndex{
		summaries: make(map[int64]*runs.Summary),
		samples:   cache,
		cacheCap:  sampleCacheSize,
	}
}

// Put stores a run summary. A summary for a new observation ID keeps
// its insertion position; re-putting an existing ID replaces the
// summary in place. Returns true when the ID was new.
func (s *RunIndex) Put(summary *runs.Summary) bool {
	if summary == nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, exists := s.summaries[summary.ObsID]
	if !exists {
		s.order = append(s.order, summary.ObsID)
	}
	s.summaries[summary.ObsID] = summary

	return !exists
}

// PutSample caches the event sample of a run.
func (s *RunIndex) PutSample(obsID int64, sample *events.Sample) {
	s.samples.Add(obsID, sample)
}

// Get returns the summary of the given observation ID.
func (s *RunIndex) Get(obsID int64) (*runs.Summary, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary, ok := s.summaries[obsID]
	return summary, ok
}

// Sample returns the cached event sample of the given observation ID,
// if it is still resident.
func (s *RunIndex) Sample(obsID int64) (*events.Sample, bool) {
	return s.samples.Get(obsID)
}

// List returns all summaries in insertion order.
func (s *RunIndex) List() []*runs.Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*runs.Summary, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.summaries[id])
	}
	return out
}

// Len returns the number of indexed runs.
func (s *RunIndex) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.order)
}

// Neighbours returns the indexed runs adjacent to the given run in time
// and pointing. The target run itself is part of the result when it
// satisfies the criteria. The second return value reports whether the
// observation ID is indexed at all.
func (s *RunIndex) Neighbours(obsID int64, timeDeltaDays float64, pointingDelta astro.Angle) ([]*runs.Summary, bool) {
	s.mu.RLock()
	target, ok := s.summaries[obsID]
	candidates := make([]*runs.Summary, 0, len(s.order))
	for _, id := range s.order {
		candidates = append(candidates, s.summaries[id])
	}
	s.mu.RUnlock()

	if !ok {
		return nil, false
	}

	return runs.FindNeighbours(target, candidates, timeDeltaDays, pointingDelta), true
}

// Clear removes all summaries and purges the sample cache.
func (s *RunIndex) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.order = nil
	s.summaries = make(map[int64]*runs.Summary)
	s.samples.Purge()
}

// Stats returns index statistics.
func (s *RunIndex) Stats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return map[string]interface{}{
		"total_runs":       len(s.order),
		"cached_samples":   s.samples.Len(),
		"sample_cache_cap": s.cacheCap,
	}
}
