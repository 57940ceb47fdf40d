package pipeline

import (
	"sync"

	"realty-engine/internal/domain"
)

// seenSet is the per-run dedup set of summary ids.
type seenSet struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func newSeenSet() *seenSet {
	return &seenSet{seen: make(map[string]struct{})}
}

// Add returns true if id was newly added, false if already present.
func (s *seenSet) Add(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.seen[id]; exists {
		return false
	}
	s.seen[id] = struct{}{}
	return true
}

// accumulator owns the RunReport while the run is live. Every mutation goes
// through update so concurrent detail completions never race.
type accumulator struct {
	mu  sync.Mutex
	rep domain.RunReport
}

func (a *accumulator) update(fn func(r *domain.RunReport)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	fn(&a.rep)
}

func (a *accumulator) issue(is domain.Issue) {
	a.update(func(r *domain.RunReport) { r.Issues = append(r.Issues, is) })
}

// snapshot returns a copy that no longer shares slices with the live report.
func (a *accumulator) snapshot() domain.RunReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := a.rep
	out.Streams = append([]domain.StreamReport(nil), a.rep.Streams...)
	out.Issues = append([]domain.Issue(nil), a.rep.Issues...)
	return out
}
