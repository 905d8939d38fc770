// Package review tracks per-item keep/remove decisions while a submission is
// under selective review.
package review

import (
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
)

type selection struct {
	mu        sync.Mutex
	decisions map[int]bool
}

// Tracker holds one decision map per submission id. State is process-local.
type Tracker struct {
	selections *xsync.MapOf[int64, *selection]
}

func NewTracker() *Tracker {
	return &Tracker{selections: xsync.NewMapOf[int64, *selection]()}
}

// StartReview installs an empty decision map for id, replacing any prior one.
func (t *Tracker) StartReview(id int64) {
	t.selections.Store(id, &selection{decisions: make(map[int]bool)})
}

// Decide records the decision for index. The last call for an index wins.
// A map is created if review was never started for id.
func (t *Tracker) Decide(id int64, index int, keep bool) {
	s, _ := t.selections.LoadOrCompute(id, func() *selection {
		return &selection{decisions: make(map[int]bool)}
	})
	s.mu.Lock()
	s.decisions[index] = keep
	s.mu.Unlock()
}

// Reviewing reports whether id has an active decision map.
func (t *Tracker) Reviewing(id int64) bool {
	_, ok := t.selections.Load(id)
	return ok
}

// IsComplete reports whether every index in [0, n) has a decision.
func (t *Tracker) IsComplete(id int64, n int) bool {
	s, ok := t.selections.Load(id)
	if !ok {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range n {
		if _, ok := s.decisions[i]; !ok {
			return false
		}
	}
	return true
}

// Resolve returns the kept indices in ascending order. Undecided indices are
// kept.
func (t *Tracker) Resolve(id int64, n int) []int {
	var decisions map[int]bool
	if s, ok := t.selections.Load(id); ok {
		s.mu.Lock()
		decisions = make(map[int]bool, len(s.decisions))
		for k, v := range s.decisions {
			decisions[k] = v
		}
		s.mu.Unlock()
	}

	kept := make([]int, 0, n)
	for i := range n {
		if keep, decided := decisions[i]; decided && !keep {
			continue
		}
		kept = append(kept, i)
	}
	return kept
}

// Clear drops the decision map for id.
func (t *Tracker) Clear(id int64) {
	t.selections.Delete(id)
}

// Undecide removes the decision for index, returning it to the default.
func (t *Tracker) Undecide(id int64, index int) {
	if s, ok := t.selections.Load(id); ok {
		s.mu.Lock()
		delete(s.decisions, index)
		s.mu.Unlock()
	}
}
