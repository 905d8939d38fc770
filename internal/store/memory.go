package store

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// MemoryStore implements PendingStore in process memory. Records do not
// survive a restart; it exists for tests and for running without a database.
type MemoryStore struct {
	mu     sync.Mutex
	nextID int64
	items  map[int64]*Submission
}

// Compile-time interface check.
var _ PendingStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore. Ids start at 1.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[int64]*Submission)}
}

func (s *MemoryStore) Create(ctx context.Context, sub *Submission) (int64, error) {
	if err := validate(sub); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	s.nextID++
	id := s.nextID
	rec := clone(sub)
	rec.ID = id
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	s.items[id] = rec
	s.mu.Unlock()

	sub.ID = id
	log.Debug().Int64("submissionId", id).Int("items", len(rec.Items)).Msg("Submission stored in memory")
	return id, nil
}

func (s *MemoryStore) Get(ctx context.Context, id int64) (*Submission, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(rec), nil
}

func (s *MemoryStore) Delete(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return ErrNotFound
	}
	delete(s.items, id)
	return nil
}

// Len returns the number of pending submissions.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// clone copies a submission so callers never share the items slice with the store.
func clone(sub *Submission) *Submission {
	cp := *sub
	cp.Items = append([]MediaItem(nil), sub.Items...)
	return &cp
}
