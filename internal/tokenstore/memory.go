package tokenstore

import (
	"context"
	"sync"
)

// MemStore holds the record in memory only. Used in tests and for runs
// that should not persist credentials.
type MemStore struct {
	mu  sync.Mutex
	rec Record
	set bool
}

func NewMemStore() *MemStore {
	return &MemStore{}
}

func (s *MemStore) Save(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec = rec
	s.set = true
	return nil
}

func (s *MemStore) Load(_ context.Context) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.set || s.rec.IsZero() {
		return Record{}, ErrNoTokens
	}
	return s.rec, nil
}

func (s *MemStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec = Record{}
	s.set = false
	return nil
}
