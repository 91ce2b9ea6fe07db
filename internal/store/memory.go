package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps invoices in process memory. It is used when no database
// is configured; documents are lost on restart.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]Record)}
}

func (s *MemoryStore) Save(_ context.Context, rec Record) (string, error) {
	id := uuid.NewString()
	rec.Invoice.ID = id
	rec.LineItems = slices.Clone(rec.LineItems)
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	s.docs[id] = rec
	s.mu.Unlock()
	return id, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.docs[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	rec.LineItems = slices.Clone(rec.LineItems)
	return rec, nil
}

var _ Store = (*MemoryStore)(nil)
