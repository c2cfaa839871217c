// Package memory provides in-memory stores for development and tests.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/JakeFAU/distcrawl/internal/crawler"
)

// ErrDuplicateRecord is returned when a batch reuses a stored record ID.
var ErrDuplicateRecord = errors.New("record already exists")

// ResultStore keeps ingested records in insertion order.
type ResultStore struct {
	mu      sync.RWMutex
	records []crawler.StoredRecord
	ids     map[string]struct{}
}

// NewResultStore constructs a ResultStore.
func NewResultStore() *ResultStore {
	return &ResultStore{ids: make(map[string]struct{})}
}

// InsertBatch stores every record or none of them.
func (s *ResultStore) InsertBatch(ctx context.Context, records []crawler.StoredRecord) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{}, len(records))
	for _, rec := range records {
		if _, ok := s.ids[rec.ID]; ok {
			return 0, ErrDuplicateRecord
		}
		if _, ok := seen[rec.ID]; ok {
			return 0, ErrDuplicateRecord
		}
		seen[rec.ID] = struct{}{}
	}
	for id := range seen {
		s.ids[id] = struct{}{}
	}
	s.records = append(s.records, records...)
	return len(records), nil
}

// Records returns a copy of everything stored so far.
func (s *ResultStore) Records() []crawler.StoredRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]crawler.StoredRecord, len(s.records))
	copy(out, s.records)
	return out
}

// Batch returns the records stored under batchID.
func (s *ResultStore) Batch(batchID string) []crawler.StoredRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []crawler.StoredRecord
	for _, rec := range s.records {
		if rec.BatchID == batchID {
			out = append(out, rec)
		}
	}
	return out
}
