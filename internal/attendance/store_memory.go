package attendance

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"checkin/internal/model"
)

// MemoryStore is an in-process RecordStore for development and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]model.Record
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]model.Record)}
}

// Get returns a record by id.
func (s *MemoryStore) Get(ctx context.Context, id string) (model.Record, error) {
	if err := ctx.Err(); err != nil {
		return model.Record{}, classify(err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return model.Record{}, ErrNotFound
	}
	return rec, nil
}

// FindByNationalID returns every record with the identifier.
func (s *MemoryStore) FindByNationalID(ctx context.Context, nationalID string) ([]model.Record, error) {
	return s.filter(ctx, func(r model.Record) bool { return r.NationalID == nationalID })
}

// FindByNameKey returns every record whose normalized name equals nameKey.
func (s *MemoryStore) FindByNameKey(ctx context.Context, nameKey string) ([]model.Record, error) {
	return s.filter(ctx, func(r model.Record) bool { return NameKey(r.FullName) == nameKey })
}

func (s *MemoryStore) filter(ctx context.Context, keep func(model.Record) bool) ([]model.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, classify(err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Record
	for _, r := range s.records {
		if keep(r) {
			out = append(out, r)
		}
	}
	sortRecords(out)
	return out, nil
}

// Insert stores a new record, assigning an id when missing.
func (s *MemoryStore) Insert(ctx context.Context, rec model.Record) (model.Record, error) {
	if err := ctx.Err(); err != nil {
		return model.Record{}, classify(err)
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[rec.ID]; exists {
		return model.Record{}, fmt.Errorf("insert %s: %w", rec.ID, ErrConflict)
	}
	s.records[rec.ID] = rec
	return rec, nil
}

// Write applies patch under the store lock, honoring the expected update count.
func (s *MemoryStore) Write(ctx context.Context, id string, patch Patch, stamp Stamp, expected *int) (model.Record, error) {
	if err := ctx.Err(); err != nil {
		return model.Record{}, classify(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.records[id]
	if !ok {
		return model.Record{}, ErrNotFound
	}
	if expected != nil && cur.UpdateCount != *expected {
		return model.Record{}, fmt.Errorf("expected update count %d, stored %d: %w", *expected, cur.UpdateCount, ErrConflict)
	}
	next := patch.Apply(cur)
	next.UpdateCount = cur.UpdateCount + 1
	next.LastUpdatedBy = stamp.Editor
	next.LastUpdated = stamp.At
	s.records[id] = next
	return next, nil
}

// Scan calls fn for every record in creation order. A non-nil error from fn stops the scan.
func (s *MemoryStore) Scan(ctx context.Context, fn func(model.Record) error) error {
	all, err := s.filter(ctx, func(model.Record) bool { return true })
	if err != nil {
		return err
	}
	for _, r := range all {
		if err := fn(r); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func sortRecords(recs []model.Record) {
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].CreatedAt.Before(recs[j].CreatedAt)
		}
		return recs[i].ID < recs[j].ID
	})
}
