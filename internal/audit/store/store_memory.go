package store

import (
	"context"
	"sort"
	"sync"

	"idplane/internal/audit/models"
)

// InMemoryRecordStore is a thread-safe in-memory audit log for tests and
// local development.
type InMemoryRecordStore struct {
	mu      sync.RWMutex
	records []*models.Record
	byKey   map[string]struct{}
}

// NewMemory creates an empty in-memory record store.
func NewMemory() *InMemoryRecordStore {
	return &InMemoryRecordStore{byKey: make(map[string]struct{})}
}

// Insert appends a record. A duplicate message key is silently ignored.
func (s *InMemoryRecordStore) Insert(_ context.Context, record *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if record.MessageKey != "" {
		if _, seen := s.byKey[record.MessageKey]; seen {
			return nil
		}
		s.byKey[record.MessageKey] = struct{}{}
	}

	cp := *record
	s.records = append(s.records, &cp)
	return nil
}

// List returns matching records newest-first.
func (s *InMemoryRecordStore) List(_ context.Context, q Query) ([]*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := s.match(q.Filter)
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].IngestedAt.After(matched[j].IngestedAt)
	})

	if q.Offset >= len(matched) {
		return nil, nil
	}
	matched = matched[q.Offset:]
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}

	out := make([]*models.Record, len(matched))
	for i, r := range matched {
		cp := *r
		out[i] = &cp
	}
	return out, nil
}

// Count returns the total matching records.
func (s *InMemoryRecordStore) Count(_ context.Context, f Filter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.match(f))), nil
}

func (s *InMemoryRecordStore) match(f Filter) []*models.Record {
	var matched []*models.Record
	for _, r := range s.records {
		switch {
		case f.UserID != "" && r.UserID != f.UserID:
			continue
		case f.EntityType != "" && string(r.EntityType) != f.EntityType:
			continue
		case f.EntityID != "" && r.EntityID != f.EntityID:
			continue
		}
		matched = append(matched, r)
	}
	return matched
}
