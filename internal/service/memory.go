package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Subash-08/loke-store-sub001/internal/domain"
)

type listKey struct {
	userID string
	kind   ListKind
}

type batchKey struct {
	userID  string
	kind    ListKind
	batchID string
	item    domain.ItemKey
}

// MemoryStore implements Store in process memory. It backs development
// servers and tests; production uses the postgres implementation.
type MemoryStore struct {
	mu      sync.Mutex
	lists   map[listKey]map[domain.ItemKey]domain.Record
	order   map[listKey][]domain.ItemKey
	batches map[batchKey]time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		lists:   make(map[listKey]map[domain.ItemKey]domain.Record),
		order:   make(map[listKey][]domain.ItemKey),
		batches: make(map[batchKey]time.Time),
	}
}

// Items returns the list contents in insertion order.
func (s *MemoryStore) Items(_ context.Context, userID string, kind ListKind) ([]domain.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lk := listKey{userID, kind}
	keys := s.order[lk]
	items := make([]domain.Record, 0, len(keys))
	for _, k := range keys {
		if record, ok := s.lists[lk][k]; ok {
			items = append(items, record)
		}
	}
	return items, nil
}

// Get returns the record with the given identity tuple.
func (s *MemoryStore) Get(_ context.Context, userID string, kind ListKind, key domain.ItemKey) (domain.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.lists[listKey{userID, kind}][key]
	if !ok {
		return domain.Record{}, domain.ErrItemNotFound
	}
	return record, nil
}

// Put inserts or replaces the record under its identity tuple.
func (s *MemoryStore) Put(_ context.Context, userID string, kind ListKind, record domain.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lk := listKey{userID, kind}
	if s.lists[lk] == nil {
		s.lists[lk] = make(map[domain.ItemKey]domain.Record)
	}
	key := record.Key()
	if _, exists := s.lists[lk][key]; !exists {
		s.order[lk] = append(s.order[lk], key)
	}
	s.lists[lk][key] = record
	return nil
}

// Delete removes the record, if present.
func (s *MemoryStore) Delete(_ context.Context, userID string, kind ListKind, key domain.ItemKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lk := listKey{userID, kind}
	delete(s.lists[lk], key)
	keys := s.order[lk]
	for i, k := range keys {
		if k == key {
			s.order[lk] = append(keys[:i], keys[i+1:]...)
			break
		}
	}
	return nil
}

// Clear removes all records for the user's list.
func (s *MemoryStore) Clear(_ context.Context, userID string, kind ListKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lk := listKey{userID, kind}
	delete(s.lists, lk)
	delete(s.order, lk)
	return nil
}

// MergeApplied reports whether the batch already absorbed this key.
func (s *MemoryStore) MergeApplied(_ context.Context, userID string, kind ListKind, batchID string, key domain.ItemKey) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.batches[batchKey{userID, kind, batchID, key}]
	return ok, nil
}

// MarkMergeApplied records the absorption of one key in a batch.
func (s *MemoryStore) MarkMergeApplied(_ context.Context, userID string, kind ListKind, batchID string, key domain.ItemKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.batches[batchKey{userID, kind, batchID, key}] = time.Now()
	return nil
}

// PruneMergeBatches drops batch markers applied before the cutoff and
// returns how many were removed.
func (s *MemoryStore) PruneMergeBatches(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pruned int64
	for k, appliedAt := range s.batches {
		if appliedAt.Before(before) {
			delete(s.batches, k)
			pruned++
		}
	}
	return pruned, nil
}

// Users returns every user id with stored records, sorted. Test helper.
func (s *MemoryStore) Users() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{})
	for lk := range s.lists {
		seen[lk.userID] = struct{}{}
	}
	users := make([]string, 0, len(seen))
	for u := range seen {
		users = append(users, u)
	}
	sort.Strings(users)
	return users
}
