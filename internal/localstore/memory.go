package localstore

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Subash-08/loke-store-sub001/internal/domain"
)

// MemoryStore implements Store in process memory. It backs ephemeral
// sessions that opt out of durable guest state, and tests.
type MemoryStore struct {
	mu         sync.Mutex
	namespaces map[string][]domain.Record
	meta       Meta
}

// NewMemoryStore creates an empty in-memory local record store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{namespaces: make(map[string][]domain.Record)}
}

// Load returns the revalidated records in a namespace.
func (s *MemoryStore) Load(namespace string) []domain.Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := revalidate(namespace, s.namespaces[namespace], time.Now())
	out := make([]domain.Record, len(records))
	copy(out, records)
	return out
}

// Save replaces the namespace contents.
func (s *MemoryStore) Save(namespace string, records []domain.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := make([]domain.Record, len(records))
	copy(stored, records)
	s.namespaces[namespace] = stored
	return nil
}

// Upsert inserts or replaces the record matching its item key.
func (s *MemoryStore) Upsert(namespace string, record domain.Record) error {
	if err := checkUpsert(namespace, record); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.namespaces[namespace]
	for i, existing := range records {
		if existing.Key() == record.Key() {
			records[i] = record
			return nil
		}
	}
	s.namespaces[namespace] = append(records, record)
	return nil
}

// RemoveByKey deletes the record with the exact item key.
func (s *MemoryStore) RemoveByKey(namespace string, key domain.ItemKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.namespaces[namespace]
	kept := records[:0]
	for _, r := range records {
		if r.Key() != key {
			kept = append(kept, r)
		}
	}
	s.namespaces[namespace] = kept
	return nil
}

// Clear removes every record in the namespace.
func (s *MemoryStore) Clear(namespace string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.namespaces, namespace)
	return nil
}

// Meta returns the sync markers, generating a correlation id on first use.
func (s *MemoryStore) Meta() Meta {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.meta.CorrelationID == "" {
		s.meta.CorrelationID = uuid.NewString()
	}
	return s.meta
}

// SetMeta replaces the sync markers.
func (s *MemoryStore) SetMeta(meta Meta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.meta = meta
	return nil
}
