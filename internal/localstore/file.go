package localstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Subash-08/loke-store-sub001/internal/domain"
)

// FileStore implements Store over the local filesystem: one JSON document
// per namespace under a base directory. This is the durable guest-side
// store; the process is the only writer of its own directory, so a
// process-wide mutex is all the locking it needs (concurrent writers of
// the same directory are last-write-wins, a known limitation).
type FileStore struct {
	basePath string
	logger   *slog.Logger

	mu sync.Mutex
}

// document is the on-disk envelope. The version field lets a future
// format change migrate old payloads instead of discarding them.
type document struct {
	Version int             `json:"version"`
	Records []domain.Record `json:"records"`
}

const documentVersion = 1

// NewFileStore creates a file-backed local record store rooted at
// basePath (created if it does not exist).
func NewFileStore(basePath string, logger *slog.Logger) (*FileStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create local store directory: %w", err)
	}
	return &FileStore{basePath: basePath, logger: logger}, nil
}

// Load reads and revalidates a namespace. A missing, unreadable, or
// malformed file degrades to an empty list.
func (s *FileStore) Load(namespace string) []domain.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(namespace)
}

func (s *FileStore) loadLocked(namespace string) []domain.Record {
	raw, err := os.ReadFile(s.path(namespace))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("local store unreadable, degrading to empty",
				"namespace", namespace, "error", err)
		}
		return []domain.Record{}
	}

	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		s.logger.Warn("local store corrupt, degrading to empty",
			"namespace", namespace, "error", err)
		return []domain.Record{}
	}

	records := revalidate(namespace, doc.Records, time.Now())
	if len(records) != len(doc.Records) {
		s.logger.Warn("dropped unrepairable local records",
			"namespace", namespace, "dropped", len(doc.Records)-len(records))
	}
	return records
}

// Save replaces the namespace contents.
func (s *FileStore) Save(namespace string, records []domain.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(namespace, records)
}

func (s *FileStore) saveLocked(namespace string, records []domain.Record) error {
	doc := document{Version: documentVersion, Records: records}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode %s records: %w", namespace, err)
	}
	return s.writeFile(namespace, raw)
}

// Upsert inserts or replaces the record matching its item key.
func (s *FileStore) Upsert(namespace string, record domain.Record) error {
	if err := checkUpsert(namespace, record); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.loadLocked(namespace)
	replaced := false
	for i, existing := range records {
		if existing.Key() == record.Key() {
			records[i] = record
			replaced = true
			break
		}
	}
	if !replaced {
		records = append(records, record)
	}
	return s.saveLocked(namespace, records)
}

// RemoveByKey deletes the record with the exact item key.
func (s *FileStore) RemoveByKey(namespace string, key domain.ItemKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.loadLocked(namespace)
	kept := records[:0]
	for _, r := range records {
		if r.Key() != key {
			kept = append(kept, r)
		}
	}
	if len(kept) == len(records) {
		return nil
	}
	return s.saveLocked(namespace, kept)
}

// Clear removes every record in the namespace.
func (s *FileStore) Clear(namespace string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path(namespace))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to clear %s: %w", namespace, err)
	}
	return nil
}

// Meta returns the sync markers, generating a correlation id on first use.
func (s *FileStore) Meta() Meta {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta := s.readMetaLocked()
	if meta.CorrelationID == "" {
		meta.CorrelationID = uuid.NewString()
		if err := s.writeMetaLocked(meta); err != nil {
			s.logger.Warn("failed to persist correlation id", "error", err)
		}
	}
	return meta
}

// SetMeta replaces the sync markers.
func (s *FileStore) SetMeta(meta Meta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeMetaLocked(meta)
}

func (s *FileStore) readMetaLocked() Meta {
	raw, err := os.ReadFile(s.path(metaNamespace))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("sync meta unreadable, resetting", "error", err)
		}
		return Meta{}
	}

	var meta Meta
	if err := json.Unmarshal(raw, &meta); err != nil {
		s.logger.Warn("sync meta corrupt, resetting", "error", err)
		return Meta{}
	}
	return meta
}

func (s *FileStore) writeMetaLocked(meta Meta) error {
	raw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to encode sync meta: %w", err)
	}
	return s.writeFile(metaNamespace, raw)
}

// writeFile writes atomically via a temp file so a crash mid-write
// leaves the previous document intact.
func (s *FileStore) writeFile(namespace string, raw []byte) error {
	target := s.path(namespace)
	tmp := target + ".tmp"

	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", namespace, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("failed to replace %s: %w", namespace, err)
	}
	return nil
}

func (s *FileStore) path(namespace string) string {
	return filepath.Join(s.basePath, namespace+".json")
}
