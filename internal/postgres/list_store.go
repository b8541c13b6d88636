// Package postgres implements the service persistence surface on
// PostgreSQL via pgx. Rows are keyed by (user, list kind, item identity
// tuple); snapshots travel as jsonb.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Subash-08/loke-store-sub001/internal/domain"
	"github.com/Subash-08/loke-store-sub001/internal/service"
)

// ListStore implements service.Store on a pgx connection pool.
type ListStore struct {
	pool *pgxpool.Pool
}

// Compile-time check that ListStore implements service.Store.
var _ service.Store = (*ListStore)(nil)

// NewListStore creates a PostgreSQL-backed list store.
func NewListStore(pool *pgxpool.Pool) *ListStore {
	return &ListStore{pool: pool}
}

const listItemColumns = `item_id, item_kind, product_ref, variant_ref, quantity, unit_price, snapshot, added_at`

// Items returns the user's list ordered by when items were added.
func (s *ListStore) Items(ctx context.Context, userID string, kind service.ListKind) ([]domain.Record, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+listItemColumns+`
		 FROM list_items
		 WHERE user_id = $1 AND list_kind = $2
		 ORDER BY added_at, product_ref, variant_ref`,
		userID, string(kind))
	if err != nil {
		return nil, fmt.Errorf("failed to query list items: %w", err)
	}
	defer rows.Close()

	var items []domain.Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read list items: %w", err)
	}
	return items, nil
}

// Get returns the record with the given identity tuple.
func (s *ListStore) Get(ctx context.Context, userID string, kind service.ListKind, key domain.ItemKey) (domain.Record, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+listItemColumns+`
		 FROM list_items
		 WHERE user_id = $1 AND list_kind = $2
		   AND item_kind = $3 AND product_ref = $4 AND variant_ref = $5`,
		userID, string(kind), string(key.Kind), key.ProductRef, key.VariantRef)

	record, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Record{}, domain.ErrItemNotFound
		}
		return domain.Record{}, err
	}
	return record, nil
}

// Put inserts or replaces the record under its identity tuple.
func (s *ListStore) Put(ctx context.Context, userID string, kind service.ListKind, record domain.Record) error {
	snapshot, err := marshalSnapshot(record.Snapshot)
	if err != nil {
		return err
	}

	addedAt := record.AddedAt
	if addedAt.IsZero() {
		addedAt = time.Now()
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO list_items
		   (user_id, list_kind, item_id, item_kind, product_ref, variant_ref,
		    quantity, unit_price, snapshot, added_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
		 ON CONFLICT (user_id, list_kind, item_kind, product_ref, variant_ref)
		 DO UPDATE SET
		   quantity   = EXCLUDED.quantity,
		   unit_price = EXCLUDED.unit_price,
		   snapshot   = EXCLUDED.snapshot,
		   updated_at = now()`,
		userID, string(kind), record.ItemID, string(record.ItemKind),
		record.ProductRef, record.VariantRef,
		record.Quantity, record.UnitPrice, snapshot, addedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert list item: %w", err)
	}
	return nil
}

// Delete removes the record with the given identity tuple, if present.
func (s *ListStore) Delete(ctx context.Context, userID string, kind service.ListKind, key domain.ItemKey) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM list_items
		 WHERE user_id = $1 AND list_kind = $2
		   AND item_kind = $3 AND product_ref = $4 AND variant_ref = $5`,
		userID, string(kind), string(key.Kind), key.ProductRef, key.VariantRef)
	if err != nil {
		return fmt.Errorf("failed to delete list item: %w", err)
	}
	return nil
}

// Clear removes every record in the user's list.
func (s *ListStore) Clear(ctx context.Context, userID string, kind service.ListKind) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM list_items WHERE user_id = $1 AND list_kind = $2`,
		userID, string(kind))
	if err != nil {
		return fmt.Errorf("failed to clear list: %w", err)
	}
	return nil
}

// MergeApplied reports whether the batch already absorbed this key.
func (s *ListStore) MergeApplied(ctx context.Context, userID string, kind service.ListKind, batchID string, key domain.ItemKey) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM merge_batches
		   WHERE user_id = $1 AND list_kind = $2 AND batch_id = $3
		     AND item_kind = $4 AND product_ref = $5 AND variant_ref = $6)`,
		userID, string(kind), batchID,
		string(key.Kind), key.ProductRef, key.VariantRef).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check merge batch: %w", err)
	}
	return exists, nil
}

// MarkMergeApplied records the absorption of one key in a batch.
func (s *ListStore) MarkMergeApplied(ctx context.Context, userID string, kind service.ListKind, batchID string, key domain.ItemKey) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO merge_batches
		   (user_id, list_kind, batch_id, item_kind, product_ref, variant_ref)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT DO NOTHING`,
		userID, string(kind), batchID,
		string(key.Kind), key.ProductRef, key.VariantRef)
	if err != nil {
		return fmt.Errorf("failed to record merge batch: %w", err)
	}
	return nil
}

// PruneMergeBatches drops batch markers applied before the cutoff and
// returns how many rows were removed.
func (s *ListStore) PruneMergeBatches(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM merge_batches WHERE applied_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to prune merge batches: %w", err)
	}
	return tag.RowsAffected(), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (domain.Record, error) {
	var (
		record   domain.Record
		itemKind string
		snapshot []byte
	)
	err := row.Scan(&record.ItemID, &itemKind, &record.ProductRef, &record.VariantRef,
		&record.Quantity, &record.UnitPrice, &snapshot, &record.AddedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Record{}, err
		}
		return domain.Record{}, fmt.Errorf("failed to scan list item: %w", err)
	}

	record.ItemKind = domain.ItemKind(itemKind)
	if len(snapshot) > 0 {
		var snap domain.Snapshot
		if err := json.Unmarshal(snapshot, &snap); err == nil && snap.Name != "" {
			record.Snapshot = &snap
		}
	}
	return record, nil
}

func marshalSnapshot(snapshot *domain.Snapshot) ([]byte, error) {
	if snapshot == nil {
		return nil, nil
	}
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return raw, nil
}
