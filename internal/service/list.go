// Package service holds the server-side business logic for the
// per-account cart and wishlist. Both lists share one item model and one
// persistence surface; the list kind decides whether quantities are
// tracked (cart) or presence is binary (wishlist).
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Subash-08/loke-store-sub001/internal/domain"
)

// ListKind selects cart or wishlist semantics.
type ListKind string

const (
	KindCart     ListKind = "cart"
	KindWishlist ListKind = "wishlist"
)

// Quantified reports whether the list tracks per-item quantities.
func (k ListKind) Quantified() bool { return k == KindCart }

// MergeResult is the per-record outcome of a bulk merge.
type MergeResult struct {
	Key    domain.ItemKey
	Status string // "synced" or "failed"
	Reason string
}

// MergeOutcome is the full bulk-merge response: one result per submitted
// record plus the list contents after absorption.
type MergeOutcome struct {
	Results []MergeResult
	Items   []domain.Record
}

// Store is the persistence surface for one account's lists. Implementations
// key every row by (user, list kind, item identity tuple).
type Store interface {
	Items(ctx context.Context, userID string, kind ListKind) ([]domain.Record, error)
	Get(ctx context.Context, userID string, kind ListKind, key domain.ItemKey) (domain.Record, error)
	Put(ctx context.Context, userID string, kind ListKind, record domain.Record) error
	Delete(ctx context.Context, userID string, kind ListKind, key domain.ItemKey) error
	Clear(ctx context.Context, userID string, kind ListKind) error

	// MergeApplied reports whether a batch already absorbed this key;
	// MarkMergeApplied records the absorption. Together they make batch
	// replays idempotent per item key.
	MergeApplied(ctx context.Context, userID string, kind ListKind, batchID string, key domain.ItemKey) (bool, error)
	MarkMergeApplied(ctx context.Context, userID string, kind ListKind, batchID string, key domain.ItemKey) error
}

// ListService provides the operations one list (cart or wishlist)
// exposes over HTTP.
type ListService interface {
	Items(ctx context.Context, userID string) ([]domain.Record, error)
	AddItem(ctx context.Context, userID string, record domain.Record) ([]domain.Record, error)
	UpdateQuantity(ctx context.Context, userID string, key domain.ItemKey, quantity int64) ([]domain.Record, error)
	RemoveItem(ctx context.Context, userID string, key domain.ItemKey) ([]domain.Record, error)
	Clear(ctx context.Context, userID string) error
	Merge(ctx context.Context, userID string, batchID string, records []domain.Record) (*MergeOutcome, error)
}

type listService struct {
	store  Store
	kind   ListKind
	logger *slog.Logger
}

// NewListService creates a ListService for one list kind.
func NewListService(store Store, kind ListKind, logger *slog.Logger) ListService {
	if logger == nil {
		logger = slog.Default()
	}
	return &listService{store: store, kind: kind, logger: logger}
}

// Items returns the current list contents.
func (s *listService) Items(ctx context.Context, userID string) ([]domain.Record, error) {
	items, err := s.store.Items(ctx, userID, s.kind)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s items: %w", s.kind, err)
	}
	return items, nil
}

// AddItem inserts a record, or merges it into the existing row with the
// same identity tuple. Cart adds sum quantities; a wishlist re-add keeps
// the original row untouched.
func (s *listService) AddItem(ctx context.Context, userID string, record domain.Record) ([]domain.Record, error) {
	const op = "service.add_item"

	if err := record.Validate(s.kind.Quantified()); err != nil {
		return nil, err
	}
	if record.UnitPrice < 0 {
		return nil, domain.Errorf(domain.EINVALID, op, "unit price must not be negative")
	}

	existing, err := s.store.Get(ctx, userID, s.kind, record.Key())
	switch {
	case err == nil:
		if s.kind.Quantified() {
			existing.Quantity += record.Quantity
			existing.UnitPrice = record.UnitPrice
			if record.Snapshot != nil {
				existing.Snapshot = record.Snapshot
			}
			if err := s.store.Put(ctx, userID, s.kind, existing); err != nil {
				return nil, fmt.Errorf("failed to update %s item: %w", s.kind, err)
			}
		}
	case domain.IsCode(err, domain.ENOTFOUND):
		// The server always mints its own row id; guest-local ids never
		// survive absorption.
		record.ItemID = domain.NewServerItemID()
		if err := s.store.Put(ctx, userID, s.kind, record); err != nil {
			return nil, fmt.Errorf("failed to insert %s item: %w", s.kind, err)
		}
	default:
		return nil, fmt.Errorf("failed to look up %s item: %w", s.kind, err)
	}

	return s.Items(ctx, userID)
}

// UpdateQuantity sets the quantity for an existing cart item; zero
// removes it. Wishlists have no quantities to update.
func (s *listService) UpdateQuantity(ctx context.Context, userID string, key domain.ItemKey, quantity int64) ([]domain.Record, error) {
	const op = "service.update_quantity"

	if !s.kind.Quantified() {
		return nil, domain.Errorf(domain.EINVALID, op, "wishlist items have no quantity")
	}
	if quantity < 0 {
		return nil, domain.ErrInvalidQuantity
	}
	if quantity == 0 {
		return s.RemoveItem(ctx, userID, key)
	}

	existing, err := s.store.Get(ctx, userID, s.kind, key)
	if err != nil {
		if domain.IsCode(err, domain.ENOTFOUND) {
			return nil, domain.ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to look up cart item: %w", err)
	}

	existing.Quantity = quantity
	if err := s.store.Put(ctx, userID, s.kind, existing); err != nil {
		return nil, fmt.Errorf("failed to update cart item: %w", err)
	}
	return s.Items(ctx, userID)
}

// RemoveItem deletes the item with the given identity tuple. Removing an
// absent item is not an error.
func (s *listService) RemoveItem(ctx context.Context, userID string, key domain.ItemKey) ([]domain.Record, error) {
	if err := s.store.Delete(ctx, userID, s.kind, key); err != nil {
		return nil, fmt.Errorf("failed to remove %s item: %w", s.kind, err)
	}
	return s.Items(ctx, userID)
}

// Clear empties the list.
func (s *listService) Clear(ctx context.Context, userID string) error {
	if err := s.store.Clear(ctx, userID, s.kind); err != nil {
		return fmt.Errorf("failed to clear %s: %w", s.kind, err)
	}
	return nil
}

// Merge absorbs a batch of guest records. Each record succeeds or fails
// on its own; one bad record never blocks the rest. A replay of the same
// batch id skips keys it already absorbed, so retries cannot double
// quantities.
func (s *listService) Merge(ctx context.Context, userID string, batchID string, records []domain.Record) (*MergeOutcome, error) {
	const op = "service.merge"

	if batchID == "" {
		return nil, domain.Errorf(domain.EINVALID, op, "merge batch id is required")
	}

	outcome := &MergeOutcome{Results: make([]MergeResult, 0, len(records))}
	for _, record := range records {
		key := record.Key()
		result := MergeResult{Key: key, Status: "synced"}

		if err := s.mergeOne(ctx, userID, batchID, record); err != nil {
			result.Status = "failed"
			result.Reason = domain.ErrorMessage(err)
			s.logger.Warn("merge record failed",
				"user_id", userID, "kind", string(s.kind), "key", key.String(), "error", err)
		}
		outcome.Results = append(outcome.Results, result)
	}

	items, err := s.Items(ctx, userID)
	if err != nil {
		return nil, err
	}
	outcome.Items = items
	return outcome, nil
}

func (s *listService) mergeOne(ctx context.Context, userID, batchID string, record domain.Record) error {
	if err := record.Validate(s.kind.Quantified()); err != nil {
		return err
	}

	key := record.Key()
	applied, err := s.store.MergeApplied(ctx, userID, s.kind, batchID, key)
	if err != nil {
		return fmt.Errorf("failed to check merge batch: %w", err)
	}
	if applied {
		// Replay of an already-absorbed record: report success without
		// touching quantities again.
		return nil
	}

	existing, err := s.store.Get(ctx, userID, s.kind, key)
	switch {
	case err == nil:
		if s.kind.Quantified() {
			existing.Quantity += record.Quantity
			if err := s.store.Put(ctx, userID, s.kind, existing); err != nil {
				return fmt.Errorf("failed to update merged item: %w", err)
			}
		}
	case domain.IsCode(err, domain.ENOTFOUND):
		record.ItemID = domain.NewServerItemID()
		if err := s.store.Put(ctx, userID, s.kind, record); err != nil {
			return fmt.Errorf("failed to insert merged item: %w", err)
		}
	default:
		return fmt.Errorf("failed to look up merged item: %w", err)
	}

	if err := s.store.MarkMergeApplied(ctx, userID, s.kind, batchID, key); err != nil {
		return fmt.Errorf("failed to record merge batch: %w", err)
	}
	return nil
}
