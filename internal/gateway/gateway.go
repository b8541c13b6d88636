// Package gateway is the thin client for the authoritative server-side
// cart/wishlist API. It talks only in terms of the item identity tuple
// and quantities; guest-local synthetic ids never cross the wire.
package gateway

import (
	"context"

	"github.com/Subash-08/loke-store-sub001/internal/domain"
)

// MergeStatus is the per-record outcome of a bulk merge.
type MergeStatus string

const (
	MergeSynced MergeStatus = "synced"
	MergeFailed MergeStatus = "failed"
)

// MergeResult reports the outcome for one submitted guest record.
type MergeResult struct {
	Key    domain.ItemKey
	Status MergeStatus
	Reason string
}

// MergeOutcome is the full result of a bulk merge: one result per
// submitted record plus the authoritative item set after absorption.
type MergeOutcome struct {
	Results []MergeResult
	Items   []domain.Record
}

// API is the request/response surface of the authoritative store.
// Merge is the only bulk operation and is idempotent per item key within
// a batch id: replaying the same batch never doubles quantities. The
// server owns conflict resolution; the gateway only transmits candidate
// records faithfully.
type API interface {
	Fetch(ctx context.Context) ([]domain.Record, error)
	Add(ctx context.Context, record domain.Record) ([]domain.Record, error)
	UpdateQuantity(ctx context.Context, key domain.ItemKey, quantity int64) ([]domain.Record, error)
	Remove(ctx context.Context, key domain.ItemKey) ([]domain.Record, error)
	Clear(ctx context.Context) error
	Merge(ctx context.Context, batchID string, records []domain.Record) (*MergeOutcome, error)
}
