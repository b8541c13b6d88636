// Package localstore is the device-local persistence layer for guest cart
// and wishlist records. It is pure data access: records are stored as
// versioned JSON documents under distinct namespace keys and revalidated
// on every load. A corrupt or missing cache degrades to empty rather
// than failing the caller.
package localstore

import (
	"time"

	"github.com/Subash-08/loke-store-sub001/internal/domain"
)

// Storage namespace keys. Each namespace holds a JSON array of records
// except the meta namespace, which holds the sync markers.
const (
	NamespaceCart     = "guest_cart"
	NamespaceWishlist = "guest_wishlist"

	metaNamespace = "sync_meta"
)

// Meta holds the cross-namespace sync markers: which authenticated
// identity the store was last reconciled against (so one user's guest
// residue is never replayed into another account on a shared device),
// the session correlation id, and the merge batch id pending retry.
type Meta struct {
	LastSyncedIdentity string `json:"lastSyncedIdentity,omitempty"`
	CorrelationID      string `json:"correlationId,omitempty"`
	PendingBatchID     string `json:"pendingBatchId,omitempty"`
}

// Store is the contract for guest-local record persistence.
//
// Load never fails: a missing, corrupt, or partially-readable namespace
// degrades to an empty list (with the damage logged by the
// implementation). All other operations return storage errors to the
// caller, which treats them as recoverable.
type Store interface {
	// Load returns the revalidated records in a namespace.
	Load(namespace string) []domain.Record

	// Save replaces the namespace contents with the given records.
	Save(namespace string, records []domain.Record) error

	// Upsert inserts or replaces the record matching its item key.
	// Cart records with quantity < 1 are rejected, never persisted.
	Upsert(namespace string, record domain.Record) error

	// RemoveByKey deletes the record with the exact item key.
	// Removing an absent key is a no-op.
	RemoveByKey(namespace string, key domain.ItemKey) error

	// Clear removes every record in the namespace.
	Clear(namespace string) error

	// Meta returns the current sync markers.
	Meta() Meta

	// SetMeta replaces the sync markers.
	SetMeta(meta Meta) error
}

// withQuantity reports whether records in the namespace carry a quantity.
func withQuantity(namespace string) bool {
	return namespace == NamespaceCart
}

// revalidate repairs every loadable record and drops the rest.
// Duplicate item keys collapse to the last occurrence so a damaged
// payload cannot violate the dedup invariant downstream.
func revalidate(namespace string, records []domain.Record, now time.Time) []domain.Record {
	quantity := withQuantity(namespace)
	out := make([]domain.Record, 0, len(records))
	seen := make(map[domain.ItemKey]int, len(records))

	for _, r := range records {
		if !r.Normalize(quantity, now) {
			continue
		}
		if i, ok := seen[r.Key()]; ok {
			out[i] = r
			continue
		}
		seen[r.Key()] = len(out)
		out = append(out, r)
	}
	return out
}

// checkUpsert validates a record before it is persisted.
func checkUpsert(namespace string, record domain.Record) error {
	return record.Validate(withQuantity(namespace))
}
