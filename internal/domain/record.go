package domain

import (
	"time"

	"github.com/google/uuid"
)

// ItemKind discriminates the two purchasable item families. Snapshots and
// price candidates are interpreted against this tag; unknown kinds are
// rejected at the storage boundary.
type ItemKind string

const (
	KindCatalogItem  ItemKind = "catalog-item"
	KindPrebuiltItem ItemKind = "prebuilt-item"
)

// Valid reports whether k is one of the known item kinds.
func (k ItemKind) Valid() bool {
	return k == KindCatalogItem || k == KindPrebuiltItem
}

// SessionMode reflects whether a valid auth identity is present. It is
// derived, never persisted; every mutation branches on it.
type SessionMode string

const (
	ModeGuest         SessionMode = "guest"
	ModeAuthenticated SessionMode = "authenticated"
)

// Snapshot is the denormalized display data embedded in a record so
// guest-mode UI can render without a catalog round trip. The field set is
// closed: unknown payload fields are dropped at the storage boundary.
type Snapshot struct {
	Name      string `json:"name"`
	Thumbnail string `json:"thumbnail,omitempty"`
	Stock     int64  `json:"stock"`
	Brand     string `json:"brand,omitempty"`
}

// Record is one cart or wishlist line. Cart records carry a quantity >= 1
// and a unit price snapshotted at add-time; wishlist records are presence
// only and keep Quantity at zero (omitted on the wire).
//
// ItemID is locally generated for guest records and server-assigned once
// the record has been absorbed into the authoritative store. It never
// participates in identity: dedup and wire identity always use the
// (ItemKind, ProductRef, VariantRef) tuple.
type Record struct {
	ItemID     string    `json:"itemId"`
	ItemKind   ItemKind  `json:"itemKind"`
	ProductRef string    `json:"productRef"`
	VariantRef string    `json:"variantRef,omitempty"`
	Quantity   int64     `json:"quantity,omitempty"`
	UnitPrice  int64     `json:"unitPrice,omitempty"`
	AddedAt    time.Time `json:"addedAt"`
	Snapshot   *Snapshot `json:"snapshot,omitempty"`
}

// Key returns the composite dedup identity for the record.
func (r Record) Key() ItemKey {
	return NewItemKey(r.ItemKind, r.ProductRef, r.VariantRef)
}

// Validate checks a record against the namespace invariants.
// withQuantity is true for cart records (quantity >= 1 required) and
// false for wishlist records (presence only).
func (r Record) Validate(withQuantity bool) error {
	const op = "record.validate"

	if !r.ItemKind.Valid() {
		return Errorf(EINVALID, op, "invalid item kind: %q", r.ItemKind)
	}
	if r.ProductRef == "" {
		return Errorf(EINVALID, op, "product reference is required")
	}
	if withQuantity && r.Quantity < 1 {
		return ErrInvalidQuantity
	}
	if r.UnitPrice < 0 {
		return Errorf(EINVALID, op, "unit price must not be negative")
	}
	return nil
}

// Normalize repairs a record loaded from untrusted storage so a corrupt
// local payload never crashes the caller. Missing ids are regenerated,
// quantities clamped to >= 1 for cart records, prices clamped to >= 0,
// and zeroed timestamps backfilled. It returns false when the record is
// beyond repair (bad kind or missing product ref) and must be dropped.
func (r *Record) Normalize(withQuantity bool, now time.Time) bool {
	if !r.ItemKind.Valid() || r.ProductRef == "" {
		return false
	}
	if r.ItemID == "" {
		r.ItemID = NewItemID()
	}
	if withQuantity && r.Quantity < 1 {
		r.Quantity = 1
	}
	if !withQuantity {
		r.Quantity = 0
	}
	if r.UnitPrice < 0 {
		r.UnitPrice = 0
	}
	if r.AddedAt.IsZero() {
		r.AddedAt = now
	}
	if r.Snapshot != nil && r.Snapshot.Name == "" {
		// A snapshot without a display name is useless to the UI; drop it
		// rather than propagate a half-formed payload.
		r.Snapshot = nil
	}
	return true
}

// NewItemID generates a guest-local record identifier.
func NewItemID() string {
	return "local-" + uuid.NewString()
}

// NewServerItemID generates an authoritative record identifier. The
// prefix distinguishes server rows from guest-local synthetic ids.
func NewServerItemID() string {
	return "itm-" + uuid.NewString()
}
