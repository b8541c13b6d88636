package domain

import "strings"

// ItemKey is the composite identity of a cart/wishlist entry: two records
// refer to the same logical item iff their kind, product reference, and
// variant reference are all equal. Variant absence is a distinct value
// from any variant presence.
type ItemKey struct {
	Kind       ItemKind
	ProductRef string
	VariantRef string
}

// NewItemKey builds the dedup key for an entry. variantRef may be empty.
func NewItemKey(kind ItemKind, productRef, variantRef string) ItemKey {
	return ItemKey{Kind: kind, ProductRef: productRef, VariantRef: variantRef}
}

// String renders a stable textual form usable as a map key or log field.
// The "-" placeholder keeps variant absence distinct from any real
// variant reference ("" never collides with a present variant).
func (k ItemKey) String() string {
	variant := k.VariantRef
	if variant == "" {
		variant = "-"
	}
	var b strings.Builder
	b.Grow(len(k.Kind) + len(k.ProductRef) + len(variant) + 2)
	b.WriteString(string(k.Kind))
	b.WriteByte('|')
	b.WriteString(k.ProductRef)
	b.WriteByte('|')
	b.WriteString(variant)
	return b.String()
}
