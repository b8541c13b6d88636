package domain

// PriceFields is the bag of candidate price fields a catalog or prebuilt
// payload may carry for one pricing level. All values are integer paise.
// A candidate <= 0 is treated as absent: upstream payloads use zero and
// null interchangeably for "no such price", and a zero-priced line is
// never the authoritative intent when a less specific candidate exists.
type PriceFields struct {
	// OfferPrice is the most specific discounted price, when a promotion
	// applies.
	OfferPrice int64

	// SellingPrice is the effective price the storefront currently sells
	// at (sometimes called the effective price).
	SellingPrice int64

	// BasePrice is the undiscounted list price.
	BasePrice int64
}

// resolve picks the first present candidate in precedence order.
func (f PriceFields) resolve() int64 {
	switch {
	case f.OfferPrice > 0:
		return f.OfferPrice
	case f.SellingPrice > 0:
		return f.SellingPrice
	case f.BasePrice > 0:
		return f.BasePrice
	default:
		return 0
	}
}

// PriceCandidates carries both pricing levels of a payload. Variant-level
// fields win over product-level fields unconditionally.
type PriceCandidates struct {
	Variant PriceFields
	Product PriceFields
}

// ResolveUnitPrice deterministically picks the authoritative unit price
// to snapshot into a record: most specific discounted price first,
// falling through progressively less specific fields, ending at a floor
// of zero. The result is what gets persisted at add-time; later catalog
// price changes never retroactively alter stored records.
func ResolveUnitPrice(c PriceCandidates) int64 {
	if p := c.Variant.resolve(); p > 0 {
		return p
	}
	return c.Product.resolve()
}
