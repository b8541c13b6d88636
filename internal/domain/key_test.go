package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Subash-08/loke-store-sub001/internal/domain"
)

func TestItemKey_Equality(t *testing.T) {
	tests := []struct {
		name  string
		a     domain.ItemKey
		b     domain.ItemKey
		equal bool
	}{
		{
			name:  "same tuple collides",
			a:     domain.NewItemKey(domain.KindCatalogItem, "P1", "V1"),
			b:     domain.NewItemKey(domain.KindCatalogItem, "P1", "V1"),
			equal: true,
		},
		{
			name:  "different variant does not collide",
			a:     domain.NewItemKey(domain.KindCatalogItem, "P1", "V1"),
			b:     domain.NewItemKey(domain.KindCatalogItem, "P1", "V2"),
			equal: false,
		},
		{
			name:  "variant absence is distinct from presence",
			a:     domain.NewItemKey(domain.KindCatalogItem, "P1", ""),
			b:     domain.NewItemKey(domain.KindCatalogItem, "P1", "V1"),
			equal: false,
		},
		{
			name:  "different kind does not collide",
			a:     domain.NewItemKey(domain.KindCatalogItem, "P1", ""),
			b:     domain.NewItemKey(domain.KindPrebuiltItem, "P1", ""),
			equal: false,
		},
		{
			name:  "different product does not collide",
			a:     domain.NewItemKey(domain.KindPrebuiltItem, "P1", ""),
			b:     domain.NewItemKey(domain.KindPrebuiltItem, "P2", ""),
			equal: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.equal, tt.a == tt.b)
			assert.Equal(t, tt.equal, tt.a.String() == tt.b.String())
		})
	}
}

func TestItemKey_String(t *testing.T) {
	withVariant := domain.NewItemKey(domain.KindCatalogItem, "P1", "V1")
	assert.Equal(t, "catalog-item|P1|V1", withVariant.String())

	withoutVariant := domain.NewItemKey(domain.KindCatalogItem, "P1", "")
	assert.Equal(t, "catalog-item|P1|-", withoutVariant.String())
}
