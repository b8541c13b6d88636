package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Subash-08/loke-store-sub001/internal/domain"
	"github.com/Subash-08/loke-store-sub001/internal/service"
)

func cartRecord(product, variant string, quantity int64) domain.Record {
	return domain.Record{
		ItemKind:   domain.KindCatalogItem,
		ProductRef: product,
		VariantRef: variant,
		Quantity:   quantity,
		UnitPrice:  4500,
		AddedAt:    time.Now(),
	}
}

func TestListService_AddSumsQuantitiesPerKey(t *testing.T) {
	svc := service.NewListService(service.NewMemoryStore(), service.KindCart, nil)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "user-1", cartRecord("prod-a", "", 1))
	require.NoError(t, err)
	items, err := svc.AddItem(ctx, "user-1", cartRecord("prod-a", "", 3))
	require.NoError(t, err)

	require.Len(t, items, 1)
	assert.Equal(t, int64(4), items[0].Quantity)

	// A different variant of the same product is a distinct line.
	items, err = svc.AddItem(ctx, "user-1", cartRecord("prod-a", "var-1", 2))
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestListService_AddAssignsServerItemID(t *testing.T) {
	svc := service.NewListService(service.NewMemoryStore(), service.KindCart, nil)

	record := cartRecord("prod-a", "", 1)
	record.ItemID = "local-guest-id"
	items, err := svc.AddItem(context.Background(), "user-1", record)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.NotEqual(t, "local-guest-id", items[0].ItemID)
	assert.NotEmpty(t, items[0].ItemID)
}

func TestListService_AddRejectsInvalidRecord(t *testing.T) {
	svc := service.NewListService(service.NewMemoryStore(), service.KindCart, nil)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*domain.Record)
	}{
		{"unknown item kind", func(r *domain.Record) { r.ItemKind = "bundle" }},
		{"missing product ref", func(r *domain.Record) { r.ProductRef = "" }},
		{"zero quantity", func(r *domain.Record) { r.Quantity = 0 }},
		{"negative price", func(r *domain.Record) { r.UnitPrice = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := cartRecord("prod-a", "", 1)
			tt.mutate(&record)
			_, err := svc.AddItem(ctx, "user-1", record)
			require.Error(t, err)
			assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
		})
	}
}

func TestListService_WishlistReAddIsNoOp(t *testing.T) {
	svc := service.NewListService(service.NewMemoryStore(), service.KindWishlist, nil)
	ctx := context.Background()

	record := cartRecord("prod-a", "", 0)
	items, err := svc.AddItem(ctx, "user-1", record)
	require.NoError(t, err)
	require.Len(t, items, 1)
	firstID := items[0].ItemID

	items, err = svc.AddItem(ctx, "user-1", record)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, firstID, items[0].ItemID, "re-adding the same item keeps the original row")
}

func TestListService_UpdateQuantity(t *testing.T) {
	ctx := context.Background()

	t.Run("zero removes the item", func(t *testing.T) {
		svc := service.NewListService(service.NewMemoryStore(), service.KindCart, nil)
		_, err := svc.AddItem(ctx, "user-1", cartRecord("prod-a", "", 2))
		require.NoError(t, err)

		items, err := svc.UpdateQuantity(ctx, "user-1", domain.NewItemKey(domain.KindCatalogItem, "prod-a", ""), 0)
		require.NoError(t, err)
		assert.Empty(t, items)
	})

	t.Run("missing item is not found", func(t *testing.T) {
		svc := service.NewListService(service.NewMemoryStore(), service.KindCart, nil)
		_, err := svc.UpdateQuantity(ctx, "user-1", domain.NewItemKey(domain.KindCatalogItem, "prod-x", ""), 2)
		require.Error(t, err)
		assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
	})

	t.Run("wishlist has no quantities", func(t *testing.T) {
		svc := service.NewListService(service.NewMemoryStore(), service.KindWishlist, nil)
		_, err := svc.UpdateQuantity(ctx, "user-1", domain.NewItemKey(domain.KindCatalogItem, "prod-a", ""), 2)
		require.Error(t, err)
		assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
	})
}

func TestListService_RemoveAbsentItemSucceeds(t *testing.T) {
	svc := service.NewListService(service.NewMemoryStore(), service.KindCart, nil)

	items, err := svc.RemoveItem(context.Background(), "user-1", domain.NewItemKey(domain.KindCatalogItem, "prod-x", ""))
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestListService_MergeSumsIntoExistingRows(t *testing.T) {
	svc := service.NewListService(service.NewMemoryStore(), service.KindCart, nil)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "user-1", cartRecord("prod-a", "", 1))
	require.NoError(t, err)

	outcome, err := svc.Merge(ctx, "user-1", "batch-1", []domain.Record{
		cartRecord("prod-a", "", 3),
		cartRecord("prod-b", "", 2),
	})
	require.NoError(t, err)

	require.Len(t, outcome.Results, 2)
	for _, res := range outcome.Results {
		assert.Equal(t, "synced", res.Status)
	}

	quantities := map[string]int64{}
	for _, item := range outcome.Items {
		quantities[item.ProductRef] = item.Quantity
	}
	assert.Equal(t, int64(4), quantities["prod-a"])
	assert.Equal(t, int64(2), quantities["prod-b"])
}

func TestListService_MergeReplayIsIdempotent(t *testing.T) {
	svc := service.NewListService(service.NewMemoryStore(), service.KindCart, nil)
	ctx := context.Background()

	records := []domain.Record{cartRecord("prod-a", "", 3)}
	first, err := svc.Merge(ctx, "user-1", "batch-1", records)
	require.NoError(t, err)
	require.Len(t, first.Items, 1)
	assert.Equal(t, int64(3), first.Items[0].Quantity)

	// The retry carries the same batch id; quantities must not double.
	second, err := svc.Merge(ctx, "user-1", "batch-1", records)
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	assert.Equal(t, int64(3), second.Items[0].Quantity)
	assert.Equal(t, "synced", second.Results[0].Status)

	// A fresh batch id is a genuine new merge.
	third, err := svc.Merge(ctx, "user-1", "batch-2", records)
	require.NoError(t, err)
	assert.Equal(t, int64(6), third.Items[0].Quantity)
}

func TestListService_MergeIsolatesBadRecords(t *testing.T) {
	svc := service.NewListService(service.NewMemoryStore(), service.KindCart, nil)

	bad := cartRecord("", "", 1)
	good := cartRecord("prod-a", "", 1)
	outcome, err := svc.Merge(context.Background(), "user-1", "batch-1", []domain.Record{bad, good})
	require.NoError(t, err)

	require.Len(t, outcome.Results, 2)
	assert.Equal(t, "failed", outcome.Results[0].Status)
	assert.NotEmpty(t, outcome.Results[0].Reason)
	assert.Equal(t, "synced", outcome.Results[1].Status)
	require.Len(t, outcome.Items, 1)
}

func TestListService_MergeRequiresBatchID(t *testing.T) {
	svc := service.NewListService(service.NewMemoryStore(), service.KindCart, nil)

	_, err := svc.Merge(context.Background(), "user-1", "", []domain.Record{cartRecord("prod-a", "", 1)})
	require.Error(t, err)
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
}

func TestListService_UsersAreIsolated(t *testing.T) {
	store := service.NewMemoryStore()
	svc := service.NewListService(store, service.KindCart, nil)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "user-1", cartRecord("prod-a", "", 1))
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, "user-2", cartRecord("prod-b", "", 2))
	require.NoError(t, err)

	items, err := svc.Items(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "prod-a", items[0].ProductRef)
}
