package syncer_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Subash-08/loke-store-sub001/internal/domain"
	"github.com/Subash-08/loke-store-sub001/internal/gateway"
	"github.com/Subash-08/loke-store-sub001/internal/localstore"
	"github.com/Subash-08/loke-store-sub001/internal/session"
	"github.com/Subash-08/loke-store-sub001/internal/syncer"
)

type mockAPI struct {
	mergeFunc func(ctx context.Context, batchID string, records []domain.Record) (*gateway.MergeOutcome, error)
}

func (m *mockAPI) Fetch(context.Context) ([]domain.Record, error) { return nil, nil }
func (m *mockAPI) Add(context.Context, domain.Record) ([]domain.Record, error) {
	return nil, nil
}
func (m *mockAPI) UpdateQuantity(context.Context, domain.ItemKey, int64) ([]domain.Record, error) {
	return nil, nil
}
func (m *mockAPI) Remove(context.Context, domain.ItemKey) ([]domain.Record, error) {
	return nil, nil
}
func (m *mockAPI) Clear(context.Context) error { return nil }

func (m *mockAPI) Merge(ctx context.Context, batchID string, records []domain.Record) (*gateway.MergeOutcome, error) {
	if m.mergeFunc != nil {
		return m.mergeFunc(ctx, batchID, records)
	}
	return allSynced(records), nil
}

func allSynced(records []domain.Record) *gateway.MergeOutcome {
	outcome := &gateway.MergeOutcome{Items: records}
	for _, r := range records {
		outcome.Results = append(outcome.Results, gateway.MergeResult{Key: r.Key(), Status: gateway.MergeSynced})
	}
	return outcome
}

type countingRefresher struct {
	mu    sync.Mutex
	calls int
}

func (c *countingRefresher) Refresh(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return nil
}

func (c *countingRefresher) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func guestRecord(product, variant string, quantity int64) domain.Record {
	return domain.Record{
		ItemID:     domain.NewItemID(),
		ItemKind:   domain.KindCatalogItem,
		ProductRef: product,
		VariantRef: variant,
		Quantity:   quantity,
		UnitPrice:  2500,
		AddedAt:    time.Now(),
	}
}

func newOrchestrator(local localstore.Store, cartAPI, wishAPI gateway.API) (*syncer.Orchestrator, *countingRefresher, *countingRefresher) {
	cart := &countingRefresher{}
	wish := &countingRefresher{}
	o := syncer.New(syncer.Config{
		Local:       local,
		CartAPI:     cartAPI,
		WishlistAPI: wishAPI,
		Cart:        cart,
		Wishlist:    wish,
	})
	return o, cart, wish
}

func TestOrchestrator_PartialFailureRetainsFailedRecords(t *testing.T) {
	local := localstore.NewMemoryStore()
	a := guestRecord("prod-a", "", 1)
	b := guestRecord("prod-b", "var-1", 2)
	c := guestRecord("prod-c", "", 3)
	require.NoError(t, local.Save(localstore.NamespaceCart, []domain.Record{a, b, c}))

	cartAPI := &mockAPI{
		mergeFunc: func(_ context.Context, _ string, records []domain.Record) (*gateway.MergeOutcome, error) {
			outcome := &gateway.MergeOutcome{}
			for _, r := range records {
				res := gateway.MergeResult{Key: r.Key(), Status: gateway.MergeSynced}
				if r.ProductRef == "prod-b" {
					res.Status = gateway.MergeFailed
					res.Reason = "out of stock"
				}
				outcome.Results = append(outcome.Results, res)
			}
			return outcome, nil
		},
	}

	o, cart, _ := newOrchestrator(local, cartAPI, &mockAPI{})
	summary, err := o.OnAuthenticated(context.Background(), session.Identity{UserID: "user-1", Token: "t"})
	require.NoError(t, err)
	require.NotNil(t, summary)

	assert.Equal(t, 2, summary.Synced)
	assert.Equal(t, 1, summary.Failed)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, "out of stock", summary.Failures[0].Reason)
	assert.Equal(t, "cart", summary.Failures[0].Store)

	// Only the failed record survives locally, byte for byte.
	remaining := local.Load(localstore.NamespaceCart)
	require.Len(t, remaining, 1)
	assert.Equal(t, b.Key(), remaining[0].Key())
	assert.Equal(t, int64(2), remaining[0].Quantity)

	meta := local.Meta()
	assert.Equal(t, "user-1", meta.LastSyncedIdentity)
	assert.NotEmpty(t, meta.PendingBatchID)
	assert.Equal(t, 1, cart.count())
}

func TestOrchestrator_RetryDrainsRetainedRecordsWithSameBatch(t *testing.T) {
	local := localstore.NewMemoryStore()
	require.NoError(t, local.Save(localstore.NamespaceCart, []domain.Record{guestRecord("prod-a", "", 1)}))

	var batches []string
	fail := true
	cartAPI := &mockAPI{
		mergeFunc: func(_ context.Context, batchID string, records []domain.Record) (*gateway.MergeOutcome, error) {
			batches = append(batches, batchID)
			if fail {
				outcome := &gateway.MergeOutcome{}
				for _, r := range records {
					outcome.Results = append(outcome.Results, gateway.MergeResult{
						Key: r.Key(), Status: gateway.MergeFailed, Reason: "unavailable",
					})
				}
				return outcome, nil
			}
			return allSynced(records), nil
		},
	}

	o, _, _ := newOrchestrator(local, cartAPI, &mockAPI{})
	identity := session.Identity{UserID: "user-1", Token: "t"}

	first, err := o.OnAuthenticated(context.Background(), identity)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Failed)
	require.Len(t, local.Load(localstore.NamespaceCart), 1)

	fail = false
	second, err := o.OnAuthenticated(context.Background(), identity)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Synced)
	assert.Zero(t, second.Failed)

	// Replaying the retained set reuses the pending batch id so the
	// server can deduplicate.
	require.Len(t, batches, 2)
	assert.Equal(t, batches[0], batches[1])

	assert.Empty(t, local.Load(localstore.NamespaceCart))
	assert.Empty(t, local.Meta().PendingBatchID)
}

func TestOrchestrator_TransportFailureRetainsEverything(t *testing.T) {
	local := localstore.NewMemoryStore()
	require.NoError(t, local.Save(localstore.NamespaceCart, []domain.Record{
		guestRecord("prod-a", "", 1),
		guestRecord("prod-b", "", 2),
	}))

	cartAPI := &mockAPI{
		mergeFunc: func(context.Context, string, []domain.Record) (*gateway.MergeOutcome, error) {
			return nil, domain.Errorf(domain.EUNAVAILABLE, "test", "connection refused")
		},
	}

	o, _, _ := newOrchestrator(local, cartAPI, &mockAPI{})
	summary, err := o.OnAuthenticated(context.Background(), session.Identity{UserID: "user-1"})
	require.NoError(t, err)

	assert.Zero(t, summary.Synced)
	assert.Equal(t, 2, summary.Failed)
	assert.Len(t, local.Load(localstore.NamespaceCart), 2)
	// Nothing synced, so the identity marker stays unset for retry.
	assert.Empty(t, local.Meta().LastSyncedIdentity)
}

func TestOrchestrator_ConcurrentDetectionIsDropped(t *testing.T) {
	local := localstore.NewMemoryStore()
	require.NoError(t, local.Save(localstore.NamespaceCart, []domain.Record{guestRecord("prod-a", "", 1)}))

	entered := make(chan struct{})
	release := make(chan struct{})
	var mergeCalls int
	var mu sync.Mutex
	cartAPI := &mockAPI{
		mergeFunc: func(_ context.Context, _ string, records []domain.Record) (*gateway.MergeOutcome, error) {
			mu.Lock()
			mergeCalls++
			mu.Unlock()
			close(entered)
			<-release
			return allSynced(records), nil
		},
	}

	o, _, _ := newOrchestrator(local, cartAPI, &mockAPI{})
	identity := session.Identity{UserID: "user-1"}

	done := make(chan *syncer.Summary, 1)
	go func() {
		summary, _ := o.OnAuthenticated(context.Background(), identity)
		done <- summary
	}()

	<-entered
	dropped, err := o.OnAuthenticated(context.Background(), identity)
	require.NoError(t, err)
	assert.Nil(t, dropped, "second detection while in flight is dropped, not queued")

	close(release)
	first := <-done
	require.NotNil(t, first)
	assert.Equal(t, 1, first.Synced)

	mu.Lock()
	assert.Equal(t, 1, mergeCalls)
	mu.Unlock()
}

func TestOrchestrator_DifferentIdentityDiscardsGuestRecords(t *testing.T) {
	local := localstore.NewMemoryStore()
	require.NoError(t, local.Save(localstore.NamespaceCart, []domain.Record{guestRecord("prod-a", "", 2)}))
	require.NoError(t, local.Save(localstore.NamespaceWishlist, []domain.Record{guestRecord("prod-b", "", 0)}))

	meta := local.Meta()
	meta.LastSyncedIdentity = "user-1"
	require.NoError(t, local.SetMeta(meta))

	var merged bool
	api := &mockAPI{
		mergeFunc: func(_ context.Context, _ string, records []domain.Record) (*gateway.MergeOutcome, error) {
			merged = true
			return allSynced(records), nil
		},
	}

	o, cart, wish := newOrchestrator(local, api, api)
	summary, err := o.OnAuthenticated(context.Background(), session.Identity{UserID: "user-2"})
	require.NoError(t, err)

	assert.False(t, merged, "another user's residue must never be merged")
	assert.Equal(t, 2, summary.Discarded)
	assert.Empty(t, local.Load(localstore.NamespaceCart))
	assert.Empty(t, local.Load(localstore.NamespaceWishlist))
	assert.Equal(t, "user-2", local.Meta().LastSyncedIdentity)
	assert.Equal(t, 1, cart.count())
	assert.Equal(t, 1, wish.count())
}

func TestOrchestrator_EmptyGuestSetStillRecordsIdentity(t *testing.T) {
	local := localstore.NewMemoryStore()

	o, cart, wish := newOrchestrator(local, &mockAPI{}, &mockAPI{})
	summary, err := o.OnAuthenticated(context.Background(), session.Identity{UserID: "user-1"})
	require.NoError(t, err)

	assert.Zero(t, summary.Synced)
	assert.Zero(t, summary.Failed)
	assert.Equal(t, "user-1", local.Meta().LastSyncedIdentity)
	assert.Equal(t, 1, cart.count())
	assert.Equal(t, 1, wish.count())
}

func TestOrchestrator_SameIdentityMergesRetainedRecords(t *testing.T) {
	local := localstore.NewMemoryStore()
	require.NoError(t, local.Save(localstore.NamespaceCart, []domain.Record{guestRecord("prod-a", "", 1)}))

	meta := local.Meta()
	meta.LastSyncedIdentity = "user-1"
	require.NoError(t, local.SetMeta(meta))

	o, _, _ := newOrchestrator(local, &mockAPI{}, &mockAPI{})
	summary, err := o.OnAuthenticated(context.Background(), session.Identity{UserID: "user-1"})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Synced)
	assert.Zero(t, summary.Discarded)
	assert.Empty(t, local.Load(localstore.NamespaceCart))
}
