package client_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Subash-08/loke-store-sub001/internal/client"
	"github.com/Subash-08/loke-store-sub001/internal/domain"
	"github.com/Subash-08/loke-store-sub001/internal/handler/api"
	"github.com/Subash-08/loke-store-sub001/internal/localstore"
	"github.com/Subash-08/loke-store-sub001/internal/middleware"
	"github.com/Subash-08/loke-store-sub001/internal/router"
	"github.com/Subash-08/loke-store-sub001/internal/service"
	"github.com/Subash-08/loke-store-sub001/internal/session"
	"github.com/Subash-08/loke-store-sub001/internal/state"
	"github.com/Subash-08/loke-store-sub001/internal/syncer"
	"github.com/Subash-08/loke-store-sub001/internal/telemetry"
)

// startServer runs the real API stack: router, bearer auth, list
// services over a shared in-memory store.
func startServer(t *testing.T) (*httptest.Server, *service.MemoryStore) {
	t.Helper()

	store := service.NewMemoryStore()
	verifier := middleware.StaticTokens(map[string]string{"token-1": "user-1"})

	r := router.New(middleware.RequestID)
	authed := r.Group(middleware.RequireUser(verifier))

	cart := api.NewListHandler(service.NewListService(store, service.KindCart, nil), nil)
	cart.RegisterRoutes(authed, "/api/cart", nil)
	wishlist := api.NewListHandler(service.NewListService(store, service.KindWishlist, nil), nil)
	wishlist.RegisterRoutes(authed, "/api/wishlist", nil)

	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return ts, store
}

func startEngine(t *testing.T, baseURL string, local localstore.Store, summaries chan syncer.Summary) *client.Engine {
	t.Helper()

	engine, err := client.New(client.Config{
		BaseURL: baseURL + "/api",
		Local:   local,
		OnSyncSummary: func(s syncer.Summary) {
			if summaries != nil {
				summaries <- s
			}
		},
	})
	require.NoError(t, err)
	engine.Start()
	t.Cleanup(engine.Close)
	return engine
}

func addInput(product string, quantity int64) state.AddInput {
	return state.AddInput{
		Kind:       domain.KindCatalogItem,
		ProductRef: product,
		Quantity:   quantity,
		Prices: domain.PriceCandidates{
			Product: domain.PriceFields{SellingPrice: 1200},
		},
	}
}

func TestEngine_GuestSignInMergesIntoServer(t *testing.T) {
	ts, _ := startServer(t)
	local := localstore.NewMemoryStore()
	summaries := make(chan syncer.Summary, 1)
	engine := startEngine(t, ts.URL, local, summaries)

	ctx := context.Background()

	// Guest fills the cart and wishlist offline.
	require.NoError(t, engine.Cart().AddItem(ctx, addInput("prod-a", 2)))
	require.NoError(t, engine.Cart().AddItem(ctx, addInput("prod-b", 1)))
	wish := addInput("prod-c", 0)
	require.NoError(t, engine.Wishlist().AddItem(ctx, wish))
	engine.Cart().Wait()
	engine.Wishlist().Wait()

	require.Len(t, local.Load(localstore.NamespaceCart), 2)
	require.Len(t, local.Load(localstore.NamespaceWishlist), 1)

	// Sign-in triggers the merge.
	engine.Sessions().SetIdentity(session.Identity{UserID: "user-1", Token: "token-1"})

	select {
	case summary := <-summaries:
		assert.Equal(t, 3, summary.Synced)
		assert.Zero(t, summary.Failed)
	case <-time.After(5 * time.Second):
		t.Fatal("sync did not complete")
	}

	// Absorbed guest records leave the local store.
	assert.Empty(t, local.Load(localstore.NamespaceCart))
	assert.Empty(t, local.Load(localstore.NamespaceWishlist))
	assert.Equal(t, "user-1", local.Meta().LastSyncedIdentity)

	// The state stores now reflect the authoritative server set.
	engine.Cart().Wait()
	snapshot := engine.Cart().Snapshot()
	assert.Equal(t, domain.ModeAuthenticated, snapshot.Mode)
	assert.Len(t, snapshot.Items, 2)
	for _, item := range snapshot.Items {
		assert.NotEmpty(t, item.ItemID)
		assert.NotContains(t, item.ItemID, "local-", "server ids replace guest-local ids")
	}
}

func TestEngine_AuthenticatedMutationsHitServer(t *testing.T) {
	ts, _ := startServer(t)
	local := localstore.NewMemoryStore()
	summaries := make(chan syncer.Summary, 1)
	engine := startEngine(t, ts.URL, local, summaries)

	engine.Sessions().SetIdentity(session.Identity{UserID: "user-1", Token: "token-1"})
	select {
	case <-summaries:
	case <-time.After(5 * time.Second):
		t.Fatal("sync did not complete")
	}

	ctx := context.Background()
	require.NoError(t, engine.Cart().AddItem(ctx, addInput("prod-a", 2)))
	engine.Cart().Wait()

	snapshot := engine.Cart().Snapshot()
	require.Len(t, snapshot.Items, 1)
	assert.Equal(t, int64(2), snapshot.Items[0].Quantity)

	// Quantity update then removal, round-tripped through the server.
	key := snapshot.Items[0].Key()
	require.NoError(t, engine.Cart().UpdateQuantity(ctx, key, 5))
	engine.Cart().Wait()
	assert.Equal(t, int64(5), engine.Cart().Snapshot().Items[0].Quantity)

	require.NoError(t, engine.Cart().RemoveItem(ctx, key))
	engine.Cart().Wait()
	assert.Empty(t, engine.Cart().Snapshot().Items)
}

func TestEngine_MetricsRecorded(t *testing.T) {
	ts, _ := startServer(t)
	local := localstore.NewMemoryStore()
	summaries := make(chan syncer.Summary, 1)

	metrics := telemetry.NewEngineMetrics("enginetest", prometheus.NewRegistry())
	engine, err := client.New(client.Config{
		BaseURL: ts.URL + "/api",
		Local:   local,
		Metrics: metrics,
		OnSyncSummary: func(s syncer.Summary) {
			summaries <- s
		},
	})
	require.NoError(t, err)
	engine.Start()
	t.Cleanup(engine.Close)

	ctx := context.Background()
	require.NoError(t, engine.Cart().AddItem(ctx, addInput("prod-a", 2)))
	engine.Cart().Wait()

	assert.Equal(t, float64(1),
		testutil.ToFloat64(metrics.Mutations.WithLabelValues("cart", "add", "guest")))

	engine.Sessions().SetIdentity(session.Identity{UserID: "user-1", Token: "token-1"})
	select {
	case <-summaries:
	case <-time.After(5 * time.Second):
		t.Fatal("sync did not complete")
	}

	assert.Equal(t, float64(1),
		testutil.ToFloat64(metrics.SyncAttempts.WithLabelValues("success")))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(metrics.SyncRecordsSynced.WithLabelValues("cart")))
}

func TestEngine_SignOutReturnsToGuestState(t *testing.T) {
	ts, _ := startServer(t)
	local := localstore.NewMemoryStore()
	summaries := make(chan syncer.Summary, 1)
	engine := startEngine(t, ts.URL, local, summaries)

	engine.Sessions().SetIdentity(session.Identity{UserID: "user-1", Token: "token-1"})
	select {
	case <-summaries:
	case <-time.After(5 * time.Second):
		t.Fatal("sync did not complete")
	}

	engine.SignOut()
	snapshot := engine.Cart().Snapshot()
	assert.Equal(t, domain.ModeGuest, snapshot.Mode)
	assert.Empty(t, snapshot.Items, "a fresh guest session starts empty")
}
