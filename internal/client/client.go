// Package client assembles the storefront engine: two reactive state
// stores (cart, wishlist) over a shared local record store and the
// server gateway, a session watcher that detects authentication
// transitions, and the sync orchestrator that reconciles guest state
// after sign-in.
package client

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Subash-08/loke-store-sub001/internal/domain"
	"github.com/Subash-08/loke-store-sub001/internal/gateway"
	"github.com/Subash-08/loke-store-sub001/internal/localstore"
	"github.com/Subash-08/loke-store-sub001/internal/schedule"
	"github.com/Subash-08/loke-store-sub001/internal/session"
	"github.com/Subash-08/loke-store-sub001/internal/state"
	"github.com/Subash-08/loke-store-sub001/internal/syncer"
	"github.com/Subash-08/loke-store-sub001/internal/telemetry"
)

// Startup fetches are staggered so the cart, which the user sees first,
// wins the connection. The values are tuning, not contract.
const (
	taskCartFetch     = "cart-initial-fetch"
	taskWishlistFetch = "wishlist-initial-fetch"

	cartFetchDelay     = 150 * time.Millisecond
	wishlistFetchDelay = 400 * time.Millisecond
)

// Config assembles an Engine.
type Config struct {
	// BaseURL is the API root, e.g. "https://store.example.com/api".
	BaseURL string

	// Local is the durable guest record store. Defaults to an
	// in-memory store.
	Local localstore.Store

	// HTTPClient overrides the transport (tests).
	HTTPClient *http.Client

	Logger  *slog.Logger
	Metrics *telemetry.EngineMetrics

	// OnSyncSummary receives the outcome of each completed merge.
	OnSyncSummary func(syncer.Summary)

	// SyncTimeout bounds gateway calls made by the orchestrator.
	SyncTimeout time.Duration
}

// Engine is the composition root. Callers drive it through the cart and
// wishlist stores and the session watcher; everything else reacts.
type Engine struct {
	cart     *state.Store
	wishlist *state.Store
	sessions *session.Watcher

	orchestrator *syncer.Orchestrator
	scheduler    *schedule.Scheduler

	logger      *slog.Logger
	unsubscribe func()
}

// New wires an Engine. It does not start background work; call Start.
func New(cfg Config) (*Engine, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Local == nil {
		cfg.Local = localstore.NewMemoryStore()
	}
	if cfg.Metrics == nil {
		// Each engine registers into its own registry so hosting two
		// engines in one process never collides.
		cfg.Metrics = telemetry.NewEngineMetrics("", prometheus.NewRegistry())
	}

	sessions := session.NewWatcher()

	cartAPI, err := gateway.NewHTTPClient(gateway.HTTPClientConfig{
		BaseURL: cfg.BaseURL + "/cart",
		Tokens:  sessions,
		Client:  cfg.HTTPClient,
	})
	if err != nil {
		return nil, err
	}
	wishAPI, err := gateway.NewHTTPClient(gateway.HTTPClientConfig{
		BaseURL: cfg.BaseURL + "/wishlist",
		Tokens:  sessions,
		Client:  cfg.HTTPClient,
	})
	if err != nil {
		return nil, err
	}

	cart := state.New(state.Config{
		Namespace: localstore.NamespaceCart,
		Local:     cfg.Local,
		Remote:    cartAPI,
		Logger:    cfg.Logger.With("store", "cart"),
		Metrics:   cfg.Metrics,
	})
	wishlist := state.New(state.Config{
		Namespace: localstore.NamespaceWishlist,
		Local:     cfg.Local,
		Remote:    wishAPI,
		Logger:    cfg.Logger.With("store", "wishlist"),
		Metrics:   cfg.Metrics,
	})

	orchestrator := syncer.New(syncer.Config{
		Local:       cfg.Local,
		CartAPI:     cartAPI,
		WishlistAPI: wishAPI,
		Cart:        cart,
		Wishlist:    wishlist,
		Logger:      cfg.Logger,
		Metrics:     cfg.Metrics,
		OnSummary:   cfg.OnSyncSummary,
		Timeout:     cfg.SyncTimeout,
	})

	return &Engine{
		cart:         cart,
		wishlist:     wishlist,
		sessions:     sessions,
		orchestrator: orchestrator,
		scheduler:    schedule.New(cfg.Logger),
		logger:       cfg.Logger,
	}, nil
}

// Cart returns the cart state store.
func (e *Engine) Cart() *state.Store { return e.cart }

// Wishlist returns the wishlist state store.
func (e *Engine) Wishlist() *state.Store { return e.wishlist }

// Sessions returns the session watcher. Sign-in and sign-out go through
// it; the engine reacts to the transitions.
func (e *Engine) Sessions() *session.Watcher { return e.sessions }

// Start subscribes the sync orchestrator to authentication transitions
// and schedules the staggered initial guest fetches. Idempotent only in
// the sense that it must be called once per Engine.
func (e *Engine) Start() {
	e.unsubscribe = e.sessions.OnAuthenticated(func(identity session.Identity) {
		e.cart.SetMode(domain.ModeAuthenticated)
		e.wishlist.SetMode(domain.ModeAuthenticated)
		// The merge runs off the sign-in path; losing the UI context
		// must not abandon a half-finished reconcile.
		go func() {
			if _, err := e.orchestrator.OnAuthenticated(context.Background(), identity); err != nil {
				e.logger.Warn("post-sign-in sync finished with errors", "error", err)
			}
		}()
	})

	e.scheduler.After(taskCartFetch, cartFetchDelay, func(ctx context.Context) {
		if err := e.cart.Refresh(ctx); err != nil {
			e.logger.Warn("initial cart fetch failed", "error", err)
		}
	})
	e.scheduler.After(taskWishlistFetch, wishlistFetchDelay, func(ctx context.Context) {
		if err := e.wishlist.Refresh(ctx); err != nil {
			e.logger.Warn("initial wishlist fetch failed", "error", err)
		}
	})
}

// SignOut clears the session and drops both stores back to guest mode,
// re-seeded from the local record store.
func (e *Engine) SignOut() {
	e.sessions.Clear()
	e.cart.SetMode(e.sessions.Mode())
	e.wishlist.SetMode(e.sessions.Mode())
}

// Close cancels pending scheduled work, detaches the session listener,
// and waits for queued mutations to drain.
func (e *Engine) Close() {
	e.scheduler.Stop()
	if e.unsubscribe != nil {
		e.unsubscribe()
	}
	e.cart.Wait()
	e.wishlist.Wait()
}
