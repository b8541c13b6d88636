// Package syncer reconciles guest-local cart and wishlist records with
// the authoritative server-side store, exactly once per authentication
// transition. The merge protocol tracks a per-record outcome: absorbed
// records leave the local store, failed ones are retained un-mutated for
// a later retry, and nothing is ever silently discarded.
package syncer

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Subash-08/loke-store-sub001/internal/domain"
	"github.com/Subash-08/loke-store-sub001/internal/gateway"
	"github.com/Subash-08/loke-store-sub001/internal/localstore"
	"github.com/Subash-08/loke-store-sub001/internal/session"
	"github.com/Subash-08/loke-store-sub001/internal/telemetry"
)

// Orchestrator phases, for logging. The machine runs Idle → Detecting →
// Merging → Reconciling → Idle; a partial failure still ends at Idle,
// with the failed records left in the local store.
const (
	phaseDetecting   = "detecting"
	phaseMerging     = "merging"
	phaseReconciling = "reconciling"
)

// Failure describes one guest record that could not be absorbed.
type Failure struct {
	Store  string // "cart" or "wishlist"
	Key    domain.ItemKey
	Reason string
}

// Summary is the user-facing outcome of one merge attempt.
type Summary struct {
	Synced    int
	Failed    int
	Discarded int
	Failures  []Failure
}

// Refresher is the slice of the reactive state store the orchestrator
// needs: a way to install the merged server truth.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Config wires an Orchestrator to its collaborators.
type Config struct {
	Local localstore.Store

	CartAPI     gateway.API
	WishlistAPI gateway.API

	// Cart and Wishlist are refreshed from the server once the merge
	// settles. The caller switches them to authenticated mode before
	// invoking the orchestrator.
	Cart     Refresher
	Wishlist Refresher

	Logger  *slog.Logger
	Metrics *telemetry.EngineMetrics

	// OnSummary, when set, receives the outcome of every completed
	// merge attempt (not of skipped detections).
	OnSummary func(Summary)

	// Timeout bounds each merge/fetch call. Defaults to 15s.
	Timeout time.Duration
}

// Orchestrator drives the guest-to-authenticated merge protocol.
type Orchestrator struct {
	cfg Config

	// inFlight is the single-flight sync lock. Advisory and
	// in-process: this tab is the only writer of its own local store.
	inFlight atomic.Bool
}

// New creates an Orchestrator.
func New(cfg Config) *Orchestrator {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Orchestrator{cfg: cfg}
}

// OnAuthenticated runs one merge attempt for the given identity. A
// detection that finds a merge already in flight is dropped, not queued:
// it returns (nil, nil) and the in-flight attempt proceeds alone. The
// lock is released unconditionally, even on a panic in a collaborator,
// so a failed attempt can be retried on the next transition.
func (o *Orchestrator) OnAuthenticated(ctx context.Context, identity session.Identity) (*Summary, error) {
	if !o.inFlight.CompareAndSwap(false, true) {
		o.cfg.Logger.Debug("sync already in flight, dropping detection", "user_id", identity.UserID)
		if o.cfg.Metrics != nil {
			o.cfg.Metrics.SyncLockContended.Inc()
		}
		return nil, nil
	}
	defer o.inFlight.Store(false)

	start := time.Now()
	summary, err := o.run(ctx, identity)
	if o.cfg.Metrics != nil {
		o.cfg.Metrics.SyncDuration.Observe(time.Since(start).Seconds())
		o.cfg.Metrics.SyncAttempts.WithLabelValues(outcomeLabel(summary, err)).Inc()
	}
	if summary != nil && o.cfg.OnSummary != nil {
		o.cfg.OnSummary(*summary)
	}
	return summary, err
}

func (o *Orchestrator) run(ctx context.Context, identity session.Identity) (*Summary, error) {
	logger := o.cfg.Logger.With("user_id", identity.UserID)

	// Detecting: read the guest record sets.
	logger.Debug("sync phase", "phase", phaseDetecting)
	cartRecords := o.cfg.Local.Load(localstore.NamespaceCart)
	wishRecords := o.cfg.Local.Load(localstore.NamespaceWishlist)
	total := len(cartRecords) + len(wishRecords)

	meta := o.cfg.Local.Meta()

	if total == 0 {
		// Nothing to merge; the empty guest set still records the
		// identity so a later guest session on this device is
		// attributed correctly.
		o.recordIdentity(meta, identity, "")
		return &Summary{}, o.reconcile(ctx, logger)
	}

	// A different account on a shared device never absorbs another
	// user's guest residue: discard instead of merging.
	if meta.LastSyncedIdentity != "" && meta.LastSyncedIdentity != identity.UserID {
		logger.Info("guest records belong to a previous identity, discarding",
			"previous", meta.LastSyncedIdentity, "discarded", total)
		if err := o.cfg.Local.Clear(localstore.NamespaceCart); err != nil {
			logger.Warn("failed to clear guest cart", "error", err)
		}
		if err := o.cfg.Local.Clear(localstore.NamespaceWishlist); err != nil {
			logger.Warn("failed to clear guest wishlist", "error", err)
		}
		o.recordIdentity(meta, identity, "")
		if o.cfg.Metrics != nil {
			o.cfg.Metrics.SyncDiscarded.Add(float64(total))
		}
		return &Summary{Discarded: total}, o.reconcile(ctx, logger)
	}

	// Merging: one batched call per namespace, a shared batch id so a
	// retry of the same failed set is idempotent server-side.
	batchID := meta.PendingBatchID
	if batchID == "" {
		batchID = uuid.NewString()
	}
	logger.Info("sync phase", "phase", phaseMerging,
		"batch_id", batchID, "cart_records", len(cartRecords), "wishlist_records", len(wishRecords))

	summary := &Summary{}
	o.mergeNamespace(ctx, logger, "cart", localstore.NamespaceCart, o.cfg.CartAPI, batchID, cartRecords, summary)
	o.mergeNamespace(ctx, logger, "wishlist", localstore.NamespaceWishlist, o.cfg.WishlistAPI, batchID, wishRecords, summary)

	// Reconciling: markers first, then the authoritative fetch.
	logger.Debug("sync phase", "phase", phaseReconciling)
	pendingBatch := ""
	if summary.Failed > 0 {
		pendingBatch = batchID
	}
	if summary.Synced > 0 {
		o.recordIdentity(meta, identity, pendingBatch)
	} else if err := o.setPendingBatch(pendingBatch); err != nil {
		logger.Warn("failed to persist pending batch id", "error", err)
	}

	err := o.reconcile(ctx, logger)

	logger.Info("sync complete",
		"synced", summary.Synced, "failed", summary.Failed)
	return summary, err
}

// mergeNamespace merges one namespace's records and applies the
// per-record outcome: synced records leave the local store, failed ones
// stay un-mutated. A failed item never blocks the rest of its batch.
func (o *Orchestrator) mergeNamespace(
	ctx context.Context,
	logger *slog.Logger,
	label, namespace string,
	api gateway.API,
	batchID string,
	records []domain.Record,
	summary *Summary,
) {
	if len(records) == 0 {
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	outcome, err := api.Merge(callCtx, batchID, records)
	cancel()

	if err != nil {
		// The whole call failed (network, timeout): every record is
		// retained for retry.
		reason := domain.ErrorCode(err)
		logger.Warn("merge call failed, retaining guest records",
			"store", label, "records", len(records), "error", err)
		for _, r := range records {
			summary.Failed++
			summary.Failures = append(summary.Failures, Failure{Store: label, Key: r.Key(), Reason: reason})
		}
		if o.cfg.Metrics != nil {
			o.cfg.Metrics.SyncRecordsFailed.WithLabelValues(label).Add(float64(len(records)))
		}
		return
	}

	results := make(map[domain.ItemKey]gateway.MergeResult, len(outcome.Results))
	for _, res := range outcome.Results {
		results[res.Key] = res
	}

	var synced, failed int
	for _, r := range records {
		res, ok := results[r.Key()]
		if !ok {
			// The server did not report this record; treat it as
			// failed rather than assume absorption.
			failed++
			summary.Failed++
			summary.Failures = append(summary.Failures, Failure{Store: label, Key: r.Key(), Reason: "unreported"})
			continue
		}
		if res.Status != gateway.MergeSynced {
			failed++
			summary.Failed++
			summary.Failures = append(summary.Failures, Failure{Store: label, Key: r.Key(), Reason: res.Reason})
			continue
		}
		synced++
		summary.Synced++
		if err := o.cfg.Local.RemoveByKey(namespace, r.Key()); err != nil {
			logger.Warn("failed to remove absorbed guest record",
				"store", label, "key", r.Key().String(), "error", err)
		}
	}

	if o.cfg.Metrics != nil {
		if synced > 0 {
			o.cfg.Metrics.SyncRecordsSynced.WithLabelValues(label).Add(float64(synced))
		}
		if failed > 0 {
			o.cfg.Metrics.SyncRecordsFailed.WithLabelValues(label).Add(float64(failed))
		}
	}
}

// reconcile installs the merged server truth into both state stores.
func (o *Orchestrator) reconcile(ctx context.Context, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	var firstErr error
	if o.cfg.Cart != nil {
		if err := o.cfg.Cart.Refresh(ctx); err != nil {
			logger.Warn("cart refresh after sync failed", "error", err)
			firstErr = err
		}
	}
	if o.cfg.Wishlist != nil {
		if err := o.cfg.Wishlist.Refresh(ctx); err != nil {
			logger.Warn("wishlist refresh after sync failed", "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// recordIdentity persists the last-synced identity and pending batch.
func (o *Orchestrator) recordIdentity(meta localstore.Meta, identity session.Identity, pendingBatch string) {
	meta.LastSyncedIdentity = identity.UserID
	meta.PendingBatchID = pendingBatch
	if err := o.cfg.Local.SetMeta(meta); err != nil {
		o.cfg.Logger.Warn("failed to persist last synced identity", "error", err)
	}
}

func (o *Orchestrator) setPendingBatch(batchID string) error {
	meta := o.cfg.Local.Meta()
	meta.PendingBatchID = batchID
	return o.cfg.Local.SetMeta(meta)
}

func outcomeLabel(summary *Summary, err error) string {
	switch {
	case summary == nil:
		return "skipped"
	case summary.Discarded > 0:
		return "discarded"
	case err != nil && summary.Synced == 0 && summary.Failed == 0:
		return "failed"
	case summary.Failed > 0 && summary.Synced > 0:
		return "partial"
	case summary.Failed > 0:
		return "failed"
	default:
		return "success"
	}
}
