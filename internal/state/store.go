// Package state is the in-memory representation of the cart or wishlist
// consumed by the UI. Every mutating command follows the same contract:
// apply the change optimistically, commit it to the mode-appropriate
// backend (local record store in guest mode, remote gateway once
// authenticated), then reconcile against the authoritative result or
// roll the optimistic change back. An optimistic mutation is always
// either confirmed or reverted, never silently dropped.
package state

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Subash-08/loke-store-sub001/internal/domain"
	"github.com/Subash-08/loke-store-sub001/internal/gateway"
	"github.com/Subash-08/loke-store-sub001/internal/localstore"
	"github.com/Subash-08/loke-store-sub001/internal/telemetry"
)

// Status is the mutation status surfaced to the UI.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusPending Status = "pending"
	StatusError   Status = "error"
)

// Snapshot is a point-in-time view of the store for rendering.
type Snapshot struct {
	Items     []domain.Record
	Mode      domain.SessionMode
	Status    Status
	LastError string
}

// AddInput is the payload for an add command. The unit price is resolved
// from the candidate fields at add-time and snapshotted into the record.
type AddInput struct {
	Kind       domain.ItemKind
	ProductRef string
	VariantRef string
	Quantity   int64
	Prices     domain.PriceCandidates
	Snapshot   *domain.Snapshot
}

// Config wires a Store to its collaborators.
type Config struct {
	// Namespace is the local-store namespace this store owns
	// (localstore.NamespaceCart or localstore.NamespaceWishlist).
	Namespace string

	Local   localstore.Store
	Remote  gateway.API
	Logger  *slog.Logger
	Metrics *telemetry.EngineMetrics
}

// Store holds the current item list, the session mode, and per-mutation
// status. Commits are serialized per item key, not store-wide.
type Store struct {
	namespace    string
	label        string
	withQuantity bool

	local   localstore.Store
	remote  gateway.API
	logger  *slog.Logger
	metrics *telemetry.EngineMetrics

	mu      sync.Mutex
	items   []domain.Record
	mode    domain.SessionMode
	pending int
	lastErr error
	seq     uint64
	lastOpt map[domain.ItemKey]uint64
	base    map[domain.ItemKey]committedState
	queues  map[domain.ItemKey]*keyQueue
	subs    map[int]func(Snapshot)
	nextSub int

	wg sync.WaitGroup
}

// New creates a Store in guest mode, seeded from the local record store.
func New(cfg Config) *Store {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	label := "cart"
	if cfg.Namespace == localstore.NamespaceWishlist {
		label = "wishlist"
	}

	s := &Store{
		namespace:    cfg.Namespace,
		label:        label,
		withQuantity: cfg.Namespace == localstore.NamespaceCart,
		local:        cfg.Local,
		remote:       cfg.Remote,
		logger:       logger.With("store", label),
		metrics:      cfg.Metrics,
		mode:         domain.ModeGuest,
		lastOpt:      make(map[domain.ItemKey]uint64),
		base:         make(map[domain.ItemKey]committedState),
		queues:       make(map[domain.ItemKey]*keyQueue),
		subs:         make(map[int]func(Snapshot)),
	}
	s.items = cfg.Local.Load(cfg.Namespace)
	return s
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	items := make([]domain.Record, len(s.items))
	copy(items, s.items)

	snap := Snapshot{Items: items, Mode: s.mode, Status: StatusIdle}
	switch {
	case s.pending > 0:
		snap.Status = StatusPending
	case s.lastErr != nil:
		snap.Status = StatusError
		snap.LastError = domain.ErrorMessage(s.lastErr)
	}
	return snap
}

// Subscribe registers a listener invoked after every state change.
// The returned function cancels the subscription.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// SetMode switches between guest and authenticated dispatch. Switching
// back to guest reloads the local record store.
func (s *Store) SetMode(mode domain.SessionMode) {
	s.mu.Lock()
	s.mode = mode
	if mode == domain.ModeGuest {
		s.items = s.local.Load(s.namespace)
	}
	s.mu.Unlock()
	s.notify()
}

// ReplaceItems installs an authoritative item set, keeping the
// optimistic version of any key that still has an uncommitted mutation.
func (s *Store) ReplaceItems(items []domain.Record) {
	s.mu.Lock()
	s.installAuthoritativeLocked(items)
	s.mu.Unlock()
	s.notify()
}

// AddItem adds an item, or bumps the quantity of the colliding record.
// For the wishlist, presence is binary and re-adding is a no-op.
func (s *Store) AddItem(ctx context.Context, input AddInput) error {
	const cmd = "add"

	if s.withQuantity && input.Quantity < 1 {
		return domain.ErrInvalidQuantity
	}

	record := domain.Record{
		ItemID:     domain.NewItemID(),
		ItemKind:   input.Kind,
		ProductRef: input.ProductRef,
		VariantRef: input.VariantRef,
		Quantity:   input.Quantity,
		UnitPrice:  domain.ResolveUnitPrice(input.Prices),
		AddedAt:    time.Now().UTC(),
		Snapshot:   input.Snapshot,
	}
	if !s.withQuantity {
		record.Quantity = 0
	}
	if err := record.Validate(s.withQuantity); err != nil {
		return err
	}
	key := record.Key()

	s.mu.Lock()
	s.lastErr = nil
	s.countMutation(cmd, s.mode)

	existing, found := s.findLocked(key)
	if found && !s.withQuantity {
		// Wishlist presence is binary; nothing to commit.
		s.mu.Unlock()
		return nil
	}

	merged := record
	if found {
		merged = existing
		merged.Quantity += input.Quantity
	}

	s.applyOptimisticLocked(key, &merged)
	mode := s.mode
	delta := record

	s.enqueue(&op{
		command: cmd,
		key:     key,
		seq:     s.lastOpt[key],
		commit: func(ctx context.Context) ([]domain.Record, error) {
			if mode == domain.ModeAuthenticated {
				return s.remote.Add(ctx, delta)
			}
			if err := s.local.Upsert(s.namespace, merged); err != nil {
				return nil, err
			}
			return s.local.Load(s.namespace), nil
		},
	})
	s.mu.Unlock()

	// Subscribers see the optimistic item before the commit settles.
	s.notify()
	return nil
}

// UpdateQuantity sets the quantity for an item key. Quantity zero is a
// removal; the record is deleted, never persisted at zero.
func (s *Store) UpdateQuantity(ctx context.Context, key domain.ItemKey, quantity int64) error {
	const cmd = "update"

	if !s.withQuantity {
		return domain.Errorf(domain.EINVALID, "wishlist.update", "wishlist items have no quantity")
	}
	if quantity < 0 {
		return domain.ErrInvalidQuantity
	}
	if quantity == 0 {
		return s.RemoveItem(ctx, key)
	}

	s.mu.Lock()
	s.lastErr = nil
	s.countMutation(cmd, s.mode)

	existing, found := s.findLocked(key)
	if !found {
		s.mu.Unlock()
		return domain.NotFound(s.label+".update", "item", key.String())
	}

	updated := existing
	updated.Quantity = quantity

	s.applyOptimisticLocked(key, &updated)
	mode := s.mode

	s.enqueue(&op{
		command:     cmd,
		key:         key,
		seq:         s.lastOpt[key],
		coalescible: true,
		commit: func(ctx context.Context) ([]domain.Record, error) {
			if mode == domain.ModeAuthenticated {
				return s.remote.UpdateQuantity(ctx, key, quantity)
			}
			if err := s.local.Upsert(s.namespace, updated); err != nil {
				return nil, err
			}
			return s.local.Load(s.namespace), nil
		},
	})
	s.mu.Unlock()

	s.notify()
	return nil
}

// RemoveItem deletes the record with the exact item key. Removing an
// absent key succeeds without a commit.
func (s *Store) RemoveItem(ctx context.Context, key domain.ItemKey) error {
	const cmd = "remove"

	s.mu.Lock()
	s.lastErr = nil
	s.countMutation(cmd, s.mode)

	if _, found := s.findLocked(key); !found {
		s.mu.Unlock()
		return nil
	}

	s.applyOptimisticLocked(key, nil)
	mode := s.mode

	s.enqueue(&op{
		command: cmd,
		key:     key,
		seq:     s.lastOpt[key],
		commit: func(ctx context.Context) ([]domain.Record, error) {
			if mode == domain.ModeAuthenticated {
				return s.remote.Remove(ctx, key)
			}
			if err := s.local.RemoveByKey(s.namespace, key); err != nil {
				return nil, err
			}
			return s.local.Load(s.namespace), nil
		},
	})
	s.mu.Unlock()

	s.notify()
	return nil
}

// Refresh replaces the item list with the current authoritative set:
// the local record store in guest mode, the server otherwise.
func (s *Store) Refresh(ctx context.Context) error {
	s.mu.Lock()
	mode := s.mode
	s.mu.Unlock()
	s.countMutation("refresh", mode)

	var (
		items []domain.Record
		err   error
	)
	if mode == domain.ModeAuthenticated {
		items, err = s.remote.Fetch(ctx)
	} else {
		items = s.local.Load(s.namespace)
	}

	s.mu.Lock()
	if err != nil {
		s.lastErr = err
		s.mu.Unlock()
		s.notify()
		return err
	}
	s.installAuthoritativeLocked(items)
	s.mu.Unlock()
	s.notify()
	return nil
}

// Wait blocks until every queued commit has settled. Used by tests and
// shutdown paths.
func (s *Store) Wait() {
	s.wg.Wait()
}

// findLocked returns the record for a key, if present.
func (s *Store) findLocked(key domain.ItemKey) (domain.Record, bool) {
	for _, r := range s.items {
		if r.Key() == key {
			return r, true
		}
	}
	return domain.Record{}, false
}

// committedState is the last committed value for a key, tracked while
// mutations for that key are still settling. A failed commit restores
// it, regardless of how many optimistic writes stacked up in between.
type committedState struct {
	record  domain.Record
	present bool
}

func committedFrom(items []domain.Record, key domain.ItemKey) committedState {
	for _, r := range items {
		if r.Key() == key {
			return committedState{record: r, present: true}
		}
	}
	return committedState{}
}

// applyOptimisticLocked installs the optimistic value for a key (nil
// deletes). The first un-settled mutation for a key captures the
// committed baseline; later commit outcomes advance or restore it.
func (s *Store) applyOptimisticLocked(key domain.ItemKey, record *domain.Record) {
	if _, tracked := s.base[key]; !tracked {
		prev, present := s.findLocked(key)
		s.base[key] = committedState{record: prev, present: present}
	}

	s.setLocked(key, record)
	s.seq++
	s.lastOpt[key] = s.seq
}

// setLocked replaces or deletes the record for a key in place.
func (s *Store) setLocked(key domain.ItemKey, record *domain.Record) {
	for i, r := range s.items {
		if r.Key() == key {
			if record == nil {
				s.items = append(s.items[:i], s.items[i+1:]...)
			} else {
				s.items[i] = *record
			}
			return
		}
	}
	if record != nil {
		s.items = append(s.items, *record)
	}
}

// installAuthoritativeLocked replaces the item list with an
// authoritative set, overlaying the optimistic version of any key whose
// commit has not settled yet so a pending mutation is never visually
// reverted before its outcome is known.
func (s *Store) installAuthoritativeLocked(authoritative []domain.Record) {
	s.installWithBusyLocked(authoritative, s.busyKeys())
}

func (s *Store) installWithBusyLocked(authoritative []domain.Record, busy map[domain.ItemKey]bool) {
	if len(busy) == 0 {
		s.items = append([]domain.Record(nil), authoritative...)
		return
	}

	merged := make([]domain.Record, 0, len(authoritative)+len(busy))
	for _, r := range authoritative {
		if busy[r.Key()] {
			continue
		}
		merged = append(merged, r)
	}
	for key := range busy {
		if current, ok := s.findLocked(key); ok {
			merged = append(merged, current)
		}
	}
	s.items = merged
}

// completeSuccess reconciles a settled commit against the authoritative
// item set it returned.
func (s *Store) completeSuccess(o *op, items []domain.Record) {
	s.mu.Lock()
	s.pending--
	busy := s.busyKeys()
	if s.lastOpt[o.key] == o.seq {
		// Not superseded: the echo for this key (including a
		// server-assigned id) is authoritative now.
		delete(s.lastOpt, o.key)
		delete(s.base, o.key)
		delete(busy, o.key)
	} else {
		// A later mutation for this key is still settling; this
		// commit's echo is the baseline a failure must restore.
		s.base[o.key] = committedFrom(items, o.key)
	}
	s.installWithBusyLocked(items, busy)
	s.mu.Unlock()
	s.notify()
}

// completeFailure rolls the optimistic change back and surfaces the
// error. The failure affects only this mutation; the rest of the state
// is untouched.
func (s *Store) completeFailure(o *op, err error) {
	s.logger.Warn("mutation commit failed",
		"command", o.command, "key", o.key.String(), "error", err)
	if s.metrics != nil {
		s.metrics.MutationFailures.WithLabelValues(s.label, o.command, domain.ErrorCode(err)).Inc()
	}

	s.mu.Lock()
	s.pending--
	if s.lastOpt[o.key] == o.seq {
		if base, ok := s.base[o.key]; ok {
			if base.present {
				s.setLocked(o.key, &base.record)
			} else {
				s.setLocked(o.key, nil)
			}
			delete(s.base, o.key)
			s.countRollback()
		}
		delete(s.lastOpt, o.key)
	}
	s.lastErr = err
	s.mu.Unlock()
	s.notify()
}

// notify delivers a fresh snapshot to every subscriber.
func (s *Store) notify() {
	s.mu.Lock()
	snap := s.snapshotLocked()
	fns := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

func (s *Store) countMutation(command string, mode domain.SessionMode) {
	if s.metrics != nil {
		s.metrics.Mutations.WithLabelValues(s.label, command, string(mode)).Inc()
	}
}

func (s *Store) countRollback() {
	if s.metrics != nil {
		s.metrics.OptimisticRollbacks.WithLabelValues(s.label).Inc()
	}
}
