package state

import (
	"context"

	"github.com/Subash-08/loke-store-sub001/internal/domain"
)

// op is one queued commit. The optimistic phase has already been applied
// by the time an op is enqueued; a failed commit restores the key's
// committed baseline tracked by the store, so superseding an op never
// strands an optimistic value.
type op struct {
	command string
	key     domain.ItemKey
	seq     uint64

	// commit performs the remote/local write and returns the
	// authoritative item set to reconcile against.
	commit func(ctx context.Context) ([]domain.Record, error)

	// coalescible marks quantity updates: a not-yet-started update for
	// the same key is replaced by a later one (trailing write wins).
	coalescible bool
}

// keyQueue serializes commits for a single item key so mutations issued
// in UI order are committed in that order even when their network round
// trips would complete out of order. Ops for different keys proceed
// independently; nothing locks the whole store.
type keyQueue struct {
	ops     []*op
	running bool
}

// enqueue adds an op to the key's queue, coalescing trailing quantity
// updates, and starts the drain goroutine if one is not running.
// Called with s.mu held.
func (s *Store) enqueue(o *op) {
	q := s.queues[o.key]
	if q == nil {
		q = &keyQueue{}
		s.queues[o.key] = q
	}

	if o.coalescible && len(q.ops) > 0 {
		last := q.ops[len(q.ops)-1]
		if last.coalescible {
			q.ops[len(q.ops)-1] = o
			return
		}
	}

	q.ops = append(q.ops, o)
	s.pending++

	if !q.running {
		q.running = true
		s.wg.Add(1)
		go s.drain(o.key, q)
	}
}

// drain executes the key's ops one at a time until the queue empties.
// Commits run on a background context: a page navigation away does not
// abort an in-flight request, the gateway's own timeout bounds it.
func (s *Store) drain(key domain.ItemKey, q *keyQueue) {
	defer s.wg.Done()

	for {
		s.mu.Lock()
		if len(q.ops) == 0 {
			q.running = false
			delete(s.queues, key)
			s.mu.Unlock()
			return
		}
		next := q.ops[0]
		q.ops = q.ops[1:]
		s.mu.Unlock()

		items, err := next.commit(context.Background())
		if err != nil {
			s.completeFailure(next, err)
			continue
		}
		s.completeSuccess(next, items)
	}
}

// busyKeys reports the keys that still have queued or running ops.
// Called with s.mu held.
func (s *Store) busyKeys() map[domain.ItemKey]bool {
	busy := make(map[domain.ItemKey]bool, len(s.queues))
	for key := range s.queues {
		busy[key] = true
	}
	return busy
}
