// Package session exposes the auth signal the engine consumes: the
// current session mode and a stable user identity once authenticated.
// Subscribers observe the transition from absent to present identity,
// not every read.
package session

import (
	"sync"

	"github.com/Subash-08/loke-store-sub001/internal/domain"
)

// Identity is the authenticated principal: a stable user id plus the
// bearer token the gateway presents.
type Identity struct {
	UserID string
	Token  string
}

// Listener is invoked on an authentication transition.
type Listener func(identity Identity)

// Watcher derives the session mode from token presence and notifies
// listeners exactly once per authentication transition. It also serves
// as the gateway's token source.
type Watcher struct {
	mu        sync.Mutex
	identity  *Identity
	listeners map[int]Listener
	next      int
}

// NewWatcher creates a watcher in guest mode.
func NewWatcher() *Watcher {
	return &Watcher{listeners: make(map[int]Listener)}
}

// Mode reports the current session mode.
func (w *Watcher) Mode() domain.SessionMode {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.identity != nil {
		return domain.ModeAuthenticated
	}
	return domain.ModeGuest
}

// Identity returns the current identity, if authenticated.
func (w *Watcher) Identity() (Identity, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.identity == nil {
		return Identity{}, false
	}
	return *w.identity, true
}

// Token implements gateway.TokenSource. Empty while in guest mode.
func (w *Watcher) Token() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.identity == nil {
		return ""
	}
	return w.identity.Token
}

// SetIdentity installs an authenticated identity. Listeners fire only
// when the identity was absent, or belonged to a different user (a
// direct account switch counts as a new transition). Refreshing the
// token of the same user is silent.
func (w *Watcher) SetIdentity(identity Identity) {
	w.mu.Lock()
	transition := w.identity == nil || w.identity.UserID != identity.UserID
	w.identity = &identity
	fns := make([]Listener, 0, len(w.listeners))
	if transition {
		for _, fn := range w.listeners {
			fns = append(fns, fn)
		}
	}
	w.mu.Unlock()

	for _, fn := range fns {
		fn(identity)
	}
}

// Clear drops the identity, returning the session to guest mode.
func (w *Watcher) Clear() {
	w.mu.Lock()
	w.identity = nil
	w.mu.Unlock()
}

// OnAuthenticated subscribes to the authentication transition. The
// returned function cancels the subscription.
func (w *Watcher) OnAuthenticated(fn Listener) func() {
	w.mu.Lock()
	id := w.next
	w.next++
	w.listeners[id] = fn
	w.mu.Unlock()

	return func() {
		w.mu.Lock()
		delete(w.listeners, id)
		w.mu.Unlock()
	}
}
