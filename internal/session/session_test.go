package session_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Subash-08/loke-store-sub001/internal/domain"
	"github.com/Subash-08/loke-store-sub001/internal/session"
)

func TestWatcher_ModeFollowsTokenPresence(t *testing.T) {
	w := session.NewWatcher()
	assert.Equal(t, domain.ModeGuest, w.Mode())
	assert.Empty(t, w.Token())

	w.SetIdentity(session.Identity{UserID: "u1", Token: "tok"})
	assert.Equal(t, domain.ModeAuthenticated, w.Mode())
	assert.Equal(t, "tok", w.Token())

	w.Clear()
	assert.Equal(t, domain.ModeGuest, w.Mode())
	assert.Empty(t, w.Token())
}

func TestWatcher_FiresOnTransitionOnly(t *testing.T) {
	w := session.NewWatcher()

	var fired []string
	cancel := w.OnAuthenticated(func(id session.Identity) {
		fired = append(fired, id.UserID)
	})
	defer cancel()

	w.SetIdentity(session.Identity{UserID: "u1", Token: "t1"})
	assert.Equal(t, []string{"u1"}, fired, "absent to present fires")

	w.SetIdentity(session.Identity{UserID: "u1", Token: "t2"})
	assert.Equal(t, []string{"u1"}, fired, "token refresh for the same user is silent")

	w.SetIdentity(session.Identity{UserID: "u2", Token: "t3"})
	assert.Equal(t, []string{"u1", "u2"}, fired, "account switch fires again")

	w.Clear()
	w.SetIdentity(session.Identity{UserID: "u2", Token: "t4"})
	assert.Equal(t, []string{"u1", "u2", "u2"}, fired, "re-login fires")
}

func TestWatcher_CancelStopsDelivery(t *testing.T) {
	w := session.NewWatcher()

	fired := 0
	cancel := w.OnAuthenticated(func(session.Identity) { fired++ })
	cancel()

	w.SetIdentity(session.Identity{UserID: "u1"})
	assert.Zero(t, fired)
}
