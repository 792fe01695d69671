package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ankityadav/craftwatch/internal/storage"
)

func TestLoginThenLogout(t *testing.T) {
	h := newHarness(t)

	first, err := h.m.PlayerLogin("Steve", "Hub")
	require.NoError(t, err)
	assert.True(t, first.IsOnline)
	require.NotNil(t, first.CurrentServer)
	assert.Equal(t, "Hub", *first.CurrentServer)
	assert.Equal(t, 1, first.Sessions)
	assert.Equal(t, "Member", first.Rank)
	assert.NotEmpty(t, first.UUID)

	h.clock.Advance(10 * time.Minute)
	ok, err := h.m.PlayerLogout("Steve")
	require.NoError(t, err)
	assert.True(t, ok)

	h.clock.Advance(time.Hour)
	before, err := h.m.Player(first.ID)
	require.NoError(t, err)

	again, err := h.m.PlayerLogin("Steve", "Lobby")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, before.Sessions+1, again.Sessions)

	h.clock.Advance(5 * time.Minute)
	_, err = h.m.PlayerLogout("Steve")
	require.NoError(t, err)

	after, err := h.m.Player(first.ID)
	require.NoError(t, err)
	assert.False(t, after.IsOnline)
	assert.Nil(t, after.CurrentServer)
	assert.Greater(t, after.TotalPlayTime, before.TotalPlayTime)
	assert.Equal(t, int64(15*60), after.TotalPlayTime)

	stored, err := h.store.Players().Get(first.ID)
	require.NoError(t, err)
	assert.Equal(t, after.TotalPlayTime, stored.TotalPlayTime)
	assert.False(t, stored.IsOnline)

	sessions, err := h.m.PlayerSessions(first.ID)
	require.NoError(t, err)
	assert.Len(t, sessions, 2)
}

func TestInstantLogoutStillCountsPlayTime(t *testing.T) {
	h := newHarness(t)

	p, err := h.m.PlayerLogin("Alex", "Hub")
	require.NoError(t, err)
	_, err = h.m.PlayerLogout("Alex")
	require.NoError(t, err)

	got, err := h.m.Player(p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.TotalPlayTime)
}

func TestLogoutUnknownPlayerIsNoop(t *testing.T) {
	h := newHarness(t)
	logouts := recordEvents(h.m, EventPlayerLogout)

	ok, err := h.m.PlayerLogout("Nobody")
	require.NoError(t, err)
	assert.False(t, ok)

	p, err := h.m.PlayerLogin("Steve", "Hub")
	require.NoError(t, err)
	_, err = h.m.PlayerLogout("Steve")
	require.NoError(t, err)

	ok, err = h.m.PlayerLogout("Steve")
	require.NoError(t, err)
	assert.False(t, ok, "already offline")

	assert.Len(t, logouts(), 1)
	got, err := h.m.Player(p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Sessions)
}

func TestLoginRejectsBadUsername(t *testing.T) {
	h := newHarness(t)

	for _, name := range []string{"", "ab", "has space", "way_too_long_username_x"} {
		_, err := h.m.PlayerLogin(name, "Hub")
		var verr *ValidationError
		require.ErrorAs(t, err, &verr, name)
	}
	assert.Empty(t, h.m.Players())
}

func TestPlayerOnlineInvariant(t *testing.T) {
	h := newHarness(t)

	for _, name := range []string{"Steve", "Alex", "Notch"} {
		_, err := h.m.PlayerLogin(name, "Hub")
		require.NoError(t, err)
		h.clock.Advance(time.Second)
	}
	_, err := h.m.PlayerLogout("Alex")
	require.NoError(t, err)

	for _, p := range h.m.Players() {
		if p.IsOnline {
			assert.NotNil(t, p.CurrentServer, p.Username)
		} else {
			assert.Nil(t, p.CurrentServer, p.Username)
		}
	}

	online, err := h.store.Players().QueryByIndex("isOnline", true)
	require.NoError(t, err)
	assert.Len(t, online, 2)
}

func TestPlayerEdits(t *testing.T) {
	h := newHarness(t)
	p, err := h.m.PlayerLogin("Steve", "Hub")
	require.NoError(t, err)

	fav, err := h.m.ToggleFavorite(p.ID)
	require.NoError(t, err)
	assert.True(t, fav.Favorite)

	_, err = h.m.SetPlayerNotes(p.ID, "builder")
	require.NoError(t, err)
	ranked, err := h.m.SetPlayerRank(p.ID, "Moderator")
	require.NoError(t, err)
	assert.Equal(t, "Moderator", ranked.Rank)
	assert.Equal(t, "builder", ranked.Notes)
	assert.True(t, ranked.Favorite)

	stored, err := h.store.Players().Get(p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Moderator", stored.Rank)

	_, err = h.m.ToggleFavorite("missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = h.m.SetPlayerRank(p.ID, " ")
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}
