package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStructuredBackendPlayerSessions(t *testing.T) {
	h := newStructuredHarness(t)

	p, err := h.m.PlayerLogin("Steve", "Hub")
	require.NoError(t, err)
	h.clock.Advance(10 * time.Minute)
	ok, err := h.m.PlayerLogout("Steve")
	require.NoError(t, err)
	assert.True(t, ok)

	stored, err := h.store.Players().Get(p.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsOnline)
	assert.Nil(t, stored.CurrentServer)
	assert.Equal(t, int64(10*60), stored.TotalPlayTime)

	sessions, err := h.m.PlayerSessions(p.ID)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)

	events, err := h.m.RecentEvents(0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, EventPlayerLogout, events[0].Type)
	assert.Equal(t, EventPlayerLogin, events[1].Type)
}

func TestStructuredBackendClearAndRestore(t *testing.T) {
	h := newStructuredHarness(t)
	srv := h.addServer(t, "Hub")
	_, err := h.m.PlayerLogin("Steve", "Hub")
	require.NoError(t, err)

	key, err := h.m.ClearData()
	require.NoError(t, err)

	assert.Empty(t, h.m.Servers())
	assert.Empty(t, h.m.Players())
	servers, err := h.store.Servers().List()
	require.NoError(t, err)
	assert.Empty(t, servers)
	sessions, err := h.store.Sessions().List()
	require.NoError(t, err)
	assert.Empty(t, sessions)
	events, err := h.m.RecentEvents(0)
	require.NoError(t, err)
	assert.Empty(t, events)

	h.clock.Advance(time.Second)
	require.NoError(t, h.m.RestoreBackup(key))

	servers, err = h.store.Servers().List()
	require.NoError(t, err)
	require.Len(t, servers, 1)
	assert.Equal(t, srv.ID, servers[0].ID)
	players, err := h.store.Players().List()
	require.NoError(t, err)
	require.Len(t, players, 1)
	assert.Equal(t, "Steve", players[0].Username)
	assert.Len(t, h.m.Players(), 1)
	assert.Len(t, logsOfType(h.m, LogBackupRestore), 1)
}
