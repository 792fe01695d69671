package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ankityadav/craftwatch/internal/probe"
	"github.com/ankityadav/craftwatch/internal/storage"
)

func TestAddServerScenario(t *testing.T) {
	h := newHarness(t)
	before := len(h.m.Servers())

	srv, err := h.m.AddServer(ServerInput{Name: "Hub", Address: "mc.example.com", Port: 25565})
	require.NoError(t, err)

	assert.Len(t, h.m.Servers(), before+1)
	assert.True(t, srv.Enabled)
	assert.Equal(t, storage.StatusUnknown, srv.Status)
	assert.Zero(t, srv.PlayersOnline)
	assert.Equal(t, "java", srv.Type)
	assert.Equal(t, 20, srv.MaxPlayers)
	assert.Equal(t, "2024-06-01", srv.AddedDate)

	stored, err := h.store.Servers().Get(srv.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hub", stored.Name)
}

func TestAddServerValidation(t *testing.T) {
	tests := []struct {
		name  string
		in    ServerInput
		field string
	}{
		{"missing name", ServerInput{Address: "mc.example.com"}, "name"},
		{"missing address", ServerInput{Name: "Hub"}, "address"},
		{"bad address", ServerInput{Name: "Hub", Address: "not an address"}, "address"},
		{"octet overflow", ServerInput{Name: "Hub", Address: "300.1.1.1"}, "address"},
		{"port too high", ServerInput{Name: "Hub", Address: "mc.example.com", Port: 70000}, "port"},
		{"negative port", ServerInput{Name: "Hub", Address: "mc.example.com", Port: -1}, "port"},
	}

	h := newHarness(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.m.AddServer(tt.in)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
	assert.Empty(t, h.m.Servers())
}

func TestValidAddress(t *testing.T) {
	for _, ok := range []string{"mc.example.com", "play.hypixel.net", "192.168.1.10", "my-server.co"} {
		assert.True(t, ValidAddress(ok), ok)
	}
	for _, bad := range []string{"localhost", "256.0.0.1", "1.2.3", "::1", "example"} {
		assert.False(t, ValidAddress(bad), bad)
	}
}

func TestRemoveAndToggleServer(t *testing.T) {
	h := newHarness(t)
	srv := h.addServer(t, "Hub")

	toggled, err := h.m.ToggleServer(srv.ID)
	require.NoError(t, err)
	assert.False(t, toggled.Enabled)

	stored, err := h.store.Servers().Get(srv.ID)
	require.NoError(t, err)
	assert.False(t, stored.Enabled)

	require.NoError(t, h.m.RemoveServer(srv.ID))
	assert.Empty(t, h.m.Servers())
	_, err = h.store.Servers().Get(srv.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	assert.ErrorIs(t, h.m.RemoveServer(srv.ID), ErrServerNotFound)
	_, err = h.m.ToggleServer(srv.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestUpdateServer(t *testing.T) {
	h := newHarness(t)
	srv := h.addServer(t, "Hub")

	updated, err := h.m.UpdateServer(srv.ID, ServerInput{Name: "Hub 2", Address: "10.0.0.2", Port: 25566, MaxPlayers: 50})
	require.NoError(t, err)
	assert.Equal(t, "Hub 2", updated.Name)
	assert.Equal(t, 25566, updated.Port)
	assert.Equal(t, 50, updated.MaxPlayers)
	assert.Equal(t, srv.ID, updated.ID)
	assert.Len(t, logsOfType(h.m, LogServerUpdate), 1)
}

func TestDisabledServerIsNeverProbed(t *testing.T) {
	h := newHarness(t)
	srv := h.addServer(t, "Hub")
	h.prober.set("Hub", online(5, 20))

	_, err := h.m.ToggleServer(srv.ID)
	require.NoError(t, err)

	for range 3 {
		h.cycle()
	}

	got, err := h.m.Server(srv.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.StatusUnknown, got.Status)
	assert.Nil(t, got.LastChecked)
	assert.Zero(t, h.prober.callCount("Hub"))
}

func TestTransitionEvents(t *testing.T) {
	h := newHarness(t)
	srv := h.addServer(t, "Hub")
	h.prober.set("Hub", online(1, 20), offline(), offline(), online(2, 20), outcome{err: errors.New("boom")}, online(2, 20))

	onlineEvents := recordEvents(h.m, EventServerOnline)
	offlineEvents := recordEvents(h.m, EventServerOffline)

	h.cycle() // unknown -> online
	assert.Empty(t, onlineEvents())
	assert.Empty(t, offlineEvents())

	h.cycle() // online -> offline
	assert.Len(t, offlineEvents(), 1)

	h.cycle() // offline -> offline
	assert.Len(t, offlineEvents(), 1)

	h.cycle() // offline -> online
	assert.Len(t, onlineEvents(), 1)

	h.cycle() // online -> error
	got, err := h.m.Server(srv.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.StatusError, got.Status)
	assert.Equal(t, storage.UnreachableLatency, got.Latency)

	h.cycle() // error -> online
	assert.Len(t, onlineEvents(), 1)
	assert.Len(t, offlineEvents(), 1)

	events, err := h.m.RecentEvents(0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, EventServerOnline, events[0].Type)
	assert.Equal(t, EventServerOffline, events[1].Type)
	assert.Equal(t, "Hub", events[0].Payload["server"])
}

func TestProbeResultApplied(t *testing.T) {
	h := newHarness(t)
	srv := h.addServer(t, "Hub")
	h.prober.set("Hub", online(30, 25))

	h.cycle()

	got, err := h.m.Server(srv.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.StatusOnline, got.Status)
	assert.Equal(t, 25, got.MaxPlayers)
	assert.Equal(t, 25, got.PlayersOnline, "players are clamped to capacity")
	assert.Equal(t, 42, got.Latency)
	assert.Equal(t, "1.20.1", got.Version)
	require.NotNil(t, got.LastChecked)

	stored, err := h.store.Servers().Get(srv.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.StatusOnline, stored.Status)
	assert.Len(t, logsOfType(h.m, LogServerCheck), 1)
}

func TestProbeTimeoutMarksError(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.ProbeTimeout = 20 * time.Millisecond })
	srv := h.addServer(t, "Hub")

	h.m.prober = probe.ProberFunc(func(ctx context.Context, _ storage.Server) (probe.Result, error) {
		<-ctx.Done()
		return probe.Result{}, ctx.Err()
	})
	h.cycle()

	got, err := h.m.Server(srv.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.StatusError, got.Status)
	assert.NotEmpty(t, logsOfType(h.m, LogError))
}

func TestServerRemovedDuringProbe(t *testing.T) {
	h := newHarness(t)
	srv := h.addServer(t, "Hub")
	other := h.addServer(t, "Lobby")
	h.prober.set("Hub", online(3, 20))
	h.prober.set("Lobby", online(4, 20))
	h.prober.onProbe = func(s storage.Server) {
		if s.ID == srv.ID {
			require.NoError(t, h.m.RemoveServer(srv.ID))
		}
	}

	h.cycle()

	servers := h.m.Servers()
	require.Len(t, servers, 1)
	assert.Equal(t, other.ID, servers[0].ID)
	assert.Equal(t, storage.StatusOnline, servers[0].Status)

	stored, err := h.store.Servers().List()
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestHighPlayerCountAlert(t *testing.T) {
	h := newHarness(t)
	h.addServer(t, "Hub")

	threshold := 10
	alerts := h.m.Alerts()
	rule, ok := alerts.Rule(EventHighPlayerCount)
	require.True(t, ok)
	rule.Threshold = &threshold
	rule.Enabled = true
	require.NoError(t, h.m.SetAlertRule(*rule))

	h.prober.set("Hub", online(15, 20))
	h.cycle()

	var hits []storage.AlertEntry
	for _, e := range h.m.Alerts().History {
		if e.Type == EventHighPlayerCount {
			hits = append(hits, e)
		}
	}
	require.Len(t, hits, 1)
	assert.Equal(t, "Hub has 15 players online", hits[0].Message)
	assert.Contains(t, h.notifier.sounds, "warning")
}

func TestCycleCompleteEvent(t *testing.T) {
	h := newHarness(t)
	h.addServer(t, "Hub")
	h.addServer(t, "Lobby")
	h.prober.set("Hub", online(3, 20))

	complete := recordEvents(h.m, EventCycleComplete)
	h.cycle()

	got := complete()
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].Payload["online"])
	assert.Equal(t, 1, got[0].Payload["offline"])
	assert.Equal(t, 3, got[0].Payload["playersOnline"])
}

func TestCycleTakesDueBackup(t *testing.T) {
	h := newHarness(t)
	h.cycle()

	keys, err := h.m.ListBackups()
	require.NoError(t, err)
	assert.Len(t, keys, 1)

	h.cycle()
	keys, err = h.m.ListBackups()
	require.NoError(t, err)
	assert.Len(t, keys, 1, "interval has not elapsed")

	h.clock.Advance(25 * time.Hour)
	h.cycle()
	keys, err = h.m.ListBackups()
	require.NoError(t, err)
	assert.Len(t, keys, 2)
}

type fixedActivity struct {
	acts []probe.Activity
}

func (f *fixedActivity) Next([]storage.Server) (probe.Activity, bool) {
	if len(f.acts) == 0 {
		return probe.Activity{}, false
	}
	a := f.acts[0]
	f.acts = f.acts[1:]
	return a, true
}

func TestCycleSimulatesActivity(t *testing.T) {
	src := &fixedActivity{acts: []probe.Activity{
		{Login: true, Username: "Steve", Server: "Hub"},
		{Login: false, Username: "Steve"},
	}}
	h := newHarness(t, func(o *Options) { o.Activity = src })
	h.addServer(t, "Hub")

	h.cycle()
	players := h.m.Players()
	require.Len(t, players, 1)
	assert.True(t, players[0].IsOnline)

	h.cycle()
	players = h.m.Players()
	assert.False(t, players[0].IsOnline)
}
