package storage

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openKV(t *testing.T) *KV {
	t.Helper()
	kv, err := OpenKV(filepath.Join(t.TempDir(), "craftwatch.kv"))
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })
	return kv
}

func openSQL(t *testing.T) *SQLStore {
	t.Helper()
	s, err := OpenSQL(filepath.Join(t.TempDir(), "craftwatch.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// backends returns a fresh instance of every Store implementation.
func backends(t *testing.T) map[Backend]Store {
	return map[Backend]Store{
		BackendStructured: openSQL(t),
		BackendFlat:       NewFlatStore(openKV(t)),
	}
}

func strPtr(s string) *string { return &s }

func TestServerCollection(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(string(name), func(t *testing.T) {
			servers := store.Servers()

			hub := Server{ID: "1", Name: "Hub", Address: "mc.example.com", Port: 25565, Enabled: true, Status: StatusUnknown}
			require.NoError(t, servers.Add(&hub))
			assert.ErrorIs(t, servers.Add(&hub), ErrDuplicateKey)

			got, err := servers.Get("1")
			require.NoError(t, err)
			assert.Equal(t, "Hub", got.Name)
			assert.Equal(t, StatusUnknown, got.Status)

			_, err = servers.Get("missing")
			assert.ErrorIs(t, err, ErrNotFound)

			updated, err := servers.Update("1", func(s *Server) {
				s.Status = StatusOnline
				s.PlayersOnline = 5
			})
			require.NoError(t, err)
			assert.Equal(t, StatusOnline, updated.Status)

			_, err = servers.Update("missing", func(*Server) {})
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, servers.Add(&Server{ID: "2", Name: "Survival", Address: "10.0.0.2", Port: 25566, Status: StatusUnknown}))

			online, err := servers.QueryByIndex("status", "online")
			require.NoError(t, err)
			require.Len(t, online, 1)
			assert.Equal(t, "1", online[0].ID)

			disabled, err := servers.QueryByIndex("enabled", false)
			require.NoError(t, err)
			require.Len(t, disabled, 1)
			assert.Equal(t, "Survival", disabled[0].Name)

			_, err = servers.QueryByIndex("motd", "x")
			assert.Error(t, err)

			all, err := servers.List()
			require.NoError(t, err)
			require.Len(t, all, 2)
			assert.Equal(t, "1", all[0].ID)
			assert.Equal(t, "2", all[1].ID)

			ok, err := servers.Delete("1")
			require.NoError(t, err)
			assert.True(t, ok)
			ok, err = servers.Delete("1")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, servers.Clear())
			all, err = servers.List()
			require.NoError(t, err)
			assert.Empty(t, all)
		})
	}
}

func TestPlayerCollection(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)

	for name, store := range backends(t) {
		t.Run(string(name), func(t *testing.T) {
			players := store.Players()

			alice := Player{ID: "p1", Username: "alice", FirstSeen: now, LastSeen: now, IsOnline: true, CurrentServer: strPtr("Hub")}
			bob := Player{ID: "p2", Username: "bob", FirstSeen: now, LastSeen: now}
			require.NoError(t, players.Add(&alice))
			require.NoError(t, players.Add(&bob))

			dup := Player{ID: "p3", Username: "alice"}
			assert.ErrorIs(t, players.Add(&dup), ErrDuplicateKey)
			assert.ErrorIs(t, players.Put(&dup), ErrDuplicateKey)

			byName, err := players.QueryByIndex("username", "alice")
			require.NoError(t, err)
			require.Len(t, byName, 1)
			assert.Equal(t, "p1", byName[0].ID)
			assert.True(t, byName[0].LastSeen.Equal(now))

			onHub, err := players.QueryByIndex("currentServer", "Hub")
			require.NoError(t, err)
			assert.Len(t, onHub, 1)

			idle, err := players.QueryByIndex("currentServer", nil)
			require.NoError(t, err)
			require.Len(t, idle, 1)
			assert.Equal(t, "bob", idle[0].Username)

			offline, err := players.QueryByIndex("isOnline", false)
			require.NoError(t, err)
			assert.Len(t, offline, 1)

			bob.Favorite = true
			require.NoError(t, players.Put(&bob))
			got, err := players.Get("p2")
			require.NoError(t, err)
			assert.True(t, got.Favorite)

			require.NoError(t, players.ReplaceAll([]Player{alice}))
			all, err := players.List()
			require.NoError(t, err)
			require.Len(t, all, 1)
			assert.Equal(t, "alice", all[0].Username)
		})
	}
}

func TestSessionsGetSequenceIDs(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(string(name), func(t *testing.T) {
			sessions := store.Sessions()
			first := Session{PlayerID: "p1", LoginTime: time.Now()}
			second := Session{PlayerID: "p1", LoginTime: time.Now()}
			require.NoError(t, sessions.Add(&first))
			require.NoError(t, sessions.Add(&second))

			assert.NotZero(t, first.ID)
			assert.Greater(t, second.ID, first.ID)

			mine, err := sessions.QueryByIndex("playerId", "p1")
			require.NoError(t, err)
			assert.Len(t, mine, 2)
		})
	}
}

func TestAppendEventEvictsOldest(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(string(name), func(t *testing.T) {
			base := time.Now().UTC()
			for i := 0; i < EventCapacity; i++ {
				e := Event{Type: "server_online", Timestamp: base.Add(time.Duration(i) * time.Second), Payload: map[string]any{"n": i}}
				require.NoError(t, store.AppendEvent(&e))
			}

			all, err := store.Events().List()
			require.NoError(t, err)
			require.Len(t, all, EventCapacity)
			oldest := all[0].ID

			extra := Event{Type: "server_offline", Timestamp: base.Add(time.Hour)}
			require.NoError(t, store.AppendEvent(&extra))

			all, err = store.Events().List()
			require.NoError(t, err)
			assert.Len(t, all, EventCapacity)
			for _, e := range all {
				assert.NotEqual(t, oldest, e.ID)
			}

			recent, err := store.RecentEvents(3)
			require.NoError(t, err)
			require.Len(t, recent, 3)
			assert.Equal(t, extra.ID, recent[0].ID)
			assert.Equal(t, "server_offline", recent[0].Type)

			offline, err := store.Events().QueryByIndex("type", "server_offline")
			require.NoError(t, err)
			assert.Len(t, offline, 1)
		})
	}
}

func TestConfigRoundTrip(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(string(name), func(t *testing.T) {
			_, err := store.LoadConfig()
			assert.ErrorIs(t, err, ErrNotFound)

			cfg := DefaultSettings()
			cfg.Monitoring.CheckInterval = 5000
			cfg.Notifications.PlayerLogout = true
			require.NoError(t, store.SaveConfig(&cfg))

			got, err := store.LoadConfig()
			require.NoError(t, err)
			assert.Equal(t, cfg, *got)
		})
	}
}

func TestFlatCorruptBlobIsSerializationFailure(t *testing.T) {
	kv := openKV(t)
	require.NoError(t, kv.Set(keyServers, []byte("{not json")))

	store := NewFlatStore(kv)
	_, err := store.Servers().List()
	assert.ErrorIs(t, err, ErrSerialization)

	err = store.Servers().Add(&Server{ID: "1", Name: "Hub"})
	assert.ErrorIs(t, err, ErrSerialization)

	raw, ok, err := kv.Get(keyServers)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "{not json", string(raw))
}

func TestErrorKinds(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", newError(ErrNotFound, "get", "servers", "42", nil))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, ErrNotFound, KindOf(err))
	assert.Contains(t, err.Error(), "servers[42]")

	cause := fmt.Errorf("disk full")
	err = aborted("put", "players", "p1", cause)
	assert.ErrorIs(t, err, ErrTransactionAborted)
	assert.ErrorIs(t, err, cause)
	assert.Nil(t, KindOf(cause))
}
