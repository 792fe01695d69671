package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedFlat(t *testing.T, kv *KV) {
	t.Helper()
	flat := NewFlatStore(kv)
	require.NoError(t, flat.Servers().Add(&Server{ID: "1", Name: "Hub", Address: "mc.example.com", Port: 25565, Enabled: true, Status: StatusOnline}))
	require.NoError(t, flat.Servers().Add(&Server{ID: "2", Name: "Creative", Address: "10.0.0.9", Port: 25565, Status: StatusUnknown}))
	require.NoError(t, flat.Players().Add(&Player{ID: "p1", Username: "alice", FirstSeen: time.Now().UTC(), LastSeen: time.Now().UTC(), Sessions: 3}))
	cfg := DefaultSettings()
	cfg.Storage.LogRetentionDays = 30
	require.NoError(t, flat.SaveConfig(&cfg))
}

func TestMigrateCopiesThenRemovesFlatKeys(t *testing.T) {
	kv := openKV(t)
	dst := openSQL(t)
	seedFlat(t, kv)

	res, err := Migrate(kv, dst)
	require.NoError(t, err)
	assert.Equal(t, MigrationResult{Servers: 2, Players: 1, Config: true}, res)

	servers, err := dst.Servers().List()
	require.NoError(t, err)
	assert.Len(t, servers, 2)

	players, err := dst.Players().List()
	require.NoError(t, err)
	require.Len(t, players, 1)
	assert.Equal(t, 3, players[0].Sessions)

	cfg, err := dst.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.Storage.LogRetentionDays)

	for _, key := range []string{keyServers, keyPlayers, keyConfig} {
		ok, err := kv.Has(key)
		require.NoError(t, err)
		assert.False(t, ok, key)
	}
}

func TestMigrateCarriesSessionsAndEvents(t *testing.T) {
	kv := openKV(t)
	dst := openSQL(t)
	seedFlat(t, kv)

	flat := NewFlatStore(kv)
	login := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, flat.Sessions().Add(&Session{ID: 7, PlayerID: "p1", LoginTime: login}))
	require.NoError(t, flat.AppendEvent(&Event{Type: "SERVER_ONLINE", Timestamp: login, Payload: map[string]any{"server": "Hub"}}))
	require.NoError(t, flat.AppendEvent(&Event{Type: "PLAYER_LOGIN", Timestamp: login.Add(time.Second), Payload: map[string]any{"player": "alice"}}))

	res, err := Migrate(kv, dst)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Sessions)
	assert.Equal(t, 2, res.Events)

	sessions, err := dst.Sessions().QueryByIndex("playerId", "p1")
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.True(t, sessions[0].LoginTime.Equal(login))

	events, err := dst.RecentEvents(0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "PLAYER_LOGIN", events[0].Type)
	assert.Equal(t, "SERVER_ONLINE", events[1].Type)

	for _, key := range []string{keySessions, keyEvents} {
		ok, err := kv.Has(key)
		require.NoError(t, err)
		assert.False(t, ok, key)
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	kv := openKV(t)
	dst := openSQL(t)
	seedFlat(t, kv)

	_, err := Migrate(kv, dst)
	require.NoError(t, err)
	serversAfterFirst, err := dst.Servers().List()
	require.NoError(t, err)
	playersAfterFirst, err := dst.Players().List()
	require.NoError(t, err)
	cfgAfterFirst, err := dst.LoadConfig()
	require.NoError(t, err)

	res, err := Migrate(kv, dst)
	require.NoError(t, err)
	assert.False(t, res.Migrated())

	servers, err := dst.Servers().List()
	require.NoError(t, err)
	players, err := dst.Players().List()
	require.NoError(t, err)
	cfg, err := dst.LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, serversAfterFirst, servers)
	assert.Equal(t, playersAfterFirst, players)
	assert.Equal(t, cfgAfterFirst, cfg)
}

func TestMigrateFailureKeepsFlatData(t *testing.T) {
	kv := openKV(t)
	dst := openSQL(t)
	seedFlat(t, kv)
	require.NoError(t, kv.Set(keyPlayers, []byte("[{broken")))

	_, err := Migrate(kv, dst)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSerialization)

	servers, err := dst.Servers().List()
	require.NoError(t, err)
	assert.Empty(t, servers)

	ok, err := kv.Has(keyServers)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestOpenFallsBackToFlat(t *testing.T) {
	dir := t.TempDir()
	blocked := filepath.Join(dir, "blocked.db")
	require.NoError(t, os.MkdirAll(blocked, 0755))

	s, err := Open(Options{Backend: BackendAuto, SQLitePath: blocked, KVPath: filepath.Join(dir, "craftwatch.kv")}, zerolog.Nop())
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, BackendFlat, s.Backend())
	require.NoError(t, s.Servers().Add(&Server{ID: "1", Name: "Hub"}))
	got, err := s.Servers().Get("1")
	require.NoError(t, err)
	assert.Equal(t, "Hub", got.Name)
}

func TestOpenStructuredFailsHard(t *testing.T) {
	dir := t.TempDir()
	blocked := filepath.Join(dir, "blocked.db")
	require.NoError(t, os.MkdirAll(blocked, 0755))

	_, err := Open(Options{Backend: BackendStructured, SQLitePath: blocked, KVPath: filepath.Join(dir, "craftwatch.kv")}, zerolog.Nop())
	assert.Error(t, err)
}

func TestOpenMigratesOnStructuredStart(t *testing.T) {
	dir := t.TempDir()
	kvPath := filepath.Join(dir, "craftwatch.kv")

	flat, err := Open(Options{Backend: BackendFlat, KVPath: kvPath}, zerolog.Nop())
	require.NoError(t, err)
	seedFlat(t, flat.KV())
	require.NoError(t, flat.Close())

	s, err := Open(Options{Backend: BackendAuto, SQLitePath: filepath.Join(dir, "craftwatch.db"), KVPath: kvPath}, zerolog.Nop())
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, BackendStructured, s.Backend())
	servers, err := s.Servers().List()
	require.NoError(t, err)
	assert.Len(t, servers, 2)

	ok, err := s.KV().Has(keyServers)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOpenRejectsUnknownBackend(t *testing.T) {
	dir := t.TempDir()
	_, err := Open(Options{Backend: "cloud", KVPath: filepath.Join(dir, "craftwatch.kv")}, zerolog.Nop())
	assert.Error(t, err)
}
