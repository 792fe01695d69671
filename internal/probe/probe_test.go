package probe

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ankityadav/craftwatch/internal/storage"
)

func TestSimulatorResultShape(t *testing.T) {
	sim := NewSimulator(42)
	server := storage.Server{Name: "Hub", MaxPlayers: 20}

	var online, offline int
	for i := 0; i < 200; i++ {
		res, err := sim.Probe(context.Background(), server)
		require.NoError(t, err)
		if res.Online {
			online++
			assert.Less(t, res.PlayersOnline, 20)
			assert.Less(t, res.Latency, 300)
			assert.Equal(t, "1.20.1", res.Version)
		} else {
			offline++
			assert.Zero(t, res.PlayersOnline)
			assert.Equal(t, storage.UnreachableLatency, res.Latency)
		}
		assert.Equal(t, 20, res.MaxPlayers)
	}
	assert.NotZero(t, online)
	assert.NotZero(t, offline)
}

func TestSimulatorAlwaysOnline(t *testing.T) {
	sim := NewSimulator(1)
	sim.OnlineChance = 1
	res, err := sim.Probe(context.Background(), storage.Server{MaxPlayers: 0})
	require.NoError(t, err)
	assert.True(t, res.Online)
	assert.Zero(t, res.PlayersOnline)
}

func TestSimulatorHonoursContext(t *testing.T) {
	sim := NewSimulator(7)
	sim.MaxDelay = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := sim.Probe(ctx, storage.Server{MaxPlayers: 20})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestActivitySimulator(t *testing.T) {
	act := NewActivitySimulator(3)
	act.Chance = 1

	_, ok := act.Next([]storage.Server{{Name: "Hub", Enabled: true, Status: storage.StatusOffline}})
	assert.False(t, ok, "no online server")

	servers := []storage.Server{
		{Name: "Hub", Enabled: true, Status: storage.StatusOnline},
		{Name: "Frozen", Enabled: false, Status: storage.StatusOnline},
	}
	for i := 0; i < 20; i++ {
		a, ok := act.Next(servers)
		require.True(t, ok)
		assert.Equal(t, "Hub", a.Server)
		assert.Contains(t, DefaultUsernames, a.Username)
	}

	act.Chance = 0
	_, ok = act.Next(servers)
	assert.False(t, ok)
}
