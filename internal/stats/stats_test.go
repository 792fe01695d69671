package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ankityadav/craftwatch/internal/storage"
)

func TestCountServersPartition(t *testing.T) {
	servers := []storage.Server{
		{ID: "1", Enabled: true, Status: storage.StatusOnline, PlayersOnline: 12, Latency: 40},
		{ID: "2", Enabled: true, Status: storage.StatusOffline},
		{ID: "3", Enabled: false, Status: storage.StatusOnline, PlayersOnline: 50},
		{ID: "4", Enabled: false, Status: storage.StatusOffline},
		{ID: "5", Enabled: true, Status: storage.StatusError},
		{ID: "6", Enabled: true, Status: storage.StatusUnknown},
		{ID: "7", Enabled: true, Status: storage.StatusOnline, PlayersOnline: 3, Latency: 80},
	}

	c := CountServers(servers)
	assert.Equal(t, ServerCounts{Total: 7, Online: 2, Offline: 1, Error: 1, Unknown: 1, Disabled: 2}, c)
	assert.Equal(t, c.Total, c.Online+c.Offline+c.Error+c.Unknown+c.Disabled)

	assert.Equal(t, 15, PlayersOnline(servers))
	assert.InDelta(t, 60.0, AverageLatency(servers), 0.001)
	assert.Zero(t, AverageLatency(nil))
}

func TestComputePlayerStats(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	players := []storage.Player{
		{Username: "alice", IsOnline: true, TotalPlayTime: 3600, Sessions: 2, LastSeen: now.Add(-time.Hour)},
		{Username: "bob", TotalPlayTime: 600, Sessions: 1, LastSeen: now.Add(-13 * time.Hour)},
		{Username: "carol", TotalPlayTime: 200, Sessions: 1, LastSeen: time.Date(2024, 6, 1, 1, 0, 0, 0, time.FixedZone("UTC+3", 3*3600))},
	}

	st := ComputePlayerStats(players, now)
	assert.Equal(t, 3, st.Total)
	assert.Equal(t, 1, st.Online)
	assert.Equal(t, int64(4400), st.TotalPlayTime)
	assert.Equal(t, 4, st.TotalSessions)
	assert.InDelta(t, 1100.0, st.AverageSessionTime, 0.001)
	// bob was last seen on May 31 UTC; carol's local June 1 is May 31 UTC.
	assert.Equal(t, 1, st.UniqueToday)
}

func TestAverageSessionTimeWithoutSessions(t *testing.T) {
	st := ComputePlayerStats([]storage.Player{{Username: "ghost", TotalPlayTime: 99}}, time.Now())
	assert.Equal(t, 0.0, st.AverageSessionTime)

	empty := ComputePlayerStats(nil, time.Now())
	assert.Equal(t, PlayerStats{}, empty)
}

func TestFormatPlayTime(t *testing.T) {
	assert.Equal(t, "45s", FormatPlayTime(45))
	assert.Equal(t, "12m", FormatPlayTime(12*60+5))
	assert.Equal(t, "3h 25m", FormatPlayTime(3*3600+25*60))
}

func TestFormatUptime(t *testing.T) {
	assert.Equal(t, "0m", FormatUptime(30*time.Second))
	assert.Equal(t, "1h 5m", FormatUptime(65*time.Minute))
	assert.Equal(t, "2d 3h 4m", FormatUptime(51*time.Hour+4*time.Minute))
}
