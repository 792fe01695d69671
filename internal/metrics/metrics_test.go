package metrics

import (
	"io"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ankityadav/craftwatch/internal/monitor"
	"github.com/ankityadav/craftwatch/internal/stats"
	"github.com/ankityadav/craftwatch/internal/storage"
)

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var metric dto.Metric
	require.NoError(t, g.Write(&metric))
	return metric.GetGauge().GetValue()
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var metric dto.Metric
	require.NoError(t, c.Write(&metric))
	return metric.GetCounter().GetValue()
}

type fakeSource struct {
	summary monitor.Summary
	servers []storage.Server
}

func (f *fakeSource) Summary() monitor.Summary { return f.summary }
func (f *fakeSource) Servers() []storage.Server { return f.servers }

func TestObserve(t *testing.T) {
	m := New()
	m.Observe(monitor.Summary{
		Running: true,
		Uptime:  90 * time.Second,
		Servers: stats.ServerCounts{Total: 3, Online: 1, Offline: 1, Disabled: 1},
		Players: stats.PlayerStats{Total: 4, Online: 2, TotalPlayTime: 3600, TotalSessions: 6},
	}, []storage.Server{
		{Name: "Hub", Enabled: true, Status: storage.StatusOnline, PlayersOnline: 7, Latency: 40},
		{Name: "Lobby", Enabled: true, Status: storage.StatusOffline, Latency: storage.UnreachableLatency},
		{Name: "Old", Enabled: false, Status: storage.StatusOnline},
	})

	assert.Equal(t, 1.0, gaugeValue(t, m.Servers.WithLabelValues("online")))
	assert.Equal(t, 1.0, gaugeValue(t, m.Servers.WithLabelValues("disabled")))
	assert.Equal(t, 7.0, gaugeValue(t, m.ServerPlayers.WithLabelValues("Hub")))
	assert.Equal(t, 0.0, gaugeValue(t, m.ServerUp.WithLabelValues("Lobby")))
	assert.Equal(t, 2.0, gaugeValue(t, m.PlayersOnline))
	assert.Equal(t, 3600.0, gaugeValue(t, m.PlayTime))
	assert.Equal(t, 1.0, gaugeValue(t, m.Running))
	assert.Equal(t, 90.0, gaugeValue(t, m.UptimeSeconds))

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() == "craftwatch_server_up" {
			assert.Len(t, f.GetMetric(), 2, "disabled servers are not exported")
		}
	}
}

func TestHandlerRefreshesFromSource(t *testing.T) {
	m := New()
	m.source = &fakeSource{
		summary: monitor.Summary{Players: stats.PlayerStats{Total: 5}},
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, string(body), "craftwatch_players_known 5")
}

func TestAttachCountsMonitorEvents(t *testing.T) {
	st, err := storage.Open(storage.Options{
		Backend: storage.BackendFlat,
		KVPath:  filepath.Join(t.TempDir(), "craftwatch.kv"),
	}, zerolog.Nop())
	require.NoError(t, err)
	defer st.Close()

	mon := monitor.New(st, st.KV(), nil, nil, monitor.Options{Logger: zerolog.Nop()})
	require.NoError(t, mon.Load())

	m := New()
	detach := m.Attach(mon)

	_, err = mon.PlayerLogin("Steve", "Hub")
	require.NoError(t, err)
	_, err = mon.PlayerLogout("Steve")
	require.NoError(t, err)

	assert.Equal(t, 1.0, counterValue(t, m.EventsTotal.WithLabelValues(monitor.EventPlayerLogin)))
	assert.Equal(t, 1.0, counterValue(t, m.EventsTotal.WithLabelValues(monitor.EventPlayerLogout)))
	assert.Equal(t, 1.0, counterValue(t, m.AlertsTotal.WithLabelValues(monitor.EventPlayerLogin)))

	detach()
	_, err = mon.PlayerLogin("Alex", "Hub")
	require.NoError(t, err)
	assert.Equal(t, 1.0, counterValue(t, m.EventsTotal.WithLabelValues(monitor.EventPlayerLogin)))
}
