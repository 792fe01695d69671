// Package metrics exposes monitor statistics in the Prometheus format.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ankityadav/craftwatch/internal/monitor"
	"github.com/ankityadav/craftwatch/internal/storage"
)

// Source is the read side of the monitor the gauges are refreshed from.
type Source interface {
	Summary() monitor.Summary
	Servers() []storage.Server
}

// Metrics holds all Prometheus metrics for craftwatch
type Metrics struct {
	// Server gauges
	Servers       *prometheus.GaugeVec
	ServerPlayers *prometheus.GaugeVec
	ServerLatency *prometheus.GaugeVec
	ServerUp      *prometheus.GaugeVec

	// Player gauges
	PlayersOnline prometheus.Gauge
	PlayersKnown  prometheus.Gauge
	PlayTime      prometheus.Gauge
	Sessions      prometheus.Gauge

	// Counters fed by monitor events
	EventsTotal  *prometheus.CounterVec
	AlertsTotal  *prometheus.CounterVec
	CyclesTotal  prometheus.Counter
	UnreadAlerts prometheus.Gauge

	Running       prometheus.Gauge
	UptimeSeconds prometheus.Gauge

	mu       sync.Mutex
	source   Source
	registry *prometheus.Registry
}

// New creates a new Metrics instance with all metrics registered
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Servers: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "craftwatch_servers",
				Help: "Number of monitored servers by status",
			},
			[]string{"status"},
		),
		ServerPlayers: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "craftwatch_server_players",
				Help: "Players online on each server at the last probe",
			},
			[]string{"server"},
		),
		ServerLatency: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "craftwatch_server_latency_milliseconds",
				Help: "Probe latency of each server",
			},
			[]string{"server"},
		),
		ServerUp: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "craftwatch_server_up",
				Help: "Whether the server answered its last probe",
			},
			[]string{"server"},
		),
		PlayersOnline: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "craftwatch_players_online",
				Help: "Tracked players currently online",
			},
		),
		PlayersKnown: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "craftwatch_players_known",
				Help: "Players ever seen",
			},
		),
		PlayTime: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "craftwatch_play_time_seconds",
				Help: "Play time accumulated by all players",
			},
		),
		Sessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "craftwatch_sessions",
				Help: "Sessions recorded for all players",
			},
		),
		EventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "craftwatch_events_total",
				Help: "Domain events raised by the monitor",
			},
			[]string{"type"},
		),
		AlertsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "craftwatch_alerts_total",
				Help: "Alerts recorded in the alert history",
			},
			[]string{"type"},
		),
		CyclesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "craftwatch_probe_cycles_total",
				Help: "Completed probe cycles",
			},
		),
		UnreadAlerts: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "craftwatch_alerts_unread",
				Help: "Alert history entries not yet marked read",
			},
		),
		Running: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "craftwatch_monitoring_running",
				Help: "Whether periodic monitoring is active",
			},
		),
		UptimeSeconds: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "craftwatch_monitoring_uptime_seconds",
				Help: "Time since monitoring was started",
			},
		),
		registry: reg,
	}

	reg.MustRegister(
		m.Servers,
		m.ServerPlayers,
		m.ServerLatency,
		m.ServerUp,
		m.PlayersOnline,
		m.PlayersKnown,
		m.PlayTime,
		m.Sessions,
		m.EventsTotal,
		m.AlertsTotal,
		m.CyclesTotal,
		m.UnreadAlerts,
		m.Running,
		m.UptimeSeconds,
	)

	return m
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Observe sets every gauge from a summary and the current server list.
func (m *Metrics) Observe(s monitor.Summary, servers []storage.Server) {
	m.Servers.WithLabelValues("online").Set(float64(s.Servers.Online))
	m.Servers.WithLabelValues("offline").Set(float64(s.Servers.Offline))
	m.Servers.WithLabelValues("error").Set(float64(s.Servers.Error))
	m.Servers.WithLabelValues("unknown").Set(float64(s.Servers.Unknown))
	m.Servers.WithLabelValues("disabled").Set(float64(s.Servers.Disabled))

	m.ServerPlayers.Reset()
	m.ServerLatency.Reset()
	m.ServerUp.Reset()
	for _, srv := range servers {
		if !srv.Enabled {
			continue
		}
		up := 0.0
		if srv.Status == storage.StatusOnline {
			up = 1
		}
		m.ServerUp.WithLabelValues(srv.Name).Set(up)
		m.ServerPlayers.WithLabelValues(srv.Name).Set(float64(srv.PlayersOnline))
		m.ServerLatency.WithLabelValues(srv.Name).Set(float64(srv.Latency))
	}

	m.PlayersOnline.Set(float64(s.Players.Online))
	m.PlayersKnown.Set(float64(s.Players.Total))
	m.PlayTime.Set(float64(s.Players.TotalPlayTime))
	m.Sessions.Set(float64(s.Players.TotalSessions))
	m.UnreadAlerts.Set(float64(s.UnreadAlerts))

	running := 0.0
	if s.Running {
		running = 1
	}
	m.Running.Set(running)
	m.UptimeSeconds.Set(s.Uptime.Seconds())
}

// Attach counts monitor events and refreshes the gauges after every probe
// cycle. The returned function detaches.
func (m *Metrics) Attach(mon *monitor.Monitor) func() {
	m.mu.Lock()
	m.source = mon
	m.mu.Unlock()

	return mon.On(monitor.AnyEvent, func(e monitor.Event) {
		switch e.Name {
		case monitor.EventServerOnline, monitor.EventServerOffline,
			monitor.EventPlayerLogin, monitor.EventPlayerLogout, monitor.EventHighPlayerCount:
			m.EventsTotal.WithLabelValues(e.Name).Inc()
		case monitor.EventAlert:
			typ, _ := e.Payload["type"].(string)
			m.AlertsTotal.WithLabelValues(typ).Inc()
		case monitor.EventCycleComplete:
			m.CyclesTotal.Inc()
			m.Observe(mon.Summary(), mon.Servers())
		}
	})
}

func (m *Metrics) refresh() {
	m.mu.Lock()
	src := m.source
	m.mu.Unlock()
	if src != nil {
		m.Observe(src.Summary(), src.Servers())
	}
}

// Handler serves the registry, refreshing the gauges on every scrape.
func (m *Metrics) Handler() http.Handler {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.refresh()
		h.ServeHTTP(w, r)
	})
}
