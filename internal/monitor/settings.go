package monitor

import (
	"fmt"
	"time"

	"github.com/ankityadav/craftwatch/internal/stats"
	"github.com/ankityadav/craftwatch/internal/storage"
)

const minCheckInterval = 5 * time.Second

func (m *Monitor) Settings() storage.Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings
}

func validateSettings(s storage.Settings) error {
	if s.CheckInterval() < minCheckInterval {
		return &ValidationError{Field: "monitoring.checkInterval", Message: fmt.Sprintf("must be at least %d ms", minCheckInterval.Milliseconds())}
	}
	if s.Storage.BackupInterval < 0 {
		return &ValidationError{Field: "storage.backupInterval", Message: "must not be negative"}
	}
	if s.Storage.LogRetentionDays < 0 {
		return &ValidationError{Field: "storage.logRetentionDays", Message: "must not be negative"}
	}
	return nil
}

// SaveSettings persists the whole settings record and reschedules the probe
// timer when the check interval changed.
func (m *Monitor) SaveSettings(s storage.Settings) error {
	if err := validateSettings(s); err != nil {
		return err
	}

	var old time.Duration
	err := m.mutate(func(tx *txn) error {
		if err := m.store.SaveConfig(&s); err != nil {
			m.logActivity(tx, LogError, fmt.Sprintf("Failed to save settings: %v", err))
			return err
		}
		old = m.settings.CheckInterval()
		m.settings = s
		m.logActivity(tx, LogSettingsSave, "Settings saved")
		tx.events = append(tx.events, m.event(EventSettingsSaved, nil))
		return nil
	})
	if err != nil {
		return err
	}

	if s.CheckInterval() != old {
		m.reschedule(s.CheckInterval())
	}
	return nil
}

type Summary struct {
	Running        bool               `json:"running"`
	Uptime         time.Duration      `json:"uptime"`
	Servers        stats.ServerCounts `json:"servers"`
	Players        stats.PlayerStats  `json:"players"`
	PlayersOnline  int                `json:"playersOnline"`
	AverageLatency float64            `json:"averageLatency"`
	UnreadAlerts   int                `json:"unreadAlerts"`
	LastBackup     time.Time          `json:"lastBackup"`
}

// Summary computes the current statistics.
func (m *Monitor) Summary() Summary {
	s := Summary{Running: m.Running(), Uptime: m.Uptime()}

	m.mu.Lock()
	defer m.mu.Unlock()
	s.Servers = stats.CountServers(m.servers)
	s.Players = stats.ComputePlayerStats(m.players, m.now())
	s.PlayersOnline = stats.PlayersOnline(m.servers)
	s.AverageLatency = stats.AverageLatency(m.servers)
	s.LastBackup = m.lastBackup
	for _, e := range m.alerts.History {
		if !e.Read {
			s.UnreadAlerts++
		}
	}
	return s
}

func (m *Monitor) Backend() storage.Backend {
	return m.store.Backend()
}

// RecentEvents returns persisted domain events newest first.
func (m *Monitor) RecentEvents(limit int) ([]storage.Event, error) {
	return m.store.RecentEvents(limit)
}
