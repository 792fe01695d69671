package monitor

import (
	"fmt"

	"github.com/ankityadav/craftwatch/internal/storage"
)

// Backup snapshots servers, players, settings and alerts under a new
// timestamped key and prunes the oldest snapshots past the retention limit.
func (m *Monitor) Backup() (string, error) {
	var key string
	err := m.mutate(func(tx *txn) error {
		b := storage.Backup{
			Timestamp: m.now(),
			Servers:   append([]storage.Server{}, m.servers...),
			Players:   append([]storage.Player{}, m.players...),
			Config:    m.settings,
			Alerts:    copyAlerts(m.alerts),
		}

		var err error
		key, err = m.side.SaveBackup(&b)
		if err != nil {
			m.logActivity(tx, LogError, fmt.Sprintf("Backup failed: %v", err))
			return err
		}
		m.lastBackup = b.Timestamp

		pruned, err := m.side.PruneBackups(m.opts.MaxBackups)
		if err != nil {
			m.log.Warn().Err(err).Msg("failed to prune old backups")
		} else if len(pruned) > 0 {
			m.log.Debug().Strs("keys", pruned).Msg("pruned old backups")
		}

		m.logActivity(tx, LogBackupCreate, fmt.Sprintf("Backup created: %s", key))
		return nil
	})
	if err != nil {
		return "", err
	}
	m.log.Info().Str("key", key).Msg("backup created")
	return key, nil
}

// ListBackups returns backup keys newest first.
func (m *Monitor) ListBackups() ([]string, error) {
	return m.side.ListBackups()
}

// RestoreBackup replaces servers, players, settings and alert configuration
// with the snapshot stored under key.
func (m *Monitor) RestoreBackup(key string) error {
	b, err := m.side.LoadBackup(key)
	if err != nil {
		return err
	}

	oldInterval := m.Settings().CheckInterval()
	err = m.mutate(func(tx *txn) error {
		if err := m.store.Servers().ReplaceAll(b.Servers); err != nil {
			m.logActivity(tx, LogError, fmt.Sprintf("Restore of %s failed: %v", key, err))
			return err
		}
		if err := m.store.Players().ReplaceAll(b.Players); err != nil {
			m.logActivity(tx, LogError, fmt.Sprintf("Restore of %s failed: %v", key, err))
			return err
		}
		if err := m.store.SaveConfig(&b.Config); err != nil {
			m.logActivity(tx, LogError, fmt.Sprintf("Restore of %s failed: %v", key, err))
			return err
		}

		if b.Alerts.History == nil {
			b.Alerts.History = []storage.AlertEntry{}
		}
		m.servers = append([]storage.Server{}, b.Servers...)
		m.players = append([]storage.Player{}, b.Players...)
		m.settings = b.Config
		if len(b.Alerts.Triggers) > 0 {
			m.alerts = b.Alerts
			m.saveAlerts()
		}
		for _, s := range m.servers {
			m.observeID(s.ID)
		}
		for _, p := range m.players {
			m.observeID(p.ID)
		}

		m.logActivity(tx, LogBackupRestore, fmt.Sprintf("Restored backup %s", key))
		tx.events = append(tx.events,
			m.event(EventServersChanged, nil),
			m.event(EventPlayersChanged, nil),
			m.event(EventSettingsSaved, nil),
		)
		return nil
	})
	if err != nil {
		return err
	}

	if interval := b.Config.CheckInterval(); interval != oldInterval {
		m.reschedule(interval)
	}
	m.log.Info().Str("key", key).Msg("backup restored")
	return nil
}

// ClearData backs everything up, then empties the server, player, session
// and event collections.
func (m *Monitor) ClearData() (string, error) {
	key, err := m.Backup()
	if err != nil {
		return "", fmt.Errorf("backup before clear failed: %w", err)
	}

	err = m.mutate(func(tx *txn) error {
		for _, clearFn := range []func() error{
			m.store.Servers().Clear,
			m.store.Players().Clear,
			m.store.Sessions().Clear,
			m.store.Events().Clear,
		} {
			if err := clearFn(); err != nil {
				m.logActivity(tx, LogError, fmt.Sprintf("Failed to clear data: %v", err))
				return err
			}
		}

		m.servers = nil
		m.players = nil
		m.logActivity(tx, LogDataClear, fmt.Sprintf("All data cleared, backup %s kept", key))
		tx.events = append(tx.events,
			m.event(EventServersChanged, nil),
			m.event(EventPlayersChanged, nil),
		)
		return nil
	})
	if err != nil {
		return key, err
	}
	m.log.Warn().Str("backup", key).Msg("all data cleared")
	return key, nil
}
