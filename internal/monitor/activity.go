package monitor

import (
	"time"

	"github.com/ankityadav/craftwatch/internal/storage"
)

// Activity log entry types.
const (
	LogMonitorStart  = "MONITOR_START"
	LogMonitorStop   = "MONITOR_STOP"
	LogServerCheck   = "SERVER_CHECK"
	LogServerAdd     = "SERVER_ADD"
	LogServerRemove  = "SERVER_REMOVE"
	LogServerToggle  = "SERVER_TOGGLE"
	LogServerUpdate  = "SERVER_UPDATE"
	LogPlayerLogin   = "PLAYER_LOGIN"
	LogPlayerLogout  = "PLAYER_LOGOUT"
	LogBackupCreate  = "BACKUP_CREATE"
	LogBackupRestore = "BACKUP_RESTORE"
	LogDataExport    = "DATA_EXPORT"
	LogDataClear     = "DATA_CLEAR"
	LogDataSave      = "DATA_SAVE"
	LogSettingsSave  = "SETTINGS_SAVE"
	LogError         = "ERROR"
)

// logActivity prepends an entry, evicts past the capacity and the retention
// window and mirrors the list to the side store. Caller holds m.mu.
func (m *Monitor) logActivity(tx *txn, typ, message string) {
	now := m.now()
	entry := storage.LogEntry{Timestamp: now, Type: typ, Message: message}

	logs := make([]storage.LogEntry, 0, len(m.logs)+1)
	logs = append(logs, entry)
	logs = append(logs, m.logs...)

	if days := m.settings.Storage.LogRetentionDays; days > 0 {
		cutoff := now.Add(-time.Duration(days) * 24 * time.Hour)
		kept := logs[:0]
		for _, e := range logs {
			if !e.Timestamp.Before(cutoff) {
				kept = append(kept, e)
			}
		}
		logs = kept
	}
	if len(logs) > m.opts.LogCapacity {
		logs = logs[:m.opts.LogCapacity]
	}
	m.logs = logs

	if err := m.side.SaveActivityLog(m.logs); err != nil {
		m.log.Warn().Err(err).Msg("failed to persist activity log")
	}

	tx.events = append(tx.events, m.event(EventActivity, map[string]any{
		"type":    typ,
		"message": message,
	}))
}

// ActivityLog returns the log newest first.
func (m *Monitor) ActivityLog() []storage.LogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]storage.LogEntry(nil), m.logs...)
}
