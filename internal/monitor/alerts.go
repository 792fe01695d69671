package monitor

import (
	"fmt"
	"regexp"

	"github.com/ankityadav/craftwatch/internal/storage"
)

var placeholder = regexp.MustCompile(`\{(\w+)\}`)

// FormatAlertMessage substitutes {key} tokens from payload. Unknown keys are
// left as written.
func FormatAlertMessage(template string, payload map[string]any) string {
	return placeholder.ReplaceAllStringFunc(template, func(tok string) string {
		key := tok[1 : len(tok)-1]
		if v, ok := payload[key]; ok {
			return fmt.Sprint(v)
		}
		return tok
	})
}

var alertTitles = map[string]string{
	EventServerOnline:    "Server online",
	EventServerOffline:   "Server offline",
	EventPlayerLogin:     "Player joined",
	EventPlayerLogout:    "Player left",
	EventHighPlayerCount: "High player count",
}

// notificationAllowed applies the per-event notification switches from settings.
func (m *Monitor) notificationAllowed(alertType string) bool {
	n := m.settings.Notifications
	switch alertType {
	case EventPlayerLogin:
		return n.PlayerLogin
	case EventPlayerLogout:
		return n.PlayerLogout
	case EventServerOffline:
		return n.ServerDown
	}
	return true
}

// triggerAlert renders the rule message, queues the notification and sound,
// records a history entry and persists the alert configuration. Every call
// produces one entry. Caller holds m.mu.
func (m *Monitor) triggerAlert(tx *txn, alertType string, payload map[string]any) {
	if !m.alerts.Enabled {
		return
	}

	message := alertType
	var sound string
	if rule, ok := m.alerts.Rule(alertType); ok {
		message = FormatAlertMessage(rule.Message, payload)
		sound = rule.Sound
	}

	var n notice
	if m.alerts.Desktop && m.notificationAllowed(alertType) {
		n.title = alertTitles[alertType]
		if n.title == "" {
			n.title = "craftwatch"
		}
		n.message = message
	}
	if m.alerts.Sound && sound != "" {
		n.sound = sound
	}
	if n.title != "" || n.sound != "" {
		tx.notices = append(tx.notices, n)
	}

	entry := storage.AlertEntry{
		ID:        m.nextID(),
		Type:      alertType,
		Message:   message,
		Timestamp: m.now(),
	}
	m.alerts.History = append([]storage.AlertEntry{entry}, m.alerts.History...)
	if limit := m.opts.AlertHistoryLimit; limit > 0 && len(m.alerts.History) > limit {
		m.alerts.History = m.alerts.History[:limit]
	}
	m.saveAlerts()

	tx.events = append(tx.events, m.event(EventAlert, map[string]any{
		"id":      entry.ID,
		"type":    alertType,
		"message": message,
	}))
}

func (m *Monitor) saveAlerts() {
	if err := m.side.SaveAlerts(&m.alerts); err != nil {
		m.log.Error().Err(err).Msg("failed to persist alerts")
	}
}

func copyAlerts(a storage.AlertConfig) storage.AlertConfig {
	out := a
	out.Triggers = make([]storage.AlertRule, len(a.Triggers))
	for i, r := range a.Triggers {
		if r.Threshold != nil {
			t := *r.Threshold
			r.Threshold = &t
		}
		out.Triggers[i] = r
	}
	out.History = append([]storage.AlertEntry{}, a.History...)
	return out
}

func (m *Monitor) Alerts() storage.AlertConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyAlerts(m.alerts)
}

func (m *Monitor) UnreadAlerts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.alerts.History {
		if !e.Read {
			n++
		}
	}
	return n
}

// SetAlertOptions switches alerting, desktop popups and sounds as a whole.
func (m *Monitor) SetAlertOptions(enabled, desktop, sound bool) error {
	return m.mutate(func(tx *txn) error {
		m.alerts.Enabled = enabled
		m.alerts.Desktop = desktop
		m.alerts.Sound = sound
		return m.side.SaveAlerts(&m.alerts)
	})
}

// SetAlertRule replaces the rule with the same id.
func (m *Monitor) SetAlertRule(rule storage.AlertRule) error {
	return m.mutate(func(tx *txn) error {
		existing, ok := m.alerts.Rule(rule.ID)
		if !ok {
			return fmt.Errorf("alert rule %q: %w", rule.ID, storage.ErrNotFound)
		}
		if rule.Threshold != nil && *rule.Threshold < 0 {
			return &ValidationError{Field: "threshold", Message: "must not be negative"}
		}
		*existing = rule
		return m.side.SaveAlerts(&m.alerts)
	})
}

func (m *Monitor) MarkAlertsRead() error {
	return m.mutate(func(tx *txn) error {
		for i := range m.alerts.History {
			m.alerts.History[i].Read = true
		}
		return m.side.SaveAlerts(&m.alerts)
	})
}

func (m *Monitor) ClearAlertHistory() error {
	return m.mutate(func(tx *txn) error {
		m.alerts.History = []storage.AlertEntry{}
		return m.side.SaveAlerts(&m.alerts)
	})
}
