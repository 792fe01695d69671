package monitor

import (
	"time"

	"github.com/ankityadav/craftwatch/internal/storage"
)

// Domain events. Alert rules are matched against these names.
const (
	EventServerOnline    = "server_online"
	EventServerOffline   = "server_offline"
	EventPlayerLogin     = "player_login"
	EventPlayerLogout    = "player_logout"
	EventHighPlayerCount = "high_player_count"
)

// Notifications for presentation collaborators. These are not persisted.
const (
	EventCycleComplete  = "cycle_complete"
	EventServersChanged = "servers_changed"
	EventPlayersChanged = "players_changed"
	EventAlert          = "alert"
	EventActivity       = "activity"
	EventMonitorStarted = "monitor_started"
	EventMonitorStopped = "monitor_stopped"
	EventSettingsSaved  = "settings_saved"
)

// AnyEvent subscribes to every event.
const AnyEvent = "*"

type Event struct {
	Name    string         `json:"name"`
	Payload map[string]any `json:"payload,omitempty"`
	Time    time.Time      `json:"time"`
}

func (m *Monitor) event(name string, payload map[string]any) Event {
	return Event{Name: name, Payload: payload, Time: m.now()}
}

// On registers fn for the named event and returns a function that removes
// it. Handlers run after the state lock is released, on the goroutine that
// caused the event.
func (m *Monitor) On(name string, fn func(Event)) func() {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	id := m.nextSub
	m.nextSub++
	if m.subs[name] == nil {
		m.subs[name] = make(map[int]func(Event))
	}
	m.subs[name][id] = fn

	return func() {
		m.subMu.Lock()
		defer m.subMu.Unlock()
		delete(m.subs[name], id)
	}
}

func (m *Monitor) publish(e Event) {
	m.subMu.RLock()
	handlers := make([]func(Event), 0, len(m.subs[e.Name])+len(m.subs[AnyEvent]))
	for _, fn := range m.subs[e.Name] {
		handlers = append(handlers, fn)
	}
	for _, fn := range m.subs[AnyEvent] {
		handlers = append(handlers, fn)
	}
	m.subMu.RUnlock()

	for _, fn := range handlers {
		fn(e)
	}
}

// triggerEvent records a domain event, queues it for subscribers and
// raises the matching alert when its rule is enabled. Caller holds m.mu.
func (m *Monitor) triggerEvent(tx *txn, name string, payload map[string]any) {
	e := m.event(name, payload)

	rec := storage.Event{Type: name, Timestamp: e.Time, Payload: payload}
	if err := m.store.AppendEvent(&rec); err != nil {
		m.log.Warn().Err(err).Str("event", name).Msg("failed to persist event")
	}

	m.log.Debug().Str("event", name).Fields(payload).Msg("event")
	tx.events = append(tx.events, e)

	if rule, ok := m.alerts.Rule(name); ok && rule.Enabled {
		m.triggerAlert(tx, name, payload)
	}
}
