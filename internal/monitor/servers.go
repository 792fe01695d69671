package monitor

import (
	"fmt"
	"strings"
	"time"

	"github.com/ankityadav/craftwatch/internal/storage"
)

var ErrServerNotFound = fmt.Errorf("server %w", storage.ErrNotFound)

const (
	DefaultServerType = "java"
	DefaultPort       = 25565
	DefaultMaxPlayers = 20
)

// ServerInput carries the user-editable server fields.
type ServerInput struct {
	Name       string `json:"name"`
	Address    string `json:"address"`
	Port       int    `json:"port"`
	Type       string `json:"type"`
	MaxPlayers int    `json:"maxPlayers"`
}

func (in ServerInput) normalized() ServerInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Address = strings.TrimSpace(in.Address)
	if in.Port == 0 {
		in.Port = DefaultPort
	}
	if in.Type == "" {
		in.Type = DefaultServerType
	}
	if in.MaxPlayers == 0 {
		in.MaxPlayers = DefaultMaxPlayers
	}
	return in
}

func (m *Monitor) serverIndex(id string) int {
	for i := range m.servers {
		if m.servers[i].ID == id {
			return i
		}
	}
	return -1
}

func (m *Monitor) Servers() []storage.Server {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]storage.Server(nil), m.servers...)
}

func (m *Monitor) Server(id string) (storage.Server, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.serverIndex(id)
	if i < 0 {
		return storage.Server{}, ErrServerNotFound
	}
	return m.servers[i], nil
}

// AddServer validates the input and creates an enabled server in the
// unknown state.
func (m *Monitor) AddServer(in ServerInput) (storage.Server, error) {
	if err := validateServer(in); err != nil {
		return storage.Server{}, err
	}
	in = in.normalized()

	var srv storage.Server
	err := m.mutate(func(tx *txn) error {
		now := m.now()
		srv = storage.Server{
			ID:         m.nextID(),
			Name:       in.Name,
			Address:    in.Address,
			Port:       in.Port,
			Type:       in.Type,
			Enabled:    true,
			Status:     storage.StatusUnknown,
			MaxPlayers: in.MaxPlayers,
			AddedDate:  now.Format(time.DateOnly),
		}
		if err := m.store.Servers().Add(&srv); err != nil {
			m.logActivity(tx, LogError, fmt.Sprintf("Failed to add server %s: %v", srv.Name, err))
			return err
		}
		m.servers = append(m.servers, srv)
		m.logActivity(tx, LogServerAdd, fmt.Sprintf("Added server %s (%s:%d)", srv.Name, srv.Address, srv.Port))
		tx.events = append(tx.events, m.event(EventServersChanged, map[string]any{"id": srv.ID}))
		return nil
	})
	if err != nil {
		return storage.Server{}, err
	}
	m.log.Info().Str("server", srv.Name).Str("id", srv.ID).Msg("server added")
	return srv, nil
}

// RemoveServer deletes the server immediately.
func (m *Monitor) RemoveServer(id string) error {
	return m.mutate(func(tx *txn) error {
		i := m.serverIndex(id)
		if i < 0 {
			return ErrServerNotFound
		}
		srv := m.servers[i]
		if _, err := m.store.Servers().Delete(id); err != nil {
			m.logActivity(tx, LogError, fmt.Sprintf("Failed to remove server %s: %v", srv.Name, err))
			return err
		}
		m.servers = append(m.servers[:i:i], m.servers[i+1:]...)
		m.logActivity(tx, LogServerRemove, fmt.Sprintf("Removed server %s", srv.Name))
		tx.events = append(tx.events, m.event(EventServersChanged, map[string]any{"id": id}))
		return nil
	})
}

// ToggleServer flips the enabled flag. A disabled server keeps its last
// status and is skipped by the probe cycle.
func (m *Monitor) ToggleServer(id string) (storage.Server, error) {
	return m.updateServer(id, func(s *storage.Server) string {
		s.Enabled = !s.Enabled
		state := "disabled"
		if s.Enabled {
			state = "enabled"
		}
		return fmt.Sprintf("Server %s %s", s.Name, state)
	}, LogServerToggle)
}

// UpdateServer replaces the user-editable fields of a server.
func (m *Monitor) UpdateServer(id string, in ServerInput) (storage.Server, error) {
	if err := validateServer(in); err != nil {
		return storage.Server{}, err
	}
	in = in.normalized()
	return m.updateServer(id, func(s *storage.Server) string {
		s.Name = in.Name
		s.Address = in.Address
		s.Port = in.Port
		s.Type = in.Type
		s.MaxPlayers = in.MaxPlayers
		if s.PlayersOnline > s.MaxPlayers {
			s.PlayersOnline = s.MaxPlayers
		}
		return fmt.Sprintf("Updated server %s", s.Name)
	}, LogServerUpdate)
}

func (m *Monitor) updateServer(id string, fn func(*storage.Server) string, logType string) (storage.Server, error) {
	var out storage.Server
	err := m.mutate(func(tx *txn) error {
		i := m.serverIndex(id)
		if i < 0 {
			return ErrServerNotFound
		}
		next := m.servers[i]
		msg := fn(&next)
		if err := m.store.Servers().Put(&next); err != nil {
			m.logActivity(tx, LogError, fmt.Sprintf("Failed to save server %s: %v", next.Name, err))
			return err
		}
		m.servers[i] = next
		out = next
		m.logActivity(tx, logType, msg)
		tx.events = append(tx.events, m.event(EventServersChanged, map[string]any{"id": id}))
		return nil
	})
	return out, err
}
