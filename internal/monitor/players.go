package monitor

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ankityadav/craftwatch/internal/storage"
)

var ErrPlayerNotFound = fmt.Errorf("player %w", storage.ErrNotFound)

const defaultRank = "Member"

func (m *Monitor) playerIndex(id string) int {
	for i := range m.players {
		if m.players[i].ID == id {
			return i
		}
	}
	return -1
}

func (m *Monitor) playerByUsername(username string) int {
	for i := range m.players {
		if m.players[i].Username == username {
			return i
		}
	}
	return -1
}

func (m *Monitor) Players() []storage.Player {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]storage.Player(nil), m.players...)
}

func (m *Monitor) Player(id string) (storage.Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.playerIndex(id)
	if i < 0 {
		return storage.Player{}, ErrPlayerNotFound
	}
	return m.players[i], nil
}

// PlayerSessions returns the recorded logins of a player.
func (m *Monitor) PlayerSessions(playerID string) ([]storage.Session, error) {
	return m.store.Sessions().QueryByIndex("playerId", playerID)
}

// playSeconds is the time credited for the session that started at lastSeen.
// A session always counts for at least one second.
func (m *Monitor) playSeconds(p *storage.Player) int64 {
	elapsed := int64(m.now().Sub(p.LastSeen).Seconds())
	if elapsed < 1 {
		elapsed = 1
	}
	return elapsed
}

// PlayerLogin upserts the player by username and marks it online on server.
// A player already online elsewhere is credited for that session first.
func (m *Monitor) PlayerLogin(username, server string) (storage.Player, error) {
	username = strings.TrimSpace(username)
	if !ValidUsername(username) {
		return storage.Player{}, &ValidationError{Field: "username", Message: "must be 3-16 letters, digits or underscores"}
	}
	if strings.TrimSpace(server) == "" {
		return storage.Player{}, &ValidationError{Field: "server", Message: "is required"}
	}

	var out storage.Player
	err := m.mutate(func(tx *txn) error {
		now := m.now()
		current := server

		i := m.playerByUsername(username)
		if i < 0 {
			p := storage.Player{
				ID:            m.nextID(),
				Username:      username,
				UUID:          uuid.NewString(),
				FirstSeen:     now,
				LastSeen:      now,
				Sessions:      1,
				CurrentServer: &current,
				IsOnline:      true,
				Rank:          defaultRank,
			}
			if err := m.store.Players().Add(&p); err != nil {
				m.logActivity(tx, LogError, fmt.Sprintf("Failed to save player %s: %v", username, err))
				return err
			}
			m.players = append(m.players, p)
			out = p
		} else {
			p := m.players[i]
			if p.IsOnline {
				p.TotalPlayTime += m.playSeconds(&p)
			}
			p.LastSeen = now
			p.CurrentServer = &current
			p.Sessions++
			p.IsOnline = true
			if err := m.store.Players().Put(&p); err != nil {
				m.logActivity(tx, LogError, fmt.Sprintf("Failed to save player %s: %v", username, err))
				return err
			}
			m.players[i] = p
			out = p
		}

		if err := m.store.Sessions().Add(&storage.Session{PlayerID: out.ID, LoginTime: now}); err != nil {
			m.log.Warn().Err(err).Str("player", username).Msg("failed to record session")
		}

		m.logActivity(tx, LogPlayerLogin, fmt.Sprintf("%s joined %s", username, server))
		m.triggerEvent(tx, EventPlayerLogin, map[string]any{"player": username, "server": server})
		tx.events = append(tx.events, m.event(EventPlayersChanged, map[string]any{"id": out.ID}))
		return nil
	})
	return out, err
}

// PlayerLogout marks the player offline and credits the session length.
// Unknown or already offline players are ignored and report false.
func (m *Monitor) PlayerLogout(username string) (bool, error) {
	var done bool
	err := m.mutate(func(tx *txn) error {
		i := m.playerByUsername(strings.TrimSpace(username))
		if i < 0 || !m.players[i].IsOnline {
			return nil
		}

		p := m.players[i]
		server := ""
		if p.CurrentServer != nil {
			server = *p.CurrentServer
		}
		played := m.playSeconds(&p)
		p.TotalPlayTime += played
		p.LastSeen = m.now()
		p.IsOnline = false
		p.CurrentServer = nil
		if err := m.store.Players().Put(&p); err != nil {
			m.logActivity(tx, LogError, fmt.Sprintf("Failed to save player %s: %v", p.Username, err))
			return err
		}
		m.players[i] = p
		done = true

		m.logActivity(tx, LogPlayerLogout, fmt.Sprintf("%s left %s", p.Username, server))
		m.triggerEvent(tx, EventPlayerLogout, map[string]any{
			"player":   p.Username,
			"server":   server,
			"playTime": played,
		})
		tx.events = append(tx.events, m.event(EventPlayersChanged, map[string]any{"id": p.ID}))
		return nil
	})
	return done, err
}

func (m *Monitor) ToggleFavorite(id string) (storage.Player, error) {
	return m.updatePlayer(id, func(p *storage.Player) { p.Favorite = !p.Favorite })
}

func (m *Monitor) SetPlayerNotes(id, notes string) (storage.Player, error) {
	return m.updatePlayer(id, func(p *storage.Player) { p.Notes = notes })
}

func (m *Monitor) SetPlayerRank(id, rank string) (storage.Player, error) {
	rank = strings.TrimSpace(rank)
	if rank == "" {
		return storage.Player{}, &ValidationError{Field: "rank", Message: "is required"}
	}
	return m.updatePlayer(id, func(p *storage.Player) { p.Rank = rank })
}

func (m *Monitor) updatePlayer(id string, fn func(*storage.Player)) (storage.Player, error) {
	var out storage.Player
	err := m.mutate(func(tx *txn) error {
		i := m.playerIndex(id)
		if i < 0 {
			return ErrPlayerNotFound
		}
		next := m.players[i]
		fn(&next)
		if err := m.store.Players().Put(&next); err != nil {
			m.logActivity(tx, LogError, fmt.Sprintf("Failed to save player %s: %v", next.Username, err))
			return err
		}
		m.players[i] = next
		out = next
		m.logActivity(tx, LogDataSave, fmt.Sprintf("Updated player %s", next.Username))
		tx.events = append(tx.events, m.event(EventPlayersChanged, map[string]any{"id": id}))
		return nil
	})
	return out, err
}
