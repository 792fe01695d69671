package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/ankityadav/craftwatch/internal/monitor"
	"github.com/ankityadav/craftwatch/internal/stats"
	"github.com/ankityadav/craftwatch/internal/storage"
)

type playersModel struct {
	mon        *monitor.Monitor
	table      table.Model
	players    []storage.Player
	onlineOnly bool
	editing    bool
	rank       textinput.Model
	status     string
}

func newPlayersModel(mon *monitor.Monitor) playersModel {
	rank := textinput.New()
	rank.Placeholder = "Member"
	rank.CharLimit = 30
	rank.Width = 30

	pm := playersModel{
		mon: mon,
		table: newTable([]table.Column{
			{Title: "★", Width: 2},
			{Title: "Username", Width: 16},
			{Title: "Status", Width: 9},
			{Title: "Server", Width: 16},
			{Title: "Play Time", Width: 10},
			{Title: "Sessions", Width: 9},
			{Title: "Rank", Width: 12},
			{Title: "Last Seen", Width: 16},
		}),
		rank: rank,
	}
	pm.loadPlayers()
	return pm
}

func (m *playersModel) loadPlayers() {
	all := m.mon.Players()
	m.players = m.players[:0]
	for _, p := range all {
		if m.onlineOnly && !p.IsOnline {
			continue
		}
		m.players = append(m.players, p)
	}

	rows := []table.Row{}
	for _, p := range m.players {
		fav := ""
		if p.Favorite {
			fav = "★"
		}
		status := "offline"
		server := "-"
		if p.IsOnline {
			status = "online"
			if p.CurrentServer != nil {
				server = *p.CurrentServer
			}
		}
		rows = append(rows, table.Row{
			fav,
			p.Username,
			status,
			server,
			stats.FormatPlayTime(p.TotalPlayTime),
			fmt.Sprintf("%d", p.Sessions),
			p.Rank,
			formatTime(p.LastSeen),
		})
	}
	m.table.SetRows(rows)
}

func (m *playersModel) selected() (storage.Player, bool) {
	if len(m.players) == 0 || m.table.Cursor() >= len(m.players) {
		return storage.Player{}, false
	}
	return m.players[m.table.Cursor()], true
}

func (m playersModel) Update(msg tea.Msg) (playersModel, tea.Cmd) {
	var cmd tea.Cmd

	if m.editing {
		if key, ok := msg.(tea.KeyMsg); ok {
			switch key.String() {
			case "esc":
				m.editing = false
				m.rank.Blur()
				return m, nil
			case "enter":
				m.editing = false
				m.rank.Blur()
				if p, ok := m.selected(); ok {
					_, err := m.mon.SetPlayerRank(p.ID, strings.TrimSpace(m.rank.Value()))
					m.setResult(err, fmt.Sprintf("%s is now %s", p.Username, strings.TrimSpace(m.rank.Value())))
				}
				m.loadPlayers()
				return m, nil
			}
		}
		m.rank, cmd = m.rank.Update(msg)
		return m, cmd
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "f":
			if p, ok := m.selected(); ok {
				_, err := m.mon.ToggleFavorite(p.ID)
				m.setResult(err, "Updated "+p.Username)
				m.loadPlayers()
				return m, nil
			}
		case "o":
			m.onlineOnly = !m.onlineOnly
			m.loadPlayers()
			return m, nil
		case "l":
			if p, ok := m.selected(); ok && p.IsOnline {
				_, err := m.mon.PlayerLogout(p.Username)
				m.setResult(err, p.Username+" logged out")
				m.loadPlayers()
				return m, nil
			}
		case "R":
			if p, ok := m.selected(); ok {
				m.editing = true
				m.rank.SetValue(p.Rank)
				return m, m.rank.Focus()
			}
		}
	}

	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *playersModel) setResult(err error, ok string) {
	if err != nil {
		m.status = fmt.Sprintf("Error: %v", err)
		return
	}
	m.status = ok
}

func (m playersModel) View() string {
	var b strings.Builder

	b.WriteString(header(m.mon))
	b.WriteString("\n\n")

	ps := stats.ComputePlayerStats(m.mon.Players(), timeNow())
	b.WriteString(fmt.Sprintf("%d players • %d online • %d seen today • avg session %s",
		ps.Total, ps.Online, ps.UniqueToday, stats.FormatPlayTime(int64(ps.AverageSessionTime))))
	b.WriteString("\n\n")
	b.WriteString(m.table.View())
	b.WriteString("\n\n")

	if m.editing {
		b.WriteString("Rank: ")
		b.WriteString(m.rank.View())
		b.WriteString("\n\n")
	} else if m.status != "" {
		b.WriteString(m.status)
		b.WriteString("\n\n")
	}

	b.WriteString(helpStyle.Render("f: favorite • R: set rank • l: log out • o: online only • q: back"))
	b.WriteString("\n")
	b.WriteString(helpStyle.Render(tabHelp))
	return b.String()
}
