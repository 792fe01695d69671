package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ankityadav/craftwatch/internal/monitor"
	"github.com/ankityadav/craftwatch/internal/stats"
	"github.com/ankityadav/craftwatch/internal/storage"
)

type detailModel struct {
	mon     *monitor.Monitor
	server  *storage.Server
	players []storage.Player
	events  []storage.Event
}

func newDetailModel(mon *monitor.Monitor) detailModel {
	return detailModel{
		mon: mon,
	}
}

func (m *detailModel) setServer(srv storage.Server) {
	m.server = &srv
	m.refresh()
}

func (m *detailModel) refresh() {
	if m.server == nil {
		return
	}

	srv, err := m.mon.Server(m.server.ID)
	if err == nil {
		m.server = &srv
	}

	m.players = m.players[:0]
	for _, p := range m.mon.Players() {
		if p.IsOnline && p.CurrentServer != nil && *p.CurrentServer == m.server.Name {
			m.players = append(m.players, p)
		}
	}

	events, err := m.mon.RecentEvents(0)
	if err == nil {
		m.events = m.events[:0]
		for _, e := range events {
			if name, _ := e.Payload["server"].(string); name == m.server.Name {
				m.events = append(m.events, e)
			}
			if len(m.events) == 10 {
				break
			}
		}
	}
}

func (m detailModel) Update(msg tea.Msg) (detailModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			return m, backToList()
		case "e":
			if m.server != nil {
				return m, editServer(*m.server)
			}
		}
	}
	return m, nil
}

func (m detailModel) View() string {
	if m.server == nil {
		return "No server selected"
	}
	srv := m.server

	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("Server Details: %s", srv.Name)))
	b.WriteString("\n\n")

	infoStyle := lipgloss.NewStyle().Bold(true)
	field := func(label, value string) {
		b.WriteString(infoStyle.Render(label + ": "))
		b.WriteString(value)
		b.WriteString("\n")
	}

	field("Address", fmt.Sprintf("%s:%d", srv.Address, srv.Port))
	field("Type", srv.Type)
	b.WriteString(infoStyle.Render("Status: "))
	b.WriteString(styledStatus(srv.Status))
	b.WriteString("\n")
	field("Players", fmt.Sprintf("%d/%d", srv.PlayersOnline, srv.MaxPlayers))
	field("Latency", formatLatency(*srv))
	if srv.Version != "" {
		field("Version", srv.Version)
	}
	if srv.Motd != "" {
		field("MOTD", srv.Motd)
	}
	if srv.Enabled {
		field("Enabled", "Yes")
	} else {
		field("Enabled", "No")
	}
	field("Added", srv.AddedDate)
	if srv.LastChecked != nil {
		field("Last Check", srv.LastChecked.Format("2006-01-02 15:04:05"))
	}

	b.WriteString("\n")
	b.WriteString(titleStyle.Render("Players Online"))
	b.WriteString("\n")
	if len(m.players) > 0 {
		now := timeNow()
		for _, p := range m.players {
			b.WriteString(fmt.Sprintf("● %s (%s, session %s)\n",
				p.Username, p.Rank, stats.FormatPlayTime(int64(now.Sub(p.LastSeen).Seconds()))))
		}
	} else {
		b.WriteString("Nobody online\n")
	}

	b.WriteString("\n")
	b.WriteString(titleStyle.Render("Recent Events"))
	b.WriteString("\n")
	if len(m.events) > 0 {
		for _, e := range m.events {
			b.WriteString(fmt.Sprintf("%s  %s\n", e.Timestamp.Format("15:04:05"), describeEvent(e)))
		}
	} else {
		b.WriteString("No events yet\n")
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("e: edit • esc/q: back to list"))

	return b.String()
}

func describeEvent(e storage.Event) string {
	switch e.Type {
	case monitor.EventServerOnline:
		return "came online"
	case monitor.EventServerOffline:
		return "went offline"
	case monitor.EventPlayerLogin:
		return fmt.Sprintf("%v joined", e.Payload["player"])
	case monitor.EventPlayerLogout:
		return fmt.Sprintf("%v left", e.Payload["player"])
	case monitor.EventHighPlayerCount:
		return fmt.Sprintf("%v players online", e.Payload["count"])
	default:
		return e.Type
	}
}

func styledStatus(status storage.ServerStatus) string {
	switch status {
	case storage.StatusOnline:
		return statusUpStyle.Render(formatStatus(status))
	case storage.StatusOffline:
		return statusDownStyle.Render(formatStatus(status))
	case storage.StatusError:
		return statusErrorStyle.Render(formatStatus(status))
	default:
		return statusUnknownStyle.Render(formatStatus(status))
	}
}
