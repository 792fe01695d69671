package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ankityadav/craftwatch/internal/monitor"
	"github.com/ankityadav/craftwatch/internal/stats"
	"github.com/ankityadav/craftwatch/internal/storage"
)

var (
	baseStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("240"))

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170"))

	statusUpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	statusDownStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	statusErrorStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("208")).
				Bold(true)

	statusUnknownStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("244"))

	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type cycleDoneMsg struct{}

type listModel struct {
	mon     *monitor.Monitor
	table   table.Model
	servers []storage.Server
	status  string
}

func newTable(columns []table.Column) table.Model {
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(15),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)
	return t
}

func newListModel(mon *monitor.Monitor) listModel {
	lm := listModel{
		mon: mon,
		table: newTable([]table.Column{
			{Title: "Name", Width: 18},
			{Title: "Address", Width: 28},
			{Title: "Type", Width: 8},
			{Title: "Status", Width: 10},
			{Title: "Players", Width: 9},
			{Title: "Latency", Width: 8},
			{Title: "Last Check", Width: 16},
			{Title: "Enabled", Width: 8},
		}),
	}
	lm.loadServers()
	return lm
}

func (m *listModel) Init() tea.Cmd {
	return nil
}

func (m *listModel) loadServers() {
	m.servers = m.mon.Servers()

	rows := []table.Row{}
	for _, srv := range m.servers {
		lastCheck := "Never"
		if srv.LastChecked != nil {
			lastCheck = formatTime(*srv.LastChecked)
		}
		enabled := "No"
		if srv.Enabled {
			enabled = "Yes"
		}

		rows = append(rows, table.Row{
			srv.Name,
			fmt.Sprintf("%s:%d", srv.Address, srv.Port),
			srv.Type,
			formatStatus(srv.Status),
			fmt.Sprintf("%d/%d", srv.PlayersOnline, srv.MaxPlayers),
			formatLatency(srv),
			lastCheck,
			enabled,
		})
	}
	m.table.SetRows(rows)
}

func (m *listModel) selected() (storage.Server, bool) {
	if len(m.servers) == 0 || m.table.Cursor() >= len(m.servers) {
		return storage.Server{}, false
	}
	return m.servers[m.table.Cursor()], true
}

func (m listModel) Update(msg tea.Msg) (listModel, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case cycleDoneMsg:
		m.status = "Check complete"
		m.loadServers()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "a":
			return m, addServer()
		case "e":
			if srv, ok := m.selected(); ok {
				return m, editServer(srv)
			}
		case "d":
			if srv, ok := m.selected(); ok {
				m.setResult(m.mon.RemoveServer(srv.ID), "Removed "+srv.Name)
				m.loadServers()
				return m, nil
			}
		case "t":
			if srv, ok := m.selected(); ok {
				_, err := m.mon.ToggleServer(srv.ID)
				m.setResult(err, "Toggled "+srv.Name)
				m.loadServers()
				return m, nil
			}
		case "enter":
			if srv, ok := m.selected(); ok {
				return m, serverSelected(srv)
			}
		case "s":
			if m.mon.Running() {
				m.mon.Stop()
				m.status = "Monitoring stopped"
			} else {
				m.setResult(m.mon.Start(), "Monitoring started")
			}
			return m, nil
		case "c":
			m.status = "Checking servers..."
			return m, runCycle(m.mon)
		case "b":
			key, err := m.mon.Backup()
			m.setResult(err, "Backup saved as "+key)
			return m, nil
		case "r":
			m.loadServers()
			return m, nil
		}
	}

	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *listModel) setResult(err error, ok string) {
	if err != nil {
		m.status = fmt.Sprintf("Error: %v", err)
		return
	}
	m.status = ok
}

func runCycle(mon *monitor.Monitor) tea.Cmd {
	return func() tea.Msg {
		mon.RunCycle(context.Background())
		return cycleDoneMsg{}
	}
}

func (m listModel) View() string {
	var b strings.Builder

	b.WriteString(header(m.mon))
	b.WriteString("\n\n")
	b.WriteString(m.table.View())
	b.WriteString("\n\n")

	if m.status != "" {
		b.WriteString(m.status)
		b.WriteString("\n\n")
	}

	b.WriteString(helpStyle.Render(
		"a: add • e: edit • d: delete • t: toggle • enter: details • s: start/stop • c: check now • b: backup • q: quit",
	))
	b.WriteString("\n")
	b.WriteString(helpStyle.Render(tabHelp))

	return b.String()
}

const tabHelp = "1: servers • 2: players • 3: alerts • 4: activity"

func header(mon *monitor.Monitor) string {
	sum := mon.Summary()
	state := statusDownStyle.Render("stopped")
	if sum.Running {
		state = statusUpStyle.Render("running " + stats.FormatUptime(sum.Uptime))
	}
	line := fmt.Sprintf("⛏  CraftWatch • %s • %d/%d online • %d players • %d unread alerts",
		state, sum.Servers.Online, sum.Servers.Total, sum.PlayersOnline, sum.UnreadAlerts)
	return titleStyle.Render(line)
}

func formatStatus(status storage.ServerStatus) string {
	switch status {
	case storage.StatusOnline:
		return "✓ ONLINE"
	case storage.StatusOffline:
		return "✗ OFFLINE"
	case storage.StatusError:
		return "! ERROR"
	default:
		return "? UNKNOWN"
	}
}

func formatLatency(srv storage.Server) string {
	if srv.Status != storage.StatusOnline {
		return "-"
	}
	return fmt.Sprintf("%dms", srv.Latency)
}

func formatTime(t time.Time) string {
	return t.Format("Jan 02 15:04:05")
}
