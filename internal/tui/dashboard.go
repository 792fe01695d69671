package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ankityadav/craftwatch/internal/monitor"
	"github.com/ankityadav/craftwatch/internal/stats"
	"github.com/ankityadav/craftwatch/internal/storage"
)

var (
	graphUpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	graphDownStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	metricLabelStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("244"))

	metricValueStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("255"))

	uptimeGoodStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("42"))

	uptimeBadStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196"))

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("255")).
			Background(lipgloss.Color("62")).
			Padding(0, 1).
			MarginBottom(1)

	sparkBlocks = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

	timeNow = time.Now
)

// historyLen is the number of samples kept per server for the sparklines.
const historyLen = 60

// sample is one observation of a server taken after a probe cycle.
type sample struct {
	online  bool
	latency int
	players int
}

type DashboardModel struct {
	mon           *monitor.Monitor
	servers       []storage.Server
	summary       monitor.Summary
	history       map[string][]sample
	events        chan monitor.Event
	detach        func()
	width         int
	height        int
	selectedIndex int
	lastUpdate    time.Time
}

type dashTickMsg time.Time

// NewDashboard builds a read-only overview that samples the monitor after
// every completed cycle.
func NewDashboard(mon *monitor.Monitor) DashboardModel {
	events := make(chan monitor.Event, 16)
	detach := mon.On(monitor.EventCycleComplete, func(e monitor.Event) {
		select {
		case events <- e:
		default:
		}
	})

	m := DashboardModel{
		mon:     mon,
		history: make(map[string][]sample),
		events:  events,
		detach:  detach,
	}
	m.loadData()
	m.record()
	return m
}

func (m DashboardModel) Close() {
	if m.detach != nil {
		m.detach()
	}
}

func (m *DashboardModel) loadData() {
	m.servers = m.mon.Servers()
	m.summary = m.mon.Summary()
	m.lastUpdate = timeNow()
}

// record appends the current state of every checked server to its history.
func (m *DashboardModel) record() {
	for _, srv := range m.servers {
		if !srv.Enabled || srv.LastChecked == nil {
			continue
		}
		h := append(m.history[srv.ID], sample{
			online:  srv.Status == storage.StatusOnline,
			latency: srv.Latency,
			players: srv.PlayersOnline,
		})
		if len(h) > historyLen {
			h = h[len(h)-historyLen:]
		}
		m.history[srv.ID] = h
	}
}

func (m DashboardModel) Init() tea.Cmd {
	return tea.Batch(
		dashTickCmd(),
		waitForEvent(m.events),
	)
}

func dashTickCmd() tea.Cmd {
	return tea.Tick(time.Second*2, func(t time.Time) tea.Msg {
		return dashTickMsg(t)
	})
}

func (m DashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		case "j", "down":
			if m.selectedIndex < len(m.servers)-1 {
				m.selectedIndex++
			}
		case "k", "up":
			if m.selectedIndex > 0 {
				m.selectedIndex--
			}
		case "r":
			m.loadData()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case dashTickMsg:
		m.loadData()
		return m, dashTickCmd()

	case monitorEventMsg:
		m.loadData()
		m.record()
		return m, waitForEvent(m.events)
	}

	return m, nil
}

func (m DashboardModel) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder

	state := "stopped"
	if m.summary.Running {
		state = "up " + stats.FormatUptime(m.summary.Uptime)
	}
	b.WriteString(headerStyle.Width(m.width - 2).Render(
		fmt.Sprintf("⛏  CraftWatch Dashboard • %d servers • %s • Updated: %s",
			len(m.servers), state, m.lastUpdate.Format("15:04:05"))))
	b.WriteString("\n\n")

	if len(m.servers) == 0 {
		b.WriteString(metricLabelStyle.Render(
			"No servers configured. Use 'craftwatch add <name> <address>' to add one."))
		return b.String()
	}

	b.WriteString(m.renderSummaryCards())
	b.WriteString("\n\n")

	for i, srv := range m.servers {
		b.WriteString(m.renderServerCard(srv, i == m.selectedIndex))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("j/k: navigate • r: refresh • q: quit"))

	return b.String()
}

func summaryCard(color, value, label string, style lipgloss.Style) string {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(color)).
		Padding(0, 2).
		Render(fmt.Sprintf("%s\n%s", style.Render(value), metricLabelStyle.Render(label)))
}

func (m DashboardModel) renderSummaryCards() string {
	c := m.summary.Servers
	p := m.summary.Players
	return lipgloss.JoinHorizontal(lipgloss.Top,
		summaryCard("42", fmt.Sprintf("✓ %d ONLINE", c.Online), "Servers", uptimeGoodStyle),
		"  ",
		summaryCard("196", fmt.Sprintf("✗ %d DOWN", c.Offline+c.Error), "Offline or errored", uptimeBadStyle),
		"  ",
		summaryCard("244", fmt.Sprintf("%d DISABLED", c.Disabled), "Not probed", metricValueStyle),
		"  ",
		summaryCard("39", fmt.Sprintf("%d PLAYERS", m.summary.PlayersOnline), fmt.Sprintf("%d known, %d today", p.Total, p.UniqueToday), metricValueStyle),
	)
}

func (m DashboardModel) renderServerCard(srv storage.Server, selected bool) string {
	history := m.history[srv.ID]

	var online, latencySum, latencyCount, peak int
	for _, s := range history {
		if s.online {
			online++
			latencySum += s.latency
			latencyCount++
		}
		peak = max(peak, s.players)
	}
	uptime := 0.0
	if len(history) > 0 {
		uptime = float64(online) / float64(len(history)) * 100
	}
	avgLatency := 0
	if latencyCount > 0 {
		avgLatency = latencySum / latencyCount
	}

	var content strings.Builder

	statusIcon := "?"
	statusStyle := metricLabelStyle
	switch srv.Status {
	case storage.StatusOnline:
		statusIcon = "●"
		statusStyle = uptimeGoodStyle
	case storage.StatusOffline, storage.StatusError:
		statusIcon = "●"
		statusStyle = uptimeBadStyle
	}
	if !srv.Enabled {
		statusIcon = "○"
		statusStyle = metricLabelStyle
	}

	content.WriteString(fmt.Sprintf("%s %s  %s",
		statusStyle.Render(statusIcon),
		lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("255")).Render(srv.Name),
		metricLabelStyle.Render(truncate(fmt.Sprintf("%s:%d (%s)", srv.Address, srv.Port, srv.Type), 40))))
	content.WriteString("\n\n")

	content.WriteString(metricLabelStyle.Render(fmt.Sprintf("Latency (last %d checks):", historyLen)))
	content.WriteString("\n")
	content.WriteString(renderSparkline(history, 50))
	content.WriteString("\n\n")

	content.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		renderMetric("Uptime", fmt.Sprintf("%.1f%%", uptime), uptime >= 99 || len(history) == 0),
		"   ",
		renderMetric("Players", fmt.Sprintf("%d/%d", srv.PlayersOnline, srv.MaxPlayers), srv.PlayersOnline < srv.MaxPlayers),
		"   ",
		renderMetric("Peak", fmt.Sprintf("%d", peak), true),
		"   ",
		renderMetric("Avg", fmt.Sprintf("%dms", avgLatency), avgLatency < 200),
		"   ",
		renderMetric("Checks", fmt.Sprintf("%d", len(history)), true),
	))

	if srv.LastChecked != nil {
		content.WriteString("\n\n")
		content.WriteString(metricLabelStyle.Render(fmt.Sprintf("Last check: %s ago", formatTimeAgo(*srv.LastChecked))))
	}

	borderColor := lipgloss.Color("240")
	switch {
	case !srv.Enabled:
	case srv.Status == storage.StatusOnline:
		borderColor = lipgloss.Color("42")
	case srv.Status == storage.StatusOffline || srv.Status == storage.StatusError:
		borderColor = lipgloss.Color("196")
	}

	card := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(borderColor).
		Padding(1, 2).
		Width(m.width - 4)

	if selected {
		card = card.
			BorderForeground(lipgloss.Color("170")).
			BorderStyle(lipgloss.DoubleBorder())
	}

	return card.Render(content.String())
}

func renderSparkline(history []sample, width int) string {
	if len(history) == 0 {
		return metricLabelStyle.Render("No data yet")
	}

	if len(history) > width {
		history = history[len(history)-width:]
	}

	maxLatency := 1
	for _, s := range history {
		if s.online {
			maxLatency = max(maxLatency, s.latency)
		}
	}

	var spark strings.Builder
	for _, s := range history {
		if !s.online {
			spark.WriteString(graphDownStyle.Render("▄"))
			continue
		}

		idx := int(float64(s.latency) / float64(maxLatency) * float64(len(sparkBlocks)-1))
		idx = min(max(idx, 0), len(sparkBlocks)-1)

		block := string(sparkBlocks[idx])
		switch {
		case s.latency < 100:
			spark.WriteString(graphUpStyle.Render(block))
		case s.latency < 300:
			spark.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("226")).Render(block))
		default:
			spark.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("208")).Render(block))
		}
	}

	return spark.String() + metricLabelStyle.Render(fmt.Sprintf(" (0-%dms)", maxLatency))
}

func renderMetric(label, value string, good bool) string {
	valueStyle := metricValueStyle
	if !good {
		valueStyle = uptimeBadStyle
	}
	return fmt.Sprintf("%s\n%s",
		valueStyle.Render(value),
		metricLabelStyle.Render(label))
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func formatTimeAgo(t time.Time) string {
	d := timeNow().Sub(t)
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%.0fm", d.Minutes())
	}
	if d < 24*time.Hour {
		return fmt.Sprintf("%.1fh", d.Hours())
	}
	return fmt.Sprintf("%.1fd", d.Hours()/24)
}
