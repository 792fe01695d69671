package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/ankityadav/craftwatch/internal/monitor"
)

type alertsModel struct {
	mon    *monitor.Monitor
	table  table.Model
	status string
}

func newAlertsModel(mon *monitor.Monitor) alertsModel {
	am := alertsModel{
		mon: mon,
		table: newTable([]table.Column{
			{Title: " ", Width: 1},
			{Title: "Time", Width: 16},
			{Title: "Type", Width: 18},
			{Title: "Message", Width: 50},
		}),
	}
	am.refresh()
	return am
}

func (m *alertsModel) refresh() {
	rows := []table.Row{}
	for _, e := range m.mon.Alerts().History {
		unread := ""
		if !e.Read {
			unread = "•"
		}
		rows = append(rows, table.Row{unread, formatTime(e.Timestamp), e.Type, e.Message})
	}
	m.table.SetRows(rows)
}

func (m alertsModel) Update(msg tea.Msg) (alertsModel, tea.Cmd) {
	var cmd tea.Cmd

	if key, ok := msg.(tea.KeyMsg); ok {
		cfg := m.mon.Alerts()
		switch key.String() {
		case "m":
			m.setResult(m.mon.MarkAlertsRead(), "Marked all read")
			m.refresh()
			return m, nil
		case "x":
			m.setResult(m.mon.ClearAlertHistory(), "History cleared")
			m.refresh()
			return m, nil
		case "a":
			m.setResult(m.mon.SetAlertOptions(!cfg.Enabled, cfg.Desktop, cfg.Sound), "Alerts updated")
			return m, nil
		case "n":
			m.setResult(m.mon.SetAlertOptions(cfg.Enabled, !cfg.Desktop, cfg.Sound), "Alerts updated")
			return m, nil
		case "s":
			m.setResult(m.mon.SetAlertOptions(cfg.Enabled, cfg.Desktop, !cfg.Sound), "Alerts updated")
			return m, nil
		}
	}

	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *alertsModel) setResult(err error, ok string) {
	if err != nil {
		m.status = fmt.Sprintf("Error: %v", err)
		return
	}
	m.status = ok
}

func onOff(v bool) string {
	if v {
		return statusUpStyle.Render("on")
	}
	return statusDownStyle.Render("off")
}

func (m alertsModel) View() string {
	var b strings.Builder
	cfg := m.mon.Alerts()

	b.WriteString(header(m.mon))
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("Alerts %s • Desktop %s • Sound %s", onOff(cfg.Enabled), onOff(cfg.Desktop), onOff(cfg.Sound)))
	b.WriteString("\n")
	for _, r := range cfg.Triggers {
		line := fmt.Sprintf("  %s %s", onOff(r.Enabled), r.ID)
		if r.Threshold != nil {
			line += fmt.Sprintf(" (threshold %d)", *r.Threshold)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.table.View())
	b.WriteString("\n\n")

	if m.status != "" {
		b.WriteString(m.status)
		b.WriteString("\n\n")
	}

	b.WriteString(helpStyle.Render("m: mark read • x: clear history • a: alerts • n: desktop • s: sound • q: back"))
	b.WriteString("\n")
	b.WriteString(helpStyle.Render(tabHelp))
	return b.String()
}

type logsModel struct {
	mon   *monitor.Monitor
	table table.Model
}

func newLogsModel(mon *monitor.Monitor) logsModel {
	lm := logsModel{
		mon: mon,
		table: newTable([]table.Column{
			{Title: "Time", Width: 16},
			{Title: "Type", Width: 16},
			{Title: "Message", Width: 60},
		}),
	}
	lm.refresh()
	return lm
}

func (m *logsModel) refresh() {
	rows := []table.Row{}
	for _, e := range m.mon.ActivityLog() {
		rows = append(rows, table.Row{formatTime(e.Timestamp), e.Type, e.Message})
	}
	m.table.SetRows(rows)
}

func (m logsModel) Update(msg tea.Msg) (logsModel, tea.Cmd) {
	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m logsModel) View() string {
	var b strings.Builder

	b.WriteString(header(m.mon))
	b.WriteString("\n\n")
	b.WriteString(titleStyle.Render("Activity"))
	b.WriteString("\n\n")
	b.WriteString(m.table.View())
	b.WriteString("\n\n")
	b.WriteString(helpStyle.Render("↑/↓: scroll • q: back"))
	b.WriteString("\n")
	b.WriteString(helpStyle.Render(tabHelp))
	return b.String()
}
