package tui

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ankityadav/craftwatch/internal/monitor"
	"github.com/ankityadav/craftwatch/internal/storage"
)

type formModel struct {
	mon        *monitor.Monitor
	server     *storage.Server
	inputs     []textinput.Model
	focusIndex int
	isEdit     bool
	err        error
}

const (
	inputName = iota
	inputAddress
	inputPort
	inputType
	inputMaxPlayers
)

func newFormModel(mon *monitor.Monitor) formModel {
	inputs := make([]textinput.Model, 5)

	inputs[inputName] = textinput.New()
	inputs[inputName].Placeholder = "Survival"
	inputs[inputName].Focus()
	inputs[inputName].CharLimit = 50
	inputs[inputName].Width = 50

	inputs[inputAddress] = textinput.New()
	inputs[inputAddress].Placeholder = "play.example.com"
	inputs[inputAddress].CharLimit = 253
	inputs[inputAddress].Width = 50

	inputs[inputPort] = textinput.New()
	inputs[inputPort].Placeholder = "25565"
	inputs[inputPort].CharLimit = 5
	inputs[inputPort].Width = 20

	inputs[inputType] = textinput.New()
	inputs[inputType].Placeholder = "java or bedrock"
	inputs[inputType].CharLimit = 10
	inputs[inputType].Width = 20

	inputs[inputMaxPlayers] = textinput.New()
	inputs[inputMaxPlayers].Placeholder = "20"
	inputs[inputMaxPlayers].CharLimit = 6
	inputs[inputMaxPlayers].Width = 20

	return formModel{
		mon:    mon,
		inputs: inputs,
	}
}

func (m *formModel) reset() {
	m.server = nil
	m.isEdit = false
	m.focusIndex = 0
	m.err = nil

	m.inputs[inputName].SetValue("")
	m.inputs[inputAddress].SetValue("")
	m.inputs[inputPort].SetValue(strconv.Itoa(monitor.DefaultPort))
	m.inputs[inputType].SetValue(monitor.DefaultServerType)
	m.inputs[inputMaxPlayers].SetValue(strconv.Itoa(monitor.DefaultMaxPlayers))

	m.inputs[inputName].Focus()
	for i := 1; i < len(m.inputs); i++ {
		m.inputs[i].Blur()
	}
}

func (m *formModel) setServer(srv storage.Server) {
	m.server = &srv
	m.isEdit = true
	m.focusIndex = 0
	m.err = nil

	m.inputs[inputName].SetValue(srv.Name)
	m.inputs[inputAddress].SetValue(srv.Address)
	m.inputs[inputPort].SetValue(strconv.Itoa(srv.Port))
	m.inputs[inputType].SetValue(srv.Type)
	m.inputs[inputMaxPlayers].SetValue(strconv.Itoa(srv.MaxPlayers))

	m.inputs[inputName].Focus()
	for i := 1; i < len(m.inputs); i++ {
		m.inputs[i].Blur()
	}
}

func (m formModel) Update(msg tea.Msg) (formModel, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			return m, backToList()

		case "tab", "down":
			m.focusIndex++
			if m.focusIndex >= len(m.inputs) {
				m.focusIndex = 0
			}
			return m, m.updateFocus()

		case "shift+tab", "up":
			m.focusIndex--
			if m.focusIndex < 0 {
				m.focusIndex = len(m.inputs) - 1
			}
			return m, m.updateFocus()

		case "enter":
			if m.focusIndex == len(m.inputs)-1 {
				return m, m.save()
			}
			m.focusIndex++
			return m, m.updateFocus()
		}
	}

	var cmd tea.Cmd
	m.inputs[m.focusIndex], cmd = m.inputs[m.focusIndex].Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *formModel) updateFocus() tea.Cmd {
	cmds := make([]tea.Cmd, len(m.inputs))

	for i := range m.inputs {
		if i == m.focusIndex {
			cmds[i] = m.inputs[i].Focus()
		} else {
			m.inputs[i].Blur()
		}
	}

	return tea.Batch(cmds...)
}

func (m *formModel) input() (monitor.ServerInput, error) {
	in := monitor.ServerInput{
		Name:    strings.TrimSpace(m.inputs[inputName].Value()),
		Address: strings.TrimSpace(m.inputs[inputAddress].Value()),
		Type:    strings.TrimSpace(m.inputs[inputType].Value()),
	}

	if v := strings.TrimSpace(m.inputs[inputPort].Value()); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return in, errors.New("port must be a number")
		}
		in.Port = port
	}
	if v := strings.TrimSpace(m.inputs[inputMaxPlayers].Value()); v != "" {
		maxPlayers, err := strconv.Atoi(v)
		if err != nil {
			return in, errors.New("max players must be a number")
		}
		in.MaxPlayers = maxPlayers
	}
	return in, nil
}

func (m *formModel) save() tea.Cmd {
	in, err := m.input()
	if err != nil {
		m.err = err
		return nil
	}

	if m.isEdit && m.server != nil {
		_, err = m.mon.UpdateServer(m.server.ID, in)
	} else {
		_, err = m.mon.AddServer(in)
	}
	if err != nil {
		m.err = err
		return nil
	}

	return serverSaved()
}

func (m formModel) View() string {
	var b strings.Builder

	title := "Add Server"
	if m.isEdit {
		title = "Edit Server"
	}

	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n\n")

	labels := []string{
		"Name:",
		"Address (domain or IPv4):",
		"Port:",
		"Type:",
		"Max Players:",
	}

	for i, input := range m.inputs {
		b.WriteString(lipgloss.NewStyle().Bold(true).Render(labels[i]))
		b.WriteString("\n")
		b.WriteString(input.View())
		b.WriteString("\n\n")
	}

	if m.err != nil {
		errStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
		b.WriteString(errStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n\n")
	}

	b.WriteString(helpStyle.Render(
		"tab: next • shift+tab: previous • enter: save • esc: cancel",
	))

	return baseStyle.Render(b.String())
}
