package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ankityadav/craftwatch/internal/monitor"
	"github.com/ankityadav/craftwatch/internal/storage"
)

type sessionState int

const (
	listView sessionState = iota
	addView
	editView
	detailView
	playersView
	alertsView
	logsView
)

type Model struct {
	mon     *monitor.Monitor
	state   sessionState
	list    listModel
	form    formModel
	detail  detailModel
	players playersModel
	alerts  alertsModel
	logs    logsModel
	events  chan monitor.Event
	detach  func()
	width   int
	height  int
}

type tickMsg time.Time

// monitorEventMsg is delivered when the monitor publishes any event.
type monitorEventMsg monitor.Event

func New(mon *monitor.Monitor) Model {
	events := make(chan monitor.Event, 64)
	detach := mon.On(monitor.AnyEvent, func(e monitor.Event) {
		select {
		case events <- e:
		default:
		}
	})

	return Model{
		mon:     mon,
		state:   listView,
		list:    newListModel(mon),
		form:    newFormModel(mon),
		detail:  newDetailModel(mon),
		players: newPlayersModel(mon),
		alerts:  newAlertsModel(mon),
		logs:    newLogsModel(mon),
		events:  events,
		detach:  detach,
	}
}

// Close removes the event subscription.
func (m Model) Close() {
	if m.detach != nil {
		m.detach()
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.list.Init(),
		tickCmd(),
		waitForEvent(m.events),
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second*2, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func waitForEvent(events <-chan monitor.Event) tea.Cmd {
	return func() tea.Msg {
		return monitorEventMsg(<-events)
	}
}

// capturingInput reports whether keys belong to a text input.
func (m Model) capturingInput() bool {
	return m.state == addView || m.state == editView || (m.state == playersView && m.players.editing)
}

func (m *Model) refresh() {
	switch m.state {
	case listView:
		m.list.loadServers()
	case detailView:
		m.detail.refresh()
	case playersView:
		m.players.loadPlayers()
	case alertsView:
		m.alerts.refresh()
	case logsView:
		m.logs.refresh()
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "q":
			if m.state == listView {
				return m, tea.Quit
			}
			if !m.capturingInput() {
				m.state = listView
				m.list.loadServers()
				return m, nil
			}
		}
		if !m.capturingInput() {
			switch msg.String() {
			case "1":
				m.state = listView
				m.refresh()
				return m, nil
			case "2":
				m.state = playersView
				m.refresh()
				return m, nil
			case "3":
				m.state = alertsView
				m.refresh()
				return m, nil
			case "4":
				m.state = logsView
				m.refresh()
				return m, nil
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		m.refresh()
		return m, tickCmd()

	case monitorEventMsg:
		m.refresh()
		return m, waitForEvent(m.events)

	case ServerSelectedMsg:
		m.state = detailView
		m.detail.setServer(msg.Server)
		return m, nil

	case AddServerMsg:
		m.state = addView
		m.form.reset()
		return m, nil

	case EditServerMsg:
		m.state = editView
		m.form.setServer(msg.Server)
		return m, nil

	case ServerSavedMsg:
		m.state = listView
		m.list.loadServers()
		return m, nil

	case BackToListMsg:
		m.state = listView
		m.list.loadServers()
		return m, nil
	}

	switch m.state {
	case listView:
		listModel, listCmd := m.list.Update(msg)
		m.list = listModel
		cmds = append(cmds, listCmd)

	case addView, editView:
		formModel, formCmd := m.form.Update(msg)
		m.form = formModel
		cmds = append(cmds, formCmd)

	case detailView:
		detailModel, detailCmd := m.detail.Update(msg)
		m.detail = detailModel
		cmds = append(cmds, detailCmd)

	case playersView:
		playersModel, playersCmd := m.players.Update(msg)
		m.players = playersModel
		cmds = append(cmds, playersCmd)

	case alertsView:
		alertsModel, alertsCmd := m.alerts.Update(msg)
		m.alerts = alertsModel
		cmds = append(cmds, alertsCmd)

	case logsView:
		logsModel, logsCmd := m.logs.Update(msg)
		m.logs = logsModel
		cmds = append(cmds, logsCmd)
	}

	return m, tea.Batch(cmds...)
}

func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	switch m.state {
	case listView:
		return m.list.View()
	case addView, editView:
		return m.form.View()
	case detailView:
		return m.detail.View()
	case playersView:
		return m.players.View()
	case alertsView:
		return m.alerts.View()
	case logsView:
		return m.logs.View()
	default:
		return "Unknown state"
	}
}

type ServerSelectedMsg struct {
	Server storage.Server
}

type AddServerMsg struct{}

type EditServerMsg struct {
	Server storage.Server
}

type ServerSavedMsg struct{}

type BackToListMsg struct{}

func serverSelected(s storage.Server) tea.Cmd {
	return func() tea.Msg {
		return ServerSelectedMsg{Server: s}
	}
}

func addServer() tea.Cmd {
	return func() tea.Msg {
		return AddServerMsg{}
	}
}

func editServer(s storage.Server) tea.Cmd {
	return func() tea.Msg {
		return EditServerMsg{Server: s}
	}
}

func serverSaved() tea.Cmd {
	return func() tea.Msg {
		return ServerSavedMsg{}
	}
}

func backToList() tea.Cmd {
	return func() tea.Msg {
		return BackToListMsg{}
	}
}
