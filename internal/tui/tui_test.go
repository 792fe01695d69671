package tui

import (
	"context"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ankityadav/craftwatch/internal/monitor"
	"github.com/ankityadav/craftwatch/internal/probe"
	"github.com/ankityadav/craftwatch/internal/storage"
)

func newTestMonitor(t *testing.T) *monitor.Monitor {
	t.Helper()

	st, err := storage.Open(storage.Options{
		Backend: storage.BackendFlat,
		KVPath:  filepath.Join(t.TempDir(), "craftwatch.kv"),
	}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	prober := probe.ProberFunc(func(ctx context.Context, srv storage.Server) (probe.Result, error) {
		return probe.Result{Online: true, PlayersOnline: 4, MaxPlayers: 20, Latency: 80}, nil
	})
	mon := monitor.New(st, st.KV(), prober, nil, monitor.Options{Logger: zerolog.Nop()})
	require.NoError(t, mon.Load())
	t.Cleanup(mon.Close)
	return mon
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestModelSwitchesViews(t *testing.T) {
	mon := newTestMonitor(t)
	m := New(mon)
	defer m.Close()

	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	m = next.(Model)
	assert.Contains(t, m.View(), "CraftWatch")

	next, _ = m.Update(key("2"))
	m = next.(Model)
	assert.Equal(t, playersView, m.state)

	next, _ = m.Update(key("4"))
	m = next.(Model)
	assert.Equal(t, logsView, m.state)

	next, _ = m.Update(key("q"))
	m = next.(Model)
	assert.Equal(t, listView, m.state)
}

func TestFormKeepsDigitsWhileEditing(t *testing.T) {
	mon := newTestMonitor(t)
	m := New(mon)
	defer m.Close()

	next, _ := m.Update(AddServerMsg{})
	m = next.(Model)
	require.Equal(t, addView, m.state)

	next, _ = m.Update(key("2"))
	m = next.(Model)
	assert.Equal(t, addView, m.state)
	assert.Equal(t, "2", m.form.inputs[inputName].Value())
}

func TestFormSavesServer(t *testing.T) {
	mon := newTestMonitor(t)
	f := newFormModel(mon)
	f.reset()

	f.inputs[inputName].SetValue("Hub")
	f.inputs[inputAddress].SetValue("bad address")
	assert.Nil(t, f.save())
	require.Error(t, f.err)
	assert.Empty(t, mon.Servers())

	f.inputs[inputAddress].SetValue("mc.example.com")
	f.inputs[inputPort].SetValue("abc")
	assert.Nil(t, f.save())
	assert.EqualError(t, f.err, "port must be a number")

	f.inputs[inputPort].SetValue("25566")
	require.NotNil(t, f.save())
	servers := mon.Servers()
	require.Len(t, servers, 1)
	assert.Equal(t, 25566, servers[0].Port)
	assert.Equal(t, monitor.DefaultServerType, servers[0].Type)

	f.setServer(servers[0])
	f.inputs[inputMaxPlayers].SetValue("50")
	require.NotNil(t, f.save())
	srv, err := mon.Server(servers[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 50, srv.MaxPlayers)
}

func TestListActions(t *testing.T) {
	mon := newTestMonitor(t)
	_, err := mon.AddServer(monitor.ServerInput{Name: "Hub", Address: "mc.example.com"})
	require.NoError(t, err)

	l := newListModel(mon)
	require.Len(t, l.servers, 1)

	l, _ = l.Update(key("t"))
	assert.False(t, mon.Servers()[0].Enabled)
	assert.Equal(t, "Toggled Hub", l.status)

	l, _ = l.Update(key("d"))
	assert.Empty(t, mon.Servers())
	assert.Empty(t, l.servers)
}

func TestPlayersFavoriteAndRank(t *testing.T) {
	mon := newTestMonitor(t)
	_, err := mon.PlayerLogin("Steve", "Hub")
	require.NoError(t, err)

	p := newPlayersModel(mon)
	p, _ = p.Update(key("f"))
	assert.True(t, mon.Players()[0].Favorite)

	p, _ = p.Update(key("R"))
	require.True(t, p.editing)
	p.rank.SetValue("Admin")
	p, _ = p.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.False(t, p.editing)
	assert.Equal(t, "Admin", mon.Players()[0].Rank)

	p, _ = p.Update(key("l"))
	assert.False(t, mon.Players()[0].IsOnline)

	p, _ = p.Update(key("o"))
	assert.Empty(t, p.players)
}

func TestDashboardRecordsCycles(t *testing.T) {
	mon := newTestMonitor(t)
	_, err := mon.AddServer(monitor.ServerInput{Name: "Hub", Address: "mc.example.com"})
	require.NoError(t, err)

	d := NewDashboard(mon)
	defer d.Close()
	id := mon.Servers()[0].ID
	assert.Empty(t, d.history[id], "unchecked servers have no samples")

	for range historyLen + 5 {
		mon.RunCycle(context.Background())
		next, _ := d.Update(monitorEventMsg{Name: monitor.EventCycleComplete})
		d = next.(DashboardModel)
	}

	require.Len(t, d.history[id], historyLen)
	assert.Equal(t, sample{online: true, latency: 80, players: 4}, d.history[id][0])

	next, _ := d.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	d = next.(DashboardModel)
	view := d.View()
	assert.Contains(t, view, "Hub")
	assert.Contains(t, view, "(0-80ms)")
}

func TestRenderSparklineEmpty(t *testing.T) {
	assert.Contains(t, renderSparkline(nil, 10), "No data yet")
}
