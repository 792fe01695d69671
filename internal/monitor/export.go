package monitor

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ankityadav/craftwatch/internal/stats"
	"github.com/ankityadav/craftwatch/internal/storage"
)

const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

type ExportStatistics struct {
	TotalServers       int     `json:"totalServers"`
	OnlineServers      int     `json:"onlineServers"`
	OfflineServers     int     `json:"offlineServers"`
	DisabledServers    int     `json:"disabledServers"`
	TotalPlayers       int     `json:"totalPlayers"`
	OnlinePlayers      int     `json:"onlinePlayers"`
	TotalPlayTime      int64   `json:"totalPlayTime"`
	TotalSessions      int     `json:"totalSessions"`
	AverageSessionTime float64 `json:"averageSessionTime"`
	UniqueToday        int     `json:"uniqueToday"`
}

type Export struct {
	ExportDate time.Time        `json:"exportDate"`
	Servers    []storage.Server `json:"servers"`
	Players    []storage.Player `json:"players"`
	Config     storage.Settings `json:"config"`
	Statistics ExportStatistics `json:"statistics"`
}

func (m *Monitor) snapshot() Export {
	now := m.now()
	counts := stats.CountServers(m.servers)
	ps := stats.ComputePlayerStats(m.players, now)
	return Export{
		ExportDate: now,
		Servers:    append([]storage.Server{}, m.servers...),
		Players:    append([]storage.Player{}, m.players...),
		Config:     m.settings,
		Statistics: ExportStatistics{
			TotalServers:       counts.Total,
			OnlineServers:      counts.Online,
			OfflineServers:     counts.Offline,
			DisabledServers:    counts.Disabled,
			TotalPlayers:       ps.Total,
			OnlinePlayers:      ps.Online,
			TotalPlayTime:      ps.TotalPlayTime,
			TotalSessions:      ps.TotalSessions,
			AverageSessionTime: ps.AverageSessionTime,
			UniqueToday:        ps.UniqueToday,
		},
	}
}

// ExportData renders the current state as indented JSON or as sectioned CSV.
func (m *Monitor) ExportData(format string) ([]byte, error) {
	var out []byte
	err := m.mutate(func(tx *txn) error {
		doc := m.snapshot()
		switch format {
		case FormatJSON:
			b, err := json.MarshalIndent(doc, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode export: %w", err)
			}
			out = b
		case FormatCSV:
			out = []byte(renderCSV(doc))
		default:
			return &ValidationError{Field: "format", Message: fmt.Sprintf("must be %q or %q", FormatJSON, FormatCSV)}
		}
		m.logActivity(tx, LogDataExport, fmt.Sprintf("Exported data as %s", format))
		return nil
	})
	return out, err
}

// quote wraps every cell in double quotes whatever its content.
func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func csvRow(b *strings.Builder, cells ...string) {
	for i, c := range cells {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(quote(c))
	}
	b.WriteByte('\n')
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func renderCSV(doc Export) string {
	var b strings.Builder
	itoa := strconv.Itoa
	btoa := strconv.FormatBool

	csvRow(&b, "Servers")
	csvRow(&b, "ID", "Name", "Address", "Port", "Type", "Enabled", "Status", "Players Online", "Max Players", "Latency", "Version", "Last Checked", "Added")
	if len(doc.Servers) == 0 {
		csvRow(&b, "No data")
	}
	for _, s := range doc.Servers {
		checked := ""
		if s.LastChecked != nil {
			checked = formatTime(*s.LastChecked)
		}
		csvRow(&b, s.ID, s.Name, s.Address, itoa(s.Port), s.Type, btoa(s.Enabled), string(s.Status),
			itoa(s.PlayersOnline), itoa(s.MaxPlayers), itoa(s.Latency), s.Version, checked, s.AddedDate)
	}
	b.WriteByte('\n')

	csvRow(&b, "Players")
	csvRow(&b, "ID", "Username", "UUID", "First Seen", "Last Seen", "Play Time", "Sessions", "Online", "Current Server", "Favorite", "Rank", "Notes")
	if len(doc.Players) == 0 {
		csvRow(&b, "No data")
	}
	for _, p := range doc.Players {
		current := ""
		if p.CurrentServer != nil {
			current = *p.CurrentServer
		}
		csvRow(&b, p.ID, p.Username, p.UUID, formatTime(p.FirstSeen), formatTime(p.LastSeen),
			stats.FormatPlayTime(p.TotalPlayTime), itoa(p.Sessions), btoa(p.IsOnline), current,
			btoa(p.Favorite), p.Rank, p.Notes)
	}
	b.WriteByte('\n')

	st := doc.Statistics
	csvRow(&b, "Statistics")
	csvRow(&b, "Metric", "Value")
	csvRow(&b, "Export Date", formatTime(doc.ExportDate))
	csvRow(&b, "Total Servers", itoa(st.TotalServers))
	csvRow(&b, "Online Servers", itoa(st.OnlineServers))
	csvRow(&b, "Offline Servers", itoa(st.OfflineServers))
	csvRow(&b, "Disabled Servers", itoa(st.DisabledServers))
	csvRow(&b, "Total Players", itoa(st.TotalPlayers))
	csvRow(&b, "Online Players", itoa(st.OnlinePlayers))
	csvRow(&b, "Total Play Time", stats.FormatPlayTime(st.TotalPlayTime))
	csvRow(&b, "Total Sessions", itoa(st.TotalSessions))
	csvRow(&b, "Average Session", stats.FormatPlayTime(int64(st.AverageSessionTime)))
	csvRow(&b, "Unique Today", itoa(st.UniqueToday))
	return b.String()
}
