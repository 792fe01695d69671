// Package stats derives summary figures from server and player collections.
// Every function is pure; callers recompute after each mutation.
package stats

import (
	"fmt"
	"time"

	"github.com/ankityadav/craftwatch/internal/storage"
)

// ServerCounts partitions servers: every server lands in exactly one bucket.
// Disabled servers are counted as disabled whatever their frozen status.
type ServerCounts struct {
	Total    int `json:"total"`
	Online   int `json:"online"`
	Offline  int `json:"offline"`
	Error    int `json:"error"`
	Unknown  int `json:"unknown"`
	Disabled int `json:"disabled"`
}

func CountServers(servers []storage.Server) ServerCounts {
	c := ServerCounts{Total: len(servers)}
	for _, s := range servers {
		if !s.Enabled {
			c.Disabled++
			continue
		}
		switch s.Status {
		case storage.StatusOnline:
			c.Online++
		case storage.StatusOffline:
			c.Offline++
		case storage.StatusError:
			c.Error++
		default:
			c.Unknown++
		}
	}
	return c
}

// PlayersOnline sums the last reported player counts of enabled online servers.
func PlayersOnline(servers []storage.Server) int {
	total := 0
	for _, s := range servers {
		if s.Enabled && s.Status == storage.StatusOnline {
			total += s.PlayersOnline
		}
	}
	return total
}

// AverageLatency is the mean latency of enabled online servers, 0 when none are online.
func AverageLatency(servers []storage.Server) float64 {
	sum, n := 0, 0
	for _, s := range servers {
		if s.Enabled && s.Status == storage.StatusOnline {
			sum += s.Latency
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return float64(sum) / float64(n)
}

type PlayerStats struct {
	Total              int     `json:"total"`
	Online             int     `json:"online"`
	TotalPlayTime      int64   `json:"totalPlayTime"`
	TotalSessions      int     `json:"totalSessions"`
	AverageSessionTime float64 `json:"averageSessionTime"`
	UniqueToday        int     `json:"uniqueToday"`
}

// ComputePlayerStats aggregates players. UniqueToday counts players whose
// LastSeen falls on the same UTC calendar day as now.
func ComputePlayerStats(players []storage.Player, now time.Time) PlayerStats {
	st := PlayerStats{Total: len(players)}
	today := now.UTC().Format(time.DateOnly)
	for _, p := range players {
		if p.IsOnline {
			st.Online++
		}
		st.TotalPlayTime += p.TotalPlayTime
		st.TotalSessions += p.Sessions
		if !p.LastSeen.IsZero() && p.LastSeen.UTC().Format(time.DateOnly) == today {
			st.UniqueToday++
		}
	}
	if st.TotalSessions > 0 {
		st.AverageSessionTime = float64(st.TotalPlayTime) / float64(st.TotalSessions)
	}
	return st
}

// FormatPlayTime renders seconds as "3h 25m", "12m" or "45s".
func FormatPlayTime(seconds int64) string {
	h := seconds / 3600
	m := (seconds % 3600) / 60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm", h, m)
	case m > 0:
		return fmt.Sprintf("%dm", m)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}

// FormatUptime renders a duration as "2d 3h 4m" with leading zero units dropped.
func FormatUptime(d time.Duration) string {
	d = d.Truncate(time.Minute)
	days := int(d / (24 * time.Hour))
	hours := int(d % (24 * time.Hour) / time.Hour)
	minutes := int(d % time.Hour / time.Minute)
	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	default:
		return fmt.Sprintf("%dm", minutes)
	}
}
