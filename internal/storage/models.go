package storage

import (
	"time"

	"gorm.io/datatypes"
)

type ServerStatus string

const (
	StatusUnknown ServerStatus = "unknown"
	StatusOnline  ServerStatus = "online"
	StatusOffline ServerStatus = "offline"
	StatusError   ServerStatus = "error"
)

// UnreachableLatency is the latency recorded for a server that could not be reached.
const UnreachableLatency = 999

type Server struct {
	ID            string       `gorm:"primaryKey" json:"id"`
	Name          string       `gorm:"not null;index" json:"name"`
	Address       string       `gorm:"not null" json:"address"`
	Port          int          `json:"port"`
	Type          string       `json:"type"`
	Enabled       bool         `gorm:"index" json:"enabled"`
	Status        ServerStatus `gorm:"index" json:"status"`
	PlayersOnline int          `json:"playersOnline"`
	MaxPlayers    int          `json:"maxPlayers"`
	Latency       int          `json:"latency"`
	Version       string       `json:"version"`
	Motd          string       `json:"motd"`
	LastChecked   *time.Time   `json:"lastChecked"`
	AddedDate     string       `json:"addedDate"`
}

type Player struct {
	ID            string    `gorm:"primaryKey" json:"id"`
	Username      string    `gorm:"not null;uniqueIndex" json:"username"`
	UUID          string    `json:"uuid"`
	FirstSeen     time.Time `json:"firstSeen"`
	LastSeen      time.Time `json:"lastSeen"`
	TotalPlayTime int64     `json:"totalPlayTime"`
	Sessions      int       `json:"sessions"`
	CurrentServer *string   `gorm:"index" json:"currentServer"`
	IsOnline      bool      `gorm:"index" json:"isOnline"`
	Favorite      bool      `json:"favorite"`
	Rank          string    `json:"rank"`
	Notes         string    `json:"notes"`
}

// Session is an append-only login marker.
type Session struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	PlayerID  string    `gorm:"not null;index" json:"playerId"`
	LoginTime time.Time `gorm:"index" json:"loginTime"`
}

type Event struct {
	ID        uint              `gorm:"primaryKey;autoIncrement" json:"id"`
	Type      string            `gorm:"not null;index" json:"type"`
	Timestamp time.Time         `gorm:"index" json:"timestamp"`
	Payload   datatypes.JSONMap `json:"payload"`
}

// Settings is the singleton application configuration record.
type Settings struct {
	Monitoring    MonitoringSettings   `json:"monitoring"`
	Notifications NotificationSettings `json:"notifications"`
	Storage       StorageSettings      `json:"storage"`
}

type MonitoringSettings struct {
	Enabled       bool  `json:"enabled"`
	CheckInterval int64 `json:"checkInterval"`
	AutoStart     bool  `json:"autoStart"`
}

type NotificationSettings struct {
	PlayerLogin  bool `json:"playerLogin"`
	PlayerLogout bool `json:"playerLogout"`
	ServerDown   bool `json:"serverDown"`
}

type StorageSettings struct {
	BackupInterval   int64 `json:"backupInterval"`
	LogRetentionDays int   `json:"logRetentionDays"`
}

func DefaultSettings() Settings {
	return Settings{
		Monitoring: MonitoringSettings{
			Enabled:       true,
			CheckInterval: 30000,
			AutoStart:     true,
		},
		Notifications: NotificationSettings{
			PlayerLogin:  true,
			PlayerLogout: false,
			ServerDown:   true,
		},
		Storage: StorageSettings{
			BackupInterval:   86400000,
			LogRetentionDays: 7,
		},
	}
}

func (s Settings) CheckInterval() time.Duration {
	return time.Duration(s.Monitoring.CheckInterval) * time.Millisecond
}

func (s Settings) BackupInterval() time.Duration {
	return time.Duration(s.Storage.BackupInterval) * time.Millisecond
}

type configRow struct {
	Key   string         `gorm:"primaryKey"`
	Value datatypes.JSON `gorm:"not null"`
}

func (configRow) TableName() string {
	return "config"
}

type AlertRule struct {
	ID        string `json:"id"`
	Enabled   bool   `json:"enabled"`
	Threshold *int   `json:"threshold,omitempty"`
	Message   string `json:"message"`
	Sound     string `json:"sound,omitempty"`
}

type AlertEntry struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Read      bool      `json:"read"`
}

type AlertConfig struct {
	Enabled  bool         `json:"enabled"`
	Desktop  bool         `json:"desktop"`
	Sound    bool         `json:"sound"`
	Triggers []AlertRule  `json:"triggers"`
	History  []AlertEntry `json:"history"`
}

func (a *AlertConfig) Rule(id string) (*AlertRule, bool) {
	for i := range a.Triggers {
		if a.Triggers[i].ID == id {
			return &a.Triggers[i], true
		}
	}
	return nil, false
}

func DefaultAlertConfig() AlertConfig {
	threshold := 15
	return AlertConfig{
		Enabled: true,
		Desktop: true,
		Sound:   true,
		Triggers: []AlertRule{
			{ID: "server_online", Enabled: true, Message: "Server {server} is now online", Sound: "success"},
			{ID: "server_offline", Enabled: true, Message: "Server {server} went offline", Sound: "error"},
			{ID: "player_login", Enabled: true, Message: "{player} joined {server}", Sound: "notification"},
			{ID: "player_logout", Enabled: false, Message: "{player} left {server}"},
			{ID: "high_player_count", Enabled: true, Threshold: &threshold, Message: "{server} has {count} players online", Sound: "warning"},
		},
		History: []AlertEntry{},
	}
}

type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
}

// Backup is a full snapshot written under its own backup_ key.
type Backup struct {
	Key       string      `json:"-"`
	Timestamp time.Time   `json:"timestamp"`
	Servers   []Server    `json:"servers"`
	Players   []Player    `json:"players"`
	Config    Settings    `json:"config"`
	Alerts    AlertConfig `json:"alerts"`
}
