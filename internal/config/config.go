package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	AppName             = "craftwatch"
	DefaultProbeDelay   = time.Second
	DefaultProbeTimeout = 10 * time.Second
	DefaultLogCapacity  = 100
	DefaultMaxBackups   = 10
	DefaultAlertLimit   = 500
	DefaultListenAddr   = "127.0.0.1:8085"
)

// Config is the process configuration read from config.yaml. The in-app
// settings record edited from the dashboard lives in the store instead.
type Config struct {
	DataDir    string           `yaml:"data_dir"`
	Storage    StorageConfig    `yaml:"storage"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Alerts     AlertsConfig     `yaml:"alerts"`
	API        APIConfig        `yaml:"api"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type StorageConfig struct {
	Backend    string `yaml:"backend"` // auto, structured or flat
	SQLitePath string `yaml:"sqlite_path"`
	KVPath     string `yaml:"kv_path"`
	MaxBackups int    `yaml:"max_backups"`
}

type MonitoringConfig struct {
	ProbeDelay      time.Duration `yaml:"probe_delay"`
	ProbeTimeout    time.Duration `yaml:"probe_timeout"`
	SimulatePlayers *bool         `yaml:"simulate_players"`
	LogCapacity     int           `yaml:"log_capacity"`
}

type AlertsConfig struct {
	HistoryLimit *int `yaml:"history_limit"` // 0 keeps every entry
}

type APIConfig struct {
	ListenAddr  string   `yaml:"listen_addr"`
	CORSOrigins []string `yaml:"cors_origins"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console or json
}

func GetConfigDir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}

	configDir := filepath.Join(base, AppName)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", err
	}

	return configDir, nil
}

func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.yaml"), nil
}

// Load reads path and applies defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if cfg.DataDir == "" {
		cfg.DataDir = filepath.Dir(path)
	}
	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) setDefaults() {
	if c.Storage.Backend == "" {
		c.Storage.Backend = "auto"
	}
	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = filepath.Join(c.DataDir, AppName+".db")
	}
	if c.Storage.KVPath == "" {
		c.Storage.KVPath = filepath.Join(c.DataDir, AppName+".kv")
	}
	if c.Storage.MaxBackups == 0 {
		c.Storage.MaxBackups = DefaultMaxBackups
	}

	if c.Monitoring.ProbeDelay == 0 {
		c.Monitoring.ProbeDelay = DefaultProbeDelay
	}
	if c.Monitoring.ProbeTimeout == 0 {
		c.Monitoring.ProbeTimeout = DefaultProbeTimeout
	}
	if c.Monitoring.SimulatePlayers == nil {
		enabled := true
		c.Monitoring.SimulatePlayers = &enabled
	}
	if c.Monitoring.LogCapacity == 0 {
		c.Monitoring.LogCapacity = DefaultLogCapacity
	}

	if c.Alerts.HistoryLimit == nil {
		limit := DefaultAlertLimit
		c.Alerts.HistoryLimit = &limit
	}

	if c.API.ListenAddr == "" {
		c.API.ListenAddr = DefaultListenAddr
	}
	if len(c.API.CORSOrigins) == 0 {
		c.API.CORSOrigins = []string{"*"}
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
}

func (c *Config) Validate() error {
	validBackends := map[string]bool{"auto": true, "structured": true, "flat": true}
	if !validBackends[c.Storage.Backend] {
		return fmt.Errorf("invalid storage.backend: %s (must be auto, structured, or flat)", c.Storage.Backend)
	}

	if c.Storage.MaxBackups < 1 {
		return fmt.Errorf("storage.max_backups must be at least 1")
	}

	if c.Monitoring.ProbeDelay < 0 {
		return fmt.Errorf("monitoring.probe_delay must not be negative")
	}
	if c.Monitoring.ProbeTimeout < 0 {
		return fmt.Errorf("monitoring.probe_timeout must not be negative")
	}
	if c.Monitoring.LogCapacity < 1 {
		return fmt.Errorf("monitoring.log_capacity must be at least 1")
	}

	if *c.Alerts.HistoryLimit < 0 {
		return fmt.Errorf("alerts.history_limit must not be negative")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid logging.level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	validLogFormats := map[string]bool{"console": true, "json": true}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid logging.format: %s (must be console or json)", c.Logging.Format)
	}

	return nil
}
