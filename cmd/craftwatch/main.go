package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ankityadav/craftwatch/internal/api"
	"github.com/ankityadav/craftwatch/internal/config"
	"github.com/ankityadav/craftwatch/internal/logger"
	"github.com/ankityadav/craftwatch/internal/metrics"
	"github.com/ankityadav/craftwatch/internal/monitor"
	"github.com/ankityadav/craftwatch/internal/notifier"
	"github.com/ankityadav/craftwatch/internal/probe"
	"github.com/ankityadav/craftwatch/internal/stats"
	"github.com/ankityadav/craftwatch/internal/storage"
	"github.com/ankityadav/craftwatch/internal/tui"
)

var rootCmd = &cobra.Command{
	Use:           "craftwatch",
	Short:         "Game server and player monitor",
	Long:          "Tracks the status of Minecraft servers and the players on them, with alerts, backups and a terminal dashboard",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start monitoring with the interactive TUI",
	RunE:  runStart,
}

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Show the real-time dashboard with latency graphs",
	RunE:  runDashboard,
}

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run monitoring with the HTTP API and metrics (no TUI)",
	RunE:  runDaemon,
}

var addCmd = &cobra.Command{
	Use:   "add [name] [address]",
	Short: "Add a server",
	Args:  cobra.ExactArgs(2),
	RunE:  runAdd,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all servers",
	RunE:  runList,
}

var removeCmd = &cobra.Command{
	Use:   "remove [id]",
	Short: "Remove a server by ID",
	Args:  cobra.ExactArgs(1),
	RunE:  runRemove,
}

var toggleCmd = &cobra.Command{
	Use:   "toggle [id]",
	Short: "Enable or disable a server",
	Args:  cobra.ExactArgs(1),
	RunE:  runToggle,
}

var playersCmd = &cobra.Command{
	Use:   "players",
	Short: "List known players",
	RunE:  runPlayers,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print summary statistics",
	RunE:  runStatus,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export servers, players and settings as JSON or CSV",
	RunE:  runExport,
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Create a backup now",
	RunE:  runBackup,
}

var backupsCmd = &cobra.Command{
	Use:   "backups",
	Short: "List backups, newest first",
	RunE:  runBackups,
}

var restoreCmd = &cobra.Command{
	Use:   "restore [key]",
	Short: "Restore servers, players, settings and alerts from a backup",
	Args:  cobra.ExactArgs(1),
	RunE:  runRestore,
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Back up and then delete all servers, players, sessions and events",
	RunE:  runClear,
}

var (
	configPath string

	startAPI bool

	addPort       int
	addType       string
	addMaxPlayers int

	onlineOnly bool

	exportFormat string
	exportOutput string

	clearYes bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default $XDG_CONFIG_HOME/craftwatch/config.yaml)")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(dashboardCmd)
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(toggleCmd)
	rootCmd.AddCommand(playersCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(backupsCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(clearCmd)

	startCmd.Flags().BoolVar(&startAPI, "api", false, "Also serve the HTTP API while the TUI runs")

	addCmd.Flags().IntVarP(&addPort, "port", "p", monitor.DefaultPort, "Server port")
	addCmd.Flags().StringVarP(&addType, "type", "t", monitor.DefaultServerType, "Server type (java or bedrock)")
	addCmd.Flags().IntVarP(&addMaxPlayers, "max-players", "m", monitor.DefaultMaxPlayers, "Maximum players")

	playersCmd.Flags().BoolVar(&onlineOnly, "online", false, "Only list online players")

	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", monitor.FormatJSON, "Export format (json or csv)")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default stdout)")

	clearCmd.Flags().BoolVar(&clearYes, "yes", false, "Confirm deleting all data")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type app struct {
	cfg   *config.Config
	store *storage.Storage
	mon   *monitor.Monitor
	log   zerolog.Logger
}

// openApp loads the configuration, opens the store and loads the monitor
// state. quiet keeps info logs off the terminal for interactive commands.
func openApp(quiet bool) (*app, error) {
	path := configPath
	if path == "" {
		var err error
		path, err = config.GetConfigPath()
		if err != nil {
			return nil, fmt.Errorf("failed to get config path: %w", err)
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	level := cfg.Logging.Level
	if quiet && level != "debug" {
		level = "warn"
	}
	if err := logger.Init(level, cfg.Logging.Format); err != nil {
		return nil, err
	}
	log := logger.Component("app")

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	st, err := storage.Open(storage.Options{
		Backend:    storage.Backend(cfg.Storage.Backend),
		SQLitePath: cfg.Storage.SQLitePath,
		KVPath:     cfg.Storage.KVPath,
	}, logger.Component("storage"))
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	seed := uint64(time.Now().UnixNano())
	opts := monitor.Options{
		ProbeDelay:        cfg.Monitoring.ProbeDelay,
		ProbeTimeout:      cfg.Monitoring.ProbeTimeout,
		LogCapacity:       cfg.Monitoring.LogCapacity,
		AlertHistoryLimit: *cfg.Alerts.HistoryLimit,
		MaxBackups:        cfg.Storage.MaxBackups,
		Logger:            logger.Component("monitor"),
	}
	if *cfg.Monitoring.SimulatePlayers {
		opts.Activity = probe.NewActivitySimulator(seed + 1)
	}

	mon := monitor.New(st, st.KV(), probe.NewSimulator(seed), notifier.New(logger.Component("notifier")), opts)
	if err := mon.Load(); err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to load monitor state: %w", err)
	}

	return &app{cfg: cfg, store: st, mon: mon, log: log}, nil
}

func (a *app) Close() {
	a.mon.Close()
	if err := a.store.Close(); err != nil {
		a.log.Error().Err(err).Msg("failed to close storage")
	}
}

func (a *app) autoStart() error {
	if !a.mon.Settings().Monitoring.AutoStart {
		return nil
	}
	return a.mon.Start()
}

func (a *app) newAPIServer() *api.Server {
	m := metrics.New()
	m.Attach(a.mon)
	return api.NewServer(a.mon, m, a.cfg.API.ListenAddr, a.cfg.API.CORSOrigins, logger.Component("api"))
}

func (a *app) serveAPI(srv *api.Server) {
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error().Err(err).Msg("HTTP API server failed")
		}
	}()
}

func shutdownAPI(srv *api.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

func runStart(cmd *cobra.Command, args []string) error {
	a, err := openApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.autoStart(); err != nil {
		return fmt.Errorf("failed to start monitoring: %w", err)
	}

	if startAPI {
		srv := a.newAPIServer()
		a.serveAPI(srv)
		defer shutdownAPI(srv)
	}

	model := tui.New(a.mon)
	defer model.Close()

	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

func runDashboard(cmd *cobra.Command, args []string) error {
	a, err := openApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.autoStart(); err != nil {
		return fmt.Errorf("failed to start monitoring: %w", err)
	}

	model := tui.NewDashboard(a.mon)
	defer model.Close()

	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("dashboard error: %w", err)
	}
	return nil
}

func runDaemon(cmd *cobra.Command, args []string) error {
	a, err := openApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.autoStart(); err != nil {
		return fmt.Errorf("failed to start monitoring: %w", err)
	}

	srv := a.newAPIServer()
	a.serveAPI(srv)
	a.log.Info().Str("backend", string(a.mon.Backend())).Msg("monitoring service started in daemon mode")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	a.log.Info().Msg("shutting down")
	return shutdownAPI(srv)
}

func runAdd(cmd *cobra.Command, args []string) error {
	a, err := openApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	srv, err := a.mon.AddServer(monitor.ServerInput{
		Name:       args[0],
		Address:    args[1],
		Port:       addPort,
		Type:       addType,
		MaxPlayers: addMaxPlayers,
	})
	if err != nil {
		return fmt.Errorf("failed to add server: %w", err)
	}

	fmt.Printf("Server added successfully (ID: %s)\n", srv.ID)
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	a, err := openApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	servers := a.mon.Servers()
	if len(servers) == 0 {
		fmt.Println("No servers configured")
		return nil
	}

	fmt.Printf("%-6s %-20s %-30s %-8s %-8s %-9s %-8s\n", "ID", "Name", "Address", "Type", "Status", "Players", "Enabled")
	fmt.Println("-----------------------------------------------------------------------------------------------")

	for _, s := range servers {
		enabled := "No"
		if s.Enabled {
			enabled = "Yes"
		}
		fmt.Printf("%-6s %-20s %-30s %-8s %-8s %-9s %-8s\n",
			s.ID, s.Name, fmt.Sprintf("%s:%d", s.Address, s.Port), s.Type, s.Status,
			fmt.Sprintf("%d/%d", s.PlayersOnline, s.MaxPlayers), enabled)
	}
	return nil
}

func runRemove(cmd *cobra.Command, args []string) error {
	a, err := openApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.mon.RemoveServer(args[0]); err != nil {
		return fmt.Errorf("failed to remove server: %w", err)
	}

	fmt.Printf("Server %s removed successfully\n", args[0])
	return nil
}

func runToggle(cmd *cobra.Command, args []string) error {
	a, err := openApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	srv, err := a.mon.ToggleServer(args[0])
	if err != nil {
		return fmt.Errorf("failed to toggle server: %w", err)
	}

	state := "disabled"
	if srv.Enabled {
		state = "enabled"
	}
	fmt.Printf("Server %s %s\n", srv.Name, state)
	return nil
}

func runPlayers(cmd *cobra.Command, args []string) error {
	a, err := openApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	players := a.mon.Players()
	fmt.Printf("%-16s %-8s %-16s %-10s %-8s %-12s\n", "Username", "Status", "Server", "Play Time", "Sessions", "Rank")
	fmt.Println("---------------------------------------------------------------------------")

	shown := 0
	for _, p := range players {
		if onlineOnly && !p.IsOnline {
			continue
		}
		status, server := "offline", "-"
		if p.IsOnline {
			status = "online"
			if p.CurrentServer != nil {
				server = *p.CurrentServer
			}
		}
		fmt.Printf("%-16s %-8s %-16s %-10s %-8d %-12s\n",
			p.Username, status, server, stats.FormatPlayTime(p.TotalPlayTime), p.Sessions, p.Rank)
		shown++
	}
	if shown == 0 {
		fmt.Println("No players")
	}
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := openApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	sum := a.mon.Summary()
	c := sum.Servers
	fmt.Printf("Backend:         %s\n", a.mon.Backend())
	fmt.Printf("Servers:         %d total, %d online, %d offline, %d error, %d unknown, %d disabled\n",
		c.Total, c.Online, c.Offline, c.Error, c.Unknown, c.Disabled)
	fmt.Printf("Players online:  %d\n", sum.PlayersOnline)
	fmt.Printf("Players known:   %d (%d seen today)\n", sum.Players.Total, sum.Players.UniqueToday)
	fmt.Printf("Total play time: %s\n", stats.FormatPlayTime(sum.Players.TotalPlayTime))
	fmt.Printf("Avg latency:     %.0fms\n", sum.AverageLatency)
	fmt.Printf("Unread alerts:   %d\n", sum.UnreadAlerts)
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	a, err := openApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	data, err := a.mon.ExportData(exportFormat)
	if err != nil {
		return fmt.Errorf("failed to export data: %w", err)
	}

	if exportOutput == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(exportOutput, data, 0644); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	fmt.Printf("Exported %s to %s\n", exportFormat, exportOutput)
	return nil
}

func runBackup(cmd *cobra.Command, args []string) error {
	a, err := openApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	key, err := a.mon.Backup()
	if err != nil {
		return fmt.Errorf("failed to create backup: %w", err)
	}
	fmt.Printf("Backup created: %s\n", key)
	return nil
}

func runBackups(cmd *cobra.Command, args []string) error {
	a, err := openApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	keys, err := a.mon.ListBackups()
	if err != nil {
		return fmt.Errorf("failed to list backups: %w", err)
	}
	if len(keys) == 0 {
		fmt.Println("No backups")
		return nil
	}
	for _, k := range keys {
		fmt.Println(k)
	}
	return nil
}

func runRestore(cmd *cobra.Command, args []string) error {
	a, err := openApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.mon.RestoreBackup(args[0]); err != nil {
		return fmt.Errorf("failed to restore backup: %w", err)
	}
	fmt.Printf("Restored %s\n", args[0])
	return nil
}

func runClear(cmd *cobra.Command, args []string) error {
	if !clearYes {
		return errors.New("refusing to clear data without --yes")
	}

	a, err := openApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	key, err := a.mon.ClearData()
	if err != nil {
		return fmt.Errorf("failed to clear data: %w", err)
	}
	fmt.Printf("All data cleared (backup saved as %s)\n", key)
	return nil
}
