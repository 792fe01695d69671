// Package monitor owns the authoritative in-memory server, player and alert
// state. It runs the periodic probe cycle, raises events, evaluates alert
// rules and persists every mutation through the store.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/ankityadav/craftwatch/internal/logger"
	"github.com/ankityadav/craftwatch/internal/notifier"
	"github.com/ankityadav/craftwatch/internal/probe"
	"github.com/ankityadav/craftwatch/internal/storage"
)

const defaultCheckInterval = 30 * time.Second

// SideStore holds the records kept outside the entity collections.
type SideStore interface {
	LoadActivityLog() ([]storage.LogEntry, error)
	SaveActivityLog(entries []storage.LogEntry) error
	LoadAlerts() (*storage.AlertConfig, error)
	SaveAlerts(cfg *storage.AlertConfig) error
	SaveBackup(b *storage.Backup) (string, error)
	ListBackups() ([]string, error)
	LoadBackup(key string) (*storage.Backup, error)
	PruneBackups(keep int) ([]string, error)
}

type Options struct {
	ProbeDelay        time.Duration
	ProbeTimeout      time.Duration
	LogCapacity       int
	AlertHistoryLimit int // 0 keeps every entry
	MaxBackups        int
	// Activity injects simulated logins and logouts after each cycle. Nil disables it.
	Activity probe.ActivitySource
	Now      func() time.Time
	Logger   zerolog.Logger
}

type Monitor struct {
	store    storage.Store
	side     SideStore
	prober   probe.Prober
	notifier notifier.Notifier
	activity probe.ActivitySource
	opts     Options
	log      zerolog.Logger
	now      func() time.Time

	// mu guards the state below. Every write goes through mutate.
	mu         sync.Mutex
	servers    []storage.Server
	players    []storage.Player
	settings   storage.Settings
	alerts     storage.AlertConfig
	logs       []storage.LogEntry
	lastBackup time.Time
	lastID     int64

	cycleMu sync.Mutex

	runMu     sync.Mutex
	cron      *cron.Cron
	running   bool
	startedAt time.Time
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	subMu   sync.RWMutex
	subs    map[string]map[int]func(Event)
	nextSub int
}

func New(store storage.Store, side SideStore, prober probe.Prober, n notifier.Notifier, opts Options) *Monitor {
	if opts.LogCapacity <= 0 {
		opts.LogCapacity = 100
	}
	if opts.MaxBackups <= 0 {
		opts.MaxBackups = 10
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if n == nil {
		n = notifier.Nop{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Monitor{
		store:    store,
		side:     side,
		prober:   prober,
		notifier: n,
		activity: opts.Activity,
		opts:     opts,
		log:      opts.Logger.With().Str("component", "monitor").Logger(),
		now:      opts.Now,
		settings: storage.DefaultSettings(),
		alerts:   storage.DefaultAlertConfig(),
		ctx:      ctx,
		cancel:   cancel,
		subs:     make(map[string]map[int]func(Event)),
	}
}

// Load reads the persisted state. Missing settings and alert configuration
// are seeded with defaults.
func (m *Monitor) Load() error {
	servers, err := m.store.Servers().List()
	if err != nil {
		return fmt.Errorf("failed to load servers: %w", err)
	}
	players, err := m.store.Players().List()
	if err != nil {
		return fmt.Errorf("failed to load players: %w", err)
	}

	settings, err := m.store.LoadConfig()
	switch {
	case errors.Is(err, storage.ErrNotFound):
		def := storage.DefaultSettings()
		settings = &def
		if err := m.store.SaveConfig(settings); err != nil {
			m.log.Warn().Err(err).Msg("failed to seed default settings")
		}
	case err != nil:
		return fmt.Errorf("failed to load settings: %w", err)
	}

	alerts, err := m.side.LoadAlerts()
	switch {
	case errors.Is(err, storage.ErrNotFound):
		def := storage.DefaultAlertConfig()
		alerts = &def
		if err := m.side.SaveAlerts(alerts); err != nil {
			m.log.Warn().Err(err).Msg("failed to seed default alert configuration")
		}
	case err != nil:
		return fmt.Errorf("failed to load alerts: %w", err)
	}
	if alerts.History == nil {
		alerts.History = []storage.AlertEntry{}
	}

	logs, err := m.side.LoadActivityLog()
	if err != nil {
		m.log.Warn().Err(err).Msg("failed to load activity log, starting empty")
		logs = nil
	}

	var lastBackup time.Time
	if keys, err := m.side.ListBackups(); err == nil && len(keys) > 0 {
		if b, err := m.side.LoadBackup(keys[0]); err == nil {
			lastBackup = b.Timestamp
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.servers = servers
	m.players = players
	m.settings = *settings
	m.alerts = *alerts
	m.logs = logs
	m.lastBackup = lastBackup
	for _, s := range servers {
		m.observeID(s.ID)
	}
	for _, p := range players {
		m.observeID(p.ID)
	}

	m.log.Info().
		Int("servers", len(servers)).
		Int("players", len(players)).
		Str("backend", string(m.store.Backend())).
		Msg("state loaded")
	return nil
}

// txn collects side effects raised under the state lock so they can be
// delivered after it is released.
type txn struct {
	events  []Event
	notices []notice
}

type notice struct {
	title   string
	message string
	sound   string
}

func (m *Monitor) mutate(fn func(tx *txn) error) error {
	tx := &txn{}
	m.mu.Lock()
	err := fn(tx)
	m.mu.Unlock()
	m.flush(tx)
	return err
}

func (m *Monitor) flush(tx *txn) {
	for _, n := range tx.notices {
		if n.title != "" {
			_ = m.notifier.Notify(n.title, n.message)
		}
		if n.sound != "" {
			_ = m.notifier.Sound(n.sound)
		}
	}
	for _, e := range tx.events {
		m.publish(e)
	}
}

// nextID returns a millisecond timestamp id, bumped past every id handed
// out or loaded before so ids are never reused.
func (m *Monitor) nextID() string {
	id := m.now().UnixMilli()
	if id <= m.lastID {
		id = m.lastID + 1
	}
	m.lastID = id
	return strconv.FormatInt(id, 10)
}

func (m *Monitor) observeID(id string) {
	if n, err := strconv.ParseInt(id, 10, 64); err == nil && n > m.lastID {
		m.lastID = n
	}
}

// Start schedules the periodic probe cycle and fires one immediately.
// Starting a running monitor is a no-op.
func (m *Monitor) Start() error {
	m.runMu.Lock()
	if m.running {
		m.runMu.Unlock()
		return nil
	}

	m.mu.Lock()
	interval := m.settings.CheckInterval()
	m.mu.Unlock()
	if interval <= 0 {
		interval = defaultCheckInterval
	}

	c := m.newCron(interval)
	c.Start()

	m.cron = c
	m.running = true
	m.startedAt = m.now()
	m.runMu.Unlock()

	_ = m.mutate(func(tx *txn) error {
		m.logActivity(tx, LogMonitorStart, "Monitoring started")
		tx.events = append(tx.events, m.event(EventMonitorStarted, nil))
		return nil
	})
	m.log.Info().Dur("interval", interval).Msg("monitoring started")

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.scheduledCycle()
	}()
	return nil
}

// Stop cancels future cycles. A cycle already in flight runs to completion.
func (m *Monitor) Stop() {
	m.runMu.Lock()
	if !m.running {
		m.runMu.Unlock()
		return
	}
	m.cron.Stop()
	m.running = false
	m.startedAt = time.Time{}
	m.runMu.Unlock()

	_ = m.mutate(func(tx *txn) error {
		m.logActivity(tx, LogMonitorStop, "Monitoring stopped")
		tx.events = append(tx.events, m.event(EventMonitorStopped, nil))
		return nil
	})
	m.log.Info().Msg("monitoring stopped")
}

// Close stops monitoring, aborts any in-flight cycle and waits for it.
func (m *Monitor) Close() {
	m.Stop()
	m.cancel()

	m.runMu.Lock()
	c := m.cron
	m.runMu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
	m.wg.Wait()
}

func (m *Monitor) Running() bool {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	return m.running
}

func (m *Monitor) Uptime() time.Duration {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	if !m.running {
		return 0
	}
	return m.now().Sub(m.startedAt)
}

func (m *Monitor) newCron(interval time.Duration) *cron.Cron {
	cl := logger.Cron(m.log)
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	c.Schedule(cron.Every(interval), cron.FuncJob(m.scheduledCycle))
	return c
}

// reschedule swaps the timer after the check interval changed.
func (m *Monitor) reschedule(interval time.Duration) {
	m.runMu.Lock()
	defer m.runMu.Unlock()

	if !m.running {
		return
	}
	if interval <= 0 {
		interval = defaultCheckInterval
	}

	m.cron.Stop()
	m.cron = m.newCron(interval)
	m.cron.Start()
	m.log.Info().Dur("interval", interval).Msg("probe schedule updated")
}
