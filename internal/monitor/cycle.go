package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/ankityadav/craftwatch/internal/probe"
	"github.com/ankityadav/craftwatch/internal/stats"
	"github.com/ankityadav/craftwatch/internal/storage"
)

// scheduledCycle is the timer entry point. A tick that arrives while a
// cycle is still running is dropped.
func (m *Monitor) scheduledCycle() {
	if !m.cycleMu.TryLock() {
		m.log.Debug().Msg("previous probe cycle still running, skipping tick")
		return
	}
	defer m.cycleMu.Unlock()
	m.runCycle(m.ctx)
}

// RunCycle probes every enabled server once, waiting for a cycle already in
// progress to finish first.
func (m *Monitor) RunCycle(ctx context.Context) {
	m.cycleMu.Lock()
	defer m.cycleMu.Unlock()
	m.runCycle(ctx)
}

func (m *Monitor) runCycle(ctx context.Context) {
	m.mu.Lock()
	var targets []storage.Server
	for _, s := range m.servers {
		if s.Enabled {
			targets = append(targets, s)
		}
	}
	m.mu.Unlock()

	start := time.Now()
	for i, srv := range targets {
		if i > 0 && m.opts.ProbeDelay > 0 {
			t := time.NewTimer(m.opts.ProbeDelay)
			select {
			case <-ctx.Done():
				t.Stop()
			case <-t.C:
			}
		}
		if ctx.Err() != nil {
			m.log.Debug().Msg("probe cycle aborted")
			return
		}

		res, err := m.probe(ctx, srv)
		m.applyProbe(srv.ID, res, err)
	}

	m.finishCycle()
	m.log.Debug().Int("servers", len(targets)).Dur("took", time.Since(start)).Msg("probe cycle complete")

	m.simulateActivity()

	if m.backupDue() {
		if _, err := m.Backup(); err != nil {
			m.log.Error().Err(err).Msg("scheduled backup failed")
		}
	}
}

func (m *Monitor) probe(ctx context.Context, srv storage.Server) (probe.Result, error) {
	if m.opts.ProbeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.opts.ProbeTimeout)
		defer cancel()
	}
	return m.prober.Probe(ctx, srv)
}

// applyProbe writes one probe result into the server record and raises the
// transition and threshold events. Results for servers removed or disabled
// while the probe was in flight are discarded.
func (m *Monitor) applyProbe(id string, res probe.Result, probeErr error) {
	_ = m.mutate(func(tx *txn) error {
		i := m.serverIndex(id)
		if i < 0 || !m.servers[i].Enabled {
			m.log.Debug().Str("id", id).Msg("discarding probe result for stale server")
			return nil
		}

		prev := m.servers[i]
		next := prev
		now := m.now()
		next.LastChecked = &now

		switch {
		case probeErr != nil:
			next.Status = storage.StatusError
			next.Latency = storage.UnreachableLatency
			next.PlayersOnline = 0
		case res.Online:
			next.Status = storage.StatusOnline
			if res.MaxPlayers > 0 {
				next.MaxPlayers = res.MaxPlayers
			}
			next.PlayersOnline = min(max(res.PlayersOnline, 0), next.MaxPlayers)
			next.Latency = res.Latency
			next.Version = res.Version
			next.Motd = res.Motd
		default:
			next.Status = storage.StatusOffline
			next.PlayersOnline = 0
			next.Latency = storage.UnreachableLatency
			if res.Version != "" {
				next.Version = res.Version
			}
		}
		m.servers[i] = next

		if probeErr != nil {
			m.log.Warn().Err(probeErr).Str("server", next.Name).Msg("probe failed")
			m.logActivity(tx, LogError, fmt.Sprintf("Failed to check %s: %v", next.Name, probeErr))
			return nil
		}

		payload := map[string]any{"server": next.Name, "address": next.Address}
		switch {
		case prev.Status == storage.StatusOffline && next.Status == storage.StatusOnline:
			m.triggerEvent(tx, EventServerOnline, payload)
		case prev.Status == storage.StatusOnline && next.Status == storage.StatusOffline:
			m.triggerEvent(tx, EventServerOffline, payload)
		}

		if rule, ok := m.alerts.Rule(EventHighPlayerCount); ok && rule.Enabled && rule.Threshold != nil &&
			next.Status == storage.StatusOnline && next.PlayersOnline >= *rule.Threshold {
			m.triggerEvent(tx, EventHighPlayerCount, map[string]any{
				"server": next.Name,
				"count":  next.PlayersOnline,
			})
		}

		if next.Status == storage.StatusOnline {
			m.logActivity(tx, LogServerCheck, fmt.Sprintf("%s online (%d/%d players, %dms)",
				next.Name, next.PlayersOnline, next.MaxPlayers, next.Latency))
		} else {
			m.logActivity(tx, LogServerCheck, fmt.Sprintf("%s offline", next.Name))
		}
		return nil
	})
}

// finishCycle persists the server collection and announces the new totals.
func (m *Monitor) finishCycle() {
	_ = m.mutate(func(tx *txn) error {
		servers := append([]storage.Server(nil), m.servers...)
		if err := m.store.Servers().ReplaceAll(servers); err != nil {
			m.log.Error().Err(err).Msg("failed to persist servers")
			m.logActivity(tx, LogError, fmt.Sprintf("Failed to save servers: %v", err))
		}

		counts := stats.CountServers(m.servers)
		tx.events = append(tx.events, m.event(EventCycleComplete, map[string]any{
			"online":        counts.Online,
			"offline":       counts.Offline,
			"error":         counts.Error,
			"playersOnline": stats.PlayersOnline(m.servers),
		}))
		return nil
	})
}

func (m *Monitor) simulateActivity() {
	if m.activity == nil {
		return
	}
	act, ok := m.activity.Next(m.Servers())
	if !ok {
		return
	}

	var err error
	if act.Login {
		_, err = m.PlayerLogin(act.Username, act.Server)
	} else {
		_, err = m.PlayerLogout(act.Username)
	}
	if err != nil {
		m.log.Warn().Err(err).Str("player", act.Username).Msg("simulated activity failed")
	}
}

func (m *Monitor) backupDue() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	interval := m.settings.BackupInterval()
	if interval <= 0 {
		return false
	}
	return m.lastBackup.IsZero() || m.now().Sub(m.lastBackup) >= interval
}
