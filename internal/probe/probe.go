// Package probe supplies server status snapshots and simulated player
// activity to the monitor.
package probe

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/ankityadav/craftwatch/internal/storage"
)

type Result struct {
	Online        bool
	Latency       int
	PlayersOnline int
	MaxPlayers    int
	Version       string
	Motd          string
}

// Prober queries one server. A returned error marks the server as errored.
type Prober interface {
	Probe(ctx context.Context, server storage.Server) (Result, error)
}

type ProberFunc func(ctx context.Context, server storage.Server) (Result, error)

func (f ProberFunc) Probe(ctx context.Context, server storage.Server) (Result, error) {
	return f(ctx, server)
}

// Simulator answers probes with random values in place of a real query client.
type Simulator struct {
	mu  sync.Mutex
	rng *rand.Rand

	OnlineChance float64
	MaxDelay     time.Duration
}

func NewSimulator(seed uint64) *Simulator {
	return &Simulator{
		rng:          rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		OnlineChance: 0.7,
	}
}

func (s *Simulator) Probe(ctx context.Context, server storage.Server) (Result, error) {
	s.mu.Lock()
	online := s.rng.Float64() < s.OnlineChance
	var delay time.Duration
	if s.MaxDelay > 0 {
		delay = time.Duration(s.rng.Int64N(int64(s.MaxDelay)))
	}
	players, latency := 0, storage.UnreachableLatency
	if online {
		if server.MaxPlayers > 0 {
			players = s.rng.IntN(server.MaxPlayers)
		}
		latency = s.rng.IntN(300)
	}
	s.mu.Unlock()

	if delay > 0 {
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-t.C:
		}
	}

	if !online {
		return Result{Latency: latency, MaxPlayers: server.MaxPlayers, Version: "Unknown"}, nil
	}
	return Result{
		Online:        true,
		Latency:       latency,
		PlayersOnline: players,
		MaxPlayers:    server.MaxPlayers,
		Version:       "1.20.1",
		Motd:          "A Minecraft Server",
	}, nil
}
