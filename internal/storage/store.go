package storage

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

type Backend string

const (
	BackendAuto       Backend = "auto"
	BackendStructured Backend = "structured"
	BackendFlat       Backend = "flat"
)

// EventCapacity bounds the events collection; the oldest entries are evicted first.
const EventCapacity = 100

// Store is implemented by the structured and the flat backend. Callers never
// need to know which one is active.
type Store interface {
	Backend() Backend
	Servers() Collection[Server]
	Players() Collection[Player]
	Sessions() Collection[Session]
	Events() Collection[Event]
	// AppendEvent assigns the event id and evicts beyond EventCapacity in one write.
	AppendEvent(e *Event) error
	// RecentEvents returns events newest first. A limit <= 0 returns all of them.
	RecentEvents(limit int) ([]Event, error)
	LoadConfig() (*Settings, error)
	SaveConfig(cfg *Settings) error
	Close() error
}

type Options struct {
	Backend    Backend
	SQLitePath string
	KVPath     string
}

// Storage bundles the active Store with the KV file that always holds the
// activity log, alert configuration and backups.
type Storage struct {
	Store
	kv *KV
}

func (s *Storage) KV() *KV {
	return s.kv
}

func (s *Storage) Close() error {
	return errors.Join(s.Store.Close(), s.kv.Close())
}

// Open selects the backend once. In auto mode a structured backend that
// cannot be opened is replaced by the flat one; a structured backend that
// opens triggers the one-time migration of flat data.
func Open(opts Options, log zerolog.Logger) (*Storage, error) {
	kv, err := OpenKV(opts.KVPath)
	if err != nil {
		return nil, err
	}

	if opts.Backend == "" {
		opts.Backend = BackendAuto
	}

	switch opts.Backend {
	case BackendFlat:
		log.Info().Str("path", opts.KVPath).Msg("using flat store")
		return &Storage{Store: NewFlatStore(kv), kv: kv}, nil
	case BackendAuto, BackendStructured:
	default:
		kv.Close()
		return nil, fmt.Errorf("unknown storage backend %q", opts.Backend)
	}

	sqlStore, err := OpenSQL(opts.SQLitePath)
	if err != nil {
		if opts.Backend == BackendStructured {
			kv.Close()
			return nil, err
		}
		log.Warn().Err(err).Msg("structured store unavailable, falling back to flat store")
		return &Storage{Store: NewFlatStore(kv), kv: kv}, nil
	}

	res, err := Migrate(kv, sqlStore)
	switch {
	case err != nil:
		log.Error().Err(err).Msg("migration from flat store failed, flat data left in place")
	case res.Migrated():
		log.Info().
			Int("servers", res.Servers).
			Int("players", res.Players).
			Int("sessions", res.Sessions).
			Int("events", res.Events).
			Bool("config", res.Config).
			Msg("migrated flat store into structured store")
	}

	log.Info().Str("path", opts.SQLitePath).Msg("using structured store")
	return &Storage{Store: sqlStore, kv: kv}, nil
}
