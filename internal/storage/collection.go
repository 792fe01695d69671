package storage

import (
	"fmt"
	"strconv"
)

// Collection is the backend-agnostic record API shared by the structured and flat stores.
type Collection[T any] interface {
	List() ([]T, error)
	Get(key string) (*T, error)
	// Add inserts rec and fails with ErrDuplicateKey if the key is taken.
	// Records with a sequence key get one assigned when it is zero.
	Add(rec *T) error
	// Put inserts or replaces rec.
	Put(rec *T) error
	Update(key string, fn func(*T)) (*T, error)
	Delete(key string) (bool, error)
	QueryByIndex(index string, value any) ([]T, error)
	Clear() error
	ReplaceAll(recs []T) error
}

type index[T any] struct {
	column string
	unique bool
	value  func(*T) any
}

type schema[T any] struct {
	name    string
	key     func(*T) string
	setSeq  func(*T, uint64)
	indexes map[string]index[T]
}

func (s schema[T]) lookup(name string) (index[T], error) {
	idx, ok := s.indexes[name]
	if !ok {
		return idx, fmt.Errorf("%s: unknown index %q", s.name, name)
	}
	return idx, nil
}

func (s schema[T]) uniqueIndexes() []index[T] {
	var out []index[T]
	for _, idx := range s.indexes {
		if idx.unique {
			out = append(out, idx)
		}
	}
	return out
}

// indexMatch compares an indexed field against a query value. A nil query
// matches only nil fields.
func indexMatch(field, value any) bool {
	if value == nil || field == nil {
		return value == nil && field == nil
	}
	return fmt.Sprint(field) == fmt.Sprint(value)
}

func seqKey(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

var serverSchema = schema[Server]{
	name: "servers",
	key:  func(s *Server) string { return s.ID },
	indexes: map[string]index[Server]{
		"name":    {column: "name", value: func(s *Server) any { return s.Name }},
		"status":  {column: "status", value: func(s *Server) any { return string(s.Status) }},
		"enabled": {column: "enabled", value: func(s *Server) any { return s.Enabled }},
	},
}

var playerSchema = schema[Player]{
	name: "players",
	key:  func(p *Player) string { return p.ID },
	indexes: map[string]index[Player]{
		"username": {column: "username", unique: true, value: func(p *Player) any { return p.Username }},
		"isOnline": {column: "is_online", value: func(p *Player) any { return p.IsOnline }},
		"currentServer": {column: "current_server", value: func(p *Player) any {
			if p.CurrentServer == nil {
				return nil
			}
			return *p.CurrentServer
		}},
	},
}

var sessionSchema = schema[Session]{
	name:   "sessions",
	key:    func(s *Session) string { return seqKey(s.ID) },
	setSeq: func(s *Session, n uint64) { s.ID = uint(n) },
	indexes: map[string]index[Session]{
		"playerId":  {column: "player_id", value: func(s *Session) any { return s.PlayerID }},
		"loginTime": {column: "login_time", value: func(s *Session) any { return s.LoginTime }},
	},
}

var eventSchema = schema[Event]{
	name:   "events",
	key:    func(e *Event) string { return seqKey(e.ID) },
	setSeq: func(e *Event, n uint64) { e.ID = uint(n) },
	indexes: map[string]index[Event]{
		"type":      {column: "type", value: func(e *Event) any { return e.Type }},
		"timestamp": {column: "timestamp", value: func(e *Event) any { return e.Timestamp }},
	},
}
