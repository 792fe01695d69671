package storage

import (
	"encoding/json"
	"strconv"

	bolt "go.etcd.io/bbolt"
)

// Flat store keys. Each collection is one JSON array under its key.
const (
	keyServers  = "servers"
	keyPlayers  = "players"
	keySessions = "sessions"
	keyEvents   = "events"
	keyConfig   = "config.json"
)

type flatCollection[T any] struct {
	kv      *KV
	schema  schema[T]
	blobKey string
}

func newFlatCollection[T any](kv *KV, s schema[T], blobKey string) *flatCollection[T] {
	return &flatCollection[T]{kv: kv, schema: s, blobKey: blobKey}
}

func (c *flatCollection[T]) decode(raw []byte) ([]T, error) {
	recs := []T{}
	if raw == nil {
		return recs, nil
	}
	if err := json.Unmarshal(raw, &recs); err != nil {
		return nil, newError(ErrSerialization, "decode", c.schema.name, "", err)
	}
	return recs, nil
}

func (c *flatCollection[T]) encode(recs []T) ([]byte, error) {
	if recs == nil {
		recs = []T{}
	}
	raw, err := json.Marshal(recs)
	if err != nil {
		return nil, newError(ErrSerialization, "encode", c.schema.name, "", err)
	}
	return raw, nil
}

// write decodes the blob, applies fn and stores the result in one bbolt
// transaction, so a failed encode leaves the previous blob intact.
func (c *flatCollection[T]) write(op, key string, fn func(tx *bolt.Tx, recs []T) ([]T, error)) error {
	err := c.kv.mutate(c.blobKey, func(tx *bolt.Tx, raw []byte) ([]byte, error) {
		recs, err := c.decode(raw)
		if err != nil {
			return nil, err
		}
		recs, err = fn(tx, recs)
		if err != nil {
			return nil, err
		}
		return c.encode(recs)
	})
	return aborted(op, c.schema.name, key, err)
}

func (c *flatCollection[T]) find(recs []T, key string) int {
	for i := range recs {
		if c.schema.key(&recs[i]) == key {
			return i
		}
	}
	return -1
}

func (c *flatCollection[T]) checkUnique(op string, recs []T, rec *T, skip int) error {
	for _, idx := range c.schema.uniqueIndexes() {
		v := idx.value(rec)
		for i := range recs {
			if i != skip && indexMatch(idx.value(&recs[i]), v) {
				return newError(ErrDuplicateKey, op, c.schema.name, c.schema.key(rec), nil)
			}
		}
	}
	return nil
}

func (c *flatCollection[T]) maxSeq(recs []T) uint64 {
	var max uint64
	for i := range recs {
		if n, err := strconv.ParseUint(c.schema.key(&recs[i]), 10, 64); err == nil && n > max {
			max = n
		}
	}
	return max
}

func (c *flatCollection[T]) assignSeq(tx *bolt.Tx, recs []T, rec *T) error {
	if c.schema.setSeq == nil || c.schema.key(rec) != "0" {
		return nil
	}
	n, err := nextSeq(tx, c.schema.name, c.maxSeq(recs))
	if err != nil {
		return err
	}
	c.schema.setSeq(rec, n)
	return nil
}

func (c *flatCollection[T]) List() ([]T, error) {
	raw, _, err := c.kv.Get(c.blobKey)
	if err != nil {
		return nil, aborted("list", c.schema.name, "", err)
	}
	return c.decode(raw)
}

func (c *flatCollection[T]) Get(key string) (*T, error) {
	recs, err := c.List()
	if err != nil {
		return nil, err
	}
	i := c.find(recs, key)
	if i < 0 {
		return nil, newError(ErrNotFound, "get", c.schema.name, key, nil)
	}
	rec := recs[i]
	return &rec, nil
}

func (c *flatCollection[T]) Add(rec *T) error {
	return c.write("add", c.schema.key(rec), func(tx *bolt.Tx, recs []T) ([]T, error) {
		if err := c.assignSeq(tx, recs, rec); err != nil {
			return nil, err
		}
		key := c.schema.key(rec)
		if c.find(recs, key) >= 0 {
			return nil, newError(ErrDuplicateKey, "add", c.schema.name, key, nil)
		}
		if err := c.checkUnique("add", recs, rec, -1); err != nil {
			return nil, err
		}
		return append(recs, *rec), nil
	})
}

func (c *flatCollection[T]) Put(rec *T) error {
	return c.write("put", c.schema.key(rec), func(tx *bolt.Tx, recs []T) ([]T, error) {
		if err := c.assignSeq(tx, recs, rec); err != nil {
			return nil, err
		}
		i := c.find(recs, c.schema.key(rec))
		if err := c.checkUnique("put", recs, rec, i); err != nil {
			return nil, err
		}
		if i >= 0 {
			recs[i] = *rec
			return recs, nil
		}
		return append(recs, *rec), nil
	})
}

func (c *flatCollection[T]) Update(key string, fn func(*T)) (*T, error) {
	var updated T
	err := c.write("update", key, func(_ *bolt.Tx, recs []T) ([]T, error) {
		i := c.find(recs, key)
		if i < 0 {
			return nil, newError(ErrNotFound, "update", c.schema.name, key, nil)
		}
		fn(&recs[i])
		if err := c.checkUnique("update", recs, &recs[i], i); err != nil {
			return nil, err
		}
		updated = recs[i]
		return recs, nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (c *flatCollection[T]) Delete(key string) (bool, error) {
	var found bool
	err := c.write("delete", key, func(_ *bolt.Tx, recs []T) ([]T, error) {
		i := c.find(recs, key)
		if i < 0 {
			return recs, nil
		}
		found = true
		return append(recs[:i], recs[i+1:]...), nil
	})
	return found, err
}

func (c *flatCollection[T]) QueryByIndex(name string, value any) ([]T, error) {
	idx, err := c.schema.lookup(name)
	if err != nil {
		return nil, err
	}
	recs, err := c.List()
	if err != nil {
		return nil, err
	}
	out := []T{}
	for i := range recs {
		if indexMatch(idx.value(&recs[i]), value) {
			out = append(out, recs[i])
		}
	}
	return out, nil
}

func (c *flatCollection[T]) Clear() error {
	return c.write("clear", "", func(_ *bolt.Tx, _ []T) ([]T, error) {
		return []T{}, nil
	})
}

func (c *flatCollection[T]) ReplaceAll(recs []T) error {
	return c.write("replace", "", func(tx *bolt.Tx, _ []T) ([]T, error) {
		out := make([]T, 0, len(recs))
		for i := range recs {
			rec := recs[i]
			if err := c.assignSeq(tx, out, &rec); err != nil {
				return nil, err
			}
			if c.find(out, c.schema.key(&rec)) >= 0 {
				return nil, newError(ErrDuplicateKey, "replace", c.schema.name, c.schema.key(&rec), nil)
			}
			if err := c.checkUnique("replace", out, &rec, -1); err != nil {
				return nil, err
			}
			out = append(out, rec)
		}
		return out, nil
	})
}

// appendCapped adds rec and evicts the oldest records beyond capacity in the same write.
func (c *flatCollection[T]) appendCapped(rec *T, capacity int) error {
	return c.write("append", "", func(tx *bolt.Tx, recs []T) ([]T, error) {
		if err := c.assignSeq(tx, recs, rec); err != nil {
			return nil, err
		}
		recs = append(recs, *rec)
		if capacity > 0 && len(recs) > capacity {
			recs = recs[len(recs)-capacity:]
		}
		return recs, nil
	})
}

// FlatStore keeps every collection as a single blob in the KV file.
type FlatStore struct {
	kv       *KV
	servers  *flatCollection[Server]
	players  *flatCollection[Player]
	sessions *flatCollection[Session]
	events   *flatCollection[Event]
}

func NewFlatStore(kv *KV) *FlatStore {
	return &FlatStore{
		kv:       kv,
		servers:  newFlatCollection(kv, serverSchema, keyServers),
		players:  newFlatCollection(kv, playerSchema, keyPlayers),
		sessions: newFlatCollection(kv, sessionSchema, keySessions),
		events:   newFlatCollection(kv, eventSchema, keyEvents),
	}
}

func (s *FlatStore) Backend() Backend { return BackendFlat }
func (s *FlatStore) Servers() Collection[Server] { return s.servers }
func (s *FlatStore) Players() Collection[Player] { return s.players }
func (s *FlatStore) Sessions() Collection[Session] { return s.sessions }
func (s *FlatStore) Events() Collection[Event] { return s.events }

func (s *FlatStore) AppendEvent(e *Event) error {
	return s.events.appendCapped(e, EventCapacity)
}

func (s *FlatStore) RecentEvents(limit int) ([]Event, error) {
	recs, err := s.events.List()
	if err != nil {
		return nil, err
	}
	out := make([]Event, 0, len(recs))
	for i := len(recs) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, recs[i])
	}
	return out, nil
}

func (s *FlatStore) LoadConfig() (*Settings, error) {
	var cfg Settings
	ok, err := s.kv.GetJSON(keyConfig, &cfg)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, newError(ErrNotFound, "load", "config", configKey, nil)
	}
	return &cfg, nil
}

func (s *FlatStore) SaveConfig(cfg *Settings) error {
	return aborted("save", "config", configKey, s.kv.PutJSON(keyConfig, cfg))
}

// Close is a no-op; the KV file is owned by Storage.
func (s *FlatStore) Close() error {
	return nil
}
