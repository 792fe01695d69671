package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketKV  = []byte("kv")
	bucketSeq = []byte("seq")
)

// KV is a single-bucket bbolt key/value file. It backs the flat store and
// holds the activity log, alert configuration and backup snapshots.
type KV struct {
	db *bolt.DB
}

func OpenKV(path string) (*KV, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create kv directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open kv store: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketKV, bucketSeq} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &KV{db: db}, nil
}

func (k *KV) Close() error {
	return k.db.Close()
}

// Get returns a copy of the value under key; ok is false when the key is absent.
func (k *KV) Get(key string) (val []byte, ok bool, err error) {
	err = k.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketKV).Get([]byte(key))
		if v != nil {
			ok = true
			val = append([]byte(nil), v...)
		}
		return nil
	})
	return val, ok, err
}

func (k *KV) Has(key string) (bool, error) {
	_, ok, err := k.Get(key)
	return ok, err
}

func (k *KV) Set(key string, val []byte) error {
	return k.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketKV).Put([]byte(key), val)
	})
}

// Delete removes all keys in one transaction. Missing keys are ignored.
func (k *KV) Delete(keys ...string) error {
	return k.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketKV)
		for _, key := range keys {
			if err := b.Delete([]byte(key)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Keys lists keys with the given prefix in ascending byte order.
func (k *KV) Keys(prefix string) ([]string, error) {
	var keys []string
	p := []byte(prefix)
	err := k.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketKV).Cursor()
		for key, _ := c.Seek(p); key != nil && bytes.HasPrefix(key, p); key, _ = c.Next() {
			keys = append(keys, string(key))
		}
		return nil
	})
	return keys, err
}

func (k *KV) GetJSON(key string, v any) (bool, error) {
	raw, ok, err := k.Get(key)
	if err != nil || !ok {
		return ok, err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return true, newError(ErrSerialization, "decode", "", key, err)
	}
	return true, nil
}

func (k *KV) PutJSON(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return newError(ErrSerialization, "encode", "", key, err)
	}
	return k.Set(key, raw)
}

// mutate runs a read-modify-write of one key inside a single bbolt
// transaction. fn receives nil when the key is absent. An error from fn
// rolls the write back.
func (k *KV) mutate(key string, fn func(tx *bolt.Tx, raw []byte) ([]byte, error)) error {
	return k.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketKV)
		out, err := fn(tx, b.Get([]byte(key)))
		if err != nil {
			return err
		}
		return b.Put([]byte(key), out)
	})
}

// nextSeq returns the next value of a named sequence, scoped to tx. The
// sequence never hands out a value at or below floor.
func nextSeq(tx *bolt.Tx, name string, floor uint64) (uint64, error) {
	b, err := tx.Bucket(bucketSeq).CreateBucketIfNotExists([]byte(name))
	if err != nil {
		return 0, err
	}
	if b.Sequence() < floor {
		if err := b.SetSequence(floor); err != nil {
			return 0, err
		}
	}
	return b.NextSequence()
}
