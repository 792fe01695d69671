package storage

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Out-of-band keys. These live in the KV file whatever backend is active.
const (
	keyActivityLog = "activity_logs"
	keyAlerts      = "alerts.json"
	BackupPrefix   = "backup_"
)

func (k *KV) LoadActivityLog() ([]LogEntry, error) {
	entries := []LogEntry{}
	if _, err := k.GetJSON(keyActivityLog, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (k *KV) SaveActivityLog(entries []LogEntry) error {
	return aborted("save", "activity_logs", keyActivityLog, k.PutJSON(keyActivityLog, entries))
}

func (k *KV) LoadAlerts() (*AlertConfig, error) {
	var cfg AlertConfig
	ok, err := k.GetJSON(keyAlerts, &cfg)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, newError(ErrNotFound, "load", "alerts", keyAlerts, nil)
	}
	return &cfg, nil
}

func (k *KV) SaveAlerts(cfg *AlertConfig) error {
	return aborted("save", "alerts", keyAlerts, k.PutJSON(keyAlerts, cfg))
}

const backupLayout = "2006-01-02T15:04:05.000Z"

// BackupKey derives the storage key for a snapshot taken at t. Keys sort
// lexicographically in timestamp order.
func BackupKey(t time.Time) string {
	ts := t.UTC().Format(backupLayout)
	return BackupPrefix + strings.NewReplacer(":", "-", ".", "-").Replace(ts)
}

// parseBackupKey reverses BackupKey.
func parseBackupKey(key string) (time.Time, bool) {
	s := strings.TrimPrefix(key, BackupPrefix)
	if len(s) != len(backupLayout) {
		return time.Time{}, false
	}
	t, err := time.Parse(backupLayout, s[:13]+":"+s[14:16]+":"+s[17:19]+"."+s[20:])
	return t, err == nil
}

func newestBackup(b *bolt.Bucket) (time.Time, bool) {
	c := b.Cursor()
	key, _ := c.Seek([]byte(BackupPrefix + "\xff"))
	if key == nil {
		key, _ = c.Last()
	} else {
		key, _ = c.Prev()
	}
	if key == nil || !bytes.HasPrefix(key, []byte(BackupPrefix)) {
		return time.Time{}, false
	}
	return parseBackupKey(string(key))
}

// SaveBackup stores b under a key newer than every existing backup. A
// timestamp that would reuse or precede the newest key is moved to one
// millisecond past it.
func (k *KV) SaveBackup(b *Backup) (string, error) {
	var key string
	err := k.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketKV)
		if last, ok := newestBackup(bucket); ok && !b.Timestamp.Truncate(time.Millisecond).After(last) {
			b.Timestamp = last.Add(time.Millisecond)
		}
		key = BackupKey(b.Timestamp)

		raw, err := json.Marshal(b)
		if err != nil {
			return newError(ErrSerialization, "encode", "backups", key, err)
		}
		return bucket.Put([]byte(key), raw)
	})
	if err != nil {
		return "", aborted("save", "backups", key, err)
	}
	b.Key = key
	return key, nil
}

// ListBackups returns backup keys newest first.
func (k *KV) ListBackups() ([]string, error) {
	keys, err := k.Keys(BackupPrefix)
	if err != nil {
		return nil, aborted("list", "backups", "", err)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	return keys, nil
}

func (k *KV) LoadBackup(key string) (*Backup, error) {
	var b Backup
	ok, err := k.GetJSON(key, &b)
	if err != nil {
		return nil, err
	}
	if !ok || !strings.HasPrefix(key, BackupPrefix) {
		return nil, newError(ErrNotFound, "load", "backups", key, nil)
	}
	b.Key = key
	return &b, nil
}

// PruneBackups keeps the newest keep snapshots and returns the removed keys.
func (k *KV) PruneBackups(keep int) ([]string, error) {
	keys, err := k.ListBackups()
	if err != nil {
		return nil, err
	}
	if len(keys) <= keep {
		return nil, nil
	}
	stale := keys[keep:]
	if err := k.Delete(stale...); err != nil {
		return nil, aborted("prune", "backups", "", err)
	}
	return stale, nil
}
