package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

// configKey is the primary key of the singleton settings row.
const configKey = "app"

type sqlCollection[T any] struct {
	db     *gorm.DB
	schema schema[T]
}

func newSQLCollection[T any](db *gorm.DB, s schema[T]) *sqlCollection[T] {
	return &sqlCollection[T]{db: db, schema: s}
}

func (c *sqlCollection[T]) take(tx *gorm.DB, op, key string) (*T, error) {
	var rec T
	err := tx.Where("id = ?", key).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, newError(ErrNotFound, op, c.schema.name, key, nil)
	}
	if err != nil {
		return nil, aborted(op, c.schema.name, key, err)
	}
	return &rec, nil
}

func (c *sqlCollection[T]) checkUnique(tx *gorm.DB, op string, rec *T) error {
	key := c.schema.key(rec)
	for _, idx := range c.schema.uniqueIndexes() {
		var n int64
		err := tx.Model(new(T)).
			Where(idx.column+" = ? AND id <> ?", idx.value(rec), key).
			Count(&n).Error
		if err != nil {
			return err
		}
		if n > 0 {
			return newError(ErrDuplicateKey, op, c.schema.name, key, nil)
		}
	}
	return nil
}

func (c *sqlCollection[T]) List() ([]T, error) {
	recs := []T{}
	if err := c.db.Order("rowid asc").Find(&recs).Error; err != nil {
		return nil, aborted("list", c.schema.name, "", err)
	}
	return recs, nil
}

func (c *sqlCollection[T]) Get(key string) (*T, error) {
	return c.take(c.db, "get", key)
}

func (c *sqlCollection[T]) Add(rec *T) error {
	err := c.db.Transaction(func(tx *gorm.DB) error {
		if c.schema.setSeq == nil || c.schema.key(rec) != "0" {
			var n int64
			if err := tx.Model(new(T)).Where("id = ?", c.schema.key(rec)).Count(&n).Error; err != nil {
				return err
			}
			if n > 0 {
				return newError(ErrDuplicateKey, "add", c.schema.name, c.schema.key(rec), nil)
			}
		}
		if err := c.checkUnique(tx, "add", rec); err != nil {
			return err
		}
		return tx.Create(rec).Error
	})
	return aborted("add", c.schema.name, c.schema.key(rec), err)
}

func (c *sqlCollection[T]) Put(rec *T) error {
	err := c.db.Transaction(func(tx *gorm.DB) error {
		if err := c.checkUnique(tx, "put", rec); err != nil {
			return err
		}
		return tx.Save(rec).Error
	})
	return aborted("put", c.schema.name, c.schema.key(rec), err)
}

func (c *sqlCollection[T]) Update(key string, fn func(*T)) (*T, error) {
	var updated *T
	err := c.db.Transaction(func(tx *gorm.DB) error {
		rec, err := c.take(tx, "update", key)
		if err != nil {
			return err
		}
		fn(rec)
		if err := c.checkUnique(tx, "update", rec); err != nil {
			return err
		}
		if err := tx.Save(rec).Error; err != nil {
			return err
		}
		updated = rec
		return nil
	})
	if err != nil {
		return nil, aborted("update", c.schema.name, key, err)
	}
	return updated, nil
}

func (c *sqlCollection[T]) Delete(key string) (bool, error) {
	res := c.db.Where("id = ?", key).Delete(new(T))
	if res.Error != nil {
		return false, aborted("delete", c.schema.name, key, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (c *sqlCollection[T]) QueryByIndex(name string, value any) ([]T, error) {
	idx, err := c.schema.lookup(name)
	if err != nil {
		return nil, err
	}
	q := c.db.Order("rowid asc")
	if value == nil {
		q = q.Where(idx.column + " IS NULL")
	} else {
		q = q.Where(idx.column+" = ?", value)
	}
	recs := []T{}
	if err := q.Find(&recs).Error; err != nil {
		return nil, aborted("query", c.schema.name, name, err)
	}
	return recs, nil
}

func (c *sqlCollection[T]) Clear() error {
	err := c.db.Where("1 = 1").Delete(new(T)).Error
	return aborted("clear", c.schema.name, "", err)
}

func (c *sqlCollection[T]) ReplaceAll(recs []T) error {
	err := c.db.Transaction(func(tx *gorm.DB) error {
		return c.replaceTx(tx, recs)
	})
	return aborted("replace", c.schema.name, "", err)
}

func (c *sqlCollection[T]) replaceTx(tx *gorm.DB, recs []T) error {
	if err := tx.Where("1 = 1").Delete(new(T)).Error; err != nil {
		return err
	}
	if len(recs) == 0 {
		return nil
	}
	return tx.CreateInBatches(recs, 100).Error
}

func (c *sqlCollection[T]) appendCapped(rec *T, capacity int) error {
	err := c.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(rec).Error; err != nil {
			return err
		}
		if capacity <= 0 {
			return nil
		}
		var n int64
		if err := tx.Model(new(T)).Count(&n).Error; err != nil {
			return err
		}
		if excess := int(n) - capacity; excess > 0 {
			oldest := tx.Model(new(T)).Select("id").Order("id asc").Limit(excess)
			return tx.Where("id IN (?)", oldest).Delete(new(T)).Error
		}
		return nil
	})
	return aborted("append", c.schema.name, "", err)
}

// SQLStore is the structured backend: one indexed table per collection.
type SQLStore struct {
	db       *gorm.DB
	servers  *sqlCollection[Server]
	players  *sqlCollection[Player]
	sessions *sqlCollection[Session]
	events   *sqlCollection[Event]
}

func OpenSQL(path string) (*SQLStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := gorm.Open(sqlite.Dialector{DriverName: "sqlite", DSN: path + "?_pragma=busy_timeout(5000)"}, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(&Server{}, &Player{}, &Session{}, &Event{}, &configRow{}); err != nil {
		if sqlDB, derr := db.DB(); derr == nil {
			sqlDB.Close()
		}
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &SQLStore{
		db:       db,
		servers:  newSQLCollection(db, serverSchema),
		players:  newSQLCollection(db, playerSchema),
		sessions: newSQLCollection(db, sessionSchema),
		events:   newSQLCollection(db, eventSchema),
	}, nil
}

func (s *SQLStore) Backend() Backend { return BackendStructured }
func (s *SQLStore) Servers() Collection[Server] { return s.servers }
func (s *SQLStore) Players() Collection[Player] { return s.players }
func (s *SQLStore) Sessions() Collection[Session] { return s.sessions }
func (s *SQLStore) Events() Collection[Event] { return s.events }

func (s *SQLStore) AppendEvent(e *Event) error {
	return s.events.appendCapped(e, EventCapacity)
}

func (s *SQLStore) RecentEvents(limit int) ([]Event, error) {
	events := []Event{}
	q := s.db.Order("id desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&events).Error; err != nil {
		return nil, aborted("recent", "events", "", err)
	}
	return events, nil
}

func (s *SQLStore) LoadConfig() (*Settings, error) {
	var row configRow
	err := s.db.Where(&configRow{Key: configKey}).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, newError(ErrNotFound, "load", "config", configKey, nil)
	}
	if err != nil {
		return nil, aborted("load", "config", configKey, err)
	}
	var cfg Settings
	if err := json.Unmarshal(row.Value, &cfg); err != nil {
		return nil, newError(ErrSerialization, "load", "config", configKey, err)
	}
	return &cfg, nil
}

func (s *SQLStore) SaveConfig(cfg *Settings) error {
	return aborted("save", "config", configKey, saveConfigTx(s.db, cfg))
}

func saveConfigTx(tx *gorm.DB, cfg *Settings) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return newError(ErrSerialization, "save", "config", configKey, err)
	}
	return tx.Save(&configRow{Key: configKey, Value: raw}).Error
}

// importFlat upserts migrated records in one transaction. Sessions and events
// are appended in their flat order and get fresh row ids.
func (s *SQLStore) importFlat(servers []Server, players []Player, sessions []Session, events []Event, cfg *Settings) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		for i := range servers {
			if err := tx.Save(&servers[i]).Error; err != nil {
				return err
			}
		}
		for i := range players {
			if err := tx.Where("username = ? AND id <> ?", players[i].Username, players[i].ID).Delete(&Player{}).Error; err != nil {
				return err
			}
			if err := tx.Save(&players[i]).Error; err != nil {
				return err
			}
		}
		for i := range sessions {
			sessions[i].ID = 0
			if err := tx.Create(&sessions[i]).Error; err != nil {
				return err
			}
		}
		for i := range events {
			events[i].ID = 0
			if err := tx.Create(&events[i]).Error; err != nil {
				return err
			}
		}
		if cfg != nil {
			return saveConfigTx(tx, cfg)
		}
		return nil
	})
	return aborted("migrate", "", "", err)
}

func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
