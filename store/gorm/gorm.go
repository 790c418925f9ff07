// Package gorm is a store.Store on a relational table through GORM.
// PostgreSQL and SQLite are supported.
//
// Table layout:
//
//	cache_key                   text primary key
//	value                       bytea / blob
//	expires_at                  timestamp, NULL when the record never expires (indexed)
//	absolute_expiration         timestamp, nullable
//	sliding_expiration_seconds  double, nullable
//
// Timestamps are stored in UTC at microsecond precision.
package gorm

import (
	"context"
	"sync/atomic"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/unkn0wn-root/doccache/store"
)

const backend = "gorm"

type entry struct {
	Key                      string     `gorm:"column:cache_key;primaryKey"`
	Value                    []byte     `gorm:"column:value"`
	ExpiresAt                *time.Time `gorm:"column:expires_at"`
	AbsoluteExpiration       *time.Time `gorm:"column:absolute_expiration"`
	SlidingExpirationSeconds *float64   `gorm:"column:sliding_expiration_seconds"`
}

var metaColumns = []string{"cache_key", "expires_at", "absolute_expiration", "sliding_expiration_seconds"}

type Store struct {
	db      *gorm.DB
	table   string
	closeDB atomic.Bool
}

var _ store.Store = (*Store)(nil)

// Open builds a store from cfg and migrates the table unless SkipMigrate is set.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	db, owned := cfg.DB, false
	if db == nil {
		var err error
		if db, err = cfg.open(); err != nil {
			return nil, store.Fail(backend, "open", "", err)
		}
		owned = true
	}
	s := &Store{db: db, table: cfg.table()}
	s.closeDB.Store(owned)
	if !cfg.SkipMigrate {
		if err := s.EnsureIndexes(ctx); err != nil {
			_ = s.Close(ctx)
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) tx(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Table(s.table)
}

func (s *Store) FindByKey(ctx context.Context, key string, includeValue bool) (*store.Record, error) {
	q := s.tx(ctx)
	if !includeValue {
		q = q.Select(metaColumns)
	}
	var rows []entry
	res := q.Where("cache_key = ?", key).Limit(1).Find(&rows)
	if res.Error != nil {
		return nil, store.Fail(backend, "find", key, res.Error)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	e := rows[0]
	rec := store.Record{
		Key:                      e.Key,
		AbsoluteExpiration:       utc(e.AbsoluteExpiration),
		SlidingExpirationSeconds: e.SlidingExpirationSeconds,
		ExpiresAt:                utc(e.ExpiresAt),
	}
	if includeValue {
		rec.Value = e.Value
		if rec.Value == nil {
			rec.Value = []byte{}
		}
	}
	return &rec, nil
}

func (s *Store) UpsertReplace(ctx context.Context, rec store.Record) error {
	e := entry{
		Key:                      rec.Key,
		Value:                    rec.Value,
		ExpiresAt:                utc(rec.ExpiresAt),
		AbsoluteExpiration:       utc(rec.AbsoluteExpiration),
		SlidingExpirationSeconds: rec.SlidingExpirationSeconds,
	}
	if e.Value == nil {
		e.Value = []byte{}
	}
	err := s.tx(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "cache_key"}},
		UpdateAll: true,
	}).Create(&e).Error
	return store.Fail(backend, "upsert", rec.Key, err)
}

func (s *Store) DeleteByKey(ctx context.Context, key string) error {
	err := s.tx(ctx).Where("cache_key = ?", key).Delete(&entry{}).Error
	return store.Fail(backend, "delete", key, err)
}

func (s *Store) ExtendExpiry(ctx context.Context, key string, expiresAt time.Time) error {
	err := s.tx(ctx).
		Where("cache_key = ? AND expires_at IS NOT NULL", key).
		Update("expires_at", *utc(&expiresAt)).Error
	return store.Fail(backend, "extend", key, err)
}

func (s *Store) DeleteExpiredBefore(ctx context.Context, now time.Time) error {
	err := s.tx(ctx).Where("expires_at <= ?", *utc(&now)).Delete(&entry{}).Error
	return store.Fail(backend, "sweep", "", err)
}

// EnsureIndexes creates the table if needed and the expires_at index.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	if err := s.tx(ctx).AutoMigrate(&entry{}); err != nil {
		return store.Fail(backend, "migrate", "", err)
	}
	// table names are validated identifiers, see Config.Validate
	ddl := "CREATE INDEX IF NOT EXISTS idx_" + s.table + "_expires_at ON " + s.table + " (expires_at)"
	if err := s.db.WithContext(ctx).Exec(ddl).Error; err != nil {
		return store.Fail(backend, "ensure index", "", err)
	}
	return nil
}

// Close closes the connection pool when the store opened it.
func (s *Store) Close(context.Context) error {
	if !s.closeDB.Swap(false) {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// DB exposes the GORM handle, e.g. for inspection in tests.
func (s *Store) DB() *gorm.DB { return s.db }

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC().Truncate(time.Microsecond)
	return &u
}
