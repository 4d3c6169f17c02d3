// Package sqlitestore implements store.Store on a SQLite table through gorm.
package sqlitestore

import (
	"errors"
	"fmt"
	"time"

	"github.com/IvanBrykalov/dexcache/store"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Item is one key/value row.
type Item struct {
	Key       string    `gorm:"column:item_key;primarykey"`
	Value     string    `gorm:"not null"`
	UpdatedAt time.Time `gorm:"autoUpdateTime;not null"`
}

// TableName pins the table name independent of gorm's naming strategy.
func (Item) TableName() string { return "kv_items" }

// Store is a SQLite-backed key/value store.
type Store struct {
	db    *gorm.DB
	quota int64 // max bytes per value, 0 = unlimited
}

// Open opens (creating if needed) the SQLite database at dsn and migrates the
// kv table. quota caps the size of a single value in bytes (0 = unlimited).
func Open(dsn string, quota int64) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: open %q: %w", dsn, err)
	}
	if err := db.AutoMigrate(&Item{}); err != nil {
		return nil, fmt.Errorf("sqlitestore: migrate: %w", err)
	}
	return &Store{db: db, quota: quota}, nil
}

func (s *Store) Get(key string) (string, bool, error) {
	var it Item
	err := s.db.Where("item_key = ?", key).Take(&it).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("sqlitestore: get %q: %w", key, err)
	}
	return it.Value, true, nil
}

func (s *Store) Set(key, value string) error {
	if s.quota > 0 && int64(len(value)) > s.quota {
		return store.ErrQuotaExceeded
	}
	it := Item{Key: key, Value: value}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "item_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&it).Error
	if err != nil {
		return fmt.Errorf("sqlitestore: set %q: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(key string) error {
	if err := s.db.Where("item_key = ?", key).Delete(&Item{}).Error; err != nil {
		return fmt.Errorf("sqlitestore: delete %q: %w", key, err)
	}
	return nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

var _ store.Store = (*Store)(nil)
