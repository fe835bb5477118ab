package store

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/feral-file/card-registry/internal/store/schema"
)

// writerLockKey is the pg_advisory_xact_lock key shared by every exclusive transaction
const writerLockKey int64 = 0x63617264 // "card"

type pgStore struct {
	db *gorm.DB
}

// NewPGStore creates a new PostgreSQL store instance
func NewPGStore(db *gorm.DB) Store {
	return &pgStore{db: db}
}

// Migrate creates the key-value table when it does not exist
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&schema.KeyValueStore{}); err != nil {
		return fmt.Errorf("failed to migrate key_value_store: %w", err)
	}
	return nil
}

// ConfigureConnectionPool configures the connection pool settings for a GORM database connection.
// Zero values fall back to the defaults of NormalizeConnectionPoolSettings.
func ConfigureConnectionPool(db *gorm.DB, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime =
		NormalizeConnectionPoolSettings(maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime)

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	return nil
}

// NormalizeConnectionPoolSettings applies defaults and clamps pool settings.
//
// Defaults (when zero):
//   - MaxOpenConns: 10
//   - MaxIdleConns: 2
//   - ConnMaxLifetime: 5 minutes
//   - ConnMaxIdleTime: 10 minutes
//
// MaxIdleConns never exceeds MaxOpenConns.
func NormalizeConnectionPoolSettings(maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) (int, int, time.Duration, time.Duration) {
	if maxOpenConns <= 0 {
		maxOpenConns = 10
	}
	if maxIdleConns <= 0 {
		maxIdleConns = 2
	}
	if maxIdleConns > maxOpenConns {
		maxIdleConns = maxOpenConns
	}
	if connMaxLifetime <= 0 {
		connMaxLifetime = 5 * time.Minute
	}
	if connMaxIdleTime <= 0 {
		connMaxIdleTime = 10 * time.Minute
	}
	return maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime
}

// Begin starts a SQL transaction. Exclusive transactions take a transaction-scoped
// advisory lock that is released on commit or rollback.
func (s *pgStore) Begin(ctx context.Context, exclusive bool) (Txn, error) {
	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", tx.Error)
	}

	if exclusive {
		if err := tx.Exec("SELECT pg_advisory_xact_lock(?)", writerLockKey).Error; err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("failed to acquire writer lock: %w", err)
		}
	}

	return &pgTxn{tx: tx}, nil
}

func (s *pgStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

type pgTxn struct {
	tx    *gorm.DB
	state int32
}

func (t *pgTxn) active() bool {
	return atomic.LoadInt32(&t.state) == txnActive
}

func (t *pgTxn) Get(ctx context.Context, key string) (string, bool, error) {
	if !t.active() {
		return "", false, ErrTxnClosed
	}

	var kv schema.KeyValueStore
	err := t.tx.WithContext(ctx).Where("key = ?", key).First(&kv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get key-value: %w", err)
	}

	return kv.Value, true, nil
}

func (t *pgTxn) Has(ctx context.Context, key string) (bool, error) {
	if !t.active() {
		return false, ErrTxnClosed
	}

	var count int64
	err := t.tx.WithContext(ctx).
		Model(&schema.KeyValueStore{}).
		Where("key = ?", key).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check key-value: %w", err)
	}

	return count > 0, nil
}

func (t *pgTxn) Set(ctx context.Context, key string, value string) error {
	if !t.active() {
		return ErrTxnClosed
	}

	kv := schema.KeyValueStore{
		Key:   key,
		Value: value,
	}

	err := t.tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&kv).Error
	if err != nil {
		return fmt.Errorf("failed to set key-value: %w", err)
	}

	return nil
}

func (t *pgTxn) Commit(_ context.Context) error {
	if !atomic.CompareAndSwapInt32(&t.state, txnActive, txnCommitted) {
		return ErrTxnClosed
	}

	if err := t.tx.Commit().Error; err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (t *pgTxn) Discard() {
	if atomic.CompareAndSwapInt32(&t.state, txnActive, txnDiscarded) {
		t.tx.Rollback()
	}
}
