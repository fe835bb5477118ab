package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/dgraph-io/badger/v3"
	"go.uber.org/zap"

	"github.com/feral-file/card-registry/internal/logger"
)

// BadgerConfig holds the embedded store configuration
type BadgerConfig struct {
	// Path is the data directory; ignored when InMemory is set
	Path       string
	InMemory   bool
	SyncWrites bool
}

type badgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens an embedded badger database
func NewBadgerStore(cfg BadgerConfig) (Store, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, errors.New("badger path is required")
		}
		if err := os.MkdirAll(cfg.Path, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create badger directory: %w", err)
		}
		opts = badger.DefaultOptions(cfg.Path).WithSyncWrites(cfg.SyncWrites)
	}
	opts = opts.
		WithNumMemtables(2).
		WithBlockCacheSize(32 << 20).
		WithIndexCacheSize(32 << 20).
		WithLogger(newBadgerLogger())

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}

	return &badgerStore{db: db}, nil
}

// Begin opens a read-write badger transaction.
// Badger detects conflicting writers at commit time, so exclusive needs no extra locking.
func (s *badgerStore) Begin(_ context.Context, _ bool) (Txn, error) {
	return &badgerTxn{txn: s.db.NewTransaction(true)}, nil
}

func (s *badgerStore) Close() error {
	return s.db.Close()
}

const (
	txnActive int32 = iota
	txnCommitted
	txnDiscarded
)

type badgerTxn struct {
	txn   *badger.Txn
	state int32
}

func (t *badgerTxn) active() bool {
	return atomic.LoadInt32(&t.state) == txnActive
}

func (t *badgerTxn) Get(_ context.Context, key string) (string, bool, error) {
	if !t.active() {
		return "", false, ErrTxnClosed
	}

	item, err := t.txn.Get([]byte(key))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get key: %w", err)
	}

	val, err := item.ValueCopy(nil)
	if err != nil {
		return "", false, fmt.Errorf("failed to copy value: %w", err)
	}
	return string(val), true, nil
}

func (t *badgerTxn) Has(ctx context.Context, key string) (bool, error) {
	_, ok, err := t.Get(ctx, key)
	return ok, err
}

func (t *badgerTxn) Set(_ context.Context, key string, value string) error {
	if !t.active() {
		return ErrTxnClosed
	}

	if err := t.txn.Set([]byte(key), []byte(value)); err != nil {
		return fmt.Errorf("failed to set key: %w", err)
	}
	return nil
}

func (t *badgerTxn) Commit(_ context.Context) error {
	if !atomic.CompareAndSwapInt32(&t.state, txnActive, txnCommitted) {
		return ErrTxnClosed
	}

	if err := t.txn.Commit(); err != nil {
		if errors.Is(err, badger.ErrConflict) {
			return fmt.Errorf("%w: %v", ErrConflict, err)
		}
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

func (t *badgerTxn) Discard() {
	if atomic.CompareAndSwapInt32(&t.state, txnActive, txnDiscarded) {
		t.txn.Discard()
	}
}

// badgerLogger routes badger's internal logging through zap
type badgerLogger struct {
	log *zap.SugaredLogger
}

func newBadgerLogger() *badgerLogger {
	return &badgerLogger{log: logger.Default().Named("badger").Sugar()}
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.log.Errorf(format, args...)
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.log.Warnf(format, args...)
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.log.Debugf(format, args...)
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.log.Debugf(format, args...)
}
