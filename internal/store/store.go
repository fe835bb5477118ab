package store

import (
	"context"
	"errors"
)

var (
	// ErrTxnClosed is returned when a transaction is used after Commit or Discard
	ErrTxnClosed = errors.New("transaction already closed")

	// ErrConflict is returned when a commit lost a race with a concurrent writer
	ErrConflict = errors.New("transaction conflict")
)

// Store is a transactional key-value backend
type Store interface {
	// Begin opens a transaction. Writes stay invisible to other transactions until Commit.
	// An exclusive transaction additionally waits for every other exclusive transaction
	// to finish, which serializes writers across processes sharing the backend.
	Begin(ctx context.Context, exclusive bool) (Txn, error)
	// Close releases the backend
	Close() error
}

// Txn is a single all-or-nothing unit of work
type Txn interface {
	// Get returns the value of key and whether it exists
	Get(ctx context.Context, key string) (string, bool, error)
	// Has reports whether key exists
	Has(ctx context.Context, key string) (bool, error)
	// Set writes key, visible to later reads in the same transaction
	Set(ctx context.Context, key string, value string) error
	// Commit applies every write atomically
	Commit(ctx context.Context) error
	// Discard drops every write; it is safe to call after Commit
	Discard()
}
