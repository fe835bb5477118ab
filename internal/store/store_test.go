package store

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunStoreTests runs the backend-independent transaction tests against newStore
func RunStoreTests(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("missing key", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		txn, err := s.Begin(ctx, false)
		require.NoError(t, err)
		defer txn.Discard()

		v, ok, err := txn.Get(ctx, "c/admin")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Empty(t, v)

		has, err := txn.Has(ctx, "c/admin")
		require.NoError(t, err)
		assert.False(t, has)
	})

	t.Run("read your writes", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		txn, err := s.Begin(ctx, true)
		require.NoError(t, err)
		defer txn.Discard()

		require.NoError(t, txn.Set(ctx, "c/total_supply", "0"))
		require.NoError(t, txn.Set(ctx, "c/total_supply", "1"))

		v, ok, err := txn.Get(ctx, "c/total_supply")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "1", v)
	})

	t.Run("commit persists", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		txn, err := s.Begin(ctx, true)
		require.NoError(t, err)
		require.NoError(t, txn.Set(ctx, "c/owner/0", "0x1111111111111111111111111111111111111111"))
		require.NoError(t, txn.Set(ctx, "c/uri/0", "ipfs://x"))
		require.NoError(t, txn.Commit(ctx))

		reader, err := s.Begin(ctx, false)
		require.NoError(t, err)
		defer reader.Discard()

		v, ok, err := reader.Get(ctx, "c/uri/0")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "ipfs://x", v)

		has, err := reader.Has(ctx, "c/owner/0")
		require.NoError(t, err)
		assert.True(t, has)
	})

	t.Run("discard drops every write", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		txn, err := s.Begin(ctx, true)
		require.NoError(t, err)
		require.NoError(t, txn.Set(ctx, "c/owner/0", "a"))
		require.NoError(t, txn.Set(ctx, "c/uri/0", "b"))
		txn.Discard()

		reader, err := s.Begin(ctx, false)
		require.NoError(t, err)
		defer reader.Discard()

		for _, key := range []string{"c/owner/0", "c/uri/0"} {
			has, err := reader.Has(ctx, key)
			require.NoError(t, err)
			assert.False(t, has, key)
		}
	})

	t.Run("uncommitted writes are isolated", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		writer, err := s.Begin(ctx, true)
		require.NoError(t, err)
		defer writer.Discard()
		require.NoError(t, writer.Set(ctx, "c/admin", "a"))

		reader, err := s.Begin(ctx, false)
		require.NoError(t, err)
		defer reader.Discard()

		has, err := reader.Has(ctx, "c/admin")
		require.NoError(t, err)
		assert.False(t, has)
	})

	t.Run("closed transaction", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		txn, err := s.Begin(ctx, true)
		require.NoError(t, err)
		require.NoError(t, txn.Commit(ctx))

		assert.ErrorIs(t, txn.Set(ctx, "k", "v"), ErrTxnClosed)
		_, _, err = txn.Get(ctx, "k")
		assert.ErrorIs(t, err, ErrTxnClosed)
		assert.ErrorIs(t, txn.Commit(ctx), ErrTxnClosed)

		// Discard after commit is a no-op
		txn.Discard()
	})

	t.Run("sequential exclusive writers", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		var mu sync.Mutex
		var wg sync.WaitGroup
		for i := range 5 {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				// Callers serialize exclusive work themselves in-process
				mu.Lock()
				defer mu.Unlock()

				txn, err := s.Begin(ctx, true)
				if !assert.NoError(t, err) {
					return
				}
				defer txn.Discard()
				assert.NoError(t, txn.Set(ctx, fmt.Sprintf("c/owner/%d", i), "x"))
				assert.NoError(t, txn.Commit(ctx))
			}(i)
		}
		wg.Wait()

		reader, err := s.Begin(ctx, false)
		require.NoError(t, err)
		defer reader.Discard()
		for i := range 5 {
			has, err := reader.Has(ctx, fmt.Sprintf("c/owner/%d", i))
			require.NoError(t, err)
			assert.True(t, has)
		}
	})
}

func TestOpenUnsupportedDriver(t *testing.T) {
	_, err := Open(Config{Driver: "sqlite"})
	assert.Error(t, err)
}

func TestNormalizeConnectionPoolSettings(t *testing.T) {
	open, idle, life, idleTime := NormalizeConnectionPoolSettings(0, 0, 0, 0)
	assert.Equal(t, 10, open)
	assert.Equal(t, 2, idle)
	assert.NotZero(t, life)
	assert.NotZero(t, idleTime)

	open, idle, _, _ = NormalizeConnectionPoolSettings(3, 8, 0, 0)
	assert.Equal(t, 3, open)
	assert.Equal(t, 3, idle)
}
