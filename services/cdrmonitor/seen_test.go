package cdrmonitor

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"cdrwatch-backend/lib/sqliteutil"
	"cdrwatch-backend/services/cdrmonitor/db"

	"github.com/stretchr/testify/require"
)

func TestMarkNewIdempotent(t *testing.T) {
	ctx := context.Background()
	store, err := NewSeenStore(ctx, nil)
	require.NoError(t, err)

	require.True(t, store.MarkNew(ctx, "alice@example.com", "k1"))
	require.False(t, store.MarkNew(ctx, "alice@example.com", "k1"))
	require.False(t, store.MarkNew(ctx, "alice@example.com", "k1"))
	require.Equal(t, 1, store.Len("alice@example.com"))
}

func TestMarkNewAccountsAreIndependent(t *testing.T) {
	ctx := context.Background()
	store, err := NewSeenStore(ctx, nil)
	require.NoError(t, err)

	require.True(t, store.MarkNew(ctx, "alice@example.com", "k1"))
	require.True(t, store.MarkNew(ctx, "bob@example.com", "k1"))
	require.False(t, store.MarkNew(ctx, "alice@example.com", "k1"))
	require.False(t, store.MarkNew(ctx, "bob@example.com", "k1"))
}

func TestMarkNewConcurrent(t *testing.T) {
	ctx := context.Background()
	store, err := NewSeenStore(ctx, nil)
	require.NoError(t, err)

	var wins int64
	var mu sync.Mutex
	wg := sync.WaitGroup{}
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if store.MarkNew(ctx, "alice@example.com", "contended") {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int64(1), wins)
}

func TestSeenStorePersistence(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "seen.db")

	database, err := sqliteutil.OpenDB(db.Schema, path)
	require.NoError(t, err)

	store, err := NewSeenStore(ctx, database)
	require.NoError(t, err)
	require.True(t, store.MarkNew(ctx, "alice@example.com", "k1"))
	require.True(t, store.MarkNew(ctx, "alice@example.com", "k2"))
	require.NoError(t, database.Close())

	// a fresh store over the same database must remember both identities
	database, err = sqliteutil.OpenDB(db.Schema, path)
	require.NoError(t, err)
	defer database.Close()

	restored, err := NewSeenStore(ctx, database)
	require.NoError(t, err)
	require.False(t, restored.MarkNew(ctx, "alice@example.com", "k1"))
	require.False(t, restored.MarkNew(ctx, "alice@example.com", "k2"))
	require.True(t, restored.MarkNew(ctx, "alice@example.com", "k3"))
	require.True(t, restored.MarkNew(ctx, "bob@example.com", "k1"))
}
