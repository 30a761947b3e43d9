package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listing-cache/internal/storage"
	"listing-cache/internal/storage/storagetest"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), ":memory:")
	require.NoError(t, err, "failed to open sqlite")
	t.Cleanup(func() { db.Close() })
	return db
}

func TestListingStore(t *testing.T) {
	storagetest.RunListingStoreTests(t, func(t *testing.T, policy storage.WritePolicy) storage.ListingStore {
		return NewListingStore(openTestDB(t), policy)
	})
}

func TestItemDefinitionStore(t *testing.T) {
	storagetest.RunItemDefinitionStoreTests(t, func(t *testing.T) storage.ItemDefinitionStore {
		return NewItemDefinitionStore(openTestDB(t))
	})
}

func TestOpen_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "listings.db")

	db, err := Open(ctx, path)
	require.NoError(t, err)

	l := storagetest.Listing(5021, "440_1", 10, storagetest.Base)
	_, err = NewListingStore(db, storage.LastWriteWins).Upsert(ctx, l)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	// Migrations are idempotent on reopen
	db, err = Open(ctx, path)
	require.NoError(t, err)
	defer db.Close()

	got, err := NewListingStore(db, storage.LastWriteWins).Get(ctx, l.Key)
	require.NoError(t, err)
	assert.Equal(t, 10.0, got.Price)
}

func TestOpen_EmptyPath(t *testing.T) {
	_, err := Open(context.Background(), " ")
	assert.Error(t, err)
}
