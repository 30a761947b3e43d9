package backend

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listing-cache/internal/config"
	"listing-cache/internal/storage"
	"listing-cache/internal/storage/storagetest"
)

func TestOpen_Memory(t *testing.T) {
	stores, err := Open(context.Background(), config.StoreConfig{Backend: config.BackendMemory, WritePolicy: "freshest_wins"})
	require.NoError(t, err)
	defer stores.Close()

	assert.Equal(t, storage.FreshestWins, stores.Policy)
	res, err := stores.Listings.Upsert(context.Background(), storagetest.Listing(5021, "440_1", 1, storagetest.Base))
	require.NoError(t, err)
	assert.Equal(t, storage.Created, res)
}

func TestOpen_SQLite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "listings.db")

	stores, err := Open(ctx, config.StoreConfig{Backend: config.BackendSQLite, SQLitePath: path})
	require.NoError(t, err)
	defer stores.Close()

	require.NoError(t, stores.Items.RecordItem(ctx, "Team Captain", 378))
	defindex, err := stores.Items.LookupItem(ctx, "Team Captain")
	require.NoError(t, err)
	assert.Equal(t, uint32(378), defindex)
}

func TestOpen_Errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.StoreConfig
	}{
		{"unknown backend", config.StoreConfig{Backend: "redis"}},
		{"bad policy", config.StoreConfig{Backend: config.BackendMemory, WritePolicy: "newest"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(context.Background(), tt.cfg)
			assert.ErrorIs(t, err, storage.ErrInvalidInput)
		})
	}
}
