// Package backend opens the configured listing and item definition stores.
package backend

import (
	"context"
	"fmt"

	"listing-cache/internal/config"
	"listing-cache/internal/storage"
	"listing-cache/internal/storage/memory"
	"listing-cache/internal/storage/postgres"
	"listing-cache/internal/storage/sqlite"
)

// Stores groups the stores of one backend.
type Stores struct {
	Listings storage.ListingStore
	Items    storage.ItemDefinitionStore
	Policy   storage.WritePolicy

	close func()
}

// Close releases the backend connection.
func (s *Stores) Close() {
	if s.close != nil {
		s.close()
	}
}

// Open connects to the backend named in cfg and applies its migrations.
func Open(ctx context.Context, cfg config.StoreConfig) (*Stores, error) {
	policy, err := storage.ParseWritePolicy(cfg.WritePolicy)
	if err != nil {
		return nil, err
	}

	switch cfg.Backend {
	case config.BackendMemory, "":
		return &Stores{
			Listings: memory.NewListingStore(policy),
			Items:    memory.NewItemDefinitionStore(),
			Policy:   policy,
		}, nil

	case config.BackendPostgres:
		pool, err := postgres.Open(ctx, cfg.PostgresDSN, cfg.PostgresMaxConns)
		if err != nil {
			return nil, err
		}
		return &Stores{
			Listings: postgres.NewListingStore(pool, policy),
			Items:    postgres.NewItemDefinitionStore(pool),
			Policy:   policy,
			close:    pool.Close,
		}, nil

	case config.BackendSQLite:
		db, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return &Stores{
			Listings: sqlite.NewListingStore(db, policy),
			Items:    sqlite.NewItemDefinitionStore(db),
			Policy:   policy,
			close:    func() { _ = db.Close() },
		}, nil

	default:
		return nil, fmt.Errorf("%w: unknown store backend %q", storage.ErrInvalidInput, cfg.Backend)
	}
}
