package postgres

import (
	"context"
	"fmt"

	"listing-cache/internal/domain"
	"listing-cache/internal/storage"
)

// ItemDefinitionStore implements storage.ItemDefinitionStore using PostgreSQL.
type ItemDefinitionStore struct {
	pool *Pool
}

// NewItemDefinitionStore creates a new ItemDefinitionStore.
func NewItemDefinitionStore(pool *Pool) *ItemDefinitionStore {
	return &ItemDefinitionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ItemDefinitionStore = (*ItemDefinitionStore)(nil)

// RecordItem stores or replaces the defindex of an item name.
func (s *ItemDefinitionStore) RecordItem(ctx context.Context, name string, defindex uint32) error {
	if name == "" {
		return storage.Wrap("record_item", name, storage.ErrInvalidInput)
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO item_definitions (name, defindex, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE SET defindex = EXCLUDED.defindex, updated_at = now()
	`, name, int64(defindex))
	return storage.Wrap("record_item", name, err)
}

// LookupItem returns the defindex of an item name. Returns ErrNotFound if not exists.
func (s *ItemDefinitionStore) LookupItem(ctx context.Context, name string) (uint32, error) {
	var defindex int64
	err := s.pool.QueryRow(ctx,
		`SELECT defindex FROM item_definitions WHERE name = $1`, name,
	).Scan(&defindex)
	if err != nil {
		if isNotFoundError(err) {
			return 0, storage.Wrap("lookup_item", name, storage.ErrNotFound)
		}
		return 0, storage.Wrap("lookup_item", name, err)
	}
	return uint32(defindex), nil
}

// ListItems returns all known definitions ordered by name.
func (s *ItemDefinitionStore) ListItems(ctx context.Context) ([]domain.ItemDefinition, error) {
	rows, err := s.pool.Query(ctx, `SELECT name, defindex FROM item_definitions ORDER BY name ASC`)
	if err != nil {
		return nil, storage.Wrap("list_items", "", err)
	}
	defer rows.Close()

	var result []domain.ItemDefinition
	for rows.Next() {
		var d domain.ItemDefinition
		var defindex int64
		if err := rows.Scan(&d.Name, &defindex); err != nil {
			return nil, storage.Wrap("list_items", "", fmt.Errorf("scan item definition row: %w", err))
		}
		d.Defindex = uint32(defindex)
		result = append(result, d)
	}

	if err := rows.Err(); err != nil {
		return nil, storage.Wrap("list_items", "", fmt.Errorf("iterate item definition rows: %w", err))
	}
	return result, nil
}
