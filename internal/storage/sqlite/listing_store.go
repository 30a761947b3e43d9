package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"listing-cache/internal/domain"
	"listing-cache/internal/storage"
)

// ListingStore implements storage.ListingStore using SQLite.
type ListingStore struct {
	db     *DB
	policy storage.WritePolicy
}

// NewListingStore creates a new ListingStore.
func NewListingStore(db *DB, policy storage.WritePolicy) *ListingStore {
	return &ListingStore{db: db, policy: policy}
}

// Compile-time interface check.
var _ storage.ListingStore = (*ListingStore)(nil)

// Upsert inserts or replaces the listing at its key.
func (s *ListingStore) Upsert(ctx context.Context, l domain.Listing) (storage.UpsertResult, error) {
	key := l.Key.String()
	if err := storage.ValidateListing(l); err != nil {
		return 0, storage.Wrap("upsert", key, err)
	}

	payload, err := json.Marshal(l)
	if err != nil {
		return 0, storage.Wrap("upsert", key, fmt.Errorf("marshal listing: %w", err))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, storage.Wrap("upsert", key, fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback()

	var existingMs int64
	err = tx.QueryRowContext(ctx,
		`SELECT bumped_at FROM listings WHERE defindex = ? AND instance_id = ?`,
		l.Key.Defindex, l.Key.InstanceID,
	).Scan(&existingMs)

	exists := true
	if err != nil {
		if !isNotFoundError(err) {
			return 0, storage.Wrap("upsert", key, err)
		}
		exists = false
	}

	if exists && s.policy == storage.FreshestWins && toMillis(l.BumpedAt) < existingMs {
		return storage.Stale, nil
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO listings (defindex, instance_id, bumped_at, payload, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (defindex, instance_id) DO UPDATE SET
			bumped_at = excluded.bumped_at,
			payload = excluded.payload,
			updated_at = excluded.updated_at
	`, l.Key.Defindex, l.Key.InstanceID, toMillis(l.BumpedAt), string(payload), toMillis(time.Now()))
	if err != nil {
		return 0, storage.Wrap("upsert", key, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, storage.Wrap("upsert", key, fmt.Errorf("commit: %w", err))
	}

	if exists {
		return storage.Updated, nil
	}
	return storage.Created, nil
}

// Delete removes the listing at key.
func (s *ListingStore) Delete(ctx context.Context, key domain.ListingKey) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM listings WHERE defindex = ? AND instance_id = ?`,
		key.Defindex, key.InstanceID,
	)
	if err != nil {
		return false, storage.Wrap("delete", key.String(), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, storage.Wrap("delete", key.String(), err)
	}
	return n > 0, nil
}

// Get returns the listing at key. Returns ErrNotFound if not exists.
func (s *ListingStore) Get(ctx context.Context, key domain.ListingKey) (domain.Listing, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM listings WHERE defindex = ? AND instance_id = ?`,
		key.Defindex, key.InstanceID,
	).Scan(&payload)
	if err != nil {
		if isNotFoundError(err) {
			return domain.Listing{}, storage.Wrap("get", key.String(), storage.ErrNotFound)
		}
		return domain.Listing{}, storage.Wrap("get", key.String(), err)
	}

	var l domain.Listing
	if err := json.Unmarshal([]byte(payload), &l); err != nil {
		return domain.Listing{}, storage.Wrap("get", key.String(), fmt.Errorf("unmarshal listing: %w", err))
	}
	return l, nil
}

// ListByItemType returns every listing of an item type, ordered by instance id.
func (s *ListingStore) ListByItemType(ctx context.Context, defindex uint32) ([]domain.Listing, error) {
	scope := fmt.Sprintf("listing:%d:*", defindex)

	rows, err := s.db.QueryContext(ctx, `
		SELECT payload FROM listings
		WHERE defindex = ?
		ORDER BY instance_id ASC
	`, defindex)
	if err != nil {
		return nil, storage.Wrap("list", scope, err)
	}
	defer rows.Close()

	listings, err := scanListings(rows)
	if err != nil {
		return nil, storage.Wrap("list", scope, err)
	}
	return listings, nil
}

// QueryByItemType sweeps the item type at now-ttl and lists the survivors.
func (s *ListingStore) QueryByItemType(ctx context.Context, defindex uint32, now time.Time, ttl time.Duration) ([]domain.Listing, error) {
	if _, err := s.Sweep(ctx, defindex, now.Add(-ttl)); err != nil {
		return nil, err
	}
	return s.ListByItemType(ctx, defindex)
}

// Sweep removes listings of an item type bumped before cutoff.
func (s *ListingStore) Sweep(ctx context.Context, defindex uint32, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM listings WHERE defindex = ? AND bumped_at < ?`,
		defindex, toMillis(cutoff),
	)
	if err != nil {
		return 0, storage.Wrap("sweep", fmt.Sprintf("listing:%d:*", defindex), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storage.Wrap("sweep", fmt.Sprintf("listing:%d:*", defindex), err)
	}
	return int(n), nil
}

// SweepAll removes listings of every item type bumped before cutoff.
func (s *ListingStore) SweepAll(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM listings WHERE bumped_at < ?`, toMillis(cutoff))
	if err != nil {
		return 0, storage.Wrap("sweep_all", "", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storage.Wrap("sweep_all", "", err)
	}
	return int(n), nil
}

func scanListings(rows *sql.Rows) ([]domain.Listing, error) {
	listings := []domain.Listing{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan listing row: %w", err)
		}

		var l domain.Listing
		if err := json.Unmarshal([]byte(payload), &l); err != nil {
			return nil, fmt.Errorf("unmarshal listing: %w", err)
		}
		listings = append(listings, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate listing rows: %w", err)
	}
	return listings, nil
}
