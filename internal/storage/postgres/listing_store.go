package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"listing-cache/internal/domain"
	"listing-cache/internal/storage"
)

// ListingStore implements storage.ListingStore using PostgreSQL.
type ListingStore struct {
	pool   *Pool
	policy storage.WritePolicy
}

// NewListingStore creates a new ListingStore.
func NewListingStore(pool *Pool, policy storage.WritePolicy) *ListingStore {
	return &ListingStore{pool: pool, policy: policy}
}

// Compile-time interface check.
var _ storage.ListingStore = (*ListingStore)(nil)

// Upsert inserts or replaces the listing at its key.
// Under FreshestWins the conflict update is guarded by bumped_at; a
// suppressed update returns no row and is reported as Stale.
func (s *ListingStore) Upsert(ctx context.Context, l domain.Listing) (storage.UpsertResult, error) {
	key := l.Key.String()
	if err := storage.ValidateListing(l); err != nil {
		return 0, storage.Wrap("upsert", key, err)
	}

	payload, err := json.Marshal(l)
	if err != nil {
		return 0, storage.Wrap("upsert", key, fmt.Errorf("marshal listing: %w", err))
	}

	query := `
		INSERT INTO listings (defindex, instance_id, bumped_at, payload, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (defindex, instance_id) DO UPDATE SET
			bumped_at = EXCLUDED.bumped_at,
			payload = EXCLUDED.payload,
			updated_at = now()
		WHERE NOT $5 OR listings.bumped_at <= EXCLUDED.bumped_at
		RETURNING (xmax = 0) AS inserted
	`

	var inserted bool
	err = s.pool.QueryRow(ctx, query,
		int64(l.Key.Defindex), l.Key.InstanceID, l.BumpedAt, payload,
		s.policy == storage.FreshestWins,
	).Scan(&inserted)
	if err != nil {
		if isNotFoundError(err) {
			return storage.Stale, nil
		}
		return 0, storage.Wrap("upsert", key, err)
	}

	if inserted {
		return storage.Created, nil
	}
	return storage.Updated, nil
}

// Delete removes the listing at key.
func (s *ListingStore) Delete(ctx context.Context, key domain.ListingKey) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM listings WHERE defindex = $1 AND instance_id = $2`,
		int64(key.Defindex), key.InstanceID,
	)
	if err != nil {
		return false, storage.Wrap("delete", key.String(), err)
	}
	return tag.RowsAffected() > 0, nil
}

// Get returns the listing at key. Returns ErrNotFound if not exists.
func (s *ListingStore) Get(ctx context.Context, key domain.ListingKey) (domain.Listing, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT payload FROM listings WHERE defindex = $1 AND instance_id = $2`,
		int64(key.Defindex), key.InstanceID,
	).Scan(&payload)
	if err != nil {
		if isNotFoundError(err) {
			return domain.Listing{}, storage.Wrap("get", key.String(), storage.ErrNotFound)
		}
		return domain.Listing{}, storage.Wrap("get", key.String(), err)
	}

	var l domain.Listing
	if err := json.Unmarshal(payload, &l); err != nil {
		return domain.Listing{}, storage.Wrap("get", key.String(), fmt.Errorf("unmarshal listing: %w", err))
	}
	return l, nil
}

// ListByItemType returns every listing of an item type, ordered by instance id.
func (s *ListingStore) ListByItemType(ctx context.Context, defindex uint32) ([]domain.Listing, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT payload FROM listings
		WHERE defindex = $1
		ORDER BY instance_id ASC
	`, int64(defindex))
	if err != nil {
		return nil, storage.Wrap("list", itemScope(defindex), err)
	}
	defer rows.Close()

	listings, err := scanListings(rows)
	if err != nil {
		return nil, storage.Wrap("list", itemScope(defindex), err)
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
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM listings WHERE defindex = $1 AND bumped_at < $2`,
		int64(defindex), cutoff,
	)
	if err != nil {
		return 0, storage.Wrap("sweep", itemScope(defindex), err)
	}
	return int(tag.RowsAffected()), nil
}

// SweepAll removes listings of every item type bumped before cutoff.
func (s *ListingStore) SweepAll(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM listings WHERE bumped_at < $1`, cutoff)
	if err != nil {
		return 0, storage.Wrap("sweep_all", "", err)
	}
	return int(tag.RowsAffected()), nil
}

// scanListings decodes payload rows.
func scanListings(rows pgx.Rows) ([]domain.Listing, error) {
	listings := []domain.Listing{}
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan listing row: %w", err)
		}

		var l domain.Listing
		if err := json.Unmarshal(payload, &l); err != nil {
			return nil, fmt.Errorf("unmarshal listing: %w", err)
		}
		listings = append(listings, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate listing rows: %w", err)
	}
	return listings, nil
}

func itemScope(defindex uint32) string {
	return fmt.Sprintf("listing:%d:*", defindex)
}
