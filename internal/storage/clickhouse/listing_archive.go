package clickhouse

import (
	"context"
	"fmt"
	"time"

	"listing-cache/internal/domain"
	"listing-cache/internal/storage"
)

// ListingArchive implements storage.ListingArchive using ClickHouse.
type ListingArchive struct {
	conn *Conn
}

// NewListingArchive creates a new ListingArchive.
func NewListingArchive(conn *Conn) *ListingArchive {
	return &ListingArchive{conn: conn}
}

// Compile-time interface check.
var _ storage.ListingArchive = (*ListingArchive)(nil)

// Append writes changes in one batch.
func (a *ListingArchive) Append(ctx context.Context, changes []storage.ListingChange) error {
	if len(changes) == 0 {
		return nil
	}

	for _, c := range changes {
		if c.Key.IsZero() || (c.Op != storage.ChangeUpsert && c.Op != storage.ChangeDelete) {
			return storage.Wrap("append", c.Key.String(), storage.ErrInvalidInput)
		}
	}

	batch, err := a.conn.PrepareBatch(ctx, `
		INSERT INTO listing_changes (
			op, defindex, instance_id, feed, intent, price, bumped_at, observed_at, instance
		)
	`)
	if err != nil {
		return storage.Wrap("append", "", fmt.Errorf("prepare batch: %w", err))
	}

	for _, c := range changes {
		err = batch.Append(
			string(c.Op), c.Key.Defindex, c.Key.InstanceID,
			string(c.Feed), string(c.Intent), c.Price,
			c.BumpedAt.UTC(), c.ObservedAt.UTC(), c.Instance,
		)
		if err != nil {
			return storage.Wrap("append", c.Key.String(), fmt.Errorf("append to batch: %w", err))
		}
	}

	if err := batch.Send(); err != nil {
		return storage.Wrap("append", "", fmt.Errorf("send batch: %w", err))
	}

	return nil
}

// GetByKey returns the journal of one key ordered by observed time ASC.
func (a *ListingArchive) GetByKey(ctx context.Context, key domain.ListingKey) ([]storage.ListingChange, error) {
	query := `
		SELECT op, defindex, instance_id, feed, intent, price, bumped_at, observed_at, instance
		FROM listing_changes
		WHERE defindex = ? AND instance_id = ?
		ORDER BY observed_at ASC
	`

	rows, err := a.conn.Query(ctx, query, key.Defindex, key.InstanceID)
	if err != nil {
		return nil, storage.Wrap("get_by_key", key.String(), fmt.Errorf("query by key: %w", err))
	}
	defer rows.Close()

	var changes []storage.ListingChange
	for rows.Next() {
		var c storage.ListingChange
		var op, feed, intent string
		var bumpedAt, observedAt time.Time

		err := rows.Scan(
			&op, &c.Key.Defindex, &c.Key.InstanceID, &feed, &intent,
			&c.Price, &bumpedAt, &observedAt, &c.Instance,
		)
		if err != nil {
			return nil, storage.Wrap("get_by_key", key.String(), fmt.Errorf("scan listing change row: %w", err))
		}

		c.Op = storage.ChangeOp(op)
		c.Feed = domain.Feed(feed)
		c.Intent = domain.Intent(intent)
		c.BumpedAt = bumpedAt.UTC()
		c.ObservedAt = observedAt.UTC()
		changes = append(changes, c)
	}

	if err := rows.Err(); err != nil {
		return nil, storage.Wrap("get_by_key", key.String(), fmt.Errorf("iterate listing change rows: %w", err))
	}

	return changes, nil
}
