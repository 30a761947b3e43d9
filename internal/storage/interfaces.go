package storage

import (
	"context"
	"time"

	"listing-cache/internal/domain"
)

// ListingStore holds at most one listing per domain.ListingKey.
// All failures are returned as *OpError.
type ListingStore interface {
	// Upsert inserts or replaces the listing at its key.
	// Under FreshestWins an older bumpedAt returns Stale and leaves the entry untouched.
	Upsert(ctx context.Context, l domain.Listing) (UpsertResult, error)

	// Delete removes the listing at key and reports whether one was present.
	// Deleting an absent key is a no-op.
	Delete(ctx context.Context, key domain.ListingKey) (bool, error)

	// Get returns the listing at key. Returns ErrNotFound if not exists.
	Get(ctx context.Context, key domain.ListingKey) (domain.Listing, error)

	// ListByItemType returns every listing of an item type, ordered by instance id.
	ListByItemType(ctx context.Context, defindex uint32) ([]domain.Listing, error)

	// QueryByItemType evicts listings of the item type bumped before now-ttl,
	// then returns the survivors.
	QueryByItemType(ctx context.Context, defindex uint32, now time.Time, ttl time.Duration) ([]domain.Listing, error)

	// Sweep removes listings of an item type bumped before cutoff.
	Sweep(ctx context.Context, defindex uint32, cutoff time.Time) (int, error)

	// SweepAll removes listings of every item type bumped before cutoff.
	SweepAll(ctx context.Context, cutoff time.Time) (int, error)
}

// ItemDefinitionStore maps item names to defindexes.
type ItemDefinitionStore interface {
	// RecordItem stores or replaces the defindex of an item name.
	RecordItem(ctx context.Context, name string, defindex uint32) error

	// LookupItem returns the defindex of an item name. Returns ErrNotFound if not exists.
	LookupItem(ctx context.Context, name string) (uint32, error)

	// ListItems returns all known definitions ordered by name.
	ListItems(ctx context.Context) ([]domain.ItemDefinition, error)
}

// ListingArchive is an append-only journal of applied listing changes.
type ListingArchive interface {
	// Append writes changes in one batch.
	Append(ctx context.Context, changes []ListingChange) error

	// GetByKey returns the journal of one key ordered by observed time ASC.
	GetByKey(ctx context.Context, key domain.ListingKey) ([]ListingChange, error)
}
