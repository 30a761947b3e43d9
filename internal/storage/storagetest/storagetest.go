// Package storagetest holds behaviour tests shared by every storage backend.
package storagetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listing-cache/internal/domain"
	"listing-cache/internal/storage"
)

// Base is the reference time used by fixtures.
var Base = time.Unix(1700000000, 0).UTC()

// Listing returns a valid sell listing fixture.
func Listing(defindex uint32, instanceID string, price float64, bumpedAt time.Time) domain.Listing {
	details := "fixture"
	return domain.Listing{
		Key:        domain.ListingKey{Defindex: defindex, InstanceID: instanceID},
		Feed:       domain.FeedSnapshot,
		ItemName:   "Mann Co. Supply Crate Key",
		AccountID:  "76561198000000001",
		Intent:     domain.IntentSell,
		Price:      price,
		Details:    &details,
		BumpedAt:   bumpedAt,
		Attributes: []uint32{142},
	}
}

// ListingStoreFactory returns an empty store using the given write policy.
type ListingStoreFactory func(t *testing.T, policy storage.WritePolicy) storage.ListingStore

// RunListingStoreTests runs the listing store behaviour suite.
func RunListingStoreTests(t *testing.T, newStore ListingStoreFactory) {
	t.Run("UpsertAndGet", func(t *testing.T) {
		store := newStore(t, storage.LastWriteWins)
		ctx := context.Background()

		l := Listing(5021, "440_1", 53.11, Base)
		l.Agent = &domain.Agent{LastPulse: Base.Add(-time.Minute), Client: "bot"}
		l.HasActiveAgent = true

		res, err := store.Upsert(ctx, l)
		require.NoError(t, err)
		assert.Equal(t, storage.Created, res)

		got, err := store.Get(ctx, l.Key)
		require.NoError(t, err)
		assert.Equal(t, l.Key, got.Key)
		assert.Equal(t, l.Price, got.Price)
		assert.Equal(t, l.AccountID, got.AccountID)
		assert.Equal(t, l.Intent, got.Intent)
		assert.True(t, l.BumpedAt.Equal(got.BumpedAt))
		require.NotNil(t, got.Details)
		assert.Equal(t, "fixture", *got.Details)
		require.NotNil(t, got.Agent)
		assert.True(t, l.Agent.LastPulse.Equal(got.Agent.LastPulse))
		assert.True(t, got.HasActiveAgent)
		assert.Equal(t, []uint32{142}, got.Attributes)
	})

	t.Run("GetNotFound", func(t *testing.T) {
		store := newStore(t, storage.LastWriteWins)

		_, err := store.Get(context.Background(), domain.ListingKey{Defindex: 1, InstanceID: "440_404"})
		assert.True(t, errors.Is(err, storage.ErrNotFound), "err = %v", err)
	})

	t.Run("UpsertReplaces", func(t *testing.T) {
		store := newStore(t, storage.LastWriteWins)
		ctx := context.Background()

		_, err := store.Upsert(ctx, Listing(5021, "440_1", 10, Base))
		require.NoError(t, err)

		res, err := store.Upsert(ctx, Listing(5021, "440_1", 12, Base.Add(-time.Hour)))
		require.NoError(t, err)
		assert.Equal(t, storage.Updated, res)

		listings, err := store.ListByItemType(ctx, 5021)
		require.NoError(t, err)
		require.Len(t, listings, 1, "exactly one entry per key")
		assert.Equal(t, 12.0, listings[0].Price)
	})

	t.Run("FreshestWins", func(t *testing.T) {
		store := newStore(t, storage.FreshestWins)
		ctx := context.Background()

		_, err := store.Upsert(ctx, Listing(5021, "440_1", 10, Base))
		require.NoError(t, err)

		res, err := store.Upsert(ctx, Listing(5021, "440_1", 12, Base.Add(-time.Hour)))
		require.NoError(t, err)
		assert.Equal(t, storage.Stale, res)

		got, err := store.Get(ctx, domain.ListingKey{Defindex: 5021, InstanceID: "440_1"})
		require.NoError(t, err)
		assert.Equal(t, 10.0, got.Price)

		res, err = store.Upsert(ctx, Listing(5021, "440_1", 11, Base.Add(time.Hour)))
		require.NoError(t, err)
		assert.Equal(t, storage.Updated, res)
	})

	t.Run("UpsertInvalid", func(t *testing.T) {
		store := newStore(t, storage.LastWriteWins)

		_, err := store.Upsert(context.Background(), Listing(5021, "", 1, Base))
		assert.True(t, errors.Is(err, storage.ErrInvalidInput), "err = %v", err)

		var opErr *storage.OpError
		assert.True(t, errors.As(err, &opErr), "err = %T, want *storage.OpError", err)
	})

	t.Run("Delete", func(t *testing.T) {
		store := newStore(t, storage.LastWriteWins)
		ctx := context.Background()

		l := Listing(5021, "440_1", 10, Base)
		_, err := store.Upsert(ctx, l)
		require.NoError(t, err)

		removed, err := store.Delete(ctx, l.Key)
		require.NoError(t, err)
		assert.True(t, removed)
		_, err = store.Get(ctx, l.Key)
		assert.True(t, errors.Is(err, storage.ErrNotFound))

		// Absent key is a no-op
		removed, err = store.Delete(ctx, l.Key)
		require.NoError(t, err)
		assert.False(t, removed)
		removed, err = store.Delete(ctx, domain.ListingKey{Defindex: 9, InstanceID: "440_9"})
		require.NoError(t, err)
		assert.False(t, removed)
	})

	t.Run("ListByItemTypeIsolation", func(t *testing.T) {
		store := newStore(t, storage.LastWriteWins)
		ctx := context.Background()

		for _, l := range []domain.Listing{
			Listing(5021, "440_2", 10, Base),
			Listing(5021, "440_1", 11, Base),
			Listing(5002, "440_3", 0.11, Base),
		} {
			_, err := store.Upsert(ctx, l)
			require.NoError(t, err)
		}

		keys, err := store.ListByItemType(ctx, 5021)
		require.NoError(t, err)
		require.Len(t, keys, 2)
		assert.Equal(t, "440_1", keys[0].Key.InstanceID)
		assert.Equal(t, "440_2", keys[1].Key.InstanceID)

		empty, err := store.ListByItemType(ctx, 1)
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("QueryByItemTypeEvicts", func(t *testing.T) {
		store := newStore(t, storage.LastWriteWins)
		ctx := context.Background()
		ttl := 72 * time.Hour

		fresh := Listing(5021, "440_1", 10, Base.Add(-time.Hour))
		stale := Listing(5021, "440_2", 10, Base.Add(-ttl-time.Second))
		other := Listing(5002, "440_3", 10, Base.Add(-ttl-time.Second))
		for _, l := range []domain.Listing{fresh, stale, other} {
			_, err := store.Upsert(ctx, l)
			require.NoError(t, err)
		}

		got, err := store.QueryByItemType(ctx, 5021, Base, ttl)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, fresh.Key, got[0].Key)

		// Evicted entry is gone, other item types untouched.
		_, err = store.Get(ctx, stale.Key)
		assert.True(t, errors.Is(err, storage.ErrNotFound))
		_, err = store.Get(ctx, other.Key)
		assert.NoError(t, err)
	})

	t.Run("SweepAll", func(t *testing.T) {
		store := newStore(t, storage.LastWriteWins)
		ctx := context.Background()
		cutoff := Base.Add(-24 * time.Hour)

		for i, bumped := range []time.Time{cutoff.Add(-time.Second), cutoff, cutoff.Add(time.Second)} {
			_, err := store.Upsert(ctx, Listing(uint32(100+i), fmt.Sprintf("440_%d", i), 1, bumped))
			require.NoError(t, err)
		}

		removed, err := store.SweepAll(ctx, cutoff)
		require.NoError(t, err)
		assert.Equal(t, 1, removed, "only entries strictly before cutoff are removed")

		removed, err = store.Sweep(ctx, 101, cutoff.Add(time.Millisecond))
		require.NoError(t, err)
		assert.Equal(t, 1, removed)
	})

	t.Run("ConcurrentUpsertSameKey", func(t *testing.T) {
		store := newStore(t, storage.LastWriteWins)
		ctx := context.Background()

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				l := Listing(5021, "440_1", float64(i), Base)
				if i%2 == 0 {
					l.Feed = domain.FeedEvent
				}
				_, err := store.Upsert(ctx, l)
				assert.NoError(t, err)
			}(i)
		}
		wg.Wait()

		listings, err := store.ListByItemType(ctx, 5021)
		require.NoError(t, err)
		assert.Len(t, listings, 1)
	})
}

// ItemDefinitionStoreFactory returns an empty item definition store.
type ItemDefinitionStoreFactory func(t *testing.T) storage.ItemDefinitionStore

// RunItemDefinitionStoreTests runs the item definition store behaviour suite.
func RunItemDefinitionStoreTests(t *testing.T, newStore ItemDefinitionStoreFactory) {
	t.Run("RecordAndLookup", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		require.NoError(t, store.RecordItem(ctx, "Mann Co. Supply Crate Key", 5021))
		require.NoError(t, store.RecordItem(ctx, "Refined Metal", 5002))
		require.NoError(t, store.RecordItem(ctx, "Refined Metal", 5003))

		got, err := store.LookupItem(ctx, "Refined Metal")
		require.NoError(t, err)
		assert.Equal(t, uint32(5003), got)

		items, err := store.ListItems(ctx)
		require.NoError(t, err)
		assert.Equal(t, []domain.ItemDefinition{
			{Name: "Mann Co. Supply Crate Key", Defindex: 5021},
			{Name: "Refined Metal", Defindex: 5003},
		}, items)
	})

	t.Run("LookupNotFound", func(t *testing.T) {
		store := newStore(t)

		_, err := store.LookupItem(context.Background(), "Nothing")
		assert.True(t, errors.Is(err, storage.ErrNotFound), "err = %v", err)
	})

	t.Run("RecordInvalid", func(t *testing.T) {
		store := newStore(t)

		err := store.RecordItem(context.Background(), "", 1)
		assert.True(t, errors.Is(err, storage.ErrInvalidInput), "err = %v", err)
	})
}

// ListingArchiveFactory returns an empty listing archive.
type ListingArchiveFactory func(t *testing.T) storage.ListingArchive

// RunListingArchiveTests runs the listing archive behaviour suite.
func RunListingArchiveTests(t *testing.T, newArchive ListingArchiveFactory) {
	t.Run("AppendAndGetByKey", func(t *testing.T) {
		archive := newArchive(t)
		ctx := context.Background()
		key := domain.ListingKey{Defindex: 5021, InstanceID: "440_1"}

		changes := []storage.ListingChange{
			{Op: storage.ChangeUpsert, Key: key, Feed: domain.FeedSnapshot, Intent: domain.IntentSell,
				Price: 10, BumpedAt: Base, ObservedAt: Base.Add(time.Second), Instance: "a"},
			{Op: storage.ChangeDelete, Key: key, ObservedAt: Base.Add(3 * time.Second), Instance: "a"},
			{Op: storage.ChangeUpsert, Key: key, Feed: domain.FeedEvent, Intent: domain.IntentSell,
				Price: 11, BumpedAt: Base, ObservedAt: Base.Add(2 * time.Second), Instance: "a"},
			{Op: storage.ChangeUpsert, Key: domain.ListingKey{Defindex: 5021, InstanceID: "440_2"},
				Intent: domain.IntentSell, Price: 1, ObservedAt: Base, Instance: "a"},
		}
		require.NoError(t, archive.Append(ctx, changes))

		got, err := archive.GetByKey(ctx, key)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, 10.0, got[0].Price)
		assert.Equal(t, 11.0, got[1].Price)
		assert.Equal(t, storage.ChangeDelete, got[2].Op)
		assert.Equal(t, domain.FeedEvent, got[1].Feed)
	})

	t.Run("AppendInvalid", func(t *testing.T) {
		archive := newArchive(t)

		err := archive.Append(context.Background(), []storage.ListingChange{{Op: "bogus", Key: domain.ListingKey{Defindex: 1, InstanceID: "x"}}})
		assert.True(t, errors.Is(err, storage.ErrInvalidInput), "err = %v", err)
	})
}
