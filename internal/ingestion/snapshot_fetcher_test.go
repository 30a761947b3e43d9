package ingestion

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listing-cache/internal/bptf"
	"listing-cache/internal/dedup"
	"listing-cache/internal/domain"
	"listing-cache/internal/storage"
	"listing-cache/internal/storage/memory"
	"listing-cache/internal/storage/storagetest"
)

const keyName = "Mann Co. Supply Crate Key"

func sellRecord(assetID uint64, price string, bump int64) bptf.SnapshotListing {
	id := bptf.StrInt(assetID)
	return bptf.SnapshotListing{
		SteamID: "76561198000000001",
		Intent:  "sell",
		Price:   decimal.RequireFromString(price),
		Bump:    bump,
		Item:    bptf.SnapshotItem{ID: &id, Defindex: 5021},
	}
}

func buyRecord(steamID, price string, bump int64) bptf.SnapshotListing {
	return bptf.SnapshotListing{
		SteamID: steamID,
		Intent:  "buy",
		Price:   decimal.RequireFromString(price),
		Bump:    bump,
		Item:    bptf.SnapshotItem{Defindex: 5021},
	}
}

type fetcherFixture struct {
	source  *fakeSource
	cache   *dedup.Cache
	store   *memory.ListingStore
	defs    *memory.ItemDefinitionStore
	fetcher *SnapshotFetcher
}

func newFetcherFixture(resp *bptf.SnapshotResponse, err error) *fetcherFixture {
	f := &fetcherFixture{
		source: &fakeSource{resp: resp, err: err},
		cache:  dedup.New(time.Minute, 100),
		store:  memory.NewListingStore(storage.LastWriteWins),
		defs:   memory.NewItemDefinitionStore(),
	}
	f.fetcher = NewSnapshotFetcher(SnapshotFetcherOptions{
		Source:  f.source,
		Dedup:   f.cache,
		Items:   f.defs,
		Applier: NewApplier(ApplierOptions{Store: f.store, Logger: testLogger}),
		Logger:  testLogger,
	})
	return f
}

func TestFetchSnapshot_Normalizes(t *testing.T) {
	f := newFetcherFixture(&bptf.SnapshotResponse{Listings: []bptf.SnapshotListing{
		sellRecord(11034266127, "53.11", 1700000000),
		buyRecord("76561198000000002", "52", 1700000100),
	}}, nil)

	listings, err := f.fetcher.FetchSnapshot(context.Background(), keyName, testNow)
	require.NoError(t, err)
	require.Len(t, listings, 2)

	assert.Equal(t, "listing:5021:440_11034266127", listings[0].Key.String())
	assert.Equal(t, domain.FeedSnapshot, listings[0].Feed)
	assert.Equal(t, domain.IntentBuy, listings[1].Intent)
	assert.Contains(t, listings[1].Key.InstanceID, "440_76561198000000002_")

	defindex, err := f.defs.LookupItem(context.Background(), keyName)
	require.NoError(t, err)
	assert.Equal(t, uint32(5021), defindex)
}

func TestFetchSnapshot_DropsInvalidRecords(t *testing.T) {
	noID := sellRecord(1, "1", 1700000000)
	noID.Item.ID = nil
	negative := sellRecord(2, "-3", 1700000000)
	unknown := sellRecord(3, "1", 1700000000)
	unknown.Intent = "trade"

	f := newFetcherFixture(&bptf.SnapshotResponse{Listings: []bptf.SnapshotListing{
		noID, negative, unknown, sellRecord(4, "10", 1700000000),
	}}, nil)

	listings, err := f.fetcher.FetchSnapshot(context.Background(), keyName, testNow)
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, "440_4", listings[0].Key.InstanceID)
}

func TestFetchSnapshot_CooldownSuppressesRequest(t *testing.T) {
	f := newFetcherFixture(&bptf.SnapshotResponse{}, nil)
	ctx := context.Background()

	_, err := f.fetcher.FetchSnapshot(ctx, keyName, testNow)
	require.NoError(t, err)

	_, err = f.fetcher.FetchSnapshot(ctx, keyName, testNow.Add(30*time.Second))
	assert.ErrorIs(t, err, ErrAlreadyCached)
	assert.Equal(t, 1, f.source.Calls())

	_, err = f.fetcher.FetchSnapshot(ctx, keyName, testNow.Add(2*time.Minute))
	assert.NoError(t, err)
	assert.Equal(t, 2, f.source.Calls())
}

func TestFetchSnapshot_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"server error", &bptf.APIError{StatusCode: http.StatusBadGateway}, ErrServerError},
		{"client error", &bptf.APIError{StatusCode: http.StatusForbidden}, ErrInternal},
		{"decode error", fmt.Errorf("%w: bad body", bptf.ErrDecode), ErrInternal},
		{"transport error", errors.New("connection refused"), ErrInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFetcherFixture(nil, tt.err)

			_, err := f.fetcher.FetchSnapshot(context.Background(), keyName, testNow)
			assert.ErrorIs(t, err, tt.want)

			// Failed fetches do not start a cooldown
			assert.True(t, f.cache.ShouldFetch(keyName, testNow))
		})
	}
}

func TestFetchSnapshot_ContextCancelled(t *testing.T) {
	f := newFetcherFixture(nil, context.Canceled)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.fetcher.FetchSnapshot(ctx, keyName, testNow)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrInternal)
}

func TestSync_UpsertsAndCounts(t *testing.T) {
	f := newFetcherFixture(&bptf.SnapshotResponse{Listings: []bptf.SnapshotListing{
		sellRecord(1, "10", 1700000000),
		sellRecord(2, "11", 1700000000),
	}}, nil)
	ctx := context.Background()

	// Pre-existing listing absent from the snapshot is kept
	absent := storagetest.Listing(5021, "440_99", 9, testNow)
	_, err := f.store.Upsert(ctx, absent)
	require.NoError(t, err)
	existing := storagetest.Listing(5021, "440_2", 8, testNow)
	_, err = f.store.Upsert(ctx, existing)
	require.NoError(t, err)

	res, err := f.fetcher.Sync(ctx, keyName, testNow)
	require.NoError(t, err)
	assert.Equal(t, SyncResult{Fetched: 2, Created: 1, Updated: 1}, res)

	all, err := f.store.ListByItemType(ctx, 5021)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	got, err := f.store.Get(ctx, existing.Key)
	require.NoError(t, err)
	assert.Equal(t, 11.0, got.Price)
}

func TestSync_StoreErrorReported(t *testing.T) {
	source := &fakeSource{resp: &bptf.SnapshotResponse{Listings: []bptf.SnapshotListing{
		sellRecord(1, "10", 1700000000),
		sellRecord(2, "11", 1700000000),
	}}}
	fetcher := NewSnapshotFetcher(SnapshotFetcherOptions{
		Source: source,
		Applier: NewApplier(ApplierOptions{
			Store:  failingStore{memory.NewListingStore(storage.LastWriteWins)},
			Logger: testLogger,
		}),
		Logger: testLogger,
	})

	res, err := fetcher.Sync(context.Background(), keyName, testNow)
	assert.ErrorIs(t, err, errStoreDown)
	assert.Equal(t, 2, res.Failed)
	assert.Equal(t, 2, res.Fetched)
}

func TestSync_CachedPassesThrough(t *testing.T) {
	f := newFetcherFixture(&bptf.SnapshotResponse{}, nil)
	f.cache.RecordFetch(keyName, testNow)

	res, err := f.fetcher.Sync(context.Background(), keyName, testNow)
	assert.ErrorIs(t, err, ErrAlreadyCached)
	assert.Zero(t, res)
	assert.Zero(t, f.source.Calls())
}
