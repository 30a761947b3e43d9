package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"listing-cache/internal/bptf"
	"listing-cache/internal/dedup"
	"listing-cache/internal/domain"
	"listing-cache/internal/normalization"
	"listing-cache/internal/observability"
	"listing-cache/internal/storage"
)

// SnapshotFetcherOptions contains configuration for creating a SnapshotFetcher.
type SnapshotFetcherOptions struct {
	Source  SnapshotSource
	Dedup   *dedup.Cache
	Items   storage.ItemDefinitionStore // optional
	Applier *Applier
	Logger  *log.Logger
}

// SnapshotFetcher pulls snapshots of one item at a time.
type SnapshotFetcher struct {
	source  SnapshotSource
	dedup   *dedup.Cache
	items   storage.ItemDefinitionStore
	applier *Applier
	logger  *log.Logger
}

// NewSnapshotFetcher creates a new SnapshotFetcher.
func NewSnapshotFetcher(opts SnapshotFetcherOptions) *SnapshotFetcher {
	if opts.Dedup == nil {
		opts.Dedup = dedup.New(dedup.DefaultCooldown, dedup.DefaultCapacity)
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &SnapshotFetcher{
		source:  opts.Source,
		dedup:   opts.Dedup,
		items:   opts.Items,
		applier: opts.Applier,
		logger:  opts.Logger,
	}
}

// FetchSnapshot fetches and normalizes the listings of item.
//
// Errors:
//   - ErrAlreadyCached: item fetched within the cooldown, nothing requested
//   - ErrServerError: endpoint answered 5xx
//   - ErrInternal: other non-2xx, transport or parse failure
//
// Records that fail normalization are dropped and counted.
func (f *SnapshotFetcher) FetchSnapshot(ctx context.Context, item string, now time.Time) ([]domain.Listing, error) {
	if err := f.dedup.Check(item, now); err != nil {
		observability.RecordSnapshotFetch("cached", 0)
		return nil, err
	}

	start := time.Now()
	resp, err := f.source.GetSnapshot(ctx, item)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		var apiErr *bptf.APIError
		if errors.As(err, &apiErr) && apiErr.IsServerError() {
			observability.RecordSnapshotFetch("server_error", time.Since(start))
			return nil, fmt.Errorf("%w: %s: %v", ErrServerError, item, err)
		}
		observability.RecordSnapshotFetch("internal_error", time.Since(start))
		return nil, fmt.Errorf("%w: %s: %v", ErrInternal, item, err)
	}
	observability.RecordSnapshotFetch("ok", time.Since(start))

	f.dedup.RecordFetch(item, now)
	observability.UpdateDedupEntries(f.dedup.Len())

	query := domain.ItemIdentity{Name: item}
	listings := make([]domain.Listing, 0, len(resp.Listings))
	for _, raw := range resp.Listings {
		l, err := normalization.NormalizeSnapshot(query, raw)
		if err != nil {
			f.logger.Printf("[snapshot] %s: dropping record: %v", item, err)
			observability.RecordRejected(domain.FeedSnapshot.String(), rejectReason(err))
			continue
		}
		if query.Defindex == 0 {
			query.Defindex = l.Key.Defindex
		}
		listings = append(listings, l)
	}

	if f.items != nil && query.Defindex != 0 {
		if err := f.items.RecordItem(ctx, item, query.Defindex); err != nil {
			f.logger.Printf("[snapshot] %s: failed to record defindex %d: %v", item, query.Defindex, err)
			observability.RecordStoreError("record_item")
		}
	}

	return listings, nil
}

// SyncResult summarizes one Sync call.
type SyncResult struct {
	Fetched int
	Created int
	Updated int
	Stale   int
	Failed  int
}

// Sync fetches item and upserts every listing. Listings absent from the
// snapshot are left in place. A failed upsert does not stop the others;
// the first store error is returned alongside the counts.
func (f *SnapshotFetcher) Sync(ctx context.Context, item string, now time.Time) (SyncResult, error) {
	listings, err := f.FetchSnapshot(ctx, item, now)
	if err != nil {
		return SyncResult{}, err
	}

	res := SyncResult{Fetched: len(listings)}
	var firstErr error
	for _, l := range listings {
		r, err := f.applier.Upsert(ctx, l)
		if err != nil {
			res.Failed++
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		switch r {
		case storage.Created:
			res.Created++
		case storage.Updated:
			res.Updated++
		case storage.Stale:
			res.Stale++
		}
	}

	if firstErr != nil {
		return res, fmt.Errorf("%d of %d upserts failed: %w", res.Failed, res.Fetched, firstErr)
	}

	if res.Created > 0 || res.Updated > 0 {
		f.logger.Printf("[snapshot] %s: updated %d listings, created %d listings", item, res.Updated, res.Created)
	}
	observability.RecordSnapshotSync(now)

	return res, nil
}

// rejectReason maps a normalization error to a metric label.
func rejectReason(err error) string {
	switch {
	case errors.Is(err, normalization.ErrInvalidIdentity):
		return "invalid_identity"
	case errors.Is(err, normalization.ErrNegativePrice):
		return "negative_price"
	case errors.Is(err, normalization.ErrMissingPrice):
		return "missing_price"
	case errors.Is(err, normalization.ErrUnknownIntent):
		return "unknown_intent"
	default:
		return "other"
	}
}
