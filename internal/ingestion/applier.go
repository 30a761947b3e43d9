package ingestion

import (
	"context"
	"log"
	"sync"
	"time"

	"listing-cache/internal/domain"
	"listing-cache/internal/observability"
	"listing-cache/internal/storage"
)

// Archive batching defaults.
const (
	DefaultArchiveBatchSize     = 500
	DefaultArchiveFlushInterval = 5 * time.Second
)

// ApplierOptions contains configuration for creating an Applier.
type ApplierOptions struct {
	Store   storage.ListingStore
	Archive storage.ListingArchive // optional

	Instance      string // process id written to archive rows
	BatchSize     int
	FlushInterval time.Duration

	Logger *log.Logger
	Now    func() time.Time
}

// Applier is the single point where feed adapters write to the store.
// Applied changes are counted and, when an archive is configured, queued
// for batched journaling. Archive failures are logged and never reach callers.
type Applier struct {
	store   storage.ListingStore
	archive storage.ListingArchive

	instance      string
	batchSize     int
	maxPending    int
	flushInterval time.Duration

	logger *log.Logger
	now    func() time.Time

	mu      sync.Mutex
	pending []storage.ListingChange
	kick    chan struct{}
}

// NewApplier creates a new Applier.
func NewApplier(opts ApplierOptions) *Applier {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultArchiveBatchSize
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = DefaultArchiveFlushInterval
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Applier{
		store:         opts.Store,
		archive:       opts.Archive,
		instance:      opts.Instance,
		batchSize:     opts.BatchSize,
		maxPending:    opts.BatchSize * 10,
		flushInterval: opts.FlushInterval,
		logger:        opts.Logger,
		now:           opts.Now,
		kick:          make(chan struct{}, 1),
	}
}

// Upsert writes the listing and records the result.
func (a *Applier) Upsert(ctx context.Context, l domain.Listing) (storage.UpsertResult, error) {
	res, err := a.store.Upsert(ctx, l)
	if err != nil {
		observability.RecordStoreError("upsert")
		return 0, err
	}

	observability.RecordUpsert(l.Feed.String(), res.String())

	if res != storage.Stale {
		a.enqueue(storage.ListingChange{
			Op:         storage.ChangeUpsert,
			Key:        l.Key,
			Feed:       l.Feed,
			Intent:     l.Intent,
			Price:      l.Price,
			BumpedAt:   l.BumpedAt,
			ObservedAt: a.now(),
			Instance:   a.instance,
		})
	}

	return res, nil
}

// Delete removes the listing at key. Only a removal that hit a stored
// listing is counted and archived.
func (a *Applier) Delete(ctx context.Context, key domain.ListingKey, feed domain.Feed) error {
	removed, err := a.store.Delete(ctx, key)
	if err != nil {
		observability.RecordStoreError("delete")
		return err
	}
	if !removed {
		return nil
	}

	observability.RecordDelete(feed.String())

	a.enqueue(storage.ListingChange{
		Op:         storage.ChangeDelete,
		Key:        key,
		Feed:       feed,
		ObservedAt: a.now(),
		Instance:   a.instance,
	})

	return nil
}

func (a *Applier) enqueue(c storage.ListingChange) {
	if a.archive == nil {
		return
	}

	a.mu.Lock()
	if len(a.pending) >= a.maxPending {
		// Backlog cap reached: drop the oldest batch.
		dropped := a.batchSize
		a.pending = append(a.pending[:0], a.pending[dropped:]...)
		a.logger.Printf("[archive] backlog full, dropped %d changes", dropped)
		observability.RecordArchiveWrite(dropped, errArchiveBacklog)
	}
	a.pending = append(a.pending, c)
	full := len(a.pending) >= a.batchSize
	a.mu.Unlock()

	if full {
		select {
		case a.kick <- struct{}{}:
		default:
		}
	}
}

// Pending returns the number of changes waiting for the archive.
func (a *Applier) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending)
}

// Flush writes pending changes to the archive.
func (a *Applier) Flush(ctx context.Context) error {
	if a.archive == nil {
		return nil
	}

	a.mu.Lock()
	batch := a.pending
	a.pending = nil
	a.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	err := a.archive.Append(ctx, batch)
	observability.RecordArchiveWrite(len(batch), err)
	if err != nil {
		a.logger.Printf("[archive] failed to write %d changes: %v", len(batch), err)
	}
	return err
}

// Run flushes the archive on an interval or when a batch fills up, until
// ctx is cancelled. A final flush runs on a fresh context before returning.
func (a *Applier) Run(ctx context.Context) error {
	if a.archive == nil {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(a.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			_ = a.Flush(flushCtx)
			cancel()
			return nil
		case <-ticker.C:
			_ = a.Flush(ctx)
		case <-a.kick:
			_ = a.Flush(ctx)
		}
	}
}
