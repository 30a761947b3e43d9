package ingestion

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"listing-cache/internal/dedup"
	"listing-cache/internal/observability"
	"listing-cache/internal/storage"
)

// SweepPolicy evicts listings older than TTL every Interval.
// With Items set, only those item types are swept; otherwise the whole store.
type SweepPolicy struct {
	Name     string
	TTL      time.Duration
	Interval time.Duration
	Items    []string
}

// DefaultSweepPolicies returns the short per-item and long store-wide policies.
func DefaultSweepPolicies(items []string) []SweepPolicy {
	return []SweepPolicy{
		{Name: "short", TTL: 24 * time.Hour, Interval: 10 * time.Minute, Items: items},
		{Name: "long", TTL: 72 * time.Hour, Interval: time.Hour},
	}
}

// Sweeper runs TTL eviction in the background.
type Sweeper struct {
	store    storage.ListingStore
	defs     storage.ItemDefinitionStore
	dedup    *dedup.Cache
	policies []SweepPolicy
	logger   *log.Logger
	now      func() time.Time
}

// NewSweeper creates a new Sweeper. defs resolves item names for scoped
// policies; dedup is swept alongside the store when set.
func NewSweeper(store storage.ListingStore, defs storage.ItemDefinitionStore, cache *dedup.Cache, policies []SweepPolicy, logger *log.Logger) *Sweeper {
	if logger == nil {
		logger = log.Default()
	}
	return &Sweeper{
		store:    store,
		defs:     defs,
		dedup:    cache,
		policies: policies,
		logger:   logger,
		now:      time.Now,
	}
}

// Run sweeps every policy on its interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for _, p := range s.policies {
		if p.Interval <= 0 || p.TTL <= 0 {
			s.logger.Printf("[sweeper] policy %s disabled", p.Name)
			continue
		}
		wg.Add(1)
		go func(p SweepPolicy) {
			defer wg.Done()
			s.loop(ctx, p)
		}(p)
	}
	wg.Wait()
	return nil
}

func (s *Sweeper) loop(ctx context.Context, p SweepPolicy) {
	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx, p); err != nil && ctx.Err() == nil {
				s.logger.Printf("[sweeper] policy %s: %v", p.Name, err)
			}
		}
	}
}

// SweepOnce applies one policy at the current time and returns the number
// of evicted listings.
func (s *Sweeper) SweepOnce(ctx context.Context, p SweepPolicy) (int, error) {
	now := s.now()
	cutoff := now.Add(-p.TTL)

	if s.dedup != nil {
		s.dedup.Sweep(now)
		observability.UpdateDedupEntries(s.dedup.Len())
	}

	var removed int
	var err error
	if len(p.Items) == 0 {
		removed, err = s.store.SweepAll(ctx, cutoff)
	} else {
		removed, err = s.sweepItems(ctx, p.Items, cutoff)
	}

	if removed > 0 {
		observability.RecordEvicted(p.Name, removed)
		s.logger.Printf("[sweeper] policy %s: evicted %d listings bumped before %s",
			p.Name, removed, cutoff.UTC().Format(time.RFC3339))
	}
	if err != nil {
		observability.RecordStoreError("sweep")
	}
	return removed, err
}

func (s *Sweeper) sweepItems(ctx context.Context, items []string, cutoff time.Time) (int, error) {
	if s.defs == nil {
		return 0, nil
	}

	var removed int
	var errs []error
	for _, name := range items {
		defindex, err := s.defs.LookupItem(ctx, name)
		if err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				errs = append(errs, err)
			}
			continue // defindex not learned yet
		}
		n, err := s.store.Sweep(ctx, defindex, cutoff)
		removed += n
		if err != nil {
			errs = append(errs, err)
		}
	}
	return removed, errors.Join(errs...)
}
