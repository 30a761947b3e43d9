package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"listing-cache/internal/domain"
	"listing-cache/internal/storage"
)

// ListingStore is an in-memory implementation of storage.ListingStore.
type ListingStore struct {
	mu     sync.RWMutex
	data   map[uint32]map[string]domain.Listing // defindex -> instance_id -> listing
	policy storage.WritePolicy
}

// NewListingStore creates a new in-memory listing store.
func NewListingStore(policy storage.WritePolicy) *ListingStore {
	return &ListingStore{
		data:   make(map[uint32]map[string]domain.Listing),
		policy: policy,
	}
}

// Upsert inserts or replaces the listing at its key.
func (s *ListingStore) Upsert(_ context.Context, l domain.Listing) (storage.UpsertResult, error) {
	if err := storage.ValidateListing(l); err != nil {
		return 0, storage.Wrap("upsert", l.Key.String(), err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	byInstance, ok := s.data[l.Key.Defindex]
	if !ok {
		byInstance = make(map[string]domain.Listing)
		s.data[l.Key.Defindex] = byInstance
	}

	existing, exists := byInstance[l.Key.InstanceID]
	if exists && !s.policy.Accepts(existing, l) {
		return storage.Stale, nil
	}

	// Store a copy to prevent external mutation
	byInstance[l.Key.InstanceID] = l.Clone()

	if exists {
		return storage.Updated, nil
	}
	return storage.Created, nil
}

// Delete removes the listing at key.
func (s *ListingStore) Delete(_ context.Context, key domain.ListingKey) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byInstance, ok := s.data[key.Defindex]
	if !ok {
		return false, nil
	}
	if _, ok := byInstance[key.InstanceID]; !ok {
		return false, nil
	}
	delete(byInstance, key.InstanceID)
	if len(byInstance) == 0 {
		delete(s.data, key.Defindex)
	}
	return true, nil
}

// Get returns the listing at key. Returns ErrNotFound if not exists.
func (s *ListingStore) Get(_ context.Context, key domain.ListingKey) (domain.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.data[key.Defindex][key.InstanceID]
	if !ok {
		return domain.Listing{}, storage.Wrap("get", key.String(), storage.ErrNotFound)
	}
	return l.Clone(), nil
}

// ListByItemType returns every listing of an item type.
func (s *ListingStore) ListByItemType(_ context.Context, defindex uint32) ([]domain.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byInstance := s.data[defindex]
	result := make([]domain.Listing, 0, len(byInstance))
	for _, l := range byInstance {
		result = append(result, l.Clone())
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Key.InstanceID < result[j].Key.InstanceID
	})

	return result, nil
}

// QueryByItemType sweeps the item type at now-ttl and lists the survivors.
func (s *ListingStore) QueryByItemType(ctx context.Context, defindex uint32, now time.Time, ttl time.Duration) ([]domain.Listing, error) {
	if _, err := s.Sweep(ctx, defindex, now.Add(-ttl)); err != nil {
		return nil, err
	}
	return s.ListByItemType(ctx, defindex)
}

// Sweep removes listings of an item type bumped before cutoff.
func (s *ListingStore) Sweep(_ context.Context, defindex uint32, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.sweepLocked(defindex, cutoff), nil
}

// SweepAll removes listings of every item type bumped before cutoff.
func (s *ListingStore) SweepAll(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for defindex := range s.data {
		removed += s.sweepLocked(defindex, cutoff)
	}
	return removed, nil
}

func (s *ListingStore) sweepLocked(defindex uint32, cutoff time.Time) int {
	byInstance, ok := s.data[defindex]
	if !ok {
		return 0
	}

	removed := 0
	for id, l := range byInstance {
		if l.IsStale(cutoff) {
			delete(byInstance, id)
			removed++
		}
	}
	if len(byInstance) == 0 {
		delete(s.data, defindex)
	}
	return removed
}

// Len returns the number of stored listings.
func (s *ListingStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, byInstance := range s.data {
		n += len(byInstance)
	}
	return n
}

var _ storage.ListingStore = (*ListingStore)(nil)
