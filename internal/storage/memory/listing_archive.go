package memory

import (
	"context"
	"sort"
	"sync"

	"listing-cache/internal/domain"
	"listing-cache/internal/storage"
)

// ListingArchive is an in-memory implementation of storage.ListingArchive.
type ListingArchive struct {
	mu      sync.RWMutex
	changes []storage.ListingChange
}

// NewListingArchive creates a new in-memory listing archive.
func NewListingArchive() *ListingArchive {
	return &ListingArchive{}
}

// Append writes changes in one batch.
func (a *ListingArchive) Append(_ context.Context, changes []storage.ListingChange) error {
	for _, c := range changes {
		if c.Key.IsZero() || (c.Op != storage.ChangeUpsert && c.Op != storage.ChangeDelete) {
			return storage.Wrap("append", c.Key.String(), storage.ErrInvalidInput)
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.changes = append(a.changes, changes...)
	return nil
}

// GetByKey returns the journal of one key ordered by observed time ASC.
func (a *ListingArchive) GetByKey(_ context.Context, key domain.ListingKey) ([]storage.ListingChange, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var result []storage.ListingChange
	for _, c := range a.changes {
		if c.Key == key {
			result = append(result, c)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].ObservedAt.Before(result[j].ObservedAt)
	})

	return result, nil
}

// Len returns the number of archived changes.
func (a *ListingArchive) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.changes)
}

var _ storage.ListingArchive = (*ListingArchive)(nil)
