package memory

import (
	"context"
	"sort"
	"sync"

	"listing-cache/internal/domain"
	"listing-cache/internal/storage"
)

// ItemDefinitionStore is an in-memory implementation of storage.ItemDefinitionStore.
type ItemDefinitionStore struct {
	mu   sync.RWMutex
	data map[string]uint32 // keyed by item name
}

// NewItemDefinitionStore creates a new in-memory item definition store.
func NewItemDefinitionStore() *ItemDefinitionStore {
	return &ItemDefinitionStore{
		data: make(map[string]uint32),
	}
}

// RecordItem stores or replaces the defindex of an item name.
func (s *ItemDefinitionStore) RecordItem(_ context.Context, name string, defindex uint32) error {
	if name == "" {
		return storage.Wrap("record_item", name, storage.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[name] = defindex
	return nil
}

// LookupItem returns the defindex of an item name. Returns ErrNotFound if not exists.
func (s *ItemDefinitionStore) LookupItem(_ context.Context, name string) (uint32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	defindex, ok := s.data[name]
	if !ok {
		return 0, storage.Wrap("lookup_item", name, storage.ErrNotFound)
	}
	return defindex, nil
}

// ListItems returns all known definitions ordered by name.
func (s *ItemDefinitionStore) ListItems(_ context.Context) ([]domain.ItemDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.ItemDefinition, 0, len(s.data))
	for name, defindex := range s.data {
		result = append(result, domain.ItemDefinition{Name: name, Defindex: defindex})
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})

	return result, nil
}

var _ storage.ItemDefinitionStore = (*ItemDefinitionStore)(nil)
