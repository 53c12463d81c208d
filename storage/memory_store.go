package storage

import (
	"sync"

	"price-tracker/models"
)

// Compile-time check that MemoryStore satisfies PriceStore.
var _ PriceStore = (*MemoryStore)(nil)

// MemoryStore keeps the price history in process memory only.
// It is safe for concurrent use; used by tests and dry runs.
type MemoryStore struct {
	mu sync.RWMutex
	t  *table
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{t: newTable()}
}

// Upsert replaces the records of date.
func (m *MemoryStore) Upsert(date string, records []*models.ProductPriceRecord) error {
	if err := checkUpsert(date, records); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.t.replace(date, records)
	return nil
}

// RecordsFor returns a copy of the records of date.
func (m *MemoryStore) RecordsFor(date string) ([]*models.ProductPriceRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.t.recordsFor(date), nil
}

// Dates returns the stored dates, ascending.
func (m *MemoryStore) Dates() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.t.dates(), nil
}

func (m *MemoryStore) Close() error { return nil }
