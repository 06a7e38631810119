// Package memory provides an in-memory EntryRepository for tests and
// ephemeral registries.
package memory

import (
	"fmt"
	"sync"

	"github.com/zjrosen/registrar/internal/registry/domain"
)

// EntryRepository is a thread-safe in-memory implementation of
// domain.EntryRepository. Entries are stored and returned as copies so that
// callers only make mutations visible through Save, matching the durable
// store's commit semantics.
type EntryRepository struct {
	mu      sync.RWMutex
	entries map[uint64]*domain.Entry
	nextID  uint64
}

// NewEntryRepository creates an empty in-memory repository.
func NewEntryRepository() *EntryRepository {
	return &EntryRepository{
		entries: make(map[uint64]*domain.Entry),
	}
}

var _ domain.EntryRepository = (*EntryRepository)(nil)

func clone(e *domain.Entry) *domain.Entry {
	return domain.ReconstituteEntry(
		e.ID(), e.Address(), e.MetadataURI(), e.SaltHex(),
		e.CreatedAt(), e.UpdatedAt(), e.DestroyedAt(),
	)
}

// Register allocates the next sequential identifier and stores the entry.
func (r *EntryRepository) Register(entry *domain.Entry) error {
	if entry == nil {
		return fmt.Errorf("entry cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entry.SetID(r.nextID)
	r.entries[r.nextID] = clone(entry)
	r.nextID++
	return nil
}

// FindByID retrieves an entry by identifier.
func (r *EntryRepository) FindByID(id uint64) (*domain.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", domain.ErrEntryNotFound, id)
	}
	return clone(entry), nil
}

// Save persists mutations to an already registered entry.
func (r *EntryRepository) Save(entry *domain.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[entry.ID()]; !ok {
		return fmt.Errorf("%w: id %d", domain.ErrEntryNotFound, entry.ID())
	}
	r.entries[entry.ID()] = clone(entry)
	return nil
}

// NextID returns the identifier the next registration will assign.
func (r *EntryRepository) NextID() (uint64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.nextID, nil
}

// List retrieves entries matching the filter, ordered by identifier
// ascending.
func (r *EntryRepository) List(filter domain.ListFilter) ([]*domain.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var entries []*domain.Entry
	for id := uint64(0); id < r.nextID; id++ {
		entry, ok := r.entries[id]
		if !ok {
			continue
		}
		if !filter.IncludeDestroyed && !entry.Alive() {
			continue
		}
		entries = append(entries, clone(entry))
		if filter.Limit > 0 && len(entries) == filter.Limit {
			break
		}
	}
	return entries, nil
}

// Close is a no-op for the in-memory repository.
func (r *EntryRepository) Close() error {
	return nil
}
