package domain

// ListFilter provides filtering options for listing entries.
type ListFilter struct {
	// IncludeDestroyed includes tombstoned entries in results.
	// By default, destroyed entries are excluded.
	IncludeDestroyed bool

	// Limit restricts the number of entries returned.
	// If 0, no limit is applied.
	Limit int
}

// EntryRepository defines the persistence interface for Entry entities.
// Implementations may use SQLite, in-memory storage, or other backends, but
// must provide atomic per-call commit semantics: either the whole call's
// writes land or none do.
type EntryRepository interface {
	// Register allocates the next sequential identifier and persists the
	// entry under it, atomically. The assigned identifier is set on the
	// entry. Identifiers start at 0 and are never reused; a failed Register
	// consumes no identifier.
	Register(entry *Entry) error

	// FindByID retrieves an entry by identifier.
	// Returns ErrEntryNotFound (wrapped) for identifiers that were never
	// allocated. Tombstoned entries ARE returned; liveness interpretation is
	// the caller's concern.
	FindByID(id uint64) (*Entry, error)

	// Save persists mutations to an already registered entry.
	// Returns ErrEntryNotFound (wrapped) if the entry was never registered.
	Save(entry *Entry) error

	// NextID returns the identifier the next Register call will assign,
	// which equals the count of entries ever created.
	NextID() (uint64, error)

	// List retrieves entries matching the filter, ordered by identifier
	// ascending.
	List(filter ListFilter) ([]*Entry, error)

	// Close releases any resources held by the repository.
	Close() error
}
