// Package domain provides the pure domain layer for registry entries.
//
// This package follows the same layering rules as the rest of the codebase:
//   - Defines the Entry entity with encapsulated state and behavior
//   - Defines the EntryRepository interface for persistence abstraction
//   - Provides domain-specific error sentinels
//
// The domain layer has no knowledge of infrastructure concerns (databases,
// RPC transports, file I/O).
package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Entry represents one registered instance: a sequential identifier bound to
// a deployed address and a mutable metadata URI. Fields are unexported to
// enforce encapsulation; use the constructor and getters.
//
// Lifecycle: an entry is created live, may have its metadata updated any
// number of times, and may be destroyed exactly once. Destruction clears the
// address and metadata but the identifier stays permanently reserved.
type Entry struct {
	id          uint64
	address     common.Address
	metadataURI string
	saltHex     string // hex-encoded salt for deterministic creates, empty otherwise

	createdAt   time.Time
	updatedAt   time.Time
	destroyedAt *time.Time
}

// NewEntry creates a live entry for a freshly deployed instance.
// The identifier is assigned by the repository on Register.
func NewEntry(address common.Address, metadataURI string) *Entry {
	now := time.Now()
	return &Entry{
		address:     address,
		metadataURI: metadataURI,
		createdAt:   now,
		updatedAt:   now,
	}
}

// ReconstituteEntry rebuilds an entry from persisted state.
// Intended for repository implementations only.
func ReconstituteEntry(
	id uint64,
	address common.Address,
	metadataURI string,
	saltHex string,
	createdAt time.Time,
	updatedAt time.Time,
	destroyedAt *time.Time,
) *Entry {
	return &Entry{
		id:          id,
		address:     address,
		metadataURI: metadataURI,
		saltHex:     saltHex,
		createdAt:   createdAt,
		updatedAt:   updatedAt,
		destroyedAt: destroyedAt,
	}
}

// ID returns the sequential identifier assigned at registration.
func (e *Entry) ID() uint64 { return e.id }

// SetID assigns the identifier. Called by repositories during Register.
func (e *Entry) SetID(id uint64) { e.id = id }

// Address returns the deployed instance address, or the zero address after
// destruction.
func (e *Entry) Address() common.Address { return e.address }

// MetadataURI returns the stored metadata verbatim.
func (e *Entry) MetadataURI() string { return e.metadataURI }

// SaltHex returns the hex-encoded creation salt, empty for direct creates.
func (e *Entry) SaltHex() string { return e.saltHex }

// SetSaltHex records the salt used for a deterministic create.
func (e *Entry) SetSaltHex(s string) { e.saltHex = s }

// Alive reports whether the entry has not been destroyed.
func (e *Entry) Alive() bool { return e.destroyedAt == nil }

// SetMetadataURI overwrites the metadata unconditionally.
// Liveness is intentionally not checked here; the read path is what rejects
// destroyed entries.
func (e *Entry) SetMetadataURI(uri string) {
	e.metadataURI = uri
	e.updatedAt = time.Now()
}

// Destroy tombstones the entry: the address and metadata are cleared and the
// identifier becomes permanently unusable for reads. Destroying an already
// destroyed entry is a no-op.
func (e *Entry) Destroy() {
	if e.destroyedAt != nil {
		return
	}
	now := time.Now()
	e.address = common.Address{}
	e.metadataURI = ""
	e.destroyedAt = &now
	e.updatedAt = now
}

// CreatedAt returns the registration time.
func (e *Entry) CreatedAt() time.Time { return e.createdAt }

// UpdatedAt returns the last mutation time.
func (e *Entry) UpdatedAt() time.Time { return e.updatedAt }

// DestroyedAt returns the tombstone time, or nil while the entry is live.
func (e *Entry) DestroyedAt() *time.Time { return e.destroyedAt }
