package sqlite

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/zjrosen/registrar/internal/registry/domain"
)

// EntryModel represents the database row for the entries table.
// Fields map directly to SQL columns with Unix timestamps for time values.
type EntryModel struct {
	ID          int64
	Address     *string // nullable: NULL after destruction
	MetadataURI string
	Salt        *string // nullable: NULL for direct creates

	CreatedAt   int64  // Unix timestamp
	UpdatedAt   int64  // Unix timestamp
	DestroyedAt *int64 // Unix timestamp, nullable
}

// toEntryModel converts a domain Entry to a database EntryModel.
func toEntryModel(e *domain.Entry) *EntryModel {
	m := &EntryModel{
		ID:          int64(e.ID()),
		MetadataURI: e.MetadataURI(),
		CreatedAt:   e.CreatedAt().Unix(),
		UpdatedAt:   e.UpdatedAt().Unix(),
	}
	if e.Alive() {
		addr := e.Address().Hex()
		m.Address = &addr
	}
	if e.SaltHex() != "" {
		salt := e.SaltHex()
		m.Salt = &salt
	}
	if e.DestroyedAt() != nil {
		destroyedAt := e.DestroyedAt().Unix()
		m.DestroyedAt = &destroyedAt
	}
	return m
}

// toDomain converts a database EntryModel to a domain Entry.
func (m *EntryModel) toDomain() *domain.Entry {
	var address common.Address
	if m.Address != nil {
		address = common.HexToAddress(*m.Address)
	}
	var salt string
	if m.Salt != nil {
		salt = *m.Salt
	}
	var destroyedAt *time.Time
	if m.DestroyedAt != nil {
		t := time.Unix(*m.DestroyedAt, 0)
		destroyedAt = &t
	}
	return domain.ReconstituteEntry(
		uint64(m.ID),
		address,
		m.MetadataURI,
		salt,
		time.Unix(m.CreatedAt, 0),
		time.Unix(m.UpdatedAt, 0),
		destroyedAt,
	)
}
