package testutil

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/registrar/internal/registry/domain"
)

// EntryOption configures an entry before registration.
type EntryOption func(*entryData)

type entryData struct {
	address     common.Address
	metadataURI string
	saltHex     string
	destroyed   bool
}

// WithAddress sets the deployed address.
func WithAddress(hex string) EntryOption {
	return func(e *entryData) { e.address = common.HexToAddress(hex) }
}

// WithMetadata sets the metadata URI.
func WithMetadata(uri string) EntryOption {
	return func(e *entryData) { e.metadataURI = uri }
}

// WithSaltHex records the creation salt.
func WithSaltHex(salt string) EntryOption {
	return func(e *entryData) { e.saltHex = salt }
}

// Destroyed tombstones the entry after registration.
func Destroyed() EntryOption {
	return func(e *entryData) { e.destroyed = true }
}

// RegisterEntry builds and registers an entry, returning its identifier.
func RegisterEntry(t *testing.T, repo domain.EntryRepository, opts ...EntryOption) uint64 {
	t.Helper()

	data := entryData{
		address:     common.HexToAddress("0x00000000000000000000000000000000000000e1"),
		metadataURI: "ipfs://test",
	}
	for _, opt := range opts {
		opt(&data)
	}

	entry := domain.NewEntry(data.address, data.metadataURI)
	entry.SetSaltHex(data.saltHex)
	require.NoError(t, repo.Register(entry))

	if data.destroyed {
		entry.Destroy()
		require.NoError(t, repo.Save(entry))
	}
	return entry.ID()
}
