package cmd

import (
	"encoding/json"
	"os"
	"time"

	"github.com/zjrosen/registrar/internal/registry/domain"
)

// entryJSON is the CLI's JSON rendering of an entry.
type entryJSON struct {
	ID          uint64     `json:"id"`
	Address     string     `json:"address"`
	MetadataURI string     `json:"metadata_uri,omitempty"`
	Salt        string     `json:"salt,omitempty"`
	Destroyed   bool       `json:"destroyed"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DestroyedAt *time.Time `json:"destroyed_at,omitempty"`
}

func entryToJSON(entry *domain.Entry) entryJSON {
	return entryJSON{
		ID:          entry.ID(),
		Address:     entry.Address().Hex(),
		MetadataURI: entry.MetadataURI(),
		Salt:        entry.SaltHex(),
		Destroyed:   !entry.Alive(),
		CreatedAt:   entry.CreatedAt(),
		UpdatedAt:   entry.UpdatedAt(),
		DestroyedAt: entry.DestroyedAt(),
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
