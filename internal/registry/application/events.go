package application

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// EventType discriminates registry lifecycle events.
type EventType string

const (
	EventInstanceCreated   EventType = "instance.created"
	EventMetadataUpdated   EventType = "metadata.updated"
	EventInstanceDestroyed EventType = "instance.destroyed"
)

// RegistryEvent is published on the service broker after every committed
// mutation. Subscribers (SSE clients, the CLI watch mode) receive it
// asynchronously; a slow subscriber never blocks the mutation.
type RegistryEvent struct {
	EventID     string         `json:"event_id"`
	Type        EventType      `json:"type"`
	EntryID     uint64         `json:"entry_id"`
	Address     common.Address `json:"address"`
	MetadataURI string         `json:"metadata_uri,omitempty"`
	OccurredAt  time.Time      `json:"occurred_at"`
}

func newEvent(t EventType, entryID uint64, address common.Address, metadataURI string) RegistryEvent {
	return RegistryEvent{
		EventID:     uuid.NewString(),
		Type:        t,
		EntryID:     entryID,
		Address:     address,
		MetadataURI: metadataURI,
		OccurredAt:  time.Now(),
	}
}
