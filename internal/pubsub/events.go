// Package pubsub provides a generic publish/subscribe broker used to fan out
// registry lifecycle notifications to indexers and API subscribers.
package pubsub

import (
	"context"
	"time"
)

// Event wraps a published payload with delivery metadata.
type Event[T any] struct {
	Payload   T
	Timestamp time.Time
}

// Subscriber provides a subscription channel for events.
type Subscriber[T any] interface {
	Subscribe(ctx context.Context) <-chan Event[T]
}

// Publisher allows publishing events with a typed payload.
type Publisher[T any] interface {
	Publish(payload T)
}
