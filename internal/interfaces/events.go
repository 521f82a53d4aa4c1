package interfaces

import (
	"context"

	"github.com/ternarybob/recondo/internal/models"
)

// EventHandler processes a published event. Errors are logged, never propagated
// to the publisher.
type EventHandler func(ctx context.Context, event models.Event) error

// EventService is the typed in-process pub/sub bus
type EventService interface {
	Subscribe(eventType models.EventType, handler EventHandler) error
	Publish(ctx context.Context, event models.Event) error
	PublishSync(ctx context.Context, event models.Event) error
	Close() error
}
