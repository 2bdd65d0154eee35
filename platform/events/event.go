// Package events provides the in-process event bus that carries funnel side
// effects (emails, reminders, receipts) away from the request path.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event is implemented by every domain event.
type Event interface {
	// EventName is the subscription key, e.g. "funnel.lead.captured".
	EventName() string
	EventID() uuid.UUID
	OccurredAt() time.Time
}

// BaseEvent carries the identity and timestamp shared by all events.
// Handlers use EventID to make their side effects idempotent.
type BaseEvent struct {
	ID        uuid.UUID `json:"eventId"`
	Timestamp time.Time `json:"timestamp"`
}

func (e BaseEvent) EventID() uuid.UUID { return e.ID }

func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }

// NewBaseEvent stamps a new event with a fresh ID and the current UTC time.
func NewBaseEvent() BaseEvent {
	return BaseEvent{ID: uuid.New(), Timestamp: time.Now().UTC()}
}

// Handler processes events it subscribed to.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// Bus publishes events to subscribers by name.
type Bus interface {
	// Publish hands the event to its handlers without waiting for them.
	Publish(ctx context.Context, event Event)
	// PublishSync runs the handlers inline and returns the first error.
	PublishSync(ctx context.Context, event Event) error
	Subscribe(eventName string, handler Handler)
}
