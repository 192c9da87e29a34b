// Package ports defines the interfaces between deckterm's components.
package ports

import (
	"github.com/taskdeck/deckterm/internal/domain/events"
)

// Subscriber consumes lifecycle events from an EventHub. Implementations
// decide what delivery means: a channel, a WebSocket client, a log line.
type Subscriber interface {
	// ID returns a unique identifier for this subscriber.
	ID() string

	// Send delivers an event. It returns an error when the subscriber is
	// closed or cannot accept the event; the hub then drops the subscriber.
	Send(event events.Event) error

	// Close releases the subscriber. Safe to call more than once.
	Close() error

	// Done returns a channel that's closed when the subscriber is done.
	Done() <-chan struct{}
}

// EventHub distributes lifecycle events to subscribers.
type EventHub interface {
	// Start begins event dispatch.
	Start() error

	// Stop halts dispatch and closes all subscribers.
	Stop() error

	// Publish hands an event to the hub. Never blocks the caller.
	Publish(event events.Event)

	// Subscribe adds a new subscriber.
	Subscribe(sub Subscriber)

	// Unsubscribe removes a subscriber by ID.
	Unsubscribe(id string)

	// SubscriberCount returns the number of active subscribers.
	SubscriberCount() int
}
