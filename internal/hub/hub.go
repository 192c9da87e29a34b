// Package hub implements the central event hub for deckterm.
//
// The hub carries lifecycle events only (spawned/exited/state changed).
// Raw terminal output never goes through the hub; it is delivered through
// per-session attachments owned by the terminal controller.
package hub

import (
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/taskdeck/deckterm/internal/domain"
	"github.com/taskdeck/deckterm/internal/domain/events"
	"github.com/taskdeck/deckterm/internal/domain/ports"
)

// Hub fans lifecycle events out to registered subscribers. Registration,
// removal and delivery all go through one goroutine started by Start, so
// subscribers never observe events concurrently with their own removal.
type Hub struct {
	events     chan events.Event
	register   chan ports.Subscriber
	unregister chan string
	done       chan struct{}

	mu          sync.RWMutex
	subscribers map[string]ports.Subscriber
	running     bool
}

// New creates a new Hub.
func New() *Hub {
	return &Hub{
		events:      make(chan events.Event, 256),
		register:    make(chan ports.Subscriber),
		unregister:  make(chan string),
		done:        make(chan struct{}),
		subscribers: make(map[string]ports.Subscriber),
	}
}

// Start launches the dispatch loop. Starting a running hub is a no-op.
func (h *Hub) Start() error {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return nil
	}
	h.running = true
	h.mu.Unlock()

	log.Debug().Msg("event hub started")

	go h.run()
	return nil
}

// Stop shuts the dispatch loop down and closes every subscriber.
func (h *Hub) Stop() error {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return nil
	}
	h.running = false
	h.mu.Unlock()

	close(h.done)

	h.mu.Lock()
	for _, sub := range h.subscribers {
		_ = sub.Close()
	}
	h.subscribers = make(map[string]ports.Subscriber)
	h.mu.Unlock()

	log.Debug().Msg("event hub stopped")
	return nil
}

func (h *Hub) run() {
	for {
		select {
		case <-h.done:
			return

		case sub := <-h.register:
			h.mu.Lock()
			h.subscribers[sub.ID()] = sub
			h.mu.Unlock()
			log.Debug().Str("subscriber_id", sub.ID()).Msg("subscriber registered")

		case id := <-h.unregister:
			h.mu.Lock()
			if sub, ok := h.subscribers[id]; ok {
				_ = sub.Close()
				delete(h.subscribers, id)
			}
			h.mu.Unlock()
			log.Debug().Str("subscriber_id", id).Msg("subscriber unregistered")

		case event := <-h.events:
			h.dispatch(event)
		}
	}
}

// dispatch delivers one event to every subscriber. A subscriber whose
// Send fails is queued for removal rather than removed inline, because
// removal needs the write lock.
func (h *Hub) dispatch(event events.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, sub := range h.subscribers {
		err := sub.Send(event)
		if err == nil {
			continue
		}
		log.Warn().
			Str("subscriber_id", id).
			Err(err).
			Msg("failed to send event to subscriber")
		go func(subID string) {
			select {
			case h.unregister <- subID:
			default:
			}
		}(id)
	}
}

// Publish queues an event for delivery to all subscribers. Events are
// dropped, with a warning, when the hub is not running or the queue is
// full; lifecycle events are advisory and publishers never block on them.
func (h *Hub) Publish(event events.Event) {
	if !h.IsRunning() {
		log.Warn().
			Err(domain.ErrHubNotRunning).
			Str("event_type", string(event.Type())).
			Msg("event dropped")
		return
	}

	select {
	case h.events <- event:
		log.Trace().
			Str("event_type", string(event.Type())).
			Msg("event published")
	default:
		log.Warn().
			Str("event_type", string(event.Type())).
			Msg("event dropped: queue full")
	}
}

// Subscribe adds a new subscriber.
func (h *Hub) Subscribe(sub ports.Subscriber) {
	select {
	case h.register <- sub:
	case <-h.done:
	}
}

// Unsubscribe removes a subscriber by ID.
func (h *Hub) Unsubscribe(id string) {
	select {
	case h.unregister <- id:
	case <-h.done:
	}
}

// SubscriberCount returns the number of active subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// IsRunning returns true if the hub is running.
func (h *Hub) IsRunning() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.running
}
