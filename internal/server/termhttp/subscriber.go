package termhttp

import (
	"github.com/taskdeck/deckterm/internal/domain/events"
	"github.com/taskdeck/deckterm/internal/hub"
)

// ClientSubscriber bridges hub events onto a WebSocket client. Events
// queue on a ChannelSubscriber and a pump goroutine serializes them as
// their own JSON documents, separate from the terminal data frames, so a
// slow socket sheds events instead of stalling the hub's dispatch loop.
type ClientSubscriber struct {
	queue  *hub.ChannelSubscriber
	client *Client
}

// NewClientSubscriber creates a subscriber from a WebSocket client and
// starts its delivery pump.
func NewClientSubscriber(client *Client) *ClientSubscriber {
	s := &ClientSubscriber{
		queue:  hub.NewChannelSubscriber(client.ID(), 64),
		client: client,
	}
	go s.pump()
	return s
}

// pump forwards queued events to the client until either side goes away.
func (s *ClientSubscriber) pump() {
	for {
		select {
		case event, ok := <-s.queue.Events():
			if !ok {
				return
			}
			data, err := event.ToJSON()
			if err != nil {
				continue
			}
			s.client.Send(data)

		case <-s.client.Done():
			_ = s.queue.Close()
			return
		}
	}
}

// ID returns the subscriber's unique identifier.
func (s *ClientSubscriber) ID() string {
	return s.queue.ID()
}

// Send queues an event for delivery to the client.
func (s *ClientSubscriber) Send(event events.Event) error {
	return s.queue.Send(event)
}

// Close closes the subscriber. The client's connection is left to the
// server's own teardown.
func (s *ClientSubscriber) Close() error {
	return s.queue.Close()
}

// Done returns a channel that's closed when the subscriber is done.
func (s *ClientSubscriber) Done() <-chan struct{} {
	return s.queue.Done()
}
