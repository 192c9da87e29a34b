package hub

import (
	"sync"

	"github.com/taskdeck/deckterm/internal/domain"
	"github.com/taskdeck/deckterm/internal/domain/events"
	"github.com/taskdeck/deckterm/internal/domain/ports"
)

// ChannelSubscriber is a subscriber that sends events to a channel.
type ChannelSubscriber struct {
	id   string
	send chan events.Event
	done chan struct{}

	// mu orders Send against Close so an event is never sent on the
	// closed channel.
	mu     sync.Mutex
	closed bool
}

// NewChannelSubscriber creates a new channel-based subscriber.
func NewChannelSubscriber(id string, bufferSize int) *ChannelSubscriber {
	return &ChannelSubscriber{
		id:   id,
		send: make(chan events.Event, bufferSize),
		done: make(chan struct{}),
	}
}

// ID returns the subscriber's unique identifier.
func (s *ChannelSubscriber) ID() string {
	return s.id
}

// Send sends an event to the subscriber.
func (s *ChannelSubscriber) Send(event events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return domain.ErrSubscriberClosed
	}

	select {
	case s.send <- event:
		return nil
	default:
		// Channel full, subscriber is too slow
		return domain.ErrSubscriberClosed
	}
}

// Close closes the subscriber.
func (s *ChannelSubscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	close(s.done)
	close(s.send)
	return nil
}

// Done returns a channel that's closed when the subscriber is done.
func (s *ChannelSubscriber) Done() <-chan struct{} {
	return s.done
}

// Events returns the channel to receive events from.
func (s *ChannelSubscriber) Events() <-chan events.Event {
	return s.send
}

// ProjectFilteredSubscriber wraps a subscriber and filters events by project
// ID. Events without a project ID (global events such as heartbeats) are
// always forwarded. With no projects subscribed, all events are forwarded.
type ProjectFilteredSubscriber struct {
	inner    ports.Subscriber
	projects map[string]bool
	mu       sync.RWMutex
}

// NewProjectFilteredSubscriber wraps the given subscriber with a project filter.
func NewProjectFilteredSubscriber(inner ports.Subscriber) *ProjectFilteredSubscriber {
	return &ProjectFilteredSubscriber{
		inner:    inner,
		projects: make(map[string]bool),
	}
}

// ID returns the subscriber's unique identifier.
func (f *ProjectFilteredSubscriber) ID() string {
	return f.inner.ID()
}

// Send sends an event to the subscriber if it passes the filter.
func (f *ProjectFilteredSubscriber) Send(event events.Event) error {
	if !f.shouldForward(event) {
		return nil
	}
	return f.inner.Send(event)
}

// Close closes the subscriber.
func (f *ProjectFilteredSubscriber) Close() error {
	return f.inner.Close()
}

// Done returns a channel that's closed when the subscriber is done.
func (f *ProjectFilteredSubscriber) Done() <-chan struct{} {
	return f.inner.Done()
}

// SubscribeProject adds a project to the filter.
func (f *ProjectFilteredSubscriber) SubscribeProject(projectID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.projects[projectID] = true
}

// UnsubscribeProject removes a project from the filter.
func (f *ProjectFilteredSubscriber) UnsubscribeProject(projectID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.projects, projectID)
}

// SubscribeAll clears the filter, forwarding all events (default behavior).
func (f *ProjectFilteredSubscriber) SubscribeAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.projects = make(map[string]bool)
}

func (f *ProjectFilteredSubscriber) shouldForward(event events.Event) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if len(f.projects) == 0 {
		return true
	}
	projectID := event.GetProjectID()
	if projectID == "" {
		return true
	}
	return f.projects[projectID]
}

// LogSubscriber is a subscriber that logs events (useful for debugging).
type LogSubscriber struct {
	id    string
	done  chan struct{}
	logFn func(event events.Event)

	mu     sync.Mutex
	closed bool
}

// NewLogSubscriber creates a new log subscriber.
func NewLogSubscriber(id string, logFn func(event events.Event)) *LogSubscriber {
	return &LogSubscriber{
		id:    id,
		done:  make(chan struct{}),
		logFn: logFn,
	}
}

// ID returns the subscriber's unique identifier.
func (s *LogSubscriber) ID() string {
	return s.id
}

// Send logs the event.
func (s *LogSubscriber) Send(event events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return domain.ErrSubscriberClosed
	}
	if s.logFn != nil {
		s.logFn(event)
	}
	return nil
}

// Close closes the subscriber.
func (s *LogSubscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	close(s.done)
	return nil
}

// Done returns a channel that's closed when the subscriber is done.
func (s *LogSubscriber) Done() <-chan struct{} {
	return s.done
}
