// Package events defines all event types used in deckterm.
package events

import (
	"encoding/json"
	"time"
)

// EventType represents the type of event.
type EventType string

const (
	// Terminal lifecycle events. Raw terminal output is intentionally NOT
	// broadcast on the hub; it flows through per-session attachments so
	// that every UI surface only ever sees the session it asked for.
	EventTypeTerminalSpawned EventType = "terminal_spawned"
	EventTypeTerminalExited  EventType = "terminal_exited"
	EventTypeTerminalKilled  EventType = "terminal_killed"

	// State events
	EventTypeStateChanged EventType = "terminal_state_changed"

	// Connection events
	EventTypeHeartbeat EventType = "heartbeat"
)

// Event is the base interface for all events.
type Event interface {
	// Type returns the event type.
	Type() EventType

	// Timestamp returns when the event occurred.
	Timestamp() time.Time

	// ToJSON serializes the event to JSON.
	ToJSON() ([]byte, error)

	// GetProjectID returns the project ID (may be empty).
	GetProjectID() string

	// GetSessionID returns the session ID (may be empty).
	GetSessionID() string
}

// BaseEvent contains common fields for all events.
type BaseEvent struct {
	EventType EventType   `json:"event"`
	EventTime time.Time   `json:"timestamp"`
	ProjectID string      `json:"project_id,omitempty"`
	SessionID string      `json:"session_id,omitempty"`
	Payload   interface{} `json:"payload"`
}

// Type returns the event type.
func (e *BaseEvent) Type() EventType {
	return e.EventType
}

// Timestamp returns when the event occurred.
func (e *BaseEvent) Timestamp() time.Time {
	return e.EventTime
}

// ToJSON serializes the event to JSON.
func (e *BaseEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// GetProjectID returns the project ID.
func (e *BaseEvent) GetProjectID() string {
	return e.ProjectID
}

// GetSessionID returns the session ID.
func (e *BaseEvent) GetSessionID() string {
	return e.SessionID
}

// NewEvent creates a new base event with the given type and payload.
func NewEvent(eventType EventType, payload interface{}) *BaseEvent {
	return &BaseEvent{
		EventType: eventType,
		EventTime: time.Now().UTC(),
		Payload:   payload,
	}
}

// NewEventWithContext creates a new event with project and session context.
func NewEventWithContext(eventType EventType, payload interface{}, projectID, sessionID string) *BaseEvent {
	return &BaseEvent{
		EventType: eventType,
		EventTime: time.Now().UTC(),
		ProjectID: projectID,
		SessionID: sessionID,
		Payload:   payload,
	}
}
