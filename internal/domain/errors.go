// Package domain contains domain errors used throughout the application.
package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions.
var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionLimit     = errors.New("session limit reached for project")
	ErrProjectNotFound  = errors.New("project not found")
	ErrNotAMember       = errors.New("session does not belong to project")
	ErrInvalidName      = errors.New("invalid session name: name cannot be empty")
	ErrInvalidPosition  = errors.New("invalid session position")
	ErrHubNotRunning    = errors.New("event hub is not running")
	ErrSubscriberClosed = errors.New("subscriber is closed")
)

// Error codes for client responses.
const (
	ErrCodeSessionNotFound = "SESSION_NOT_FOUND"
	ErrCodeSessionLimit    = "SESSION_LIMIT"
	ErrCodeProjectNotFound = "PROJECT_NOT_FOUND"
	ErrCodeInvalidPayload  = "INVALID_PAYLOAD"
	ErrCodeSpawnFailed     = "SPAWN_FAILED"
	ErrCodeInternalError   = "INTERNAL_ERROR"
)

// SpawnError represents a failure to start a shell process.
type SpawnError struct {
	SessionID string
	Err       error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn %s: %v", e.SessionID, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// ValidationError represents a validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}
