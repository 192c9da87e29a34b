package events

// TerminalSpawnedPayload describes a freshly started shell session.
type TerminalSpawnedPayload struct {
	SessionID string `json:"session_id"`
	ProjectID string `json:"project_id"`
	WorkDir   string `json:"work_dir"`
	PID       int    `json:"pid"`
}

// TerminalExitedPayload describes an unexpected process exit.
// This is informational, not an error: the id may be respawned later.
type TerminalExitedPayload struct {
	SessionID string `json:"session_id"`
	ProjectID string `json:"project_id"`
	ExitCode  int    `json:"exit_code"`
}

// TerminalKilledPayload describes an explicit kill requested by the UI.
type TerminalKilledPayload struct {
	SessionID string `json:"session_id"`
	ProjectID string `json:"project_id"`
}

// StateChangedPayload signals that a project's terminal tab layout changed
// (session added/closed/renamed/reordered, active tab or split view toggled).
type StateChangedPayload struct {
	ProjectID string `json:"project_id"`
}

// HeartbeatPayload carries periodic liveness info for connected clients.
type HeartbeatPayload struct {
	Sequence      int64 `json:"sequence"`
	LiveSessions  int   `json:"live_sessions"`
	UptimeSeconds int64 `json:"uptime_seconds"`
}

// NewTerminalSpawnedEvent creates a new terminal_spawned event.
func NewTerminalSpawnedEvent(projectID, sessionID, workDir string, pid int) *BaseEvent {
	return NewEventWithContext(EventTypeTerminalSpawned, TerminalSpawnedPayload{
		SessionID: sessionID,
		ProjectID: projectID,
		WorkDir:   workDir,
		PID:       pid,
	}, projectID, sessionID)
}

// NewTerminalExitedEvent creates a new terminal_exited event.
func NewTerminalExitedEvent(projectID, sessionID string, exitCode int) *BaseEvent {
	return NewEventWithContext(EventTypeTerminalExited, TerminalExitedPayload{
		SessionID: sessionID,
		ProjectID: projectID,
		ExitCode:  exitCode,
	}, projectID, sessionID)
}

// NewTerminalKilledEvent creates a new terminal_killed event.
func NewTerminalKilledEvent(projectID, sessionID string) *BaseEvent {
	return NewEventWithContext(EventTypeTerminalKilled, TerminalKilledPayload{
		SessionID: sessionID,
		ProjectID: projectID,
	}, projectID, sessionID)
}

// NewStateChangedEvent creates a new terminal_state_changed event.
func NewStateChangedEvent(projectID string) *BaseEvent {
	return NewEventWithContext(EventTypeStateChanged, StateChangedPayload{
		ProjectID: projectID,
	}, projectID, "")
}

// NewHeartbeatEvent creates a new heartbeat event.
func NewHeartbeatEvent(seq int64, liveSessions int, uptimeSeconds int64) *BaseEvent {
	return NewEvent(EventTypeHeartbeat, HeartbeatPayload{
		Sequence:      seq,
		LiveSessions:  liveSessions,
		UptimeSeconds: uptimeSeconds,
	})
}
