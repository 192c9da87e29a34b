package termhttp

import (
	"encoding/base64"
	"encoding/json"

	"github.com/taskdeck/deckterm/internal/domain"
)

// Client-to-server frame types.
const (
	FrameAttach    = "attach"
	FrameDetach    = "detach"
	FrameSpawn     = "spawn"
	FrameInput     = "input"
	FrameResize    = "resize"
	FrameKill      = "kill"
	FrameSubscribe = "subscribe"
)

// Server-to-client frame types.
const (
	FrameAttached = "attached"
	FrameBuffered = "buffered"
	FrameOutput   = "output"
	FrameExit     = "exit"
	FrameSpawned  = "spawned"
	FrameError    = "error"
)

// ClientFrame is a command from a connected terminal client. Binary
// payloads travel base64-encoded in data_b64 so frames stay valid JSON
// regardless of what the shell emits.
type ClientFrame struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	ProjectID string `json:"project_id,omitempty"`
	Cwd       string `json:"cwd,omitempty"`
	DataB64   string `json:"data_b64,omitempty"`
	Cols      int    `json:"cols,omitempty"`
	Rows      int    `json:"rows,omitempty"`
}

// Data decodes the frame's base64 payload.
func (f *ClientFrame) Data() ([]byte, error) {
	return base64.StdEncoding.DecodeString(f.DataB64)
}

// ServerFrame is a message pushed to a terminal client.
type ServerFrame struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	DataB64   string `json:"data_b64,omitempty"`
	ExitCode  *int   `json:"exit_code,omitempty"`
	Reused    *bool  `json:"reused,omitempty"`
	Code      string `json:"code,omitempty"`
	Message   string `json:"message,omitempty"`
}

func outputFrame(frameType, sessionID string, data []byte) []byte {
	return marshalFrame(ServerFrame{
		Type:      frameType,
		SessionID: sessionID,
		DataB64:   base64.StdEncoding.EncodeToString(data),
	})
}

func attachedFrame(sessionID string) []byte {
	return marshalFrame(ServerFrame{Type: FrameAttached, SessionID: sessionID})
}

func exitFrame(sessionID string, code int) []byte {
	return marshalFrame(ServerFrame{Type: FrameExit, SessionID: sessionID, ExitCode: &code})
}

func spawnedFrame(sessionID string, reused bool) []byte {
	return marshalFrame(ServerFrame{Type: FrameSpawned, SessionID: sessionID, Reused: &reused})
}

func errorFrame(code, message string) []byte {
	return marshalFrame(ServerFrame{Type: FrameError, Code: code, Message: message})
}

func marshalFrame(f ServerFrame) []byte {
	data, err := json.Marshal(f)
	if err != nil {
		// ServerFrame contains only marshalable fields.
		return []byte(`{"type":"error","code":"` + domain.ErrCodeInternalError + `"}`)
	}
	return data
}
