package termhttp

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/taskdeck/deckterm/internal/domain"
	"github.com/taskdeck/deckterm/internal/hub"
	"github.com/taskdeck/deckterm/internal/terminal"
)

// conn tracks the per-connection server state: which sessions the client
// is attached to and its lifecycle event subscription, if any.
type conn struct {
	client *Client

	mu          sync.Mutex
	attachments map[string]*terminal.Attachment
	subscriber  *hub.ProjectFilteredSubscriber
}

func newConn(client *Client) *conn {
	return &conn{
		client:      client,
		attachments: make(map[string]*terminal.Attachment),
	}
}

// takeAttachment removes and returns the attachment for a session.
func (c *conn) takeAttachment(sessionID string) *terminal.Attachment {
	c.mu.Lock()
	defer c.mu.Unlock()
	a := c.attachments[sessionID]
	delete(c.attachments, sessionID)
	return a
}

// putAttachment records an attachment, returning any previous one for the
// same session so the caller can detach it.
func (c *conn) putAttachment(sessionID string, a *terminal.Attachment) *terminal.Attachment {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.attachments[sessionID]
	c.attachments[sessionID] = a
	return prev
}

// drainAttachments removes and returns all attachments.
func (c *conn) drainAttachments() map[string]*terminal.Attachment {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.attachments
	c.attachments = make(map[string]*terminal.Attachment)
	return out
}

// handleFrame dispatches one client frame.
func (s *Server) handleFrame(clientID string, message []byte) {
	cn := s.getConn(clientID)
	if cn == nil {
		return
	}

	var frame ClientFrame
	if err := json.Unmarshal(message, &frame); err != nil {
		cn.client.Send(errorFrame(domain.ErrCodeInvalidPayload, "malformed frame"))
		return
	}

	switch frame.Type {
	case FrameAttach:
		s.handleAttach(cn, &frame)
	case FrameDetach:
		s.handleDetach(cn, &frame)
	case FrameSpawn:
		s.handleSpawn(cn, &frame)
	case FrameInput:
		s.handleInput(cn, &frame)
	case FrameResize:
		s.controller.Resize(frame.SessionID, frame.Cols, frame.Rows)
	case FrameKill:
		s.controller.Kill(frame.SessionID)
	case FrameSubscribe:
		s.handleSubscribe(cn, &frame)
	default:
		cn.client.Send(errorFrame(domain.ErrCodeInvalidPayload, "unknown frame type: "+frame.Type))
	}
}

// handleSpawn ensures a live session exists for the id. An already-live
// session is reused untouched; the client attaches separately either way.
func (s *Server) handleSpawn(cn *conn, frame *ClientFrame) {
	if frame.SessionID == "" || frame.ProjectID == "" {
		cn.client.Send(errorFrame(domain.ErrCodeInvalidPayload, "spawn requires session_id and project_id"))
		return
	}

	if s.controller.Exists(frame.SessionID) {
		cn.client.Send(spawnedFrame(frame.SessionID, true))
		return
	}

	workDir := frame.Cwd
	if workDir == "" && s.registry != nil {
		workDir, _ = s.registry.PathFor(frame.ProjectID)
	}

	if !s.controller.Spawn(frame.SessionID, frame.ProjectID, workDir) {
		cn.client.Send(errorFrame(domain.ErrCodeSpawnFailed, "failed to start shell for "+frame.SessionID))
		return
	}
	cn.client.Send(spawnedFrame(frame.SessionID, false))
}

// handleAttach connects the client to a session's output stream. The
// buffered backlog is sent first, then live output follows in order.
func (s *Server) handleAttach(cn *conn, frame *ClientFrame) {
	if frame.SessionID == "" {
		cn.client.Send(errorFrame(domain.ErrCodeInvalidPayload, "attach requires session_id"))
		return
	}

	a, buffered, ok := s.controller.Attach(frame.SessionID)
	if !ok {
		cn.client.Send(errorFrame(domain.ErrCodeSessionNotFound, "no live session: "+frame.SessionID))
		return
	}

	if prev := cn.putAttachment(frame.SessionID, a); prev != nil {
		s.controller.Detach(frame.SessionID, prev)
	}

	cn.client.Send(attachedFrame(frame.SessionID))
	if len(buffered) > 0 {
		cn.client.Send(outputFrame(FrameBuffered, frame.SessionID, buffered))
	}

	go s.pumpOutput(cn, frame.SessionID, a)
}

func (s *Server) handleDetach(cn *conn, frame *ClientFrame) {
	if a := cn.takeAttachment(frame.SessionID); a != nil {
		s.controller.Detach(frame.SessionID, a)
	}
}

func (s *Server) handleInput(cn *conn, frame *ClientFrame) {
	data, err := frame.Data()
	if err != nil {
		cn.client.Send(errorFrame(domain.ErrCodeInvalidPayload, "input data is not valid base64"))
		return
	}
	s.controller.Write(frame.SessionID, data)
}

// handleSubscribe registers the client for lifecycle events. An empty
// project_id subscribes to all projects.
func (s *Server) handleSubscribe(cn *conn, frame *ClientFrame) {
	cn.mu.Lock()
	sub := cn.subscriber
	cn.mu.Unlock()

	if sub == nil {
		sub = hub.NewProjectFilteredSubscriber(NewClientSubscriber(cn.client))
		cn.mu.Lock()
		cn.subscriber = sub
		cn.mu.Unlock()
		s.hub.Subscribe(sub)
	}

	if frame.ProjectID == "" {
		sub.SubscribeAll()
	} else {
		sub.SubscribeProject(frame.ProjectID)
	}
}

// pumpOutput forwards a session's output to the client until the
// attachment is replaced, the session exits, or the client goes away.
func (s *Server) pumpOutput(cn *conn, sessionID string, a *terminal.Attachment) {
	for {
		select {
		case chunk, ok := <-a.Output():
			if !ok {
				// Session finished; the exit code follows on its channel.
				select {
				case code := <-a.Exit():
					cn.client.Send(exitFrame(sessionID, code))
				default:
				}
				if cn.takeAttachment(sessionID) == a {
					a.Close()
				}
				return
			}
			cn.client.Send(outputFrame(FrameOutput, sessionID, chunk))

		case code := <-a.Exit():
			// All output is queued before the exit code is published, and
			// the output channel is closed right after it. Flush what is
			// left so the exit frame is the last thing the client sees.
			for chunk := range a.Output() {
				cn.client.Send(outputFrame(FrameOutput, sessionID, chunk))
			}
			cn.client.Send(exitFrame(sessionID, code))
			if cn.takeAttachment(sessionID) == a {
				a.Close()
			}
			return

		case <-a.Done():
			// Detached (replaced by another surface or killed).
			return

		case <-cn.client.Done():
			log.Debug().Str("session_id", sessionID).Msg("client gone, detaching surface")
			if cn.takeAttachment(sessionID) == a {
				s.controller.Detach(sessionID, a)
			}
			return
		}
	}
}
