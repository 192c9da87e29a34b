package terminal

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"sort"
	"sync"
	"time"

	"github.com/creack/pty"
	"github.com/taskdeck/deckterm/internal/domain"
	"github.com/taskdeck/deckterm/internal/domain/events"
	"github.com/taskdeck/deckterm/internal/domain/ports"
)

// Default geometry for a freshly spawned session. The UI surface resizes
// to its real dimensions immediately after attaching.
const (
	defaultCols = 80
	defaultRows = 24
)

// Options configure the controller.
type Options struct {
	// Shell is the command spawned per session. Empty means $SHELL,
	// falling back to /bin/bash.
	Shell string

	// ShellArgs are passed to the shell. Defaults to ["-il"] so each
	// session is an interactive login shell.
	ShellArgs []string

	// BufferSize caps the bytes retained per detached session.
	BufferSize int

	// PrewarmStagger is the delay between consecutive prewarm spawns.
	PrewarmStagger time.Duration
}

func (o *Options) fillDefaults() {
	if o.Shell == "" {
		o.Shell = os.Getenv("SHELL")
	}
	if o.Shell == "" {
		o.Shell = "/bin/bash"
	}
	if o.ShellArgs == nil {
		o.ShellArgs = []string{"-il"}
	}
	if o.BufferSize <= 0 {
		o.BufferSize = DefaultBufferSize
	}
	if o.PrewarmStagger <= 0 {
		o.PrewarmStagger = 250 * time.Millisecond
	}
}

// Controller owns the registry of live sessions and serializes spawn/kill
// so that a session id never maps to more than one live process.
type Controller struct {
	opts   Options
	hub    ports.EventHub
	logger *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewController creates a session controller.
func NewController(opts Options, hub ports.EventHub, logger *slog.Logger) *Controller {
	opts.fillDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		opts:     opts,
		hub:      hub,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// Spawn starts a shell process for the given session id. Any live process
// already registered under the id is terminated first, so the id maps to
// at most one process at all times. Returns false (and logs) on failure;
// spawn failures are never retried automatically.
func (c *Controller) Spawn(sessionID, projectID, workDir string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.sessions[sessionID]; ok {
		c.killLocked(existing)
	}

	workDir = resolveWorkDir(workDir)

	cmd := exec.Command(c.opts.Shell, c.opts.ShellArgs...)
	cmd.Dir = workDir
	cmd.Env = scrubEnv(os.Environ())

	// pty.StartWithSize makes the child a session leader with the pty as
	// its controlling terminal, so it already leads its own process group.
	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: defaultRows, Cols: defaultCols})
	if err != nil {
		c.logger.Error("failed to spawn session",
			"project_id", projectID,
			"shell", c.opts.Shell,
			"error", &domain.SpawnError{SessionID: sessionID, Err: err},
		)
		return false
	}

	s := &Session{
		ID:        sessionID,
		ProjectID: projectID,
		WorkDir:   workDir,
		cmd:       cmd,
		ptmx:      ptmx,
		readDone:  make(chan struct{}),
		buf:       NewTailBuffer(c.opts.BufferSize),
	}
	c.sessions[sessionID] = s

	go c.readLoop(s)
	go c.reap(s)

	c.logger.Info("spawned session",
		"session_id", sessionID,
		"project_id", projectID,
		"work_dir", workDir,
		"pid", cmd.Process.Pid,
	)
	if c.hub != nil {
		c.hub.Publish(events.NewTerminalSpawnedEvent(projectID, sessionID, workDir, cmd.Process.Pid))
	}
	return true
}

// Exists reports whether a live process is registered for the id.
func (c *Controller) Exists(sessionID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.sessions[sessionID]
	return ok
}

// Attach connects a UI surface to a session. It atomically marks the
// session attached, drains the output buffered while detached and returns
// it exactly once; any previously attached surface is replaced. Returns
// ok=false if no live session exists for the id (the caller should Spawn).
func (c *Controller) Attach(sessionID string) (*Attachment, []byte, bool) {
	c.mu.RLock()
	s := c.sessions[sessionID]
	c.mu.RUnlock()

	if s == nil {
		return nil, nil, false
	}
	a, buffered := s.attach()
	c.logger.Debug("surface attached",
		"session_id", sessionID,
		"buffered_bytes", len(buffered),
	)
	return a, buffered, true
}

// Detach disconnects a surface. Output produced afterwards is buffered.
func (c *Controller) Detach(sessionID string, a *Attachment) {
	if a == nil {
		return
	}
	c.mu.RLock()
	s := c.sessions[sessionID]
	c.mu.RUnlock()

	if s != nil {
		s.detach(a)
	} else {
		a.Close()
	}
}

// Write forwards keystroke bytes to the session's input. Writing to an
// unknown or dead session is a silent no-op: the UI may race ahead of
// process teardown notifications.
func (c *Controller) Write(sessionID string, data []byte) {
	c.mu.RLock()
	s := c.sessions[sessionID]
	c.mu.RUnlock()

	if s == nil {
		return
	}
	if _, err := s.ptmx.Write(data); err != nil {
		c.logger.Debug("write to session failed", "session_id", sessionID, "error", err)
	}
}

// Resize updates the session's terminal geometry. Ignored for non-positive
// dimensions or unknown ids; resize errors are logged, not propagated.
func (c *Controller) Resize(sessionID string, cols, rows int) {
	if cols <= 0 || rows <= 0 {
		return
	}
	c.mu.RLock()
	s := c.sessions[sessionID]
	c.mu.RUnlock()

	if s == nil {
		return
	}
	if err := pty.Setsize(s.ptmx, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)}); err != nil {
		c.logger.Warn("failed to resize session", "session_id", sessionID, "error", err)
	}
}

// Kill terminates the session's process, discards its buffer and removes
// it from the registry. Idempotent: killing an unknown id is a no-op.
func (c *Controller) Kill(sessionID string) {
	c.mu.Lock()
	s := c.sessions[sessionID]
	if s != nil {
		c.killLocked(s)
	}
	c.mu.Unlock()

	if s != nil {
		c.logger.Info("killed session", "session_id", sessionID, "project_id", s.ProjectID)
		if c.hub != nil {
			c.hub.Publish(events.NewTerminalKilledEvent(s.ProjectID, sessionID))
		}
	}
}

// KillProject terminates every session owned by the project. Ownership is
// the session's recorded project id, not a prefix match on the session id.
func (c *Controller) KillProject(projectID string) {
	c.mu.Lock()
	var killed []*Session
	for _, s := range c.sessions {
		if s.ProjectID == projectID {
			killed = append(killed, s)
		}
	}
	for _, s := range killed {
		c.killLocked(s)
	}
	c.mu.Unlock()

	for _, s := range killed {
		c.logger.Info("killed session", "session_id", s.ID, "project_id", projectID)
		if c.hub != nil {
			c.hub.Publish(events.NewTerminalKilledEvent(projectID, s.ID))
		}
	}
}

// KillAll terminates every live session. Used at application shutdown.
func (c *Controller) KillAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, s := range c.sessions {
		c.killLocked(s)
	}
	c.logger.Info("killed all sessions")
}

// killLocked terminates a session and removes it from the registry.
// Must hold c.mu.
func (c *Controller) killLocked(s *Session) {
	if err := terminateProcess(s.cmd); err != nil {
		c.logger.Debug("terminate failed", "session_id", s.ID, "error", err)
	}
	_ = s.ptmx.Close()

	s.mu.Lock()
	a := s.attached
	s.attached = nil
	s.buf.Reset()
	s.mu.Unlock()
	if a != nil {
		a.Close()
	}

	delete(c.sessions, s.ID)
}

// Sessions returns a snapshot of all live sessions, ordered by id.
func (c *Controller) Sessions() []Info {
	c.mu.RLock()
	result := make([]Info, 0, len(c.sessions))
	for _, s := range c.sessions {
		result = append(result, s.info())
	}
	c.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// Count returns the number of live sessions.
func (c *Controller) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sessions)
}

// PrewarmEntry names one persisted session to respawn at startup.
type PrewarmEntry struct {
	SessionID string
	ProjectID string
	WorkDir   string
}

// Prewarm spawns the given sessions in the background, the first
// immediately and each subsequent one after the configured stagger, so
// that reopening the application with many projects does not start dozens
// of shells in the same instant. Entries whose id already has a live
// process are skipped.
func (c *Controller) Prewarm(ctx context.Context, entries []PrewarmEntry) {
	if len(entries) == 0 {
		return
	}
	c.logger.Info("prewarming sessions", "count", len(entries))

	go func() {
		for i, e := range entries {
			if i > 0 {
				select {
				case <-time.After(c.opts.PrewarmStagger):
				case <-ctx.Done():
					return
				}
			}
			if c.Exists(e.SessionID) {
				continue
			}
			c.Spawn(e.SessionID, e.ProjectID, e.WorkDir)
		}
	}()
}

// readLoop copies pty output into the session's delivery path until the
// process side closes.
func (c *Controller) readLoop(s *Session) {
	defer close(s.readDone)

	buf := make([]byte, 4096)
	for {
		n, err := s.ptmx.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			s.deliver(chunk)
		}
		if err != nil {
			// EIO is the normal read error once the child exits.
			return
		}
	}
}

// reap waits for the process to exit and the read loop to drain, then
// notifies the attached surface and drops the session from the registry.
func (c *Controller) reap(s *Session) {
	err := s.cmd.Wait()
	<-s.readDone

	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}

	c.mu.Lock()
	current := c.sessions[s.ID] == s
	if current {
		delete(c.sessions, s.ID)
	}
	c.mu.Unlock()

	_ = s.ptmx.Close()

	if !current {
		// Killed or replaced by a respawn; nothing left to announce.
		return
	}

	s.finish(exitCode)

	c.logger.Info("session exited",
		"session_id", s.ID,
		"project_id", s.ProjectID,
		"exit_code", exitCode,
	)
	if c.hub != nil {
		c.hub.Publish(events.NewTerminalExitedEvent(s.ProjectID, s.ID, exitCode))
	}
}

// resolveWorkDir falls back to the user's home directory when the
// requested working directory does not exist.
func resolveWorkDir(dir string) string {
	if dir != "" {
		if fi, err := os.Stat(dir); err == nil && fi.IsDir() {
			return dir
		}
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "/"
	}
	return home
}
