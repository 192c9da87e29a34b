package terminal

import (
	"os"
	"os/exec"
	"sync"
)

// Attachment is a live subscription to one session's output. A UI surface
// holds exactly one Attachment per session it renders; closing it (or
// abandoning it without closing) detaches the surface and routes output
// back into the session's buffer.
type Attachment struct {
	output chan []byte
	exit   chan int
	done   chan struct{}
	once   sync.Once
}

func newAttachment() *Attachment {
	return &Attachment{
		output: make(chan []byte, 64),
		exit:   make(chan int, 1),
		done:   make(chan struct{}),
	}
}

// Output returns the channel carrying output chunks in production order.
// The channel is closed after the process exits.
func (a *Attachment) Output() <-chan []byte {
	return a.output
}

// Exit returns a channel that delivers the process exit code at most once,
// after all output has been delivered.
func (a *Attachment) Exit() <-chan int {
	return a.exit
}

// Done returns a channel that's closed once the attachment is detached,
// either explicitly via Close or because the session was killed.
func (a *Attachment) Done() <-chan struct{} {
	return a.done
}

// Close detaches the surface. Safe to call multiple times and from any
// goroutine; output produced afterwards is buffered by the session.
func (a *Attachment) Close() {
	a.once.Do(func() {
		close(a.done)
	})
}

// Session is one live shell process plus its buffering and attachment
// state. All fields behind mu are owned by the controller and the
// session's own read loop.
type Session struct {
	ID        string
	ProjectID string
	WorkDir   string

	cmd  *exec.Cmd
	ptmx *os.File

	// readDone is closed when the read loop has drained the pty, so exit
	// notification always follows the last output chunk.
	readDone chan struct{}

	mu       sync.Mutex
	buf      *TailBuffer
	attached *Attachment
}

// Info is a read-only snapshot of a live session for listings.
type Info struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	WorkDir   string `json:"work_dir"`
	PID       int    `json:"pid"`
	Attached  bool   `json:"attached"`
}

func (s *Session) info() Info {
	s.mu.Lock()
	attached := s.attached != nil
	s.mu.Unlock()

	pid := 0
	if s.cmd != nil && s.cmd.Process != nil {
		pid = s.cmd.Process.Pid
	}
	return Info{
		ID:        s.ID,
		ProjectID: s.ProjectID,
		WorkDir:   s.WorkDir,
		PID:       pid,
		Attached:  attached,
	}
}

// deliver routes one output chunk to the attached surface, or to the
// buffer when no surface is attached. A surface that went away without
// detaching is detected here (its done channel is closed) and treated as
// an implicit detach.
func (s *Session) deliver(chunk []byte) {
	for {
		s.mu.Lock()
		a := s.attached
		if a == nil {
			s.buf.Write(chunk)
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		select {
		case a.output <- chunk:
			return
		case <-a.done:
			s.mu.Lock()
			if s.attached == a {
				s.attached = nil
			}
			s.mu.Unlock()
			// Retry against the current attachment state so the chunk
			// lands in the buffer (or a replacement surface) in order.
		}
	}
}

// detach clears the given attachment if it is still current and closes it.
func (s *Session) detach(a *Attachment) {
	s.mu.Lock()
	if s.attached == a {
		s.attached = nil
	}
	s.mu.Unlock()
	a.Close()
}

// attach installs a new attachment, replacing any previous one, and drains
// the buffered output exactly once.
func (s *Session) attach() (*Attachment, []byte) {
	a := newAttachment()

	s.mu.Lock()
	prev := s.attached
	buffered := s.buf.Drain()
	s.attached = a
	s.mu.Unlock()

	if prev != nil {
		prev.Close()
	}
	return a, buffered
}

// finish runs after the process exited and the read loop drained the pty:
// it notifies the attached surface (if any) and releases buffered output.
func (s *Session) finish(exitCode int) {
	s.mu.Lock()
	a := s.attached
	s.attached = nil
	s.buf.Reset()
	s.mu.Unlock()

	if a != nil {
		a.exit <- exitCode
		close(a.output)
	}
}
