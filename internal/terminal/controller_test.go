//go:build !windows

package terminal

import (
	"bytes"
	"io"
	"log/slog"
	"syscall"
	"testing"
	"time"

	"github.com/taskdeck/deckterm/internal/domain/events"
	"github.com/taskdeck/deckterm/internal/domain/ports"
	"github.com/taskdeck/deckterm/internal/testutil"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestController runs /bin/sh -c <script> for every spawned session.
func newTestController(t *testing.T, script string, hub ports.EventHub) *Controller {
	t.Helper()
	c := NewController(Options{
		Shell:     "/bin/sh",
		ShellArgs: []string{"-c", script},
	}, hub, testLogger())
	t.Cleanup(c.KillAll)
	return c
}

// waitFor polls until cond is true or the deadline passes.
func waitFor(t *testing.T, d time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestController_SpawnExistsKill(t *testing.T) {
	c := newTestController(t, "sleep 30", nil)

	if c.Exists("p1-term-a") {
		t.Error("Exists() = true before spawn")
	}

	if !c.Spawn("p1-term-a", "p1", t.TempDir()) {
		t.Fatal("Spawn() failed")
	}
	if !c.Exists("p1-term-a") {
		t.Error("Exists() = false after spawn")
	}
	if c.Count() != 1 {
		t.Errorf("Count() = %d, want 1", c.Count())
	}

	c.Kill("p1-term-a")
	if c.Exists("p1-term-a") {
		t.Error("Exists() = true after kill")
	}

	// Killing again is a no-op
	c.Kill("p1-term-a")
	c.Kill("never-existed")
}

func TestController_SpawnedShellLeadsOwnProcessGroup(t *testing.T) {
	// The shell must lead its own process group so the group SIGTERM in
	// Kill reaches its children, and the spawn must not carry conflicting
	// process attributes: on a session leader a setpgid after setsid fails
	// with EPERM, which would make every spawn fail.
	c := newTestController(t, "sleep 30", nil)

	if !c.Spawn("p1-term-a", "p1", t.TempDir()) {
		t.Fatal("Spawn() failed")
	}

	infos := c.Sessions()
	if len(infos) != 1 || infos[0].PID <= 0 {
		t.Fatalf("Sessions() = %+v, want one session with a pid", infos)
	}
	pgid, err := syscall.Getpgid(infos[0].PID)
	if err != nil {
		t.Fatalf("Getpgid(%d) error: %v", infos[0].PID, err)
	}
	if pgid != infos[0].PID {
		t.Errorf("pgid = %d, want %d (shell should lead its own group)", pgid, infos[0].PID)
	}
}

func TestController_SpawnReplacesLiveProcess(t *testing.T) {
	c := newTestController(t, "sleep 30", nil)

	if !c.Spawn("p1-term-a", "p1", t.TempDir()) {
		t.Fatal("first Spawn() failed")
	}
	if !c.Spawn("p1-term-a", "p1", t.TempDir()) {
		t.Fatal("second Spawn() failed")
	}

	if c.Count() != 1 {
		t.Errorf("Count() = %d after respawn under same id, want 1", c.Count())
	}
}

func TestController_SpawnFailureReturnsFalse(t *testing.T) {
	c := NewController(Options{
		Shell: "/nonexistent/shell/binary",
	}, nil, testLogger())

	if c.Spawn("p1-term-a", "p1", t.TempDir()) {
		t.Error("Spawn() = true with a shell that cannot exist")
	}
	if c.Exists("p1-term-a") {
		t.Error("failed spawn left a registered session")
	}
}

func TestController_BufferedOutputDeliveredOnceOnAttach(t *testing.T) {
	c := newTestController(t, "printf marker-bytes; sleep 30", nil)

	if !c.Spawn("p1-term-a", "p1", t.TempDir()) {
		t.Fatal("Spawn() failed")
	}

	// Output lands in the buffer while nothing is attached.
	waitFor(t, 5*time.Second, func() bool {
		a, buffered, ok := c.Attach("p1-term-a")
		if !ok {
			return false
		}
		defer c.Detach("p1-term-a", a)
		if bytes.Contains(buffered, []byte("marker-bytes")) {
			return true
		}
		return false
	}, "buffered output never contained the marker")

	// The previous Attach drained the buffer, and nothing new was
	// printed, so a fresh attach starts empty.
	a, buffered, ok := c.Attach("p1-term-a")
	if !ok {
		t.Fatal("Attach() failed on live session")
	}
	defer c.Detach("p1-term-a", a)
	if bytes.Contains(buffered, []byte("marker-bytes")) {
		t.Errorf("marker delivered twice; second attach saw %q", buffered)
	}
}

func TestController_OutputPrecedesExit(t *testing.T) {
	// The shell waits for input so the attach always wins the race
	// against process exit.
	c := newTestController(t, "read line; printf all-output-first; exit 3", nil)

	if !c.Spawn("p1-term-a", "p1", t.TempDir()) {
		t.Fatal("Spawn() failed")
	}

	a, buffered, ok := c.Attach("p1-term-a")
	if !ok {
		t.Fatal("Attach() failed")
	}
	c.Write("p1-term-a", []byte("\n"))

	var collected []byte
	collected = append(collected, buffered...)
	for chunk := range a.Output() {
		collected = append(collected, chunk...)
	}

	// The output channel closes only after the exit code was published.
	select {
	case code := <-a.Exit():
		if code != 3 {
			t.Errorf("exit code = %d, want 3", code)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no exit code after output channel closed")
	}

	if !bytes.Contains(collected, []byte("all-output-first")) {
		t.Errorf("collected output %q missing expected text", collected)
	}

	waitFor(t, 5*time.Second, func() bool { return !c.Exists("p1-term-a") },
		"exited session still registered")
}

func TestController_AttachReplacesPreviousSurface(t *testing.T) {
	c := newTestController(t, "sleep 30", nil)

	if !c.Spawn("p1-term-a", "p1", t.TempDir()) {
		t.Fatal("Spawn() failed")
	}

	first, _, ok := c.Attach("p1-term-a")
	if !ok {
		t.Fatal("first Attach() failed")
	}

	second, _, ok := c.Attach("p1-term-a")
	if !ok {
		t.Fatal("second Attach() failed")
	}
	defer c.Detach("p1-term-a", second)

	select {
	case <-first.Done():
	case <-time.After(time.Second):
		t.Error("first attachment not closed when replaced")
	}
}

func TestController_WriteReachesShell(t *testing.T) {
	c := newTestController(t, "read line; printf 'echoed:%s' \"$line\"", nil)

	if !c.Spawn("p1-term-a", "p1", t.TempDir()) {
		t.Fatal("Spawn() failed")
	}

	a, buffered, ok := c.Attach("p1-term-a")
	if !ok {
		t.Fatal("Attach() failed")
	}

	c.Write("p1-term-a", []byte("ping\n"))

	var collected []byte
	collected = append(collected, buffered...)
	deadline := time.After(5 * time.Second)
	for !bytes.Contains(collected, []byte("echoed:ping")) {
		select {
		case chunk, open := <-a.Output():
			if !open {
				t.Fatalf("output closed before echo; got %q", collected)
			}
			collected = append(collected, chunk...)
		case <-deadline:
			t.Fatalf("echo never arrived; got %q", collected)
		}
	}
}

func TestController_WriteToUnknownSessionIsNoop(t *testing.T) {
	c := newTestController(t, "sleep 30", nil)
	c.Write("no-such-session", []byte("data"))
}

func TestController_ResizeGuardsInvalidDimensions(t *testing.T) {
	c := newTestController(t, "sleep 30", nil)

	if !c.Spawn("p1-term-a", "p1", t.TempDir()) {
		t.Fatal("Spawn() failed")
	}

	// None of these may panic or kill the session.
	c.Resize("p1-term-a", 0, 24)
	c.Resize("p1-term-a", 80, 0)
	c.Resize("p1-term-a", -1, -1)
	c.Resize("no-such-session", 80, 24)
	c.Resize("p1-term-a", 120, 40)

	if !c.Exists("p1-term-a") {
		t.Error("session died after resize calls")
	}
}

func TestController_KillProject(t *testing.T) {
	c := newTestController(t, "sleep 30", nil)

	c.Spawn("p1-term-a", "p1", t.TempDir())
	c.Spawn("p1-term-b", "p1", t.TempDir())
	c.Spawn("p2-term-a", "p2", t.TempDir())

	c.KillProject("p1")

	if c.Exists("p1-term-a") || c.Exists("p1-term-b") {
		t.Error("project p1 sessions survived KillProject")
	}
	if !c.Exists("p2-term-a") {
		t.Error("project p2 session killed by KillProject(p1)")
	}
}

func TestController_KillAll(t *testing.T) {
	c := newTestController(t, "sleep 30", nil)

	c.Spawn("p1-term-a", "p1", t.TempDir())
	c.Spawn("p2-term-a", "p2", t.TempDir())

	c.KillAll()

	if c.Count() != 0 {
		t.Errorf("Count() = %d after KillAll, want 0", c.Count())
	}
}

func TestController_PublishesLifecycleEvents(t *testing.T) {
	hub := testutil.NewMockEventHub()
	c := newTestController(t, "exit 0", hub)

	if !c.Spawn("p1-term-a", "p1", t.TempDir()) {
		t.Fatal("Spawn() failed")
	}

	waitFor(t, 5*time.Second, func() bool {
		return len(hub.EventsOfType(events.EventTypeTerminalExited)) > 0
	}, "no terminal_exited event published")

	spawned := hub.EventsOfType(events.EventTypeTerminalSpawned)
	if len(spawned) != 1 {
		t.Fatalf("terminal_spawned events = %d, want 1", len(spawned))
	}
	if spawned[0].GetProjectID() != "p1" {
		t.Errorf("spawned event project = %q, want p1", spawned[0].GetProjectID())
	}
	if spawned[0].GetSessionID() != "p1-term-a" {
		t.Errorf("spawned event session = %q, want p1-term-a", spawned[0].GetSessionID())
	}
}

func TestController_KilledSessionClosesAttachment(t *testing.T) {
	c := newTestController(t, "sleep 30", nil)

	if !c.Spawn("p1-term-a", "p1", t.TempDir()) {
		t.Fatal("Spawn() failed")
	}

	a, _, ok := c.Attach("p1-term-a")
	if !ok {
		t.Fatal("Attach() failed")
	}

	c.Kill("p1-term-a")

	select {
	case <-a.Done():
	case <-time.After(5 * time.Second):
		t.Error("attachment not closed after Kill")
	}
}

func TestController_PrewarmSpawnsPersistedSessions(t *testing.T) {
	c := NewController(Options{
		Shell:          "/bin/sh",
		ShellArgs:      []string{"-c", "sleep 30"},
		PrewarmStagger: time.Millisecond,
	}, nil, testLogger())
	t.Cleanup(c.KillAll)

	dir := t.TempDir()
	c.Prewarm(t.Context(), []PrewarmEntry{
		{SessionID: "p1-term-a", ProjectID: "p1", WorkDir: dir},
		{SessionID: "p2-term-a", ProjectID: "p2", WorkDir: dir},
	})

	waitFor(t, 5*time.Second, func() bool { return c.Count() == 2 },
		"prewarm did not spawn both sessions")
}

func TestController_ResolveWorkDirFallsBackToHome(t *testing.T) {
	c := newTestController(t, "pwd; sleep 30", nil)

	// Missing directory falls back rather than failing the spawn.
	if !c.Spawn("p1-term-a", "p1", "/definitely/does/not/exist") {
		t.Fatal("Spawn() with missing workdir failed")
	}
}
