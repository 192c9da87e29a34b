package projects

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleRegistry = `projects:
  - id: alpha
    name: Alpha
    path: /home/u/code/alpha
  - id: beta
    name: Beta
    path: /home/u/code/beta
    closed: true
`

func writeRegistry(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "projects.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write registry: %v", err)
	}
	return path
}

func TestRegistry_Load(t *testing.T) {
	path := writeRegistry(t, t.TempDir(), sampleRegistry)

	r := Open(path)
	defer r.Close()

	got, ok := r.PathFor("alpha")
	if !ok {
		t.Fatal("PathFor(alpha) not found")
	}
	if got != "/home/u/code/alpha" {
		t.Errorf("PathFor(alpha) = %q", got)
	}

	if r.IsClosed("alpha") {
		t.Error("IsClosed(alpha) = true, want false")
	}
	if !r.IsClosed("beta") {
		t.Error("IsClosed(beta) = false, want true")
	}

	ids := r.IDs()
	if len(ids) != 2 || ids[0] != "alpha" || ids[1] != "beta" {
		t.Errorf("IDs() = %v, want [alpha beta]", ids)
	}
}

func TestRegistry_UnknownProjectCountsAsClosed(t *testing.T) {
	path := writeRegistry(t, t.TempDir(), sampleRegistry)

	r := Open(path)
	defer r.Close()

	if !r.IsClosed("ghost") {
		t.Error("IsClosed(unknown) = false, want true")
	}
	if _, ok := r.PathFor("ghost"); ok {
		t.Error("PathFor(unknown) found a path")
	}
}

func TestRegistry_MissingFileIsEmpty(t *testing.T) {
	r := Open(filepath.Join(t.TempDir(), "nope.yaml"))
	defer r.Close()

	if len(r.IDs()) != 0 {
		t.Errorf("IDs() = %v for missing file, want empty", r.IDs())
	}
}

func TestRegistry_CorruptFileKeepsPreviousState(t *testing.T) {
	dir := t.TempDir()
	path := writeRegistry(t, dir, sampleRegistry)

	r := Open(path)
	defer r.Close()

	if err := os.WriteFile(path, []byte("{{{{not yaml"), 0o644); err != nil {
		t.Fatalf("failed to corrupt registry: %v", err)
	}
	r.Reload()

	// The last good state survives a corrupt rewrite.
	if _, ok := r.PathFor("alpha"); !ok {
		t.Error("corrupt reload dropped previously loaded projects")
	}
}

func TestRegistry_ReloadsOnFileChange(t *testing.T) {
	dir := t.TempDir()
	path := writeRegistry(t, dir, sampleRegistry)

	r := Open(path)
	defer r.Close()

	updated := sampleRegistry + `  - id: gamma
    name: Gamma
    path: /home/u/code/gamma
`
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatalf("failed to update registry: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := r.PathFor("gamma"); ok {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Error("registry did not pick up file change")
}

func TestRegistry_EntriesWithoutIDAreSkipped(t *testing.T) {
	path := writeRegistry(t, t.TempDir(), `projects:
  - name: NoID
    path: /tmp/x
  - id: ok
    name: OK
    path: /tmp/ok
`)

	r := Open(path)
	defer r.Close()

	ids := r.IDs()
	if len(ids) != 1 || ids[0] != "ok" {
		t.Errorf("IDs() = %v, want [ok]", ids)
	}
}
