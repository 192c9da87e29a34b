package state

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestStore_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "terminals.db")

	s, err := Open(StoreOptions{Path: path, Debounce: 10 * time.Millisecond}, testLogger())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	first := s.EnsureProject("p1").Sessions[0]
	second, _ := s.AddSession("p1")
	_ = s.RenameSession("p1", first.ID, "build")
	_ = s.SetActive("p1", second.ID)
	_ = s.SetSplitView("p1", true)
	s.EnsureProject("p2")

	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := Open(StoreOptions{Path: path, Debounce: 10 * time.Millisecond}, testLogger())
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer func() { _ = reopened.Close() }()

	rec, ok := reopened.Get("p1")
	if !ok {
		t.Fatal("project p1 not persisted")
	}
	if len(rec.Sessions) != 2 {
		t.Fatalf("persisted sessions = %d, want 2", len(rec.Sessions))
	}
	if rec.Sessions[0].ID != first.ID || rec.Sessions[0].Name != "build" {
		t.Errorf("first session = %+v, want id %q name %q", rec.Sessions[0], first.ID, "build")
	}
	if rec.ActiveID != second.ID {
		t.Errorf("active = %q, want %q", rec.ActiveID, second.ID)
	}
	if !rec.SplitView {
		t.Error("split view not persisted")
	}

	if _, ok := reopened.Get("p2"); !ok {
		t.Error("project p2 not persisted")
	}
}

func TestStore_DebouncedWriteLandsWithoutClose(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "terminals.db")

	s, err := Open(StoreOptions{Path: path, Debounce: 10 * time.Millisecond}, testLogger())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer func() { _ = s.Close() }()

	s.EnsureProject("p1")

	// After the quiet period the row is on disk even without Flush.
	time.Sleep(100 * time.Millisecond)

	var count int
	row := s.db.QueryRow(`SELECT COUNT(*) FROM project_terminals`)
	if err := row.Scan(&count); err != nil {
		t.Fatalf("query error = %v", err)
	}
	if count != 1 {
		t.Errorf("persisted rows = %d, want 1", count)
	}
}

func TestStore_CorruptFileYieldsEmptyMapping(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "terminals.db")

	if err := os.WriteFile(path, []byte("this is not a sqlite database at all"), 0o644); err != nil {
		t.Fatalf("failed to plant corrupt file: %v", err)
	}

	s, err := Open(StoreOptions{Path: path}, testLogger())
	if err != nil {
		t.Fatalf("Open() on corrupt file error = %v, want recovery", err)
	}
	defer func() { _ = s.Close() }()

	if n := len(s.Snapshot()); n != 0 {
		t.Errorf("snapshot has %d projects after corrupt open, want 0", n)
	}

	// The replaced file is usable for new state.
	s.EnsureProject("p1")
	s.Flush()
	if _, ok := s.Get("p1"); !ok {
		t.Error("store unusable after corrupt-file recovery")
	}
}

func TestStore_MissingFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "terminals.db")

	s, err := Open(StoreOptions{Path: path}, testLogger())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer func() { _ = s.Close() }()

	if n := len(s.Snapshot()); n != 0 {
		t.Errorf("snapshot has %d projects for fresh file, want 0", n)
	}
}

func TestStore_RemovedProjectStaysRemoved(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "terminals.db")

	s, err := Open(StoreOptions{Path: path, Debounce: 10 * time.Millisecond}, testLogger())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	s.EnsureProject("p1")
	s.EnsureProject("p2")
	s.RemoveProject("p1")
	_ = s.Close()

	reopened, err := Open(StoreOptions{Path: path}, testLogger())
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer func() { _ = reopened.Close() }()

	if _, ok := reopened.Get("p1"); ok {
		t.Error("removed project reappeared after reopen")
	}
	if _, ok := reopened.Get("p2"); !ok {
		t.Error("surviving project lost after reopen")
	}
}
