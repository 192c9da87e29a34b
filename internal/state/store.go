package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// DefaultDebounce is the quiet period before a structural change is
// written to disk.
const DefaultDebounce = 500 * time.Millisecond

// Store holds the per-project terminal records in memory and writes them
// through to a SQLite file, debounced so a burst of UI mutations lands as
// a single replace.
type Store struct {
	db          *sql.DB
	logger      *slog.Logger
	maxSessions int
	writer      *writeBehind

	mu       sync.Mutex
	projects map[string]*ProjectTerminals
}

// StoreOptions configure a Store.
type StoreOptions struct {
	// Path of the SQLite file. The parent directory is created.
	Path string

	// Debounce is the write-behind quiet period. Defaults to 500 ms.
	Debounce time.Duration

	// MaxSessions caps sessions per project. Defaults to 3.
	MaxSessions int
}

// Open loads the persisted records. Corrupt or absent data yields an
// empty mapping rather than failing startup; the store recreates the file
// on the next write.
func Open(opts StoreOptions, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = DefaultMaxSessions
	}

	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	s := &Store{
		logger:      logger,
		maxSessions: opts.MaxSessions,
		projects:    make(map[string]*ProjectTerminals),
	}
	s.writer = newWriteBehind(opts.Debounce, s.save, logger)

	db, err := openDatabase(opts.Path)
	if err != nil {
		// A corrupt file must not take startup down with it. Replace it
		// and carry on with an empty mapping.
		logger.Warn("terminal state unreadable, starting fresh", "path", opts.Path, "error", err)
		_ = os.Remove(opts.Path)
		db, err = openDatabase(opts.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open state database: %w", err)
		}
	}
	s.db = db

	if err := s.load(); err != nil {
		logger.Warn("failed to load terminal state, starting empty", "error", err)
		s.projects = make(map[string]*ProjectTerminals)
	}
	return s, nil
}

func openDatabase(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	schema := `CREATE TABLE IF NOT EXISTS project_terminals (
		project_id        TEXT PRIMARY KEY,
		sessions          TEXT NOT NULL,
		active_session_id TEXT NOT NULL DEFAULT '',
		split_view        INTEGER NOT NULL DEFAULT 0
	)`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// load reads every row into the in-memory mapping.
func (s *Store) load() error {
	rows, err := s.db.Query(`SELECT project_id, sessions, active_session_id, split_view FROM project_terminals`)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	loaded := make(map[string]*ProjectTerminals)
	for rows.Next() {
		var (
			projectID string
			sessions  string
			activeID  string
			split     bool
		)
		if err := rows.Scan(&projectID, &sessions, &activeID, &split); err != nil {
			return err
		}
		var refs []SessionRef
		if err := json.Unmarshal([]byte(sessions), &refs); err != nil {
			s.logger.Warn("skipping unreadable terminal record", "project_id", projectID, "error", err)
			continue
		}
		loaded[projectID] = &ProjectTerminals{
			Sessions:  refs,
			ActiveID:  activeID,
			SplitView: split,
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.projects = loaded
	s.mu.Unlock()

	s.logger.Info("loaded terminal state", "projects", len(loaded))
	return nil
}

// save replaces the persisted mapping with the current snapshot in one
// transaction. Called from the write-behind timer, never directly.
func (s *Store) save() error {
	snapshot := s.Snapshot()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM project_terminals`); err != nil {
		return err
	}
	for projectID, rec := range snapshot {
		sessions, err := json.Marshal(rec.Sessions)
		if err != nil {
			return err
		}
		_, err = tx.Exec(
			`INSERT INTO project_terminals (project_id, sessions, active_session_id, split_view) VALUES (?, ?, ?, ?)`,
			projectID, string(sessions), rec.ActiveID, rec.SplitView,
		)
		if err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	s.logger.Debug("terminal state written", "projects", len(snapshot))
	return nil
}

// scheduleLocked queues a debounced write. Must hold s.mu.
func (s *Store) scheduleLocked() {
	s.writer.Schedule()
}

// Flush synchronously writes any pending state. Called on shutdown so a
// quit during the debounce window does not lose the last change.
func (s *Store) Flush() {
	s.writer.Flush()
}

// Close flushes pending state and closes the database.
func (s *Store) Close() error {
	s.writer.Flush()
	s.writer.Stop()
	return s.db.Close()
}
