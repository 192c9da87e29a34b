// Package state persists, per project, which terminal sessions exist,
// their display names and order, which one is focused, and whether the
// panel is in split view. The record is the durable side of the terminal
// tabs: session ids stored here may reference processes that are not
// currently live, and are respawned lazily on the next attach.
package state

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/taskdeck/deckterm/internal/domain"
)

// DefaultMaxSessions caps concurrent sessions per project. Each session
// owns a real OS process and a rendering surface, so the limit is enforced
// here at the mutator boundary, not just in the UI.
const DefaultMaxSessions = 3

// SessionRef is one terminal tab: a stable session id plus display name.
// Slice order is tab order.
type SessionRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ProjectTerminals is the per-project terminal panel record.
type ProjectTerminals struct {
	Sessions  []SessionRef `json:"sessions"`
	ActiveID  string       `json:"active_session_id,omitempty"`
	SplitView bool         `json:"split_view"`
}

func (p *ProjectTerminals) clone() ProjectTerminals {
	out := ProjectTerminals{
		ActiveID:  p.ActiveID,
		SplitView: p.SplitView,
	}
	out.Sessions = make([]SessionRef, len(p.Sessions))
	copy(out.Sessions, p.Sessions)
	return out
}

func (p *ProjectTerminals) indexOf(sessionID string) int {
	for i, ref := range p.Sessions {
		if ref.ID == sessionID {
			return i
		}
	}
	return -1
}

// renumber resets display names to the sequential defaults
// ("Terminal 1", "Terminal 2", ...) after a tab is closed.
func (p *ProjectTerminals) renumber() {
	for i := range p.Sessions {
		p.Sessions[i].Name = fmt.Sprintf("Terminal %d", i+1)
	}
}

// NewSessionID builds a session id for a project. The id is opaque to
// everything but the store; ownership is carried explicitly, never parsed
// back out of the id.
func NewSessionID(projectID string) string {
	return fmt.Sprintf("%s-term-%s", projectID, uuid.New().String()[:8])
}

func defaultRecord(projectID string) ProjectTerminals {
	ref := SessionRef{ID: NewSessionID(projectID), Name: "Terminal 1"}
	return ProjectTerminals{
		Sessions: []SessionRef{ref},
		ActiveID: ref.ID,
	}
}

// The mutators below operate on the in-memory mapping under the store's
// lock and schedule a debounced write; see store.go.

// EnsureProject returns the project's record, creating the lazy default
// (one session named "Terminal 1") the first time the panel is opened.
func (s *Store) EnsureProject(projectID string) ProjectTerminals {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.projects[projectID]; ok {
		return rec.clone()
	}
	rec := defaultRecord(projectID)
	s.projects[projectID] = &rec
	s.scheduleLocked()
	return rec.clone()
}

// AddSession appends a new tab, rejected once the project already holds
// the maximum number of sessions. The new session becomes active.
func (s *Store) AddSession(projectID string) (SessionRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.projects[projectID]
	if !ok {
		return SessionRef{}, domain.ErrProjectNotFound
	}
	if len(rec.Sessions) >= s.maxSessions {
		return SessionRef{}, domain.ErrSessionLimit
	}

	ref := SessionRef{
		ID:   NewSessionID(projectID),
		Name: fmt.Sprintf("Terminal %d", len(rec.Sessions)+1),
	}
	rec.Sessions = append(rec.Sessions, ref)
	rec.ActiveID = ref.ID
	s.scheduleLocked()
	return ref, nil
}

// CloseSession removes a tab. Closing the last tab synthesizes a fresh
// default session rather than leaving the project with zero; remaining
// display names are renumbered sequentially. Returns the record after the
// mutation.
func (s *Store) CloseSession(projectID, sessionID string) (ProjectTerminals, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.projects[projectID]
	if !ok {
		return ProjectTerminals{}, domain.ErrProjectNotFound
	}
	idx := rec.indexOf(sessionID)
	if idx < 0 {
		return ProjectTerminals{}, domain.ErrSessionNotFound
	}

	rec.Sessions = append(rec.Sessions[:idx], rec.Sessions[idx+1:]...)

	if len(rec.Sessions) == 0 {
		*rec = defaultRecord(projectID)
	} else {
		rec.renumber()
		if rec.ActiveID == sessionID {
			// Focus the previous tab, like closing a browser tab.
			if idx > 0 {
				idx--
			}
			rec.ActiveID = rec.Sessions[idx].ID
		}
	}
	s.scheduleLocked()
	return rec.clone(), nil
}

// RenameSession sets a tab's display name.
func (s *Store) RenameSession(projectID, sessionID, name string) error {
	if name == "" {
		return domain.ErrInvalidName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.projects[projectID]
	if !ok {
		return domain.ErrProjectNotFound
	}
	idx := rec.indexOf(sessionID)
	if idx < 0 {
		return domain.ErrSessionNotFound
	}
	rec.Sessions[idx].Name = name
	s.scheduleLocked()
	return nil
}

// MoveSession moves a tab to a new position in the tab order.
func (s *Store) MoveSession(projectID, sessionID string, to int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.projects[projectID]
	if !ok {
		return domain.ErrProjectNotFound
	}
	from := rec.indexOf(sessionID)
	if from < 0 {
		return domain.ErrSessionNotFound
	}
	if to < 0 || to >= len(rec.Sessions) {
		return domain.ErrInvalidPosition
	}
	if from == to {
		return nil
	}

	ref := rec.Sessions[from]
	rec.Sessions = append(rec.Sessions[:from], rec.Sessions[from+1:]...)
	rec.Sessions = append(rec.Sessions[:to], append([]SessionRef{ref}, rec.Sessions[to:]...)...)
	s.scheduleLocked()
	return nil
}

// SetActive focuses a tab. The session must belong to the project.
func (s *Store) SetActive(projectID, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.projects[projectID]
	if !ok {
		return domain.ErrProjectNotFound
	}
	if rec.indexOf(sessionID) < 0 {
		return domain.ErrNotAMember
	}
	rec.ActiveID = sessionID
	s.scheduleLocked()
	return nil
}

// SetSplitView toggles showing multiple sessions simultaneously.
func (s *Store) SetSplitView(projectID string, split bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.projects[projectID]
	if !ok {
		return domain.ErrProjectNotFound
	}
	rec.SplitView = split
	s.scheduleLocked()
	return nil
}

// RemoveProject deletes a project's record. Called when the owning project
// is deleted in the board application.
func (s *Store) RemoveProject(projectID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[projectID]; !ok {
		return
	}
	delete(s.projects, projectID)
	s.scheduleLocked()
}

// Get returns the record for a project, if present.
func (s *Store) Get(projectID string) (ProjectTerminals, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.projects[projectID]
	if !ok {
		return ProjectTerminals{}, false
	}
	return rec.clone(), true
}

// Snapshot returns a deep copy of the whole mapping.
func (s *Store) Snapshot() map[string]ProjectTerminals {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]ProjectTerminals, len(s.projects))
	for id, rec := range s.projects {
		out[id] = rec.clone()
	}
	return out
}
