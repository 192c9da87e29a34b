// Package projects is the read-only adapter over the board application's
// project registry. The kanban side owns the file; deckterm only needs a
// project-id-to-path lookup for spawning shells and the set of closed
// projects to skip when prewarming.
package projects

import (
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Project is one entry in the registry file.
type Project struct {
	ID     string `yaml:"id"`
	Name   string `yaml:"name"`
	Path   string `yaml:"path"`
	Closed bool   `yaml:"closed,omitempty"`
}

type registryFile struct {
	Projects []Project `yaml:"projects"`
}

// Registry reads the projects file and keeps it fresh by watching the
// containing directory. A missing or corrupt file yields an empty
// registry; the board application will rewrite it.
type Registry struct {
	path string

	mu   sync.RWMutex
	byID map[string]Project

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// Open loads the registry and starts watching for changes.
func Open(path string) *Registry {
	r := &Registry{
		path: path,
		byID: make(map[string]Project),
		done: make(chan struct{}),
	}
	r.Reload()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Warn().Err(err).Msg("project registry watcher unavailable")
		return r
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("failed to watch project registry")
		_ = watcher.Close()
		return r
	}
	r.watcher = watcher
	go r.watch()
	return r
}

// Reload re-reads the registry file.
func (r *Registry) Reload() {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", r.path).Msg("failed to read project registry")
		}
		r.mu.Lock()
		r.byID = make(map[string]Project)
		r.mu.Unlock()
		return
	}

	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		log.Warn().Err(err).Str("path", r.path).Msg("project registry unreadable, keeping previous state")
		return
	}

	byID := make(map[string]Project, len(file.Projects))
	for _, p := range file.Projects {
		if p.ID == "" {
			continue
		}
		byID[p.ID] = p
	}

	r.mu.Lock()
	r.byID = byID
	r.mu.Unlock()

	log.Debug().Int("projects", len(byID)).Msg("project registry loaded")
}

// watch reloads when the registry file changes on disk.
func (r *Registry) watch() {
	for {
		select {
		case <-r.done:
			return
		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(r.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
				r.Reload()
			}
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("project registry watch error")
		}
	}
}

// PathFor returns the project's filesystem root.
func (r *Registry) PathFor(projectID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byID[projectID]
	if !ok {
		return "", false
	}
	return p.Path, true
}

// IsClosed reports whether the user has hidden the project. Unknown
// projects count as closed so stale state never prewarms shells for them.
func (r *Registry) IsClosed(projectID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byID[projectID]
	if !ok {
		return true
	}
	return p.Closed
}

// IDs returns all known project ids, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.byID))
	for id := range r.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close stops watching the registry file.
func (r *Registry) Close() {
	close(r.done)
	if r.watcher != nil {
		_ = r.watcher.Close()
	}
}
