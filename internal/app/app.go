// Package app orchestrates all components of the deckterm daemon.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/taskdeck/deckterm/internal/config"
	"github.com/taskdeck/deckterm/internal/domain/events"
	"github.com/taskdeck/deckterm/internal/hub"
	"github.com/taskdeck/deckterm/internal/projects"
	"github.com/taskdeck/deckterm/internal/server/termhttp"
	"github.com/taskdeck/deckterm/internal/state"
	"github.com/taskdeck/deckterm/internal/terminal"
)

// App is the main application struct that wires the terminal controller,
// the state store and the HTTP/WebSocket server together.
type App struct {
	cfg     *config.Config
	version string
	logger  *slog.Logger

	hub        *hub.Hub
	store      *state.Store
	registry   *projects.Registry
	controller *terminal.Controller
	server     *termhttp.Server

	mu        sync.Mutex
	running   bool
	startTime time.Time
}

// New creates a new App instance.
func New(cfg *config.Config, version string, logger *slog.Logger) *App {
	return &App{
		cfg:     cfg,
		version: version,
		logger:  logger,
		hub:     hub.New(),
	}
}

// Start starts the daemon and blocks until the context is cancelled.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("application is already running")
	}
	a.running = true
	a.startTime = time.Now()
	a.mu.Unlock()

	if err := a.hub.Start(); err != nil {
		return fmt.Errorf("failed to start event hub: %w", err)
	}

	// Trace-level visibility into every broadcast event
	logSub := hub.NewLogSubscriber("internal-logger", func(event events.Event) {
		log.Trace().
			Str("event_type", string(event.Type())).
			Time("timestamp", event.Timestamp()).
			Msg("event broadcast")
	})
	a.hub.Subscribe(logSub)

	store, err := state.Open(state.StoreOptions{
		Path:        a.cfg.State.Path,
		Debounce:    time.Duration(a.cfg.State.DebounceMS) * time.Millisecond,
		MaxSessions: a.cfg.Terminal.MaxPerProject,
	}, a.logger)
	if err != nil {
		return fmt.Errorf("failed to open state store: %w", err)
	}
	a.store = store

	a.registry = projects.Open(a.cfg.Projects.Registry)

	a.controller = terminal.NewController(terminal.Options{
		Shell:          a.cfg.Terminal.Shell,
		ShellArgs:      a.cfg.Terminal.ShellArgs,
		BufferSize:     a.cfg.Terminal.BufferKB * 1024,
		PrewarmStagger: time.Duration(a.cfg.Terminal.PrewarmStaggerMS) * time.Millisecond,
	}, a.hub, a.logger)

	a.controller.Prewarm(ctx, a.prewarmEntries())

	a.server = termhttp.NewServer(
		a.cfg.Server.Host,
		a.cfg.Server.Port,
		a.controller,
		a.store,
		a.registry,
		a.hub,
	)
	if err := a.server.Start(); err != nil {
		return fmt.Errorf("failed to start terminal server: %w", err)
	}

	log.Info().
		Str("version", a.version).
		Str("addr", fmt.Sprintf("%s:%d", a.cfg.Server.Host, a.cfg.Server.Port)).
		Msg("deckterm started")

	<-ctx.Done()

	return a.shutdown()
}

// prewarmEntries builds the respawn list from persisted state: every
// session of every open project, so reopening the board reconnects to
// warm shells instead of cold-starting them on first click.
func (a *App) prewarmEntries() []terminal.PrewarmEntry {
	var entries []terminal.PrewarmEntry
	for projectID, record := range a.store.Snapshot() {
		if a.registry.IsClosed(projectID) {
			continue
		}
		workDir, _ := a.registry.PathFor(projectID)
		for _, ref := range record.Sessions {
			entries = append(entries, terminal.PrewarmEntry{
				SessionID: ref.ID,
				ProjectID: projectID,
				WorkDir:   workDir,
			})
		}
	}
	return entries
}

// shutdown performs graceful shutdown of all components.
func (a *App) shutdown() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.running {
		return nil
	}
	a.running = false

	log.Info().Msg("shutting down...")

	if a.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.server.Stop(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("error stopping terminal server")
		}
		cancel()
	}

	if a.controller != nil {
		a.controller.KillAll()
	}

	if a.registry != nil {
		a.registry.Close()
	}

	// Pending debounced writes land before the process exits.
	if a.store != nil {
		a.store.Flush()
		if err := a.store.Close(); err != nil {
			log.Error().Err(err).Msg("error closing state store")
		}
	}

	if err := a.hub.Stop(); err != nil {
		log.Error().Err(err).Msg("error stopping event hub")
	}

	return nil
}

// Uptime returns how long the daemon has been running.
func (a *App) Uptime() time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.running {
		return 0
	}
	return time.Since(a.startTime)
}
