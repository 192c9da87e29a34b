package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/taskdeck/deckterm/internal/app"
	"github.com/taskdeck/deckterm/internal/config"
)

var (
	host string
	port int
)

// startCmd represents the start command.
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the deckterm daemon",
	Long: `Start the deckterm daemon. The TaskDeck desktop app connects to it
over localhost for terminal I/O and per-project terminal state.

On startup, shells recorded in the state store are respawned for every
open project so that the board reconnects to warm sessions.

Example:
  deckterm start
  deckterm start --port 8977`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().StringVar(&host, "host", "", "bind address (default: 127.0.0.1)")
	startCmd.Flags().IntVar(&port, "port", 0, "server port (default: 8977)")
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Override config with flags
	if host != "" {
		cfg.Server.Host = host
	}
	if port != 0 {
		cfg.Server.Port = port
	}

	// Re-validate after overrides
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := setupLogging(cfg)

	log.Info().
		Str("version", version).
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Msg("starting deckterm")

	application := app.New(cfg, version, logger)

	// Graceful shutdown on SIGINT/SIGTERM
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
	}()

	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("application error: %w", err)
	}

	log.Info().Msg("deckterm stopped")
	return nil
}

// setupLogging configures both loggers: the zerolog global used by the
// server and hub, and the slog logger injected into the terminal
// controller and state store. Returns the slog logger.
func setupLogging(cfg *config.Config) *slog.Logger {
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var out io.Writer = os.Stderr
	if cfg.Logging.File != "" {
		out = &lumberjack.Logger{
			Filename:   cfg.Logging.File,
			MaxSize:    20, // megabytes
			MaxBackups: 3,
			MaxAge:     14, // days
		}
	}

	slogLevel := slog.LevelInfo
	switch cfg.Logging.Level {
	case "trace", "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	}

	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		slogLevel = slog.LevelDebug
	}

	if cfg.Logging.Format == "console" && cfg.Logging.File == "" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: out})
		return slog.New(tint.NewHandler(out, &tint.Options{
			Level:      slogLevel,
			TimeFormat: time.Kitchen,
		}))
	}

	log.Logger = zerolog.New(out).With().Timestamp().Logger()
	return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: slogLevel}))
}
