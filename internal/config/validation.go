package config

import (
	"fmt"

	"github.com/taskdeck/deckterm/internal/domain"
)

// Validate validates the configuration.
func Validate(cfg *Config) error {
	if err := validateServer(&cfg.Server); err != nil {
		return err
	}

	if err := validateTerminal(&cfg.Terminal); err != nil {
		return err
	}

	if err := validateState(&cfg.State); err != nil {
		return err
	}

	if err := validateLogging(&cfg.Logging); err != nil {
		return err
	}

	return nil
}

func validateServer(cfg *ServerConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return domain.NewValidationError("server.port",
			fmt.Sprintf("must be between 1 and 65535, got %d", cfg.Port))
	}
	if cfg.Host == "" {
		return domain.NewValidationError("server.host", "must not be empty")
	}
	return nil
}

func validateTerminal(cfg *TerminalConfig) error {
	if cfg.BufferKB < 1 {
		return domain.NewValidationError("terminal.buffer_kb",
			fmt.Sprintf("must be at least 1, got %d", cfg.BufferKB))
	}
	if cfg.MaxPerProject < 1 {
		return domain.NewValidationError("terminal.max_per_project",
			fmt.Sprintf("must be at least 1, got %d", cfg.MaxPerProject))
	}
	if cfg.PrewarmStaggerMS < 0 {
		return domain.NewValidationError("terminal.prewarm_stagger_ms",
			fmt.Sprintf("must not be negative, got %d", cfg.PrewarmStaggerMS))
	}
	return nil
}

func validateState(cfg *StateConfig) error {
	if cfg.Path == "" {
		return domain.NewValidationError("state.path", "must not be empty")
	}
	if cfg.DebounceMS < 0 {
		return domain.NewValidationError("state.debounce_ms",
			fmt.Sprintf("must not be negative, got %d", cfg.DebounceMS))
	}
	return nil
}

func validateLogging(cfg *LoggingConfig) error {
	switch cfg.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		return domain.NewValidationError("logging.level",
			fmt.Sprintf("must be one of trace, debug, info, warn, error; got %q", cfg.Level))
	}

	switch cfg.Format {
	case "console", "json":
	default:
		return domain.NewValidationError("logging.format",
			fmt.Sprintf("must be console or json, got %q", cfg.Format))
	}

	return nil
}
