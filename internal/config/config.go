// Package config handles configuration management for deckterm.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the daemon.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Terminal TerminalConfig `mapstructure:"terminal"`
	State    StateConfig    `mapstructure:"state"`
	Projects ProjectsConfig `mapstructure:"projects"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig holds HTTP/WebSocket server configuration.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// TerminalConfig holds shell session configuration.
type TerminalConfig struct {
	Shell            string   `mapstructure:"shell"`
	ShellArgs        []string `mapstructure:"shell_args"`
	BufferKB         int      `mapstructure:"buffer_kb"`
	MaxPerProject    int      `mapstructure:"max_per_project"`
	PrewarmStaggerMS int      `mapstructure:"prewarm_stagger_ms"`
}

// StateConfig holds per-project terminal state persistence configuration.
type StateConfig struct {
	Path       string `mapstructure:"path"`
	DebounceMS int    `mapstructure:"debounce_ms"`
}

// ProjectsConfig points at the board application's project registry.
type ProjectsConfig struct {
	Registry string `mapstructure:"registry"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// Load loads configuration from files and environment.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.deckterm")
		v.AddConfigPath("/etc/deckterm")
	}

	v.SetEnvPrefix("DECKTERM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Config file is optional.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	if err := postProcess(&cfg); err != nil {
		return nil, err
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8977)

	// Empty shell means follow $SHELL at spawn time.
	v.SetDefault("terminal.shell", "")
	v.SetDefault("terminal.shell_args", []string{"-il"})
	v.SetDefault("terminal.buffer_kb", 100)
	v.SetDefault("terminal.max_per_project", 3)
	v.SetDefault("terminal.prewarm_stagger_ms", 250)

	v.SetDefault("state.path", "$HOME/.deckterm/terminals.db")
	v.SetDefault("state.debounce_ms", 500)

	v.SetDefault("projects.registry", "$HOME/.deckterm/projects.yaml")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file", "")
}

// postProcess expands $HOME placeholders and resolves paths.
func postProcess(cfg *Config) error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to resolve home directory: %w", err)
	}

	cfg.State.Path = expandHome(cfg.State.Path, home)
	cfg.Projects.Registry = expandHome(cfg.Projects.Registry, home)
	if cfg.Logging.File != "" {
		cfg.Logging.File = expandHome(cfg.Logging.File, home)
	}

	return nil
}

func expandHome(path, home string) string {
	if strings.HasPrefix(path, "$HOME") {
		return filepath.Join(home, strings.TrimPrefix(path, "$HOME"))
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}
