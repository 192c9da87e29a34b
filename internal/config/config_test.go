package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/taskdeck/deckterm/internal/domain"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("default Host = %s, want 127.0.0.1", cfg.Server.Host)
	}
	if cfg.Server.Port != 8977 {
		t.Errorf("default Port = %d, want 8977", cfg.Server.Port)
	}
	if cfg.Terminal.Shell != "" {
		t.Errorf("default Shell = %q, want empty (follow $SHELL)", cfg.Terminal.Shell)
	}
	if len(cfg.Terminal.ShellArgs) != 1 || cfg.Terminal.ShellArgs[0] != "-il" {
		t.Errorf("default ShellArgs = %v, want [-il]", cfg.Terminal.ShellArgs)
	}
	if cfg.Terminal.BufferKB != 100 {
		t.Errorf("default BufferKB = %d, want 100", cfg.Terminal.BufferKB)
	}
	if cfg.Terminal.MaxPerProject != 3 {
		t.Errorf("default MaxPerProject = %d, want 3", cfg.Terminal.MaxPerProject)
	}
	if cfg.Terminal.PrewarmStaggerMS != 250 {
		t.Errorf("default PrewarmStaggerMS = %d, want 250", cfg.Terminal.PrewarmStaggerMS)
	}
	if cfg.State.DebounceMS != 500 {
		t.Errorf("default State.DebounceMS = %d, want 500", cfg.State.DebounceMS)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("default Logging.Level = %s, want info", cfg.Logging.Level)
	}

	// $HOME placeholders are resolved.
	if strings.Contains(cfg.State.Path, "$HOME") {
		t.Errorf("State.Path not expanded: %s", cfg.State.Path)
	}
	if !strings.HasSuffix(cfg.State.Path, filepath.Join(".deckterm", "terminals.db")) {
		t.Errorf("State.Path = %s, want ~/.deckterm/terminals.db", cfg.State.Path)
	}
	if strings.Contains(cfg.Projects.Registry, "$HOME") {
		t.Errorf("Projects.Registry not expanded: %s", cfg.Projects.Registry)
	}
}

func TestLoad_FromFile(t *testing.T) {
	tempDir := t.TempDir()

	configContent := `
server:
  host: "0.0.0.0"
  port: 9000

terminal:
  shell: /bin/zsh
  buffer_kb: 50
  max_per_project: 2
  prewarm_stagger_ms: 100

state:
  path: "` + filepath.Join(tempDir, "state.db") + `"
  debounce_ms: 250

logging:
  level: debug
  format: json
`
	configPath := filepath.Join(tempDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(configContent), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Host = %s, want 0.0.0.0", cfg.Server.Host)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Terminal.Shell != "/bin/zsh" {
		t.Errorf("Shell = %s, want /bin/zsh", cfg.Terminal.Shell)
	}
	if cfg.Terminal.BufferKB != 50 {
		t.Errorf("BufferKB = %d, want 50", cfg.Terminal.BufferKB)
	}
	if cfg.Terminal.MaxPerProject != 2 {
		t.Errorf("MaxPerProject = %d, want 2", cfg.Terminal.MaxPerProject)
	}
	if cfg.State.DebounceMS != 250 {
		t.Errorf("State.DebounceMS = %d, want 250", cfg.State.DebounceMS)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %s/%s, want debug/json", cfg.Logging.Level, cfg.Logging.Format)
	}

	// Unset keys keep defaults.
	if cfg.State.DebounceMS == 0 {
		t.Error("defaults not applied alongside file values")
	}
}

func TestValidate_Rejections(t *testing.T) {
	base := func() *Config {
		cfg, err := Load("")
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port zero", func(c *Config) { c.Server.Port = 0 }},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }},
		{"empty host", func(c *Config) { c.Server.Host = "" }},
		{"zero buffer", func(c *Config) { c.Terminal.BufferKB = 0 }},
		{"zero session cap", func(c *Config) { c.Terminal.MaxPerProject = 0 }},
		{"negative stagger", func(c *Config) { c.Terminal.PrewarmStaggerMS = -1 }},
		{"empty state path", func(c *Config) { c.State.Path = "" }},
		{"negative debounce", func(c *Config) { c.State.DebounceMS = -1 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := Validate(cfg)
			if err == nil {
				t.Fatalf("Validate() accepted %s", tt.name)
			}
			var verr *domain.ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("Validate() error = %T, want *domain.ValidationError", err)
			} else if verr.Field == "" {
				t.Error("ValidationError.Field is empty")
			}
		})
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("DECKTERM_SERVER_PORT", "9111")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9111 {
		t.Errorf("Port = %d with DECKTERM_SERVER_PORT=9111, want 9111", cfg.Server.Port)
	}
}
