// Package config loads and persists the waclaw configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/roelfdiedericks/waclaw/internal/paths"
)

// Agent modes
const (
	ModeHTTP       = "http"
	ModeSubprocess = "subprocess"
)

// Config represents the merged waclaw configuration
type Config struct {
	Agent AgentConfig `json:"agent"`
	Media MediaConfig `json:"media"`
	Chat  ChatConfig  `json:"chat"`
	Log   LogConfig   `json:"log"`
}

// AgentConfig selects and configures the agent backend.
type AgentConfig struct {
	Mode       string `json:"mode"`       // "http" or "subprocess"
	APIBase    string `json:"apiBase"`    // Base URL for http mode and OCR
	Binary     string `json:"binary"`     // Agent executable for subprocess mode
	WorkingDir string `json:"workingDir"` // Working directory for the subprocess
}

// MediaConfig configures inbound attachment storage.
type MediaConfig struct {
	Dir string `json:"dir"` // Base directory for stored attachments
}

// ChatConfig tunes message handling.
type ChatConfig struct {
	MaxChunkLen int  `json:"maxChunkLen"` // Per-message chunk size
	AllowSelf   bool `json:"allowSelf"`   // Process self-chat messages
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `json:"level"` // "debug", "info", "warn", "error"
}

// Default returns a config with all defaults applied.
func Default() *Config {
	return &Config{
		Agent: AgentConfig{
			Mode:    ModeSubprocess,
			APIBase: "http://127.0.0.1:3377",
			Binary:  "claude",
		},
		Media: MediaConfig{
			Dir: "~/.waclaw/media",
		},
		Chat: ChatConfig{
			MaxChunkLen: 4000,
			AllowSelf:   true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from waclaw.json, applying defaults for
// missing fields. A missing config file is not an error.
func Load() (*Config, error) {
	cfg := Default()

	path, err := paths.ConfigPath()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if cfg.Agent.Mode != ModeHTTP && cfg.Agent.Mode != ModeSubprocess {
		return nil, fmt.Errorf("invalid agent mode %q (want %q or %q)", cfg.Agent.Mode, ModeHTTP, ModeSubprocess)
	}
	if cfg.Chat.MaxChunkLen <= 0 {
		cfg.Chat.MaxChunkLen = Default().Chat.MaxChunkLen
	}

	return cfg, nil
}

// Save writes the config to the default location atomically.
func Save(cfg *Config) error {
	path, err := paths.ConfigPath()
	if err != nil {
		return err
	}
	if path == "" {
		path, err = paths.DataPath("waclaw.json")
		if err != nil {
			return err
		}
	}
	return AtomicWriteJSON(path, cfg, 0600)
}
