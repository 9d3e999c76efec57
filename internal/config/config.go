// Package config loads bang's TOML configuration file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// EnvVar names the environment variable that points at a config file.
const EnvVar = "BANG_CONFIG"

// Config holds every setting the CLI and REPL read.
type Config struct {
	LogLevel string     `toml:"log_level"`
	REPL     REPLConfig `toml:"repl"`
	Run      RunConfig  `toml:"run"`

	// Path is the file the config was read from; empty for defaults.
	Path string `toml:"-"`
}

// REPLConfig configures the interactive prompt.
type REPLConfig struct {
	Prompt             string `toml:"prompt"`
	ContinuationPrompt string `toml:"continuation_prompt"`
	HistoryFile        string `toml:"history_file"`
	Color              bool   `toml:"color"`
}

// RunConfig configures program execution.
type RunConfig struct {
	FailFast bool `toml:"fail_fast"`
	MaxDepth int  `toml:"max_depth"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel: "warn",
		REPL: REPLConfig{
			Prompt:             "bang> ",
			ContinuationPrompt: "....> ",
			HistoryFile:        "~/.bang_history",
			Color:              true,
		},
		Run: RunConfig{
			MaxDepth: 10000,
		},
	}
}

// Load reads path over the defaults. Keys the file sets replace the
// defaults; unknown keys are an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if _, err := ParseLevel(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	if cfg.Run.MaxDepth < 0 {
		return nil, fmt.Errorf("config %s: max_depth must not be negative", path)
	}
	cfg.Path = path
	return cfg, nil
}

// Resolve finds the config to use. Precedence: explicit path, then
// $BANG_CONFIG, then ~/.bang.toml, then the defaults. An explicit or
// environment path must exist; the home file is optional.
func Resolve(explicit string) (*Config, error) {
	if explicit != "" {
		return Load(explicit)
	}
	if env := os.Getenv(EnvVar); env != "" {
		return Load(env)
	}
	if home, err := os.UserHomeDir(); err == nil {
		path := filepath.Join(home, ".bang.toml")
		cfg, err := Load(path)
		if err == nil {
			return cfg, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return Default(), nil
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level: %q", name)
	}
}

// HistoryPath returns the REPL history file with a leading ~ expanded.
// An empty setting disables history.
func (c *Config) HistoryPath() string {
	path := c.REPL.HistoryFile
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path
}
