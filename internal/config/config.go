// Package config loads tool configuration from a YAML file and the
// environment.
//
// Precedence, lowest to highest: built-in defaults, the config file
// (~/.config/pkgmedic/config.yaml unless overridden), then PKGMEDIC_*
// environment variables. Example: PKGMEDIC_RECOVERY_AUTO=false maps to the
// recovery.auto key.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix = "PKGMEDIC_"

	// maxConfigSize bounds how much of a config file will be read.
	maxConfigSize = 1 << 20
)

// Config is the complete tool configuration.
type Config struct {
	Log      LogConfig      `koanf:"log"`
	Recovery RecoveryConfig `koanf:"recovery"`
	State    StateConfig    `koanf:"state"`
	Patterns PatternsConfig `koanf:"patterns"`
	UI       UIConfig       `koanf:"ui"`
}

// LogConfig controls diagnostic logging.
type LogConfig struct {
	Level string `koanf:"level"`
	JSON  bool   `koanf:"json"`
}

// RecoveryConfig tunes the automatic remediation policy.
type RecoveryConfig struct {
	// Auto enables automatic remediation after a failed command.
	Auto bool `koanf:"auto"`
	// MinConfidence is the lowest analysis confidence auto-fix acts on.
	MinConfidence float64 `koanf:"min_confidence"`
	// MaxRisk is the highest risk level auto-fix may execute (safe|low).
	MaxRisk string `koanf:"max_risk"`
	// MinSuccess is the lowest estimated success rate auto-fix acts on.
	MinSuccess float64 `koanf:"min_success"`
	// AttemptsPerMinute budgets automatic fixes to break remediation loops.
	AttemptsPerMinute int `koanf:"attempts_per_minute"`
}

// StateConfig locates persisted state (the last-error record).
type StateConfig struct {
	Dir string `koanf:"dir"`
}

// PatternsConfig adds user pattern packs to the built-in catalog.
type PatternsConfig struct {
	Paths []string `koanf:"paths"`
}

// UIConfig controls terminal rendering.
type UIConfig struct {
	// Color is one of auto, always, never.
	Color string `koanf:"color"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info"},
		Recovery: RecoveryConfig{
			Auto:              true,
			MinConfidence:     0.9,
			MaxRisk:           "low",
			MinSuccess:        0.8,
			AttemptsPerMinute: 3,
		},
		UI: UIConfig{Color: "auto"},
	}
}

// DefaultPath returns the conventional config file location.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config: resolving config dir: %w", err)
	}
	return filepath.Join(dir, "pkgmedic", "config.yaml"), nil
}

// Load reads configuration from path (or the default location when path is
// empty), overlays environment variables, and validates the result. A missing
// file at the default location is fine; a missing explicit path is an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	k := koanf.New(".")

	explicit := path != ""
	if !explicit {
		var err error
		if path, err = DefaultPath(); err != nil {
			return nil, err
		}
	}

	content, err := readConfigFile(path)
	switch {
	case err == nil:
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	case os.IsNotExist(err) && !explicit:
		// No config file is the common case.
	default:
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if err := k.Load(env.Provider(envPrefix, ".", envToKey), nil); err != nil {
		return nil, fmt.Errorf("config: reading environment: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("config: applying values: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envToKey maps PKGMEDIC_SECTION_FIELD to section.field. Only the first
// underscore separates the section, so RECOVERY_MIN_CONFIDENCE becomes
// recovery.min_confidence.
func envToKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	return strings.Replace(s, "_", ".", 1)
}

func readConfigFile(path string) ([]byte, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !fi.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file")
	}
	if fi.Size() > maxConfigSize {
		return nil, fmt.Errorf("file exceeds %d bytes", maxConfigSize)
	}
	return os.ReadFile(path)
}

// Validate bounds-checks every tunable.
func (c *Config) Validate() error {
	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: invalid log.level %q", c.Log.Level)
	}
	if c.Recovery.MinConfidence < 0 || c.Recovery.MinConfidence > 1 {
		return fmt.Errorf("config: recovery.min_confidence %v out of range [0,1]", c.Recovery.MinConfidence)
	}
	if c.Recovery.MinSuccess < 0 || c.Recovery.MinSuccess > 1 {
		return fmt.Errorf("config: recovery.min_success %v out of range [0,1]", c.Recovery.MinSuccess)
	}
	if c.Recovery.AttemptsPerMinute <= 0 {
		return fmt.Errorf("config: recovery.attempts_per_minute must be positive")
	}
	switch strings.ToLower(c.Recovery.MaxRisk) {
	case "safe", "low", "medium", "high":
	default:
		return fmt.Errorf("config: invalid recovery.max_risk %q", c.Recovery.MaxRisk)
	}
	switch c.UI.Color {
	case "", "auto", "always", "never":
	default:
		return fmt.Errorf("config: invalid ui.color %q", c.UI.Color)
	}
	return nil
}

// StateDir resolves where persisted state lives: the configured directory,
// $XDG_STATE_HOME/pkgmedic, or ~/.local/state/pkgmedic.
func (c *Config) StateDir() (string, error) {
	if c.State.Dir != "" {
		return c.State.Dir, nil
	}
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "pkgmedic"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: resolving state dir: %w", err)
	}
	return filepath.Join(home, ".local", "state", "pkgmedic"), nil
}
