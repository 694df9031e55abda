package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all tunable parameters of clockapp.
// Load builds one from DefaultConfig, then a YAML file, then CLOCKAPP_*
// environment variables; each later source overrides the earlier ones.
type Config struct {
	// Timing
	TickInterval    time.Duration // Engine tick period
	SurfaceInterval time.Duration // Background surface refresh

	// Buses
	StatusBufferSize  int // Per-listener status buffer (drop-slow)
	CommandBufferSize int // Per-service command buffer (blocking)

	// Countdown presets
	DefaultCountdown time.Duration // Initial preset
	CountdownStep    time.Duration // +/- adjustment

	// Logging
	LogLevel string
	LogFile  string // Empty = stderr (headless) or discard (TUI)
}

// ConfigEnv names the variable holding the config file path.
const ConfigEnv = "CLOCKAPP_CONFIG"

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		TickInterval:    time.Second,
		SurfaceInterval: time.Second,

		StatusBufferSize:  16,
		CommandBufferSize: 32,

		DefaultCountdown: 60 * time.Second,
		CountdownStep:    60 * time.Second,

		LogLevel: "info",
	}
}

// fileConfig mirrors Config in the YAML file. Pointers tell "absent" from
// zero so a partial file only overrides what it names.
type fileConfig struct {
	TickInterval      *string `yaml:"tick_interval"`
	SurfaceInterval   *string `yaml:"surface_interval"`
	StatusBufferSize  *int    `yaml:"status_buffer_size"`
	CommandBufferSize *int    `yaml:"command_buffer_size"`
	DefaultCountdown  *string `yaml:"default_countdown"`
	CountdownStep     *string `yaml:"countdown_step"`
	LogLevel          *string `yaml:"log_level"`
	LogFile           *string `yaml:"log_file"`
}

// Load applies defaults, then the YAML file at path (skipped when path is
// empty), then CLOCKAPP_* variables, and validates the result.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if err := cfg.applyFile(path); err != nil {
			return cfg, err
		}
	}

	cfg.applyEnv()
	return cfg, cfg.Validate()
}

// LoadFile reads a YAML config file on top of the defaults.
func LoadFile(path string) (Config, error) {
	cfg := DefaultConfig()
	if err := cfg.applyFile(path); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// LoadFromEnv loads configuration from environment variables.
// Returns a Config with defaults, overridden by any CLOCKAPP_* env vars found.
func LoadFromEnv() (Config, error) {
	cfg := DefaultConfig()
	cfg.applyEnv()
	return cfg, cfg.Validate()
}

func (c *Config) applyFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}

	durations := []struct {
		name string
		src  *string
		dst  *time.Duration
	}{
		{"tick_interval", fc.TickInterval, &c.TickInterval},
		{"surface_interval", fc.SurfaceInterval, &c.SurfaceInterval},
		{"default_countdown", fc.DefaultCountdown, &c.DefaultCountdown},
		{"countdown_step", fc.CountdownStep, &c.CountdownStep},
	}
	for _, d := range durations {
		if d.src == nil {
			continue
		}
		v, err := time.ParseDuration(*d.src)
		if err != nil {
			return fmt.Errorf("config %s: %w", d.name, err)
		}
		*d.dst = v
	}

	if fc.StatusBufferSize != nil {
		c.StatusBufferSize = *fc.StatusBufferSize
	}
	if fc.CommandBufferSize != nil {
		c.CommandBufferSize = *fc.CommandBufferSize
	}
	if fc.LogLevel != nil {
		c.LogLevel = *fc.LogLevel
	}
	if fc.LogFile != nil {
		c.LogFile = *fc.LogFile
	}
	return nil
}

// applyEnv overrides fields from CLOCKAPP_* variables. Unparsable values are
// ignored, as are non-positive sizes.
func (c *Config) applyEnv() {
	// Timing
	if v := os.Getenv("CLOCKAPP_TICK_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.TickInterval = d
		}
	}
	if v := os.Getenv("CLOCKAPP_SURFACE_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.SurfaceInterval = d
		}
	}

	// Buses
	if v := os.Getenv("CLOCKAPP_STATUS_BUFFER"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.StatusBufferSize = n
		}
	}
	if v := os.Getenv("CLOCKAPP_COMMAND_BUFFER"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.CommandBufferSize = n
		}
	}

	// Countdown presets
	if v := os.Getenv("CLOCKAPP_DEFAULT_COUNTDOWN"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.DefaultCountdown = d
		}
	}
	if v := os.Getenv("CLOCKAPP_COUNTDOWN_STEP"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.CountdownStep = d
		}
	}

	// Logging
	if v := os.Getenv("CLOCKAPP_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("CLOCKAPP_LOG_FILE"); v != "" {
		c.LogFile = v
	}
}

// Validate checks that configuration values are sensible.
func (c *Config) Validate() error {
	var errs []error

	if c.TickInterval <= 0 {
		errs = append(errs, fmt.Errorf("tick interval must be > 0, got %s", c.TickInterval))
	}
	if c.SurfaceInterval <= 0 {
		errs = append(errs, fmt.Errorf("surface interval must be > 0, got %s", c.SurfaceInterval))
	}
	if c.StatusBufferSize < 1 {
		errs = append(errs, fmt.Errorf("status buffer must be >= 1, got %d", c.StatusBufferSize))
	}
	if c.CommandBufferSize < 1 {
		errs = append(errs, fmt.Errorf("command buffer must be >= 1, got %d", c.CommandBufferSize))
	}
	if c.DefaultCountdown < 0 || c.DefaultCountdown%time.Second != 0 {
		errs = append(errs, fmt.Errorf("default countdown must be whole non-negative seconds, got %s", c.DefaultCountdown))
	}
	if c.CountdownStep < time.Second || c.CountdownStep%time.Second != 0 {
		errs = append(errs, fmt.Errorf("countdown step must be whole seconds >= 1s, got %s", c.CountdownStep))
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// String returns a human-readable summary of the configuration.
func (c *Config) String() string {
	logFile := c.LogFile
	if logFile == "" {
		logFile = "(default)"
	}
	return fmt.Sprintf(`clockapp Configuration:
  Timing:
    Tick:    %s
    Surface: %s

  Buses:
    Status Buffer:  %d
    Command Buffer: %d

  Countdown:
    Default: %s
    Step:    %s

  Logging:
    Level: %s
    File:  %s
`,
		c.TickInterval,
		c.SurfaceInterval,
		c.StatusBufferSize,
		c.CommandBufferSize,
		c.DefaultCountdown,
		c.CountdownStep,
		c.LogLevel,
		logFile,
	)
}
