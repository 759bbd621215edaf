package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// MaxConfigFileBytes bounds how much configuration Load will read.
const MaxConfigFileBytes = 1 << 20

// DeskConfig holds the connection parameters for one desk.
type DeskConfig struct {
	Name              string `yaml:"name"`                // advertised name fragment (case-insensitive)
	ScanTimeoutSec    int    `yaml:"scan_timeout_sec"`    // bounded discovery window
	ConnectTimeoutSec int    `yaml:"connect_timeout_sec"` // per-attempt link timeout
	ConnectRetries    int    `yaml:"connect_retries"`     // extra attempts after the first
	RetryDelayMs      int    `yaml:"retry_delay_ms"`      // fixed delay between attempts
}

// MovementConfig holds the closed-loop controller tuning. The stopping
// distances absorb momentum and are calibrated per hardware model.
type MovementConfig struct {
	ToleranceMm        int `yaml:"tolerance_mm"`          // acceptable final error
	StopDistanceUpMm   int `yaml:"stop_distance_up_mm"`   // release drive this far below target
	StopDistanceDownMm int `yaml:"stop_distance_down_mm"` // release drive this far above target
	StallSamples       int `yaml:"stall_samples"`         // consecutive unchanged samples meaning collision
	PollIntervalMs     int `yaml:"poll_interval_ms"`      // closed-loop sampling cadence
	SettleDelayMs      int `yaml:"settle_delay_ms"`       // pause after stop before final read
}

// PresetConfig holds the preset-recall settlement tuning.
type PresetConfig struct {
	TriggerDelayMs int `yaml:"trigger_delay_ms"` // grace after the trigger before watching
	PollIntervalMs int `yaml:"poll_interval_ms"` // settlement sampling cadence
	SettleSamples  int `yaml:"settle_samples"`   // consecutive unchanged samples meaning arrived
}

// DefaultsConfig contains generic parameters.
type DefaultsConfig struct {
	DebugLevel int  `yaml:"debug_level"` // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
	SimBLE     bool `yaml:"sim_ble"`     // use the simulated desk (true=dev/test, false=real adapter)
}

// Config aggregates all application configuration.
type Config struct {
	Desk     DeskConfig     `yaml:"desk"`
	Movement MovementConfig `yaml:"movement"`
	Preset   PresetConfig   `yaml:"preset"`
	Defaults DefaultsConfig `yaml:"defaults"`
}

// ValidateConfigPath checks that path points to a .yaml file inside a
// configs/ directory, rejecting traversal outside it.
func ValidateConfigPath(path string) error {
	if path == "" {
		return fmt.Errorf("config path is empty")
	}
	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}
	if filepath.Ext(abs) != ".yaml" {
		return fmt.Errorf("config file must have a .yaml extension: %s", path)
	}
	if filepath.Base(filepath.Dir(abs)) != "configs" {
		return fmt.Errorf("config file must live in a configs/ directory: %s", path)
	}
	return nil
}

// Load reads a YAML file and returns the configuration.
func Load(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat config file: %w", err)
	}
	if info.Size() > MaxConfigFileBytes {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), MaxConfigFileBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	// Basic validation
	if cfg.Desk.ConnectRetries < 0 {
		return nil, fmt.Errorf("desk.connect_retries must be >= 0, got %d", cfg.Desk.ConnectRetries)
	}
	if cfg.Movement.ToleranceMm > 100 {
		return nil, fmt.Errorf("movement.tolerance_mm must be <= 100, got %d", cfg.Movement.ToleranceMm)
	}
	if cfg.Defaults.DebugLevel < 0 || cfg.Defaults.DebugLevel > 4 {
		return nil, fmt.Errorf("debug_level must be between 0 and 4, got %d", cfg.Defaults.DebugLevel)
	}

	// Default values for the connection
	if cfg.Desk.Name == "" {
		cfg.Desk.Name = "Desk"
	}
	if cfg.Desk.ScanTimeoutSec <= 0 {
		cfg.Desk.ScanTimeoutSec = 10
	}
	if cfg.Desk.ConnectTimeoutSec <= 0 {
		cfg.Desk.ConnectTimeoutSec = 10
	}
	if cfg.Desk.RetryDelayMs <= 0 {
		cfg.Desk.RetryDelayMs = 1000
	}

	// Default values for movement tuning
	if cfg.Movement.ToleranceMm <= 0 {
		cfg.Movement.ToleranceMm = 5
	}
	if cfg.Movement.StopDistanceUpMm <= 0 {
		cfg.Movement.StopDistanceUpMm = 8
	}
	if cfg.Movement.StopDistanceDownMm <= 0 {
		cfg.Movement.StopDistanceDownMm = 10
	}
	if cfg.Movement.StallSamples <= 0 {
		cfg.Movement.StallSamples = 3
	}
	if cfg.Movement.PollIntervalMs <= 0 {
		cfg.Movement.PollIntervalMs = 100
	}
	if cfg.Movement.SettleDelayMs <= 0 {
		cfg.Movement.SettleDelayMs = 300
	}

	// Default values for preset settlement
	if cfg.Preset.TriggerDelayMs <= 0 {
		cfg.Preset.TriggerDelayMs = 500
	}
	if cfg.Preset.PollIntervalMs <= 0 {
		cfg.Preset.PollIntervalMs = 300
	}
	if cfg.Preset.SettleSamples <= 0 {
		cfg.Preset.SettleSamples = 3
	}

	return &cfg, nil
}

// ScanTimeout returns the discovery window duration.
func (c *Config) ScanTimeout() time.Duration {
	return time.Duration(c.Desk.ScanTimeoutSec) * time.Second
}

// ConnectTimeout returns the per-attempt connection timeout.
func (c *Config) ConnectTimeout() time.Duration {
	return time.Duration(c.Desk.ConnectTimeoutSec) * time.Second
}

// RetryDelay returns the delay between connection attempts.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.Desk.RetryDelayMs) * time.Millisecond
}

// MovePollInterval returns the closed-loop sampling cadence.
func (c *Config) MovePollInterval() time.Duration {
	return time.Duration(c.Movement.PollIntervalMs) * time.Millisecond
}

// SettleDelay returns the pause after stop before the final read.
func (c *Config) SettleDelay() time.Duration {
	return time.Duration(c.Movement.SettleDelayMs) * time.Millisecond
}

// PresetTriggerDelay returns the grace period after a recall trigger.
func (c *Config) PresetTriggerDelay() time.Duration {
	return time.Duration(c.Preset.TriggerDelayMs) * time.Millisecond
}

// PresetPollInterval returns the settlement sampling cadence.
func (c *Config) PresetPollInterval() time.Duration {
	return time.Duration(c.Preset.PollIntervalMs) * time.Millisecond
}
