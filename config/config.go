// Package config persists tool settings (selected port, firmware path,
// plot window) as a JSON file next to the binary.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"flashmon/link"
	"flashmon/telemetry"
)

// DefaultPath is the config file used when none is given on the command line.
const DefaultPath = "flashmon.json"

// Config holds the persisted tool settings.
type Config struct {
	// Serial link
	Port   string      `json:"port"`
	Baud   int         `json:"baud"`
	Driver link.Driver `json:"driver,omitempty"`

	// Firmware flashing
	FirmwarePath string `json:"firmware_path,omitempty"`
	FlashCommand string `json:"flash_command,omitempty"`

	// Telemetry window and rendering
	MaxPoints      int     `json:"max_points"`
	RefreshMs      int     `json:"refresh_ms"`
	YMin           float64 `json:"y_min"`
	YMax           float64 `json:"y_max"`
	ResetOnConnect bool    `json:"reset_on_connect"`
}

// Load reads the config file at path, filling in defaults for missing
// values. A missing file is not an error: defaults are returned so first
// launch works without setup.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			applyDefaults(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	applyDefaults(cfg)
	return cfg, nil
}

// Save writes the config to path.
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write config %s: %w", path, err)
	}
	return nil
}

// applyDefaults fills in missing configuration values with sensible defaults.
func applyDefaults(cfg *Config) {
	if cfg.Baud == 0 {
		cfg.Baud = 115200
	}
	if cfg.Driver == "" {
		cfg.Driver = link.DriverTarm
	}
	if cfg.MaxPoints <= 0 {
		cfg.MaxPoints = telemetry.DefaultMaxPoints
	}
	if cfg.RefreshMs <= 0 {
		cfg.RefreshMs = 100
	}
	if cfg.YMin == 0 && cfg.YMax == 0 {
		// ADC full scale on the observed firmware
		cfg.YMax = 4096
	}
}

// LinkConfig builds the serial configuration for the selected port.
func (c *Config) LinkConfig() *link.Config {
	lc := link.DefaultConfig(c.Port)
	lc.Baud = c.Baud
	lc.Driver = c.Driver
	return lc
}
