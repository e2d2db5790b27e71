// Package config loads and watches the occd YAML configuration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Transport kinds selectable in the config file.
const (
	TransportI2C    = "i2c"
	TransportSerial = "serial"
	TransportSim    = "sim"
)

// Config is the top-level occd configuration.
type Config struct {
	Listen string     `yaml:"listen"`
	Bus    BusConfig  `yaml:"bus"`
	Poll   PollConfig `yaml:"poll"`
	MDNS   MDNSConfig `yaml:"mdns"`
	Log    LogConfig  `yaml:"log"`
}

// BusConfig selects and parameterizes the transport to the controller.
type BusConfig struct {
	Transport string `yaml:"transport"` // i2c, serial or sim
	Device    string `yaml:"device"`    // /dev/i2c-N or a serial device
	Address   uint8  `yaml:"address"`   // I2C slave address
	BaudRate  int    `yaml:"baud_rate"` // serial only
}

// PollConfig controls the refresh cache and the background poller.
type PollConfig struct {
	// RefreshIntervalMs is the minimum time between device polls; reads
	// inside the window are served from cache.
	RefreshIntervalMs int `yaml:"refresh_interval_ms"`
	// IntervalMs is the background poller period. Zero disables the
	// poller; the device is then only polled on demand.
	IntervalMs int `yaml:"interval_ms"`
	// Online is the poller's initial state.
	Online bool `yaml:"online"`
}

// MDNSConfig controls LAN service advertisement.
type MDNSConfig struct {
	Enabled bool   `yaml:"enabled"`
	Name    string `yaml:"name"`
}

// LogConfig controls log output.
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn or error
}

// Default returns the configuration occd runs with when no file is given.
func Default() Config {
	return Config{
		Listen: ":8090",
		Bus: BusConfig{
			Transport: TransportI2C,
			Device:    "/dev/i2c-3",
			Address:   0x50,
			BaudRate:  115200,
		},
		Poll: PollConfig{
			RefreshIntervalMs: 1000,
			IntervalMs:        2000,
			Online:            true,
		},
		MDNS: MDNSConfig{
			Enabled: true,
			Name:    "occmon",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads path and overlays it on the defaults, so a partial file only
// overrides what it names.
func Load(path string) (Config, error) {
	cfg := Default()

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects configurations occd cannot run with.
func (c *Config) Validate() error {
	switch c.Bus.Transport {
	case TransportI2C, TransportSerial, TransportSim:
	default:
		return fmt.Errorf("unknown transport %q", c.Bus.Transport)
	}
	if c.Bus.Transport != TransportSim && c.Bus.Device == "" {
		return fmt.Errorf("transport %q needs a bus device", c.Bus.Transport)
	}
	if c.Bus.Transport == TransportSerial && c.Bus.BaudRate <= 0 {
		return fmt.Errorf("invalid baud rate %d", c.Bus.BaudRate)
	}
	if c.Poll.RefreshIntervalMs <= 0 {
		return fmt.Errorf("refresh_interval_ms must be positive, got %d", c.Poll.RefreshIntervalMs)
	}
	if c.Poll.IntervalMs < 0 {
		return fmt.Errorf("interval_ms must not be negative, got %d", c.Poll.IntervalMs)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Log.Level)
	}
	return nil
}
