package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ConfigFilename is the bootstrap file looked up inside the config directory
const ConfigFilename = "console_config.yaml"

// LoadBootstrapConfig loads console_config.yaml from configDir on top of the
// defaults, applies environment overrides and validates the result.
func LoadBootstrapConfig(configDir string) (*Config, error) {
	path := filepath.Join(configDir, ConfigFilename)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading bootstrap config file '%s': %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("error parsing bootstrap config file '%s': %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML into a copy of the defaults, so omitted keys keep their default values.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if url := os.Getenv("CONSOLE_CHANNEL_URL"); url != "" {
		cfg.Channel.URL = url
	}
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.HTTPPort = p
		}
	}
	if addr := os.Getenv("ZMQ_ADDRESS"); addr != "" {
		cfg.ZeroMQ.PublishBindAddress = addr
	}
	if addr := os.Getenv("ZMQ_REQUEST_ADDRESS"); addr != "" {
		cfg.ZeroMQ.RequestBindAddress = addr
	}
}

// Validate checks required fields and numeric ranges
func (c *Config) Validate() error {
	if c.Channel.URL == "" {
		return fmt.Errorf("missing required field in bootstrap config: channel.url")
	}
	if c.Dispatch.TickIntervalMs <= 0 {
		return fmt.Errorf("invalid bootstrap config: dispatch.tick_interval_ms must be positive, got %d", c.Dispatch.TickIntervalMs)
	}
	switch c.Dispatch.SpeedLevel {
	case "low", "medium", "high":
	default:
		return fmt.Errorf("invalid bootstrap config: dispatch.speed_level must be low, medium or high, got %q", c.Dispatch.SpeedLevel)
	}
	if c.Joystick.DeadZoneRatio < 0 || c.Joystick.DeadZoneRatio >= 1 {
		return fmt.Errorf("invalid bootstrap config: joystick.dead_zone_ratio must be in [0, 1), got %v", c.Joystick.DeadZoneRatio)
	}
	if c.EventLog.Capacity <= 0 {
		return fmt.Errorf("invalid bootstrap config: event_log.capacity must be positive, got %d", c.EventLog.Capacity)
	}
	if c.Reconnect.MaxAttempts < 0 || c.Reconnect.DelayMs < 0 {
		return fmt.Errorf("invalid bootstrap config: reconnect values must not be negative")
	}
	if c.Channel.SendQueueSize <= 0 {
		return fmt.Errorf("invalid bootstrap config: channel.send_queue_size must be positive, got %d", c.Channel.SendQueueSize)
	}
	if c.Terminal.KeyHoldMs <= 0 {
		return fmt.Errorf("invalid bootstrap config: terminal.key_hold_ms must be positive, got %d", c.Terminal.KeyHoldMs)
	}
	return nil
}
