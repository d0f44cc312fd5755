package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeBootstrap(t *testing.T, content string) string {
	t.Helper()
	tempDir, err := os.MkdirTemp("", "console-config-test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	configPath := filepath.Join(tempDir, ConfigFilename)
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write test bootstrap config: %v", err)
	}
	return tempDir
}

func TestLoadBootstrapConfig(t *testing.T) {
	t.Setenv("CONSOLE_CHANNEL_URL", "")
	t.Setenv("PORT", "")
	t.Setenv("ZMQ_ADDRESS", "")

	dir := writeBootstrap(t, `
logging:
  level: "debug"
  log_path: "/var/log/console"
server:
  http_port: 9090
channel:
  url: "ws://robot.local:8000/ws"
  ping_interval_ms: 2000
reconnect:
  delay_ms: 500
  max_attempts: 3
dispatch:
  tick_interval_ms: 50
  speed_level: "high"
joystick:
  dead_zone_ratio: 0.25
event_log:
  capacity: 20
zeromq:
  publish_bind_address: "tcp://*:7777"
`)

	cfg, err := LoadBootstrapConfig(dir)
	if err != nil {
		t.Fatalf("LoadBootstrapConfig failed: %v", err)
	}

	if cfg.Logging.Level != "debug" {
		t.Errorf("Expected logging level 'debug', got '%s'", cfg.Logging.Level)
	}
	if cfg.Server.HTTPPort != 9090 {
		t.Errorf("Expected server http_port 9090, got %d", cfg.Server.HTTPPort)
	}
	if cfg.Channel.URL != "ws://robot.local:8000/ws" {
		t.Errorf("Unexpected channel url '%s'", cfg.Channel.URL)
	}
	if cfg.PingInterval() != 2*time.Second {
		t.Errorf("Expected ping interval 2s, got %v", cfg.PingInterval())
	}
	if cfg.ReconnectDelay() != 500*time.Millisecond {
		t.Errorf("Expected reconnect delay 500ms, got %v", cfg.ReconnectDelay())
	}
	if cfg.Reconnect.MaxAttempts != 3 {
		t.Errorf("Expected max_attempts 3, got %d", cfg.Reconnect.MaxAttempts)
	}
	if cfg.TickInterval() != 50*time.Millisecond {
		t.Errorf("Expected tick 50ms, got %v", cfg.TickInterval())
	}
	if cfg.Dispatch.SpeedLevel != "high" {
		t.Errorf("Expected speed level high, got %s", cfg.Dispatch.SpeedLevel)
	}
	if cfg.Joystick.DeadZoneRatio != 0.25 {
		t.Errorf("Expected dead zone 0.25, got %v", cfg.Joystick.DeadZoneRatio)
	}
	if cfg.EventLog.Capacity != 20 {
		t.Errorf("Expected capacity 20, got %d", cfg.EventLog.Capacity)
	}
	if cfg.ZeroMQ.PublishBindAddress != "tcp://*:7777" {
		t.Errorf("Unexpected zeromq address '%s'", cfg.ZeroMQ.PublishBindAddress)
	}

	// Omitted keys keep defaults
	if cfg.Channel.SendQueueSize != 64 {
		t.Errorf("Expected default send_queue_size 64, got %d", cfg.Channel.SendQueueSize)
	}
	if cfg.KeyHold() != 600*time.Millisecond {
		t.Errorf("Expected default key hold 600ms, got %v", cfg.KeyHold())
	}
}

func TestDefaultsMatchConsoleConstants(t *testing.T) {
	cfg := Default()
	if cfg.TickInterval() != 100*time.Millisecond {
		t.Errorf("Expected 100ms tick, got %v", cfg.TickInterval())
	}
	if cfg.Joystick.DeadZoneRatio != 0.2 {
		t.Errorf("Expected dead zone 0.2, got %v", cfg.Joystick.DeadZoneRatio)
	}
	if cfg.EventLog.Capacity != 50 {
		t.Errorf("Expected log capacity 50, got %d", cfg.EventLog.Capacity)
	}
	if cfg.ReconnectDelay() != time.Second || cfg.Reconnect.MaxAttempts != 5 {
		t.Errorf("Expected reconnect 1s x5, got %v x%d", cfg.ReconnectDelay(), cfg.Reconnect.MaxAttempts)
	}
}

func TestLoadBootstrapConfigMissingRequired(t *testing.T) {
	t.Setenv("CONSOLE_CHANNEL_URL", "")

	dir := writeBootstrap(t, `
logging:
  level: "info"
dispatch:
  tick_interval_ms: 100
`)

	_, err := LoadBootstrapConfig(dir)
	if err == nil {
		t.Fatalf("Expected error when loading bootstrap config without channel.url, but got nil")
	}

	expectedErrorSubstr := "missing required field in bootstrap config: channel.url"
	if !strings.Contains(err.Error(), expectedErrorSubstr) {
		t.Errorf("Expected error message to contain '%s', but got: %v", expectedErrorSubstr, err)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("CONSOLE_CHANNEL_URL", "ws://override:9000/ws")
	t.Setenv("PORT", "8181")
	t.Setenv("ZMQ_ADDRESS", "tcp://*:5599")
	t.Setenv("ZMQ_REQUEST_ADDRESS", "tcp://127.0.0.1:5600")

	dir := writeBootstrap(t, "logging:\n  level: info\n")

	cfg, err := LoadBootstrapConfig(dir)
	if err != nil {
		t.Fatalf("LoadBootstrapConfig failed: %v", err)
	}
	if cfg.Channel.URL != "ws://override:9000/ws" {
		t.Errorf("Expected env channel url, got %s", cfg.Channel.URL)
	}
	if cfg.Server.HTTPPort != 8181 {
		t.Errorf("Expected env port 8181, got %d", cfg.Server.HTTPPort)
	}
	if cfg.ZeroMQ.PublishBindAddress != "tcp://*:5599" {
		t.Errorf("Expected env zmq address, got %s", cfg.ZeroMQ.PublishBindAddress)
	}
	if cfg.ZeroMQ.RequestBindAddress != "tcp://127.0.0.1:5600" {
		t.Errorf("Expected env zmq request address, got %s", cfg.ZeroMQ.RequestBindAddress)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		substr string
	}{
		{"zero tick", func(c *Config) { c.Dispatch.TickIntervalMs = 0 }, "tick_interval_ms"},
		{"bad speed level", func(c *Config) { c.Dispatch.SpeedLevel = "turbo" }, "speed_level"},
		{"dead zone too large", func(c *Config) { c.Joystick.DeadZoneRatio = 1 }, "dead_zone_ratio"},
		{"zero capacity", func(c *Config) { c.EventLog.Capacity = 0 }, "capacity"},
		{"negative retries", func(c *Config) { c.Reconnect.MaxAttempts = -1 }, "reconnect"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Channel.URL = "ws://robot/ws"
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("Expected validation error")
			}
			if !strings.Contains(err.Error(), tt.substr) {
				t.Errorf("Expected error to mention %q, got %v", tt.substr, err)
			}
		})
	}
}

func TestZeroMaxAttemptsIsKept(t *testing.T) {
	cfg, err := Parse([]byte("channel:\n  url: ws://robot/ws\nreconnect:\n  max_attempts: 0\n"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.Reconnect.MaxAttempts != 0 {
		t.Errorf("Expected max_attempts 0 to override the default, got %d", cfg.Reconnect.MaxAttempts)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Zero attempts disables reconnection and must validate: %v", err)
	}
}
