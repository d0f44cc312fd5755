package config

import (
	"time"
)

// Config represents the console configuration
type Config struct {
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
	Server    ServerConfig    `yaml:"server" json:"server"`
	Channel   ChannelConfig   `yaml:"channel" json:"channel"`
	Reconnect ReconnectConfig `yaml:"reconnect" json:"reconnect"`
	Dispatch  DispatchConfig  `yaml:"dispatch" json:"dispatch"`
	Joystick  JoystickConfig  `yaml:"joystick" json:"joystick"`
	EventLog  EventLogConfig  `yaml:"event_log" json:"event_log"`
	Terminal  TerminalConfig  `yaml:"terminal" json:"terminal"`
	ZeroMQ    ZeroMQConfig    `yaml:"zeromq" json:"zeromq"`
}

// LoggingConfig holds process logging settings
type LoggingConfig struct {
	Level      string `yaml:"level" json:"level"`
	LogPath    string `yaml:"log_path,omitempty" json:"log_path,omitempty"`
	MaxSizeMB  int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" json:"max_age_days"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	HTTPPort int `yaml:"http_port" json:"http_port"`
}

// ChannelConfig describes the control channel to the robot
type ChannelConfig struct {
	URL                string `yaml:"url" json:"url"`
	HandshakeTimeoutMs int    `yaml:"handshake_timeout_ms" json:"handshake_timeout_ms"`
	SendQueueSize      int    `yaml:"send_queue_size" json:"send_queue_size"`
	PingIntervalMs     int    `yaml:"ping_interval_ms" json:"ping_interval_ms"`
}

// ReconnectConfig bounds automatic reconnection of the control channel. Zero max_attempts disables it
type ReconnectConfig struct {
	DelayMs     int `yaml:"delay_ms" json:"delay_ms"`
	MaxAttempts int `yaml:"max_attempts" json:"max_attempts"`
}

// DispatchConfig holds command dispatch settings
type DispatchConfig struct {
	TickIntervalMs int    `yaml:"tick_interval_ms" json:"tick_interval_ms"`
	SpeedLevel     string `yaml:"speed_level" json:"speed_level"`
}

// JoystickConfig holds virtual joystick thresholds
type JoystickConfig struct {
	DeadZoneRatio float64 `yaml:"dead_zone_ratio" json:"dead_zone_ratio"`
}

// EventLogConfig holds operator event log settings
type EventLogConfig struct {
	Capacity int `yaml:"capacity" json:"capacity"`
}

// TerminalConfig holds settings for the terminal surface, which only sees key repeats
type TerminalConfig struct {
	KeyHoldMs int `yaml:"key_hold_ms" json:"key_hold_ms"`
}

// ZeroMQConfig holds the local integration sockets. An empty address disables that socket.
type ZeroMQConfig struct {
	PublishBindAddress string `yaml:"publish_bind_address" json:"publish_bind_address"`
	RequestBindAddress string `yaml:"request_bind_address" json:"request_bind_address"`
}

// Default returns a configuration with every tunable populated.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 7,
		},
		Server: ServerConfig{HTTPPort: 8080},
		Channel: ChannelConfig{
			HandshakeTimeoutMs: 5000,
			SendQueueSize:      64,
		},
		Reconnect: ReconnectConfig{
			DelayMs:     1000,
			MaxAttempts: 5,
		},
		Dispatch: DispatchConfig{
			TickIntervalMs: 100,
			SpeedLevel:     "medium",
		},
		Joystick: JoystickConfig{DeadZoneRatio: 0.2},
		EventLog: EventLogConfig{Capacity: 50},
		Terminal: TerminalConfig{KeyHoldMs: 600},
	}
}

// TickInterval returns the dispatch tick as a duration
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Dispatch.TickIntervalMs) * time.Millisecond
}

// ReconnectDelay returns the fixed delay between reconnection attempts
func (c *Config) ReconnectDelay() time.Duration {
	return time.Duration(c.Reconnect.DelayMs) * time.Millisecond
}

// HandshakeTimeout returns the websocket handshake timeout
func (c *Config) HandshakeTimeout() time.Duration {
	return time.Duration(c.Channel.HandshakeTimeoutMs) * time.Millisecond
}

// PingInterval returns the keepalive ping interval. Zero disables pings.
func (c *Config) PingInterval() time.Duration {
	return time.Duration(c.Channel.PingIntervalMs) * time.Millisecond
}

// KeyHold returns how long a terminal key counts as held after its last repeat
func (c *Config) KeyHold() time.Duration {
	return time.Duration(c.Terminal.KeyHoldMs) * time.Millisecond
}
