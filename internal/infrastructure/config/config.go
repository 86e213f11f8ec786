package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for SoilWatch.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Telemetry TelemetryConfig `yaml:"telemetry"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// TelemetryConfig contains the broker subscription settings.
type TelemetryConfig struct {
	// BrokerEndpoint is the broker URI, e.g. "wss://broker.hivemq.com:8000/mqtt".
	// Supported schemes: tcp, mqtt, ssl, tls, mqtts, ws, wss.
	BrokerEndpoint string `yaml:"broker_endpoint"`

	// Topic is the single topic carrying sensor readings. Wildcards are not allowed.
	Topic string `yaml:"topic"`

	// ClientID identifies this client to the broker.
	// If empty, a random ID is generated once per process.
	ClientID string `yaml:"client_id"`

	// ReconnectInterval is the fixed delay between connection attempts.
	ReconnectInterval time.Duration `yaml:"reconnect_interval"`

	// ConnectTimeout bounds a single connection attempt.
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	// KeepAlive is the MQTT keepalive interval.
	KeepAlive time.Duration `yaml:"keep_alive"`
}

// APIConfig contains HTTP status server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// WebSocketConfig contains WebSocket stream settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
}

// MetricsConfig contains Prometheus exposition settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: SOILWATCH_KEY
// For example: SOILWATCH_BROKER_ENDPOINT, SOILWATCH_API_PORT
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns a Config with sensible defaults.
// The broker settings match the field deployment's public broker.
func Default() *Config {
	return &Config{
		Telemetry: TelemetryConfig{
			BrokerEndpoint:    "wss://broker.hivemq.com:8000/mqtt",
			Topic:             "smart_irrigation/soil_data",
			ReconnectInterval: 1 * time.Second,
			ConnectTimeout:    30 * time.Second,
			KeepAlive:         60 * time.Second,
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 4096,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) error {
	// Telemetry
	if v := os.Getenv("SOILWATCH_BROKER_ENDPOINT"); v != "" {
		cfg.Telemetry.BrokerEndpoint = v
	}
	if v := os.Getenv("SOILWATCH_TOPIC"); v != "" {
		cfg.Telemetry.Topic = v
	}
	if v := os.Getenv("SOILWATCH_CLIENT_ID"); v != "" {
		cfg.Telemetry.ClientID = v
	}
	if v := os.Getenv("SOILWATCH_RECONNECT_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("SOILWATCH_RECONNECT_INTERVAL %q: %w", v, err)
		}
		cfg.Telemetry.ReconnectInterval = d
	}

	// API
	if v := os.Getenv("SOILWATCH_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("SOILWATCH_API_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SOILWATCH_API_PORT %q: %w", v, err)
		}
		cfg.API.Port = port
	}

	// Logging
	if v := os.Getenv("SOILWATCH_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	return nil
}

// brokerSchemes lists the URI schemes the MQTT transport can dial.
var brokerSchemes = map[string]bool{
	"tcp": true, "mqtt": true,
	"ssl": true, "tls": true, "mqtts": true,
	"ws": true, "wss": true,
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	errs = append(errs, c.Telemetry.validate()...)

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.API.Enabled {
		errs = append(errs, c.WebSocket.validate()...)
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		errs = append(errs, "metrics.path must start with /")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func (w WebSocketConfig) validate() []string {
	var errs []string
	if w.MaxMessageSize <= 0 {
		errs = append(errs, "websocket.max_message_size must be positive")
	}
	if w.PingInterval <= 0 {
		errs = append(errs, "websocket.ping_interval must be positive")
	}
	if w.PongTimeout <= 0 {
		errs = append(errs, "websocket.pong_timeout must be positive")
	}
	return errs
}

func (t TelemetryConfig) validate() []string {
	var errs []string

	if t.BrokerEndpoint == "" {
		errs = append(errs, "telemetry.broker_endpoint is required")
	} else if u, err := url.Parse(t.BrokerEndpoint); err != nil {
		errs = append(errs, fmt.Sprintf("telemetry.broker_endpoint is not a valid URI: %v", err))
	} else {
		if !brokerSchemes[strings.ToLower(u.Scheme)] {
			errs = append(errs, fmt.Sprintf("telemetry.broker_endpoint scheme %q is not supported", u.Scheme))
		}
		if u.Hostname() == "" {
			errs = append(errs, "telemetry.broker_endpoint must include a host")
		}
	}

	switch {
	case t.Topic == "":
		errs = append(errs, "telemetry.topic is required")
	case strings.ContainsAny(t.Topic, "+#"):
		errs = append(errs, "telemetry.topic must not contain wildcards")
	}

	if t.ReconnectInterval <= 0 {
		errs = append(errs, "telemetry.reconnect_interval must be positive")
	}
	if t.ConnectTimeout <= 0 {
		errs = append(errs, "telemetry.connect_timeout must be positive")
	}
	if t.KeepAlive < 0 {
		errs = append(errs, "telemetry.keep_alive must not be negative")
	}

	return errs
}

// GetReadTimeout returns the read timeout as a Duration.
func (a APIConfig) GetReadTimeout() time.Duration {
	return time.Duration(a.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the write timeout as a Duration.
func (a APIConfig) GetWriteTimeout() time.Duration {
	return time.Duration(a.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the idle timeout as a Duration.
func (a APIConfig) GetIdleTimeout() time.Duration {
	return time.Duration(a.Timeouts.Idle) * time.Second
}
