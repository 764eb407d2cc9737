// Package config loads the tracker configuration from a YAML file.
// Environment references like ${TRACKER_AUTH_SECRET} expand before parsing.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sivakumar999/village-eats/errors"
)

// Duration wraps time.Duration so YAML values like "30s" parse directly.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the complete tracker configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Auth    AuthConfig    `yaml:"auth"`
	NATS    NATSConfig    `yaml:"nats"`
	Redis   RedisConfig   `yaml:"redis"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// ServerConfig holds the WebSocket server settings.
type ServerConfig struct {
	Port              int      `yaml:"port"`
	Path              string   `yaml:"path"`
	HeartbeatInterval Duration `yaml:"heartbeat_interval"`
	WriteTimeout      Duration `yaml:"write_timeout"`
}

// AuthConfig holds token verification settings. Secret usually arrives via
// ${...} expansion so it never lives in the file itself.
type AuthConfig struct {
	Secret string `yaml:"secret"`
}

// NATSConfig holds the event ingress settings. An empty URL disables the
// bridge.
type NATSConfig struct {
	URL           string   `yaml:"url"`
	Name          string   `yaml:"name"`
	MaxReconnects int      `yaml:"max_reconnects"`
	ReconnectWait Duration `yaml:"reconnect_wait"`
}

// RedisConfig holds the assignment store settings. An empty address means
// agent position pings broadcast to every tracked order.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// MetricsConfig holds the Prometheus listener settings. Port 0 disables it.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:              8090,
			Path:              "/ws",
			HeartbeatInterval: Duration(30 * time.Second),
			WriteTimeout:      Duration(10 * time.Second),
		},
		NATS: NATSConfig{
			Name:          "village-eats-tracker",
			MaxReconnects: -1,
			ReconnectWait: Duration(2 * time.Second),
		},
		Metrics: MetricsConfig{
			Path: "/metrics",
		},
	}
}

// Load reads, expands and parses the file at path, layered over Default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "config", "Load", "read "+path)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, errors.WrapInvalid(err, "config", "Load", "parse "+path)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the tracker cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port < 1024 || c.Server.Port > 65535 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Validate",
			fmt.Sprintf("server.port %d out of range 1024-65535", c.Server.Port))
	}
	if c.Server.Path == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Validate", "server.path cannot be empty")
	}
	if c.Server.HeartbeatInterval.Std() < time.Second {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Validate",
			"server.heartbeat_interval must be at least 1s")
	}
	if c.Metrics.Port != 0 {
		if c.Metrics.Port < 1024 || c.Metrics.Port > 65535 {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Validate",
				fmt.Sprintf("metrics.port %d out of range 1024-65535", c.Metrics.Port))
		}
		if c.Metrics.Port == c.Server.Port {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Validate",
				"metrics.port must differ from server.port")
		}
	}
	return nil
}
