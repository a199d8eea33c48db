// Package config loads client settings from YAML or TOML files.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Config holds everything needed to dial and run one connection.
type Config struct {
	URL              string        `yaml:"url" toml:"url"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout" toml:"handshake_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout" toml:"write_timeout"`
	CloseTimeout     time.Duration `yaml:"close_timeout" toml:"close_timeout"`
	ReadBufferSize   int           `yaml:"read_buffer_size" toml:"read_buffer_size"`
	WriteBufferSize  int           `yaml:"write_buffer_size" toml:"write_buffer_size"`
	ReadLimit        int64         `yaml:"read_limit" toml:"read_limit"`

	RateLimit RateLimitConfig `yaml:"rate_limit" toml:"rate_limit"`
	Log       LogConfig       `yaml:"log" toml:"log"`
}

// RateLimitConfig throttles outbound frames.
type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled" toml:"enabled"`
	MessagesPerSecond float64 `yaml:"messages_per_second" toml:"messages_per_second"`
	Burst             int     `yaml:"burst" toml:"burst"`
}

// LogConfig selects the log level and output format.
type LogConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Pretty bool   `yaml:"pretty" toml:"pretty"`
}

// Default returns the settings used for any field a file leaves out.
func Default() *Config {
	return &Config{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     10 * time.Second,
		CloseTimeout:     5 * time.Second,
		ReadBufferSize:   4096,
		WriteBufferSize:  4096,
		RateLimit: RateLimitConfig{
			Enabled:           true,
			MessagesPerSecond: 100,
			Burst:             200,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads the file at path on top of Default and validates the result.
// The format is chosen by extension: .yaml, .yml or .toml.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("configuration file path cannot be empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	cfg := Default()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config from YAML: %w", err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config from TOML: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file extension %q", ext)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks field ranges. An empty URL is allowed so callers can supply it later.
func (c *Config) Validate() error {
	if c.URL != "" {
		u, err := url.Parse(c.URL)
		if err != nil {
			return fmt.Errorf("invalid url %q: %w", c.URL, err)
		}
		if u.Scheme != "ws" && u.Scheme != "wss" {
			return fmt.Errorf("url scheme must be ws or wss, got %q", u.Scheme)
		}
	}

	durations := []struct {
		name  string
		value time.Duration
	}{
		{"handshake_timeout", c.HandshakeTimeout},
		{"write_timeout", c.WriteTimeout},
		{"close_timeout", c.CloseTimeout},
	}
	for _, d := range durations {
		if d.value < 0 {
			return fmt.Errorf("%s cannot be negative, got %s", d.name, d.value)
		}
	}

	if c.ReadBufferSize < 0 || c.WriteBufferSize < 0 {
		return fmt.Errorf("buffer sizes cannot be negative")
	}
	if c.ReadLimit < 0 {
		return fmt.Errorf("read_limit cannot be negative, got %d", c.ReadLimit)
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.MessagesPerSecond <= 0 {
			return fmt.Errorf("rate_limit.messages_per_second must be positive when enabled")
		}
		if c.RateLimit.Burst <= 0 {
			return fmt.Errorf("rate_limit.burst must be positive when enabled")
		}
	}

	if c.Log.Level != "" {
		if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
			return fmt.Errorf("invalid log level %q: %w", c.Log.Level, err)
		}
	}

	return nil
}
