// Package config loads the ferry configuration file.
//
// The format follows the file extension: .json, .toml, or YAML for anything
// else. A missing file yields the defaults.
package config

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/aretw0/ferry/internal/logging"
)

// DefaultPath is looked up when no --config flag is given.
const DefaultPath = "ferry.yaml"

// History backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

// Config is the top-level ferry configuration.
type Config struct {
	BaseURL  string        `yaml:"base_url" json:"base_url" toml:"base_url"`
	RootID   string        `yaml:"root_id" json:"root_id" toml:"root_id"`
	Timeout  Duration      `yaml:"timeout" json:"timeout" toml:"timeout"`
	LogLevel string        `yaml:"log_level" json:"log_level" toml:"log_level"`
	History  HistoryConfig `yaml:"history" json:"history" toml:"history"`
	Metrics  MetricsConfig `yaml:"metrics" json:"metrics" toml:"metrics"`
}

// HistoryConfig selects and decorates the history entry storage.
type HistoryConfig struct {
	Backend string      `yaml:"backend" json:"backend" toml:"backend"` // memory | file | redis | sqlite
	Path    string      `yaml:"path" json:"path" toml:"path"`          // file directory or sqlite database
	Scope   string      `yaml:"scope" json:"scope" toml:"scope"`
	Redis   RedisConfig `yaml:"redis" json:"redis" toml:"redis"`

	// EncryptionKey is a hex encoded 32-byte AES key. Empty disables encryption.
	EncryptionKey string   `yaml:"encryption_key" json:"encryption_key" toml:"encryption_key"`
	FallbackKeys  []string `yaml:"fallback_keys" json:"fallback_keys" toml:"fallback_keys"`
	Redact        []string `yaml:"redact" json:"redact" toml:"redact"`
}

// RedisConfig configures the redis backend.
type RedisConfig struct {
	Addr     string   `yaml:"addr" json:"addr" toml:"addr"`
	Password string   `yaml:"password" json:"password" toml:"password"`
	DB       int      `yaml:"db" json:"db" toml:"db"`
	Prefix   string   `yaml:"prefix" json:"prefix" toml:"prefix"`
	TTL      Duration `yaml:"ttl" json:"ttl" toml:"ttl"`
}

// MetricsConfig configures the Prometheus endpoint of long-running commands.
type MetricsConfig struct {
	Addr string `yaml:"addr" json:"addr" toml:"addr"`
}

// Duration is a time.Duration written as "1m30s" in every format.
type Duration struct {
	time.Duration
}

// UnmarshalText parses a Go duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		d.Duration = 0
		return nil
	}
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText renders the duration as a Go duration string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		RootID:   "app",
		Timeout:  Duration{30 * time.Second},
		LogLevel: "info",
		History: HistoryConfig{
			Backend: BackendMemory,
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Prefix: "ferry:",
			},
		},
	}
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, cfg)
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	default:
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field values that would otherwise fail late.
func (c *Config) Validate() error {
	if c.BaseURL != "" {
		u, err := url.Parse(c.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid base_url %q: must be an absolute URL", c.BaseURL)
		}
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level: %w", err)
	}
	switch c.History.Backend {
	case BackendMemory, BackendFile, BackendRedis:
	case BackendSQLite:
		if c.History.Path == "" {
			return fmt.Errorf("history.path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("unknown history backend %q", c.History.Backend)
	}
	for _, p := range c.History.Redact {
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("invalid history.redact pattern %q: %w", p, err)
		}
	}
	if _, _, err := c.History.Keys(); err != nil {
		return err
	}
	return nil
}

// Keys decodes the encryption keys. A nil active key means no encryption.
func (h HistoryConfig) Keys() (active []byte, fallback [][]byte, err error) {
	if h.EncryptionKey == "" {
		return nil, nil, nil
	}
	active, err = decodeKey(h.EncryptionKey)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid history.encryption_key: %w", err)
	}
	for i, k := range h.FallbackKeys {
		key, err := decodeKey(k)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid history.fallback_keys[%d]: %w", i, err)
		}
		fallback = append(fallback, key)
	}
	return active, fallback, nil
}

func decodeKey(s string) ([]byte, error) {
	key, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, err
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("key must be 32 bytes, got %d", len(key))
	}
	return key, nil
}
