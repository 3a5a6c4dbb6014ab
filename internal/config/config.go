// Package config loads the gosession host configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/gate"
	"gopkg.in/yaml.v3"
)

// Storage backends understood by the host.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

// HostConfig is the file-level configuration of a gosession host.
type HostConfig struct {
	Storage StorageConfig `yaml:"storage"`
	Session SessionConfig `yaml:"session"`
	Routes  gate.Routes   `yaml:"routes"`
	Log     LogConfig     `yaml:"log"`
	Server  ServerConfig  `yaml:"server"`
}

// StorageConfig selects and configures the durable slot backend.
type StorageConfig struct {
	Backend    string      `yaml:"backend"`
	Dir        string      `yaml:"dir"`
	SQLitePath string      `yaml:"sqlite_path"`
	Redis      RedisConfig `yaml:"redis"`
}

// RedisConfig holds settings for the redis backend. An empty Addr starts an
// in-process miniredis, which is only useful for local trials.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"-"`
	DB       int           `yaml:"db"`
	Prefix   string        `yaml:"prefix"`
	TTL      time.Duration `yaml:"ttl"`
}

type SessionConfig struct {
	Slot              string        `yaml:"slot"`
	ReadTimeout       time.Duration `yaml:"read_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
	EventBuffer       int           `yaml:"event_buffer"`
	Metrics           bool          `yaml:"metrics"`
	LatencyHistograms bool          `yaml:"latency_histograms"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Dir returns ~/.gosession.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".gosession"), nil
}

// DefaultPath returns ~/.gosession/config.yaml.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Default returns the host defaults: file storage under ~/.gosession/slots,
// the library's session defaults and text logs at info.
func Default() *HostConfig {
	session := goSession.DefaultConfig()
	base := "."
	if dir, err := Dir(); err == nil {
		base = dir
	}

	return &HostConfig{
		Storage: StorageConfig{
			Backend:    BackendFile,
			Dir:        filepath.Join(base, "slots"),
			SQLitePath: filepath.Join(base, "session.db"),
			Redis: RedisConfig{
				Prefix: "gs",
			},
		},
		Session: SessionConfig{
			Slot:         session.Persistence.Slot,
			ReadTimeout:  session.Persistence.ReadTimeout,
			WriteTimeout: session.Persistence.WriteTimeout,
			EventBuffer:  session.Events.BufferSize,
			Metrics:      true,
		},
		Routes: gate.DefaultRoutes(),
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:7480",
		},
	}
}

// Load reads path over the defaults. An empty path means DefaultPath; a
// missing file yields the defaults. GOSESSION_REDIS_PASSWORD supplies the
// redis password, which is never read from the file.
func Load(path string) (*HostConfig, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if pw := os.Getenv("GOSESSION_REDIS_PASSWORD"); pw != "" {
		cfg.Storage.Redis.Password = pw
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg to path as YAML, creating the parent directory.
func Save(path string, cfg *HostConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func (c *HostConfig) Validate() error {
	switch c.Storage.Backend {
	case BackendMemory, BackendRedis:
	case BackendFile:
		if c.Storage.Dir == "" {
			return fmt.Errorf("storage.dir is required for the file backend")
		}
	case BackendSQLite:
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("storage.sqlite_path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.Routes.Login == "" || c.Routes.Authenticated == "" {
		return fmt.Errorf("routes.login and routes.authenticated are required")
	}
	sc := c.StoreConfig()
	return sc.Validate()
}

// StoreConfig converts the session section into a goSession.Config.
func (c *HostConfig) StoreConfig() goSession.Config {
	cfg := goSession.DefaultConfig()
	cfg.Persistence.Slot = c.Session.Slot
	cfg.Persistence.ReadTimeout = c.Session.ReadTimeout
	cfg.Persistence.WriteTimeout = c.Session.WriteTimeout
	cfg.Events.BufferSize = c.Session.EventBuffer
	cfg.Metrics.Enabled = c.Session.Metrics
	cfg.Metrics.EnableLatencyHistograms = c.Session.Metrics && c.Session.LatencyHistograms
	return cfg
}
