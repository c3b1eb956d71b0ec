package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix namespaces every environment override.
const EnvPrefix = "NEWSDESK_"

type Config struct {
	Addr     string `yaml:"addr" env:"ADDR"`
	DBPath   string `yaml:"db_path" env:"DB_PATH"`
	Instance string `yaml:"instance" env:"INSTANCE"`

	Log     LogConfig     `yaml:"log" envPrefix:"LOG_"`
	Redis   RedisConfig   `yaml:"redis" envPrefix:"REDIS_"`
	Hub     HubConfig     `yaml:"hub" envPrefix:"HUB_"`
	WS      WSConfig      `yaml:"ws" envPrefix:"WS_"`
	Session SessionConfig `yaml:"session" envPrefix:"SESSION_"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
}

// RedisConfig enables the cross-process relay and shared sessions when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr" env:"ADDR"`
	Password string `yaml:"password" env:"PASSWORD"`
	DB       int    `yaml:"db" env:"DB"`
}

func (r RedisConfig) Enabled() bool { return strings.TrimSpace(r.Addr) != "" }

type HubConfig struct {
	Buffer int `yaml:"buffer" env:"BUFFER"`
}

type WSConfig struct {
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	FramesPerSecond float64       `yaml:"frames_per_second" env:"FRAMES_PER_SECOND"`
	Burst           int           `yaml:"burst" env:"BURST"`
}

type SessionConfig struct {
	Backend string        `yaml:"backend" env:"BACKEND"`
	TTL     time.Duration `yaml:"ttl" env:"TTL"`
}

func Default() Config {
	return Config{
		Addr:     "127.0.0.1:8080",
		DBPath:   "newsdesk.sqlite",
		Instance: "default",
		Log:      LogConfig{Level: "info", Format: "text"},
		Hub:      HubConfig{Buffer: 64},
		WS: WSConfig{
			WriteTimeout:    10 * time.Second,
			FramesPerSecond: 20,
			Burst:           40,
		},
		Session: SessionConfig{Backend: "memory", TTL: 12 * time.Hour},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// path is non-empty), then NEWSDESK_* environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.DBPath) == "" {
		return errors.New("db_path is required")
	}
	if strings.TrimSpace(c.Instance) == "" {
		return errors.New("instance is required")
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error (got %q)", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json (got %q)", c.Log.Format)
	}
	if c.Hub.Buffer <= 0 {
		return errors.New("hub.buffer must be positive")
	}
	if c.WS.WriteTimeout <= 0 {
		return errors.New("ws.write_timeout must be positive")
	}
	if c.WS.FramesPerSecond <= 0 || c.WS.Burst <= 0 {
		return errors.New("ws.frames_per_second and ws.burst must be positive")
	}
	switch c.Session.Backend {
	case "memory":
	case "redis":
		if !c.Redis.Enabled() {
			return errors.New("session.backend redis requires redis.addr")
		}
	default:
		return fmt.Errorf("session.backend must be memory or redis (got %q)", c.Session.Backend)
	}
	return nil
}
