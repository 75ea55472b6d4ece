package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	charmLog "github.com/charmbracelet/log"
	toml "github.com/pelletier/go-toml/v2"
)

type Config struct {
	Database DatabaseConfig `toml:"database"`
	Outbox   OutboxConfig   `toml:"outbox"`
	Server   ServerConfig   `toml:"server"`
	Remote   RemoteConfig   `toml:"remote"`
	Identity IdentityConfig `toml:"identity"`
	Sync     SyncConfig     `toml:"sync"`
	Cache    CacheConfig    `toml:"cache"`
	Logging  LoggingConfig  `toml:"logging"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

// OutboxConfig locates the client-side durable mutation queue.
type OutboxConfig struct {
	Path string `toml:"path"`
}

type ServerConfig struct {
	Bind        string `toml:"bind"`
	APIEndpoint string `toml:"api_endpoint"`
	MCPEndpoint string `toml:"mcp_endpoint"`
}

type RemoteConfig struct {
	BaseURL string   `toml:"base_url"`
	Timeout Duration `toml:"timeout"`
}

type IdentityConfig struct {
	Username string `toml:"username"`
}

type SyncConfig struct {
	MaxAttempts  int      `toml:"max_attempts"`
	RetryInitial Duration `toml:"retry_initial"`
	RetryMax     Duration `toml:"retry_max"`
}

// CacheConfig enables the Redis board-list cache when RedisAddr is set.
type CacheConfig struct {
	RedisAddr string   `toml:"redis_addr"`
	TTL       Duration `toml:"ttl"`
}

type LoggingConfig struct {
	Level   string        `toml:"level"`
	DevFile DevFileConfig `toml:"dev_file"`
}

type DevFileConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

// Duration is a time.Duration written as a Go duration string ("250ms", "30s").
type Duration struct {
	time.Duration
}

// UnmarshalText parses a duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// MarshalText renders the duration string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the built-in configuration for the given store paths.
func Default(dbPath, outboxPath string) Config {
	return Config{
		Database: DatabaseConfig{
			Path: dbPath,
		},
		Outbox: OutboxConfig{
			Path: outboxPath,
		},
		Server: ServerConfig{
			Bind:        "127.0.0.1:8080",
			APIEndpoint: "/api",
			MCPEndpoint: "/mcp",
		},
		Remote: RemoteConfig{
			BaseURL: "http://127.0.0.1:8080",
			Timeout: Duration{10 * time.Second},
		},
		Sync: SyncConfig{
			MaxAttempts:  8,
			RetryInitial: Duration{250 * time.Millisecond},
			RetryMax:     Duration{30 * time.Second},
		},
		Cache: CacheConfig{
			TTL: Duration{30 * time.Second},
		},
		Logging: LoggingConfig{
			Level: "info",
			DevFile: DevFileConfig{
				Enabled: true,
				Dir:     ".tavla/log",
			},
		},
	}
}

func Load(path string, defaults Config) (Config, error) {
	cfg := defaults
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(content) == 0 {
		return cfg, nil
	}

	if err := toml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode toml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("database path is required")
	}
	if strings.TrimSpace(c.Outbox.Path) == "" {
		return errors.New("outbox path is required")
	}
	if strings.TrimSpace(c.Server.Bind) == "" {
		return errors.New("server.bind is required")
	}
	if strings.Trim(strings.TrimSpace(c.Server.APIEndpoint), "/") == strings.Trim(strings.TrimSpace(c.Server.MCPEndpoint), "/") {
		return fmt.Errorf("server.api_endpoint and server.mcp_endpoint must differ: %q", c.Server.APIEndpoint)
	}

	if raw := strings.TrimSpace(c.Remote.BaseURL); raw != "" {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("invalid remote.base_url: %q", c.Remote.BaseURL)
		}
	}
	if c.Remote.Timeout.Duration < 0 {
		return errors.New("remote.timeout must be >= 0")
	}

	if strings.ContainsFunc(c.Identity.Username, func(r rune) bool { return r == '\n' || r == '\t' }) {
		return fmt.Errorf("invalid identity.username: %q", c.Identity.Username)
	}

	if c.Sync.MaxAttempts < 1 {
		return errors.New("sync.max_attempts must be >= 1")
	}
	if c.Sync.RetryInitial.Duration <= 0 {
		return errors.New("sync.retry_initial must be > 0")
	}
	if c.Sync.RetryMax.Duration < c.Sync.RetryInitial.Duration {
		return errors.New("sync.retry_max must be >= sync.retry_initial")
	}

	if c.Cache.TTL.Duration < 0 {
		return errors.New("cache.ttl must be >= 0")
	}

	if _, err := charmLog.ParseLevel(strings.TrimSpace(c.Logging.Level)); err != nil {
		return fmt.Errorf("invalid logging.level: %q", c.Logging.Level)
	}
	return nil
}

func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
