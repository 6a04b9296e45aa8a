// Package config loads the TOML configuration shared by the client and the server.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Duration is a time.Duration written as "10s" in TOML.
type Duration time.Duration

// UnmarshalText parses Go duration syntax.
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText renders Go duration syntax.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

type Config struct {
	API      APIConfig      `toml:"api"`
	Database DatabaseConfig `toml:"database"`
	Server   ServerConfig   `toml:"server"`
	Cache    CacheConfig    `toml:"cache"`
	Logging  LoggingConfig  `toml:"logging"`
	Board    BoardConfig    `toml:"board"`
}

type APIConfig struct {
	BaseURL string   `toml:"base_url"`
	Timeout Duration `toml:"timeout"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type ServerConfig struct {
	Bind           string   `toml:"bind"`
	APIEndpoint    string   `toml:"api_endpoint"`
	MCPEndpoint    string   `toml:"mcp_endpoint"`
	JWTSecret      string   `toml:"jwt_secret"`
	TokenTTL       Duration `toml:"token_ttl"`
	BcryptCost     int      `toml:"bcrypt_cost"`
	DefaultColumns []string `toml:"default_columns"`
}

// CacheConfig enables the Redis board cache when RedisAddr is set.
type CacheConfig struct {
	RedisAddr string   `toml:"redis_addr"`
	TTL       Duration `toml:"ttl"`
}

type LoggingConfig struct {
	Level   string        `toml:"level"`
	DevFile DevFileConfig `toml:"dev_file"`
}

// DevFileConfig controls the logfmt file sink used in dev mode.
type DevFileConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

type BoardConfig struct {
	ShowDescriptions bool   `toml:"show_descriptions"`
	DefaultBoard     string `toml:"default_board"`
}

// Default returns the built-in configuration.
func Default(dbPath string) Config {
	return Config{
		API: APIConfig{
			BaseURL: "http://localhost:5000/api",
			Timeout: Duration(10 * time.Second),
		},
		Database: DatabaseConfig{
			Path: dbPath,
		},
		Server: ServerConfig{
			Bind:           "127.0.0.1:5000",
			APIEndpoint:    "/api",
			MCPEndpoint:    "/mcp",
			TokenTTL:       Duration(24 * time.Hour),
			BcryptCost:     10,
			DefaultColumns: []string{"To Do", "In Progress", "Done"},
		},
		Cache: CacheConfig{
			TTL: Duration(time.Minute),
		},
		Logging: LoggingConfig{
			Level: "info",
			DevFile: DevFileConfig{
				Enabled: true,
				Dir:     ".minikan/log",
			},
		},
		Board: BoardConfig{
			ShowDescriptions: true,
		},
	}
}

// Load overlays the file at path onto defaults. A missing or empty file yields defaults.
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

	base, err := url.Parse(strings.TrimSpace(c.API.BaseURL))
	if err != nil || (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return fmt.Errorf("invalid api.base_url: %q", c.API.BaseURL)
	}
	if c.API.Timeout <= 0 {
		return errors.New("api.timeout must be > 0")
	}

	if strings.TrimSpace(c.Server.Bind) == "" {
		return errors.New("server.bind is required")
	}
	if strings.Trim(strings.TrimSpace(c.Server.APIEndpoint), "/") == strings.Trim(strings.TrimSpace(c.Server.MCPEndpoint), "/") {
		return errors.New("server.api_endpoint and server.mcp_endpoint must differ")
	}
	if c.Server.TokenTTL < 0 {
		return errors.New("server.token_ttl must be >= 0")
	}
	if c.Server.BcryptCost != 0 && (c.Server.BcryptCost < 4 || c.Server.BcryptCost > 31) {
		return fmt.Errorf("server.bcrypt_cost must be between 4 and 31, got %d", c.Server.BcryptCost)
	}
	for i, name := range c.Server.DefaultColumns {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("server.default_columns[%d] is empty", i)
		}
	}

	if c.Cache.TTL < 0 {
		return errors.New("cache.ttl must be >= 0")
	}

	switch strings.ToLower(strings.TrimSpace(c.Logging.Level)) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level: %q", c.Logging.Level)
	}
	return nil
}

// EnsureConfigDir creates the parent directory of path.
func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
