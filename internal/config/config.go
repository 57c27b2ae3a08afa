// Package config loads the TOML configuration of the fnbridge host binary.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// EnvPath names the environment variable consulted when no path is given.
const EnvPath = "FNBRIDGE_CONFIG"

type Config struct {
	Server   Server   `toml:"server"`
	Function Function `toml:"function"`
	Store    Store    `toml:"store"`
	Auth     Auth     `toml:"auth"`
	Log      Log      `toml:"log"`
}

type Server struct {
	Addr           string `toml:"addr"`
	H2C            bool   `toml:"h2c"`
	ReadTimeoutMS  int    `toml:"read_timeout_ms"`
	WriteTimeoutMS int    `toml:"write_timeout_ms"`
	Compress       bool   `toml:"compress"`
	WebSocket      bool   `toml:"websocket"`
}

// Function selects the guest program. Either Source (a file) or Name (a
// stored function, requires [store]) must be set.
type Function struct {
	Name          string `toml:"name"`
	Source        string `toml:"source"`
	Handler       string `toml:"handler"`
	Loader        string `toml:"loader"`
	PoolSize      int    `toml:"pool_size"`
	LockMode      string `toml:"lock_mode"`
	MemoryLimitMB int    `toml:"memory_limit_mb"`
}

type Store struct {
	Path string `toml:"path"`
}

// Auth enables HS256 bearer tokens when JWTSecret is set.
type Auth struct {
	JWTSecret string `toml:"jwt_secret"`
	Issuer    string `toml:"issuer"`
}

type Log struct {
	Dir        string `toml:"dir"`
	File       string `toml:"file"`
	Level      string `toml:"level"`
	Console    bool   `toml:"console"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

// Load reads path, or $FNBRIDGE_CONFIG when path is empty, fills defaults
// and validates the result.
func Load(path string) (Config, error) {
	if path == "" {
		path = os.Getenv(EnvPath)
	}
	if path == "" {
		return Config{}, fmt.Errorf("no config file given and %s is not set", EnvPath)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(b)
}

// Parse decodes a TOML document, fills defaults and validates it.
func Parse(b []byte) (Config, error) {
	var cfg Config
	if err := toml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeoutMS == 0 {
		c.Server.ReadTimeoutMS = 10000
	}
	if c.Server.WriteTimeoutMS == 0 {
		c.Server.WriteTimeoutMS = 30000
	}
	if c.Function.Handler == "" {
		c.Function.Handler = "handler"
	}
	if c.Function.Loader == "" {
		c.Function.Loader = "js"
	}
	if c.Function.PoolSize == 0 {
		c.Function.PoolSize = 1
	}
	if c.Function.LockMode == "" {
		c.Function.LockMode = "worker"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate checks field values and cross-section requirements.
func (c *Config) Validate() error {
	f := c.Function
	switch {
	case f.Source == "" && f.Name == "":
		return errors.New("function: one of source or name is required")
	case f.Source != "" && f.Name != "":
		return errors.New("function: source and name are mutually exclusive")
	case f.Name != "" && strings.TrimSpace(c.Store.Path) == "":
		return fmt.Errorf("function %q: store.path is required for stored functions", f.Name)
	case f.PoolSize < 1:
		return fmt.Errorf("function: pool_size must be positive, got %d", f.PoolSize)
	case f.MemoryLimitMB < 0:
		return fmt.Errorf("function: memory_limit_mb must not be negative, got %d", f.MemoryLimitMB)
	}
	switch f.Loader {
	case "js", "ts":
	default:
		return fmt.Errorf("function: unsupported loader %q", f.Loader)
	}
	switch f.LockMode {
	case "worker", "process", "none":
	default:
		return fmt.Errorf("function: unsupported lock_mode %q", f.LockMode)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log: unsupported level %q", c.Log.Level)
	}
	if c.Server.ReadTimeoutMS < 0 || c.Server.WriteTimeoutMS < 0 {
		return errors.New("server: timeouts must not be negative")
	}
	return nil
}
