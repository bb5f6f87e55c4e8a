package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
)

// Config holds all configuration for the concept dependency server.
// Precedence: environment variables > config file > defaults.
type Config struct {
	Database DatabaseConfig `toml:"database"`
	Server   ServerConfig   `toml:"server"`
	Cache    CacheConfig    `toml:"cache"`
	CORS     CORSConfig     `toml:"cors"`
	Log      LogConfig      `toml:"log"`
}

// DatabaseConfig holds the read-only store connection details.
type DatabaseConfig struct {
	URL                    string `toml:"url"`
	MaxOpenConns           int    `toml:"max_open_conns"`
	MaxIdleConns           int    `toml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `toml:"conn_max_lifetime_minutes"`
}

// ServerConfig holds HTTP listen settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port string `toml:"port"`
}

// CacheConfig controls the dependency-index rebuild schedule (spec §4.3).
type CacheConfig struct {
	ExpirationMinutes int `toml:"expiration_minutes"`
}

// CORSConfig holds the CORS allow-list (spec §5, §6).
type CORSConfig struct {
	AllowedOrigins string `toml:"allowed_origins"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `toml:"level"` // debug, info, warn, error
}

// Load creates a Config by reading from a TOML config file and environment
// variables. Precedence: environment variables > config file > defaults.
//
// Config file search order (first found wins):
//  1. Path passed via configPath parameter (from --config flag)
//  2. CONCEPTDEPS_CONFIG environment variable
//  3. ./conceptdeps.toml (current directory)
//  4. ~/.config/conceptdeps/conceptdeps.toml (XDG-style)
//
// All fields are optional in the config file. Environment variables always
// override file values.
func Load(configPath string) (*Config, error) {
	cfg := &Config{
		Database: DatabaseConfig{
			MaxOpenConns:           10,
			MaxIdleConns:           5,
			ConnMaxLifetimeMinutes: 30,
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: "8080",
		},
		Cache: CacheConfig{
			ExpirationMinutes: 60,
		},
		CORS: CORSConfig{
			AllowedOrigins: "*",
		},
		Log: LogConfig{
			Level: "info",
		},
	}

	if err := cfg.loadFile(configPath); err != nil {
		return nil, err
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile finds and parses the TOML config file. If no file is found,
// this is a no-op (config file is optional).
func (c *Config) loadFile(configPath string) error {
	path := resolveConfigPath(configPath)
	if path == "" {
		return nil // no config file found; rely on defaults + env
	}

	if _, err := toml.DecodeFile(path, c); err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}

	return nil
}

// resolveConfigPath determines which config file to use. Returns empty
// string if no config file is found (config file is optional).
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		return explicit // caller wants this file; let DecodeFile report if missing
	}

	if p := os.Getenv("CONCEPTDEPS_CONFIG"); p != "" {
		return p
	}

	if _, err := os.Stat("conceptdeps.toml"); err == nil {
		return "conceptdeps.toml"
	}

	if home, err := os.UserHomeDir(); err == nil {
		p := home + "/.config/conceptdeps/conceptdeps.toml"
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}

// applyEnv overlays environment variables on top of existing config values.
// An env var only takes effect if it is non-empty.
func (c *Config) applyEnv() {
	envOverride("CONCEPTDEPS_DATABASE_URL", &c.Database.URL)
	envOverride("CONCEPTDEPS_HOST", &c.Server.Host)
	envOverride("CONCEPTDEPS_PORT", &c.Server.Port)
	envOverride("CONCEPTDEPS_CORS_ALLOWED_ORIGINS", &c.CORS.AllowedOrigins)
	envOverride("CONCEPTDEPS_LOG_LEVEL", &c.Log.Level)

	if v := os.Getenv("CONCEPTDEPS_CACHE_EXPIRATION_MINUTES"); v != "" {
		if minutes, err := strconv.Atoi(v); err == nil && minutes > 0 {
			c.Cache.ExpirationMinutes = minutes
		}
	}
}

// Validate checks that required fields are present.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("database url is required: set database.url in config file, or CONCEPTDEPS_DATABASE_URL env var")
	}
	if c.Cache.ExpirationMinutes <= 0 {
		return fmt.Errorf("cache.expiration_minutes must be positive, got %d", c.Cache.ExpirationMinutes)
	}
	return nil
}

// envOverride sets *dst to the value of the named env var, if it is non-empty.
func envOverride(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
