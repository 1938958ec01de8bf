// Package config loads downline settings.
//
// Settings are layered, later sources winning:
//
//  1. [Default]
//  2. a TOML file (by default $XDG_CONFIG_HOME/downline/config.toml)
//  3. a .env file, which only fills variables not already set
//  4. DOWNLINE_* environment variables
//
// CLI flags are applied on top by the caller.
//
//	[server]
//	addr = ":8080"
//
//	[store]
//	driver = "sqlite"
//	path = "/var/lib/downline/downline.db"
//
//	[cache]
//	driver = "redis"
//	redis_url = "redis://localhost:6379/0"
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	derrors "github.com/matzehuels/downline/pkg/errors"
)

// EnvPrefix prefixes every environment variable read by [Load].
const EnvPrefix = "DOWNLINE_"

// Store drivers.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
)

// Cache drivers.
const (
	CacheNone  = "none"
	CacheFile  = "file"
	CacheRedis = "redis"
)

// Config is the complete configuration.
type Config struct {
	Server ServerConfig `toml:"server" envPrefix:"SERVER_"`
	Store  StoreConfig  `toml:"store" envPrefix:"STORE_"`
	Cache  CacheConfig  `toml:"cache" envPrefix:"CACHE_"`
	Render RenderConfig `toml:"render" envPrefix:"RENDER_"`
	Log    LogConfig    `toml:"log" envPrefix:"LOG_"`
}

// ServerConfig configures `downline serve`.
type ServerConfig struct {
	Addr            string        `toml:"addr" env:"ADDR"`
	ReadTimeout     time.Duration `toml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `toml:"write_timeout" env:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	// OwnerHeader names the request header that carries the owner id.
	OwnerHeader string `toml:"owner_header" env:"OWNER_HEADER"`
}

// StoreConfig selects and configures the record store.
type StoreConfig struct {
	Driver   string `toml:"driver" env:"DRIVER"`
	Path     string `toml:"path" env:"PATH"`         // sqlite
	DSN      string `toml:"dsn" env:"DSN"`           // postgres
	URI      string `toml:"uri" env:"URI"`           // mongo
	Database string `toml:"database" env:"DATABASE"` // mongo
}

// CacheConfig selects and configures the artifact cache.
type CacheConfig struct {
	Driver   string `toml:"driver" env:"DRIVER"`
	Dir      string `toml:"dir" env:"DIR"`             // file
	RedisURL string `toml:"redis_url" env:"REDIS_URL"` // redis
	Prefix   string `toml:"prefix" env:"PREFIX"`       // redis
}

// RenderConfig holds rendering defaults.
type RenderConfig struct {
	Width       float64  `toml:"width" env:"WIDTH"`
	Height      float64  `toml:"height" env:"HEIGHT"`
	Formats     []string `toml:"formats" env:"FORMATS" envSeparator:","`
	Legend      bool     `toml:"legend" env:"LEGEND"`
	Transitions bool     `toml:"transitions" env:"TRANSITIONS"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level      string `toml:"level" env:"LEVEL"`
	Timestamps bool   `toml:"timestamps" env:"TIMESTAMPS"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			OwnerHeader:     "X-Owner-ID",
		},
		Store: StoreConfig{
			Driver:   StoreSQLite,
			Database: "downline",
		},
		Cache: CacheConfig{
			Driver: CacheFile,
			Prefix: "downline:",
		},
		Render: RenderConfig{
			Width:   1200,
			Height:  1000,
			Formats: []string{"svg"},
		},
		Log: LogConfig{
			Level:      "info",
			Timestamps: true,
		},
	}
}

// Load builds a Config from the layered sources. An empty path or dotenv
// uses the default location and tolerates its absence; an explicit path
// must exist.
func Load(path, dotenv string) (*Config, error) {
	cfg := Default()

	required := path != ""
	if path == "" {
		if dir, err := ConfigDir(); err == nil {
			path = filepath.Join(dir, "config.toml")
		}
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			if !required && errors.Is(err, fs.ErrNotExist) {
				err = nil
			}
			if err != nil {
				return nil, err
			}
		}
	}

	if err := loadDotEnv(dotenv); err != nil {
		return nil, err
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return derrors.New(derrors.ErrCodeInvalidInput, "unknown config keys in %s: %s", path, strings.Join(keys, ", "))
	}
	return nil
}

func loadDotEnv(path string) error {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load env (%s): %w", path, err)
		}
		return nil
	}
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return fmt.Errorf("load env (.env): %w", err)
		}
	}
	return nil
}

// Validate checks driver names and required fields.
func (c *Config) Validate() error {
	var errs []string

	switch c.Store.Driver {
	case StoreMemory, StoreSQLite:
	case StorePostgres:
		if c.Store.DSN == "" {
			errs = append(errs, "store.dsn is required for postgres")
		}
	case StoreMongo:
		if c.Store.URI == "" {
			errs = append(errs, "store.uri is required for mongo")
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown store driver %q", c.Store.Driver))
	}

	switch c.Cache.Driver {
	case CacheNone, CacheFile:
	case CacheRedis:
		if c.Cache.RedisURL == "" {
			errs = append(errs, "cache.redis_url is required for redis")
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown cache driver %q", c.Cache.Driver))
	}

	if c.Server.Addr == "" {
		errs = append(errs, "server.addr is required")
	}
	if c.Server.OwnerHeader == "" {
		errs = append(errs, "server.owner_header is required")
	}
	if c.Render.Width < 0 || c.Render.Height < 0 {
		errs = append(errs, "render size must not be negative")
	}
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, strings.ToLower(c.Log.Level)) {
		errs = append(errs, fmt.Sprintf("unknown log level %q", c.Log.Level))
	}

	if len(errs) > 0 {
		return derrors.New(derrors.ErrCodeInvalidInput, "invalid config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// SQLitePath returns the configured database path, or the default under
// the data directory.
func (c *Config) SQLitePath() (string, error) {
	if c.Store.Path != "" {
		return c.Store.Path, nil
	}
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "downline.db"), nil
}

// CacheDir returns the configured file cache directory, or the XDG default.
func (c *Config) CacheDir() (string, error) {
	if c.Cache.Dir != "" {
		return c.Cache.Dir, nil
	}
	return CacheDir()
}
