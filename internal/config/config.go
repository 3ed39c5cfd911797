// Package config loads runtime settings from flags, POPIS_* environment
// variables and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ardanlabs/conf/v3"
	"github.com/joho/godotenv"
)

// Prefix of every environment variable read by Load.
const Prefix = "POPIS"

// Backend names.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Config holds all configuration for the server.
type Config struct {
	Addr        string `conf:"default:localhost:8080,help:listen address"`
	Backend     string `conf:"default:sqlite,enum:sqlite|redis|memory,help:persistence backend"`
	DBPath      string `conf:"default:popis.sqlite3,help:path to SQLite database file"`
	RedisURL    string `conf:"default:redis://localhost:6379/0,noprint,help:Redis URL for the redis backend"`
	RedisPrefix string `conf:"default:popis:,help:prefix of every Redis key"`
	MemoryQuota int    `conf:"default:5242880,help:byte quota of the memory backend"`
	CORSOrigins string `conf:"default:*,help:comma-separated origins allowed to call the API"`
	LogLevel    string `conf:"default:info,enum:debug|info|warn|error"`
	Development bool   `conf:"default:false,help:relax security headers for local HTTP use"`
}

// ErrHelp is returned by Load after printing usage.
var ErrHelp = errors.New("help requested")

// Load reads configuration. conf parses flags from os.Args, so callers with
// subcommands must strip the subcommand first.
func Load() (*Config, error) {
	var cfg Config
	_ = godotenv.Load()

	help, err := conf.Parse(Prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil, ErrHelp
		}
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

// Origins splits CORSOrigins into a list.
func (c *Config) Origins() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// Level parses LogLevel, falling back to info.
func (c *Config) Level() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// String renders the configuration for the startup log, omitting secrets.
func (c *Config) String() string {
	out, err := conf.String(c)
	if err != nil {
		return fmt.Sprintf("config: %v", err)
	}
	return out
}
