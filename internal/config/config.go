// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StudentDiary Contributors

// Package config loads diary settings from defaults, the DATABASE_URL
// environment variable, a YAML file and command-line flags, in increasing
// order of precedence.
package config

import (
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/studentdiary/diary/internal/auth"
	"github.com/studentdiary/diary/internal/logging"
)

// Config is the full diary configuration.
type Config struct {
	Database DatabaseConfig `koanf:"database"`
	Log      LogConfig      `koanf:"log"`
	Password PasswordConfig `koanf:"password"`
	Redis    RedisConfig    `koanf:"redis"`
	Metrics  MetricsConfig  `koanf:"metrics"`
}

// DatabaseConfig locates PostgreSQL.
type DatabaseConfig struct {
	URL string `koanf:"url"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// PasswordConfig sets the argon2id cost for new digests.
type PasswordConfig struct {
	Memory  uint32 `koanf:"memory"`
	Time    uint32 `koanf:"time"`
	Threads uint8  `koanf:"threads"`
}

// RedisConfig enables cross-process per-user locking when Addr is set.
type RedisConfig struct {
	Addr string `koanf:"addr"`
}

// MetricsConfig controls the end-of-command metrics report.
type MetricsConfig struct {
	Enabled bool `koanf:"enabled"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	p := auth.DefaultArgon2Params()
	return Config{
		Log:      LogConfig{Format: "text", Level: "info"},
		Password: PasswordConfig{Memory: p.Memory, Time: p.Time, Threads: p.Threads},
	}
}

// Argon2Params returns the hasher parameters for this configuration.
func (c Config) Argon2Params() auth.Argon2Params {
	p := auth.DefaultArgon2Params()
	p.Memory = c.Password.Memory
	p.Time = c.Password.Time
	p.Threads = c.Password.Threads
	return p
}

// Validate checks values that would otherwise fail late.
func (c Config) Validate() error {
	switch c.Log.Format {
	case "json", "text":
	default:
		return oops.Code("CONFIG_INVALID").With("log.format", c.Log.Format).Errorf("log.format must be json or text")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return oops.Code("CONFIG_INVALID").With("log.level", c.Log.Level).Errorf("log.level must be debug, info, warn or error")
	}
	if err := c.Argon2Params().Validate(); err != nil {
		return oops.Code("CONFIG_INVALID").Errorf("password: %v", err)
	}
	return nil
}

// Load builds a Config. path may be empty; flags may be nil. Only flags the
// user actually set override file values. Flag names use "-" where keys use
// "." (--database-url sets database.url).
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	d := Defaults()
	for key, val := range map[string]any{
		"log.format":       d.Log.Format,
		"log.level":        d.Log.Level,
		"password.memory":  d.Password.Memory,
		"password.time":    d.Password.Time,
		"password.threads": d.Password.Threads,
		"metrics.enabled":  d.Metrics.Enabled,
	} {
		if err := k.Set(key, val); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("key", key).Wrap(err)
		}
	}

	if url := os.Getenv("DATABASE_URL"); url != "" {
		if err := k.Set("database.url", url); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("key", "database.url").Wrap(err)
		}
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
		}
	}

	if flags != nil {
		provider := posflag.ProviderWithValue(flags, ".", k, func(key, value string) (string, any) {
			return strings.ReplaceAll(key, "-", "."), value
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// RegisterFlags adds the configuration flags to fs. Their defaults are
// placeholders; Load only applies flags the user set, plus flags whose key
// no other source provided.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Defaults()
	fs.String("database-url", "", "PostgreSQL connection string (default $DATABASE_URL)")
	fs.String("log-format", d.Log.Format, "log format: json or text")
	fs.String("log-level", d.Log.Level, "log level: debug, info, warn, error")
	fs.String("redis-addr", "", "Redis address for cross-process user locks")
	fs.Bool("metrics-enabled", d.Metrics.Enabled, "log auth metrics when the command finishes")
}
