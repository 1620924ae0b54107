// Package config loads cache settings from a file and the environment.
package config

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"

	"github.com/krisalay/swr-cache/engine"
	"github.com/krisalay/swr-cache/expiration"
	"github.com/krisalay/swr-cache/logging"
)

// EnvPrefix prefixes environment overrides, e.g. SWRCACHE_CACHE_REVALIDATE.
const EnvPrefix = "SWRCACHE"

// Config is the top level configuration.
type Config struct {
	Cache  CacheConfig    `mapstructure:"cache"`
	Log    logging.Config `mapstructure:"log"`
	Server ServerConfig   `mapstructure:"server"`
}

// CacheConfig holds store settings. Negative windows mean "never".
type CacheConfig struct {
	Revalidate         time.Duration `mapstructure:"-"`
	Expire             time.Duration `mapstructure:"-"`
	Shards             int           `mapstructure:"shards"`
	RefreshConcurrency int           `mapstructure:"refresh_concurrency"`
	SweepInterval      time.Duration `mapstructure:"-"`
	ClearSchedule      string        `mapstructure:"clear_schedule"` // cron expression, empty disables
}

// ServerConfig is used by the HTTP demo.
type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	QueryLatency time.Duration `mapstructure:"-"`
}

// Default returns the built in configuration.
func Default() *Config {
	return &Config{
		Cache: CacheConfig{
			Revalidate: engine.DefaultRevalidate,
			Expire:     expiration.Never,
			Shards:     16,
		},
		Log: logging.Config{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr:         ":8080",
			QueryLatency: 200 * time.Millisecond,
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("cache.revalidate", d.Cache.Revalidate.String())
	v.SetDefault("cache.expire", "never")
	v.SetDefault("cache.shards", d.Cache.Shards)
	v.SetDefault("cache.refresh_concurrency", d.Cache.RefreshConcurrency)
	v.SetDefault("cache.sweep_interval", "0s")
	v.SetDefault("cache.clear_schedule", "")
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.query_latency", d.Server.QueryLatency.String())
}

// Load reads path (if not empty) and SWRCACHE_* environment variables on
// top of the defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	return FromViper(v)
}

// FromViper decodes an already populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	var err error
	if cfg.Cache.Revalidate, err = ParseWindow(v.GetString("cache.revalidate")); err != nil {
		return nil, fmt.Errorf("cache.revalidate: %w", err)
	}
	if cfg.Cache.Expire, err = ParseWindow(v.GetString("cache.expire")); err != nil {
		return nil, fmt.Errorf("cache.expire: %w", err)
	}
	if cfg.Cache.SweepInterval, err = ParseWindow(v.GetString("cache.sweep_interval")); err != nil {
		return nil, fmt.Errorf("cache.sweep_interval: %w", err)
	}
	if cfg.Server.QueryLatency, err = time.ParseDuration(v.GetString("server.query_latency")); err != nil {
		return nil, fmt.Errorf("server.query_latency: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

/*
ParseWindow reads a cache window.

Accepted forms:
  - "never", "inf", "infinite" or "off": no window (returns -1)
  - a bare number: seconds, fractions allowed ("300", "0.5")
  - a Go duration: "5m", "1h30m"
*/
func ParseWindow(s string) (time.Duration, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	switch s {
	case "never", "inf", "+inf", "infinite", "off":
		return expiration.Never, nil
	case "":
		return 0, errors.New("empty window")
	}

	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		if secs < 0 || math.IsInf(secs, 0) || math.IsNaN(secs) {
			return expiration.Never, nil
		}
		return time.Duration(secs * float64(time.Second)), nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid window %q", s)
	}
	if d < 0 {
		return expiration.Never, nil
	}
	return d, nil
}

// Validate checks the configuration for values the store cannot use.
func (c *Config) Validate() error {
	if c.Cache.Shards <= 0 {
		return errors.New("cache.shards must be positive")
	}
	if c.Cache.RefreshConcurrency < 0 {
		return errors.New("cache.refresh_concurrency cannot be negative")
	}
	if c.Cache.SweepInterval > 0 && c.Cache.Expire < 0 {
		return errors.New("cache.sweep_interval needs a finite cache.expire")
	}
	if c.Cache.ClearSchedule != "" {
		if _, err := cron.ParseStandard(c.Cache.ClearSchedule); err != nil {
			return fmt.Errorf("cache.clear_schedule: %w", err)
		}
	}
	return nil
}

// EngineConfig maps the file settings onto engine.Config. Collaborators
// (clock, metrics, logger, hook) are left for the caller to set.
func (c *Config) EngineConfig() engine.Config {
	cfg := engine.DefaultConfig()
	cfg.Revalidate = c.Cache.Revalidate
	cfg.Expire = c.Cache.Expire
	cfg.RefreshConcurrency = c.Cache.RefreshConcurrency
	if c.Cache.SweepInterval > 0 {
		cfg.SweepInterval = c.Cache.SweepInterval
	}
	return cfg
}
