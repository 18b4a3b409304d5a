// Package config loads Arbiter settings from flags, environment and an optional file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. ARBITER_STORE.
const EnvPrefix = "ARBITER"

// Store backends.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
	StoreFile   = "file"
)

// Config is the resolved runtime configuration.
type Config struct {
	LogLevel  string `mapstructure:"log-level"`
	LogFormat string `mapstructure:"log-format"`

	Store         string        `mapstructure:"store"`
	RedisAddr     string        `mapstructure:"redis-addr"`
	RedisPassword string        `mapstructure:"redis-password"`
	RedisDB       int           `mapstructure:"redis-db"`
	RedisPrefix   string        `mapstructure:"redis-prefix"`
	RedisTTL      time.Duration `mapstructure:"redis-ttl"`
	DataDir       string        `mapstructure:"data-dir"`

	// DistributedLock serializes workflow mutations through Redis as well.
	DistributedLock bool `mapstructure:"distributed-lock"`
	StoreRetries    int  `mapstructure:"store-retries"`

	HTTPAddr     string `mapstructure:"http-addr"`
	PlanMaxSteps int    `mapstructure:"plan-max-steps"`
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log-level", "info")
	v.SetDefault("log-format", "console")
	v.SetDefault("store", StoreMemory)
	v.SetDefault("redis-addr", "localhost:6379")
	v.SetDefault("redis-password", "")
	v.SetDefault("redis-db", 0)
	v.SetDefault("redis-prefix", "arbiter:")
	v.SetDefault("redis-ttl", time.Duration(0))
	v.SetDefault("data-dir", ".arbiter/state")
	v.SetDefault("distributed-lock", false)
	v.SetDefault("store-retries", 3)
	v.SetDefault("http-addr", ":8080")
	v.SetDefault("plan-max-steps", 10)
}

// Load resolves the configuration: flags override environment, which
// overrides the config file, which overrides defaults.
// flags may be nil; configFile may be empty.
func Load(v *viper.Viper, flags *pflag.FlagSet, configFile string) (*Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("failed to bind flags: %w", err)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings no component can honor.
func (c *Config) Validate() error {
	switch c.Store {
	case StoreMemory, StoreRedis, StoreFile:
	default:
		return fmt.Errorf("unknown store type %q (want memory, redis or file)", c.Store)
	}
	if c.DistributedLock && c.Store != StoreRedis {
		return fmt.Errorf("distributed-lock requires the redis store")
	}
	if c.StoreRetries < 0 {
		return fmt.Errorf("store-retries must not be negative")
	}
	if c.PlanMaxSteps <= 0 {
		return fmt.Errorf("plan-max-steps must be positive")
	}
	return nil
}
