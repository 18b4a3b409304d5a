package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/arbiter/internal/config"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load(viper.New(), nil, "")
	require.NoError(t, err)
	assert.Equal(t, config.StoreMemory, cfg.Store)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 3, cfg.StoreRetries)
	assert.Equal(t, 10, cfg.PlanMaxSteps)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "arbiter.yaml")
	require.NoError(t, os.WriteFile(file, []byte("store: redis\nredis-ttl: 90s\nlog-level: warn\nplan-max-steps: 4\n"), 0o644))

	t.Setenv("ARBITER_LOG_LEVEL", "debug")
	t.Setenv("ARBITER_REDIS_DB", "2")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("plan-max-steps", 10, "")
	require.NoError(t, flags.Parse([]string{"--plan-max-steps=7"}))

	cfg, err := config.Load(viper.New(), flags, file)
	require.NoError(t, err)
	assert.Equal(t, config.StoreRedis, cfg.Store, "file overrides default")
	assert.Equal(t, 90*time.Second, cfg.RedisTTL)
	assert.Equal(t, "debug", cfg.LogLevel, "env overrides file")
	assert.Equal(t, 2, cfg.RedisDB)
	assert.Equal(t, 7, cfg.PlanMaxSteps, "flags override everything")
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("ARBITER_STORE", "postgres")
	_, err := config.Load(viper.New(), nil, "")
	assert.ErrorContains(t, err, "unknown store type")
}

func TestValidate_DistributedLockNeedsRedis(t *testing.T) {
	cfg := &config.Config{Store: config.StoreFile, DistributedLock: true, PlanMaxSteps: 10}
	assert.Error(t, cfg.Validate())
	cfg.Store = config.StoreRedis
	assert.NoError(t, cfg.Validate())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(viper.New(), nil, filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
