package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/aretw0/arbiter/internal/config"
	"github.com/aretw0/arbiter/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// cli holds what every command resolves before it runs.
type cli struct {
	cfg    *config.Config
	logger *zap.Logger
}

var app = &cli{}

var rootCmd = &cobra.Command{
	Use:   "arbiter",
	Short: "Arbiter runs agent workflows and rule-based decisions",
	Long: `Arbiter executes multi-step agent workflows against a shared state store
and evaluates rules, plans and inferences for the agents that run them.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: app.setupConfig,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	f := rootCmd.PersistentFlags()
	f.String("config-file", "", "Path to a YAML config file")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "console", "Log format (console or json)")
	f.String("store", config.StoreMemory, "State store backend (memory, redis or file)")
	f.String("redis-addr", "localhost:6379", "Redis host:port")
	f.String("redis-password", "", "Redis password")
	f.Int("redis-db", 0, "Redis database number")
	f.String("redis-prefix", "arbiter:", "Prefix for every Redis key")
	f.Duration("redis-ttl", 0, "Expiry of Redis sessions and executions (0 keeps them)")
	f.String("data-dir", ".arbiter/state", "Directory of the file store")
	f.Bool("distributed-lock", false, "Serialize workflow mutations through Redis locks")
	f.Int("store-retries", 3, "Retries for failed store calls")
	f.Int("plan-max-steps", 10, "Upper bound on planned actions")
}

func (c *cli) setupConfig(cmd *cobra.Command, args []string) error {
	configFile, err := cmd.Flags().GetString("config-file")
	if err != nil {
		return err
	}
	cfg, err := config.Load(viper.New(), cmd.Flags(), configFile)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	c.cfg = cfg
	c.logger = logger
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
