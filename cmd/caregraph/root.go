package main

import (
	"fmt"
	"os"

	"github.com/aretw0/caregraph/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "caregraph",
	Short: "Caregraph routes patient conversations between care responders",
	Long: `Caregraph is a multi-responder conversation router for a clinic front desk.
A triage hub hands patient threads to clinical, scheduling and billing responders
along a fixed graph, streaming replies over NDJSON or WebSocket.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error (env CAREGRAPH_LOG_LEVEL)")
	rootCmd.PersistentFlags().String("log-format", "", "Log format: text, json or otel (env CAREGRAPH_LOG_FORMAT)")
	rootCmd.PersistentFlags().String("topology", "", "YAML file overriding the built-in responder graph (env CAREGRAPH_TOPOLOGY)")
	rootCmd.PersistentFlags().String("store", "", "Thread store: memory, file or redis (env CAREGRAPH_STORE)")
	rootCmd.PersistentFlags().String("redis", "", "Redis URL for the redis store (env CAREGRAPH_REDIS_URL)")
}

// loadConfig reads the environment and applies the flags the user set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	flags := cmd.Flags()
	override := func(name string, dst *string) {
		if flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}
	override("log-level", &cfg.LogLevel)
	override("log-format", &cfg.LogFormat)
	override("topology", &cfg.Engine.Topology)
	override("redis", &cfg.Session.RedisURL)
	override("store", &cfg.Session.Store)
	if flags.Changed("redis") && !flags.Changed("store") {
		cfg.Session.Store = config.StoreRedis
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}
