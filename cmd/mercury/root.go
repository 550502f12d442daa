package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"basefolio/mercury/pkg/config"
	"basefolio/mercury/pkg/providers"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "mercury",
	Short: "Mercury - request governance sidecar for dashboard market data",
	Long: `Mercury is a local sidecar that governs requests to third-party
market-data providers on behalf of a dashboard.

It provides:
  - Per-provider rolling-window rate limiting with FIFO queueing
  - Two-tier response caching with stale-on-error fallback
  - Monthly usage tracking with soft and hard cap enforcement

The built-in rate card covers CoinGecko, DeFiLlama, Basescan, DexScreener,
and GeckoTerminal; the configuration file overrides it per service.`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "mercury.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// loadRuntimeConfig loads the configuration file, overlays it on the
// built-in rate card, and validates the result. A missing default config
// file is not an error; an explicitly requested file must exist.
func loadRuntimeConfig() (*config.Config, error) {
	var cfg *config.Config

	_, statErr := os.Stat(cfgFile)
	switch {
	case statErr == nil:
		loaded, err := config.LoadConfigWithEnvOverrides(cfgFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	case errors.Is(statErr, os.ErrNotExist) && !rootCmd.PersistentFlags().Changed("config"):
		cfg = &config.Config{}
		config.ApplyDefaults(cfg)
	default:
		return nil, fmt.Errorf("config file %q: %w", cfgFile, statErr)
	}

	cfg.Services = providers.MergeRateCard(cfg.Services)
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}
