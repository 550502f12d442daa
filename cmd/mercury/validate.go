package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"basefolio/mercury/pkg/config"
	"basefolio/mercury/pkg/providers"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Validate a Mercury configuration file without starting the sidecar.

The file is parsed, merged with the built-in rate card, and checked for
structural problems: unknown storage backends, non-positive capacities,
malformed sweep schedules, and service names that cannot be cache-keyed.

Examples:
  # Validate the default config file
  mercury validate

  # Validate a specific file
  mercury validate --config /etc/mercury/mercury.yaml`,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func validateConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return err
	}

	cfg.Services = providers.MergeRateCard(cfg.Services)
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	fmt.Printf("✓ %s is valid (%d services governed)\n", cfgFile, len(cfg.Services))
	return nil
}
