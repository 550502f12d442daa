package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"basefolio/mercury/pkg/cli"
	"basefolio/mercury/pkg/config"
	"basefolio/mercury/pkg/governance/storage"
	"basefolio/mercury/pkg/governance/usage"
)

var resetFlags struct {
	service string
	all     bool
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset monthly usage counters in the durable store",
	Long: `Zero the current month's usage counter for a service, or for all
configured services.

This is offline maintenance against the durable store: stop the sidecar
first, or its in-memory counters will simply repopulate the values.
Counters from previous months are untouched.

Examples:
  # Reset one service
  mercury reset --service coingecko

  # Reset every configured service
  mercury reset --all`,
	RunE: resetUsage,
}

func init() {
	rootCmd.AddCommand(resetCmd)

	resetCmd.Flags().StringVar(&resetFlags.service, "service", "", "service to reset")
	resetCmd.Flags().BoolVar(&resetFlags.all, "all", false, "reset every configured service")
	resetCmd.MarkFlagsMutuallyExclusive("service", "all")
	resetCmd.MarkFlagsOneRequired("service", "all")
}

func resetUsage(cmd *cobra.Command, args []string) error {
	cfg, err := loadRuntimeConfig()
	if err != nil {
		return err
	}

	if cfg.Storage.Backend != config.StorageBackendSQLite {
		return fmt.Errorf("nothing to reset: the %q backend does not persist between runs", cfg.Storage.Backend)
	}

	store, err := storage.NewSQLiteStoreWithConfig(storage.SQLiteStoreConfig{
		Path:        cfg.Storage.Path,
		BusyTimeout: cfg.Storage.BusyTimeout,
	})
	if err != nil {
		return cli.NewCommandError("reset", err)
	}
	defer store.Close()

	limits := make(map[string]int64, len(cfg.Services))
	for service, sc := range cfg.Services {
		limits[service] = sc.MonthlyLimit
	}
	tracker := usage.NewTracker(usage.Config{
		Store:  store,
		Limits: limits,
		Logger: slog.Default(),
	})

	targets := []string{resetFlags.service}
	if resetFlags.all {
		targets = targets[:0]
		for service := range cfg.Services {
			targets = append(targets, service)
		}
	}

	ctx := context.Background()
	for _, service := range targets {
		if _, known := cfg.Services[service]; !known {
			return fmt.Errorf("unknown service %q", service)
		}
		if err := tracker.Reset(ctx, service); err != nil {
			return cli.NewCommandError("reset", err)
		}
		fmt.Printf("✓ reset %s for %s\n", service, usage.MonthKey(tracker.Now()))
	}

	return nil
}
