package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"basefolio/mercury/pkg/cli"
	"basefolio/mercury/pkg/config"
	"basefolio/mercury/pkg/governance"
	"basefolio/mercury/pkg/providers"
	"basefolio/mercury/pkg/server"
	"basefolio/mercury/pkg/telemetry/logging"
	"basefolio/mercury/pkg/telemetry/metrics"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
	watch         bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Mercury sidecar",
	Long: `Start the Mercury sidecar with the specified configuration.

The sidecar listens on a loopback address and serves governed provider
fetches under /api/{service}/{endpoint}, plus usage and limiter
introspection under /v1/.

Examples:
  # Start with the built-in rate card
  mercury run

  # Start with a custom config
  mercury run --config /etc/mercury/mercury.yaml

  # Override listen address
  mercury run --listen 127.0.0.1:9000

  # Validate config without starting the sidecar
  mercury run --dry-run

  # Hot-reload the rate card when the config file changes
  mercury run --watch`,
	RunE: runSidecar,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting the sidecar")
	runCmd.Flags().BoolVar(&runFlags.watch, "watch", false, "reload governance settings when the config file changes")
}

func runSidecar(cmd *cobra.Command, args []string) error {
	cfg, err := loadRuntimeConfig()
	if err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}

	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	logger, err := logging.New(cfg.Telemetry.Logging, os.Stdout)
	if err != nil {
		return cli.NewConfigError("telemetry.logging", err.Error())
	}

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	printBanner(cfg)

	registry := metrics.NewRegistry()

	system, err := governance.NewSystem(cfg, logger, registry)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer system.Close()

	ctx := cli.SetupSignalHandler()

	if err := system.Start(ctx); err != nil {
		return cli.NewCommandError("run", fmt.Errorf("starting cache sweeper: %w", err))
	}

	if runFlags.watch {
		watcher, err := config.NewWatcher(cfgFile, logger)
		if err != nil {
			return cli.NewCommandError("run", fmt.Errorf("watching config: %w", err))
		}
		defer watcher.Stop()

		go func() {
			_ = watcher.Watch(ctx, func(next *config.Config) {
				next.Services = providers.MergeRateCard(next.Services)
				system.Reload(next)
			})
		}()
	}

	client := providers.NewClient(providers.ClientConfig{
		Governor: system.Governor,
		RateCard: cfg.Services,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	})

	srv := server.New(server.Config{
		Server:   cfg.Server,
		Metrics:  cfg.Telemetry.Metrics,
		System:   system,
		Client:   client,
		Registry: registry,
		Logger:   logger,
	})

	if err := srv.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}
	return nil
}

func printBanner(cfg *config.Config) {
	fmt.Printf("Mercury %s\n", Version)
	fmt.Printf("  listen:   %s\n", cfg.Server.ListenAddress)
	fmt.Printf("  storage:  %s", cfg.Storage.Backend)
	if cfg.Storage.Backend == config.StorageBackendSQLite {
		fmt.Printf(" (%s)", cfg.Storage.Path)
	}
	fmt.Println()
	fmt.Printf("  services: %d governed\n", len(cfg.Services))
}
