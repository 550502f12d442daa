package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"basefolio/mercury/pkg/cli"
	"basefolio/mercury/pkg/config"
	"basefolio/mercury/pkg/governance/storage"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Purge expired entries from the durable store",
	Long: `Remove expired cache entries from the durable store.

A running sidecar sweeps on its own schedule; this command is offline
maintenance for stores the sidecar is not currently using, for example
before archiving a database file.

Examples:
  mercury sweep --config mercury.yaml`,
	RunE: sweepStore,
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}

func sweepStore(cmd *cobra.Command, args []string) error {
	cfg, err := loadRuntimeConfig()
	if err != nil {
		return err
	}

	if cfg.Storage.Backend != config.StorageBackendSQLite {
		return fmt.Errorf("nothing to sweep: the %q backend does not persist between runs", cfg.Storage.Backend)
	}

	store, err := storage.NewSQLiteStoreWithConfig(storage.SQLiteStoreConfig{
		Path:        cfg.Storage.Path,
		BusyTimeout: cfg.Storage.BusyTimeout,
	})
	if err != nil {
		return cli.NewCommandError("sweep", err)
	}
	defer store.Close()

	removed, err := store.PurgeExpired(cmd.Context(), time.Now())
	if err != nil {
		return cli.NewCommandError("sweep", err)
	}

	fmt.Printf("✓ removed %d expired entries from %s\n", removed, cfg.Storage.Path)
	return nil
}
