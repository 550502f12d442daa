package main

import (
	"os"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"basefolio/mercury/pkg/cli"
	"basefolio/mercury/pkg/governance/ratelimit"
)

var statusFlags struct {
	address string
	format  string
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show rate limiter status of a running sidecar",
	Long: `Query a running sidecar for a per-service rate limiter snapshot:
window occupancy, remaining slots, queue depth, and the wait until the
next slot opens.

Examples:
  # Snapshot of the locally running sidecar
  mercury status

  # JSON output for scripts
  mercury status --format json`,
	RunE: showStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVar(&statusFlags.address, "address", "", "sidecar address (defaults to the configured listen address)")
	statusCmd.Flags().StringVar(&statusFlags.format, "format", "text", "output format: text, json, csv")
}

func showStatus(cmd *cobra.Command, args []string) error {
	address, err := sidecarAddress(statusFlags.address)
	if err != nil {
		return err
	}

	var statuses map[string]ratelimit.Status
	if err := querySidecar(address, "/v1/limits", &statuses); err != nil {
		return cli.NewCommandError("status", err)
	}

	services := make([]string, 0, len(statuses))
	for service := range statuses {
		services = append(services, service)
	}
	sort.Strings(services)

	table := cli.Table{
		Headers: []string{"SERVICE", "CAPACITY", "IN WINDOW", "REMAINING", "QUEUED", "NEXT SLOT"},
		Data:    statuses,
	}
	for _, service := range services {
		st := statuses[service]
		table.Rows = append(table.Rows, []string{
			st.Service,
			strconv.Itoa(st.Capacity),
			strconv.Itoa(st.InWindow),
			strconv.Itoa(st.Remaining),
			strconv.Itoa(st.QueueDepth),
			st.NextSlot.String(),
		})
	}

	return cli.NewFormatter(cli.OutputFormat(statusFlags.format)).FormatTo(os.Stdout, table)
}
