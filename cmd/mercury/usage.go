package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"basefolio/mercury/pkg/cli"
	"basefolio/mercury/pkg/governance/usage"
)

var usageFlags struct {
	address string
	format  string
}

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show monthly usage counters of a running sidecar",
	Long: `Query a running sidecar for the current month's request counters,
per-service limits, and quota consumption.

Examples:
  # Current month's counters
  mercury usage

  # CSV for spreadsheets
  mercury usage --format csv`,
	RunE: showUsage,
}

func init() {
	rootCmd.AddCommand(usageCmd)

	usageCmd.Flags().StringVar(&usageFlags.address, "address", "", "sidecar address (defaults to the configured listen address)")
	usageCmd.Flags().StringVar(&usageFlags.format, "format", "text", "output format: text, json, csv")
}

func showUsage(cmd *cobra.Command, args []string) error {
	address, err := sidecarAddress(usageFlags.address)
	if err != nil {
		return err
	}

	var usages []usage.Usage
	if err := querySidecar(address, "/v1/usage", &usages); err != nil {
		return cli.NewCommandError("usage", err)
	}

	table := cli.Table{
		Headers: []string{"SERVICE", "MONTH", "USED", "LIMIT", "PERCENT"},
		Data:    usages,
	}
	for _, u := range usages {
		limit := "unbounded"
		percent := "-"
		if u.Limit > 0 {
			limit = strconv.FormatInt(u.Limit, 10)
			percent = fmt.Sprintf("%.1f%%", u.Percent)
		}
		table.Rows = append(table.Rows, []string{
			u.Service,
			u.Month,
			strconv.FormatInt(u.Used, 10),
			limit,
			percent,
		})
	}

	return cli.NewFormatter(cli.OutputFormat(usageFlags.format)).FormatTo(os.Stdout, table)
}
