/*
Package cli provides command-line interface utilities for Mercury.

The cli package includes output formatters, error types, and common CLI
helpers used by the mercury command.

Output Formatting:

The cli package supports multiple output formats (text, JSON, CSV) for
displaying command results. Tabular results use the Table type:

	formatter := cli.NewFormatter(cli.FormatJSON)
	table := cli.Table{Headers: ..., Rows: ..., Data: usages}
	if err := formatter.FormatTo(os.Stdout, table); err != nil {
		return err
	}

Signal Handling:

For graceful shutdown on SIGINT/SIGTERM:

	ctx := cli.SetupSignalHandler()
	// Use ctx for operations that should be cancelled on shutdown
*/
package cli
