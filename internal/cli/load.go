package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/sqlchef/internal/source"
)

// LoadOptions holds flags for the load command.
type LoadOptions struct {
	*RootOptions
	Table string
	Query string
}

// LoadSummary is the load command's JSON payload.
type LoadSummary struct {
	File  string `json:"file"`
	Table string `json:"table"`
	Rows  int    `json:"rows"`
}

// NewLoadCommand creates the load command.
func NewLoadCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LoadOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "load <csv>",
		Short: "Load a CSV file into a table",
		Long: `Load a CSV file into a new table on a fresh engine.

The first record is the header. Every column is created as TEXT. With
--query, the query runs against the loaded data and its rows are printed.

Examples:
  sqlchef load sales.csv --table sales
  sqlchef load sales.csv --table sales --query "SELECT region, count(*) FROM sales GROUP BY region"`,
		Args:          checkArgs(cobra.ExactArgs(1)),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Table, "table", "t", "", "target table name (required)")
	cmd.Flags().StringVarP(&opts.Query, "query", "q", "", "query to run after loading")

	return cmd
}

func runLoad(opts *LoadOptions, path string, cmd *cobra.Command) error {
	if opts.Table == "" {
		return NewExitError(ExitCommandError, "--table is required")
	}
	if _, err := os.Stat(path); err != nil {
		return WrapExitError(ExitCommandError, "csv file not readable", err)
	}

	mgr, logger, err := opts.newManager(cmd)
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)
	defer release(ctx, mgr)

	n, err := source.LoadCSVFile(ctx, mgr, path, opts.Table)
	if err != nil {
		return WrapExitError(ExitFailure, "load failed", err)
	}
	logger.Info("csv loaded", "file", path, "table", opts.Table, "rows", n)

	out := opts.formatter(cmd)
	if opts.Query == "" {
		if opts.Format == "json" {
			return out.Success(LoadSummary{File: path, Table: opts.Table, Rows: n})
		}
		return out.Success(fmt.Sprintf("Loaded %d rows into %s", n, opts.Table))
	}

	out.VerboseLog("Loaded %d rows into %s", n, opts.Table)
	table, err := mgr.Query(ctx, opts.Query)
	if err != nil {
		return sessionError(err)
	}
	return out.Rows(table)
}
