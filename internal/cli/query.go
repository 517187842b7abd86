package cli

import (
	"github.com/spf13/cobra"
)

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query <sql>",
		Short: "Run one SQL query",
		Long: `Run one SQL query against a fresh engine session and print its rows.

The SQL text is passed to the engine untouched. Rows print in engine order.

Exit codes:
  0 - Query succeeded
  1 - Query failed or the engine could not start
  2 - Command error (bad flags, invalid config)

Examples:
  sqlchef query "SELECT 1 AS x"
  sqlchef query "SELECT 42 AS answer" --format json
  sqlchef --config sqlchef.yaml query "PRAGMA compile_options"`,
		Args:          checkArgs(cobra.ExactArgs(1)),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runQuery(opts *RootOptions, sqlText string, cmd *cobra.Command) error {
	mgr, _, err := opts.newManager(cmd)
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)
	defer release(ctx, mgr)

	table, err := mgr.Query(ctx, sqlText)
	if err != nil {
		return sessionError(err)
	}

	return opts.formatter(cmd).Rows(table)
}
