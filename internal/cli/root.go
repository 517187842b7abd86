package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/sqlchef/internal/config"
	"github.com/roach88/sqlchef/internal/engine"
	"github.com/roach88/sqlchef/internal/session"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string

	// Launcher overrides the engine launcher (for testing).
	// If nil, an engine.SQLLauncher is used.
	Launcher engine.Launcher

	// SessionOptions are appended to the manager options (for testing).
	SessionOptions []session.Option
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the sqlchef CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sqlchef",
		Short: "SQLChef - query data files with an embedded SQL engine",
		Long: `Query data files with an embedded SQL engine.

The engine starts lazily on the first statement and is reused until it is
closed or reset. Loading a new data file always starts from a fresh engine.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return WrapExitError(ExitCommandError, "invalid flags", err)
	})

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to config file (YAML)")

	cmd.AddCommand(NewQueryCommand(opts))
	cmd.AddCommand(NewShellCommand(opts))
	cmd.AddCommand(NewLoadCommand(opts))
	cmd.AddCommand(NewBundlesCommand(opts))
	cmd.AddCommand(NewScriptCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// checkArgs wraps a positional-args validator so usage errors exit with
// ExitCommandError.
func checkArgs(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := validate(cmd, args); err != nil {
			return WrapExitError(ExitCommandError, "invalid arguments", err)
		}
		return nil
	}
}

// formatter builds the output formatter for cmd.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// loadConfig reads --config and builds the logger on cmd's stderr.
func (o *RootOptions) loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	return cfg, cfg.Log.NewLogger(cmd.ErrOrStderr(), o.Verbose), nil
}

// newManager builds a session manager from --config. No engine is started.
func (o *RootOptions) newManager(cmd *cobra.Command) (*session.Manager, *slog.Logger, error) {
	cfg, logger, err := o.loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}

	launcher := o.Launcher
	if launcher == nil {
		launcher = engine.NewSQLLauncher(logger)
	}

	sessionOpts := []session.Option{
		session.WithBundles(cfg.Bundles),
		session.WithLogger(logger),
	}
	sessionOpts = append(sessionOpts, o.SessionOptions...)

	return session.New(launcher, sessionOpts...), logger, nil
}

// commandContext returns cmd's context, or Background when run without one.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// release resets mgr when a command is done with it. Teardown warnings are
// logged by the manager.
func release(ctx context.Context, mgr *session.Manager) {
	mgr.Reset(context.WithoutCancel(ctx))
}

// sessionError maps a manager error to an ExitError.
func sessionError(err error) *ExitError {
	var qe *session.QueryError
	switch {
	case errors.As(err, &qe):
		return WrapExitError(ExitFailure, "query failed", qe.Err)
	case session.IsInitializationError(err):
		return WrapExitError(ExitFailure, "engine failed to start", err)
	default:
		return WrapExitError(ExitFailure, "engine error", err)
	}
}

// errorCode maps a manager error to a CLI error code.
func errorCode(err error) string {
	switch {
	case session.IsInitializationError(err):
		return ErrCodeInit
	case session.IsQueryError(err):
		return ErrCodeQuery
	default:
		return ErrCodeGeneric
	}
}
