package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/roach88/sqlchef/internal/session"
	"github.com/roach88/sqlchef/internal/source"
)

const shellPrompt = "sqlchef> "

const shellHelp = `.state               print the session state
.reset               drop the session; the next statement starts a fresh engine
.close               close the session and report teardown problems
.load <csv> <table>  reset and load a CSV file into table
.help                show this help
.quit                leave the shell`

// NewShellCommand creates the shell command.
func NewShellCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Run statements from stdin against one session",
		Long: `Read SQL statements from stdin, one per line, and run them against a
single engine session. The session starts on the first statement and lives
until .close, .reset, or the end of input.

Meta-commands:
` + shellHelp + `

Lines starting with -- are ignored. Exits 1 if any statement failed.`,
		Args:          checkArgs(cobra.NoArgs),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShell(rootOpts, cmd)
		},
	}

	return cmd
}

// shell holds the state of one interactive run.
type shell struct {
	mgr      *session.Manager
	out      *OutputFormatter
	failures int
}

func runShell(opts *RootOptions, cmd *cobra.Command) error {
	mgr, _, err := opts.newManager(cmd)
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)
	defer release(ctx, mgr)

	sh := &shell{mgr: mgr, out: opts.formatter(cmd)}

	in := cmd.InOrStdin()
	prompt := func() {}
	if interactive(in) {
		prompt = func() { fmt.Fprint(cmd.ErrOrStderr(), shellPrompt) }
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 16<<20)

	prompt()
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return WrapExitError(ExitFailure, "interrupted", err)
		}
		if quit := sh.handle(ctx, scanner.Text()); quit {
			break
		}
		prompt()
	}
	if err := scanner.Err(); err != nil {
		return WrapExitError(ExitCommandError, "failed to read input", err)
	}

	if sh.failures > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d statement(s) failed", sh.failures))
	}
	return nil
}

// interactive reports whether r is a terminal.
func interactive(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// handle runs one input line. It returns true when the shell should exit.
func (sh *shell) handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	switch {
	case line == "", strings.HasPrefix(line, "--"):
		return false
	case strings.HasPrefix(line, "."):
		return sh.meta(ctx, line)
	}

	table, err := sh.mgr.Query(ctx, line)
	if err != nil {
		sh.fail(errorCode(err), err.Error())
		return false
	}
	if err := sh.out.Rows(table); err != nil {
		sh.fail(ErrCodeGeneric, err.Error())
	}
	return false
}

func (sh *shell) meta(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case ".quit", ".exit":
		return true

	case ".help":
		_ = sh.out.Success(shellHelp)

	case ".state":
		state := sh.mgr.State().String()
		if sh.out.Format == "json" {
			_ = sh.out.Success(map[string]string{"state": state})
		} else {
			_ = sh.out.Success(state)
		}

	case ".reset":
		sh.mgr.Reset(ctx)
		_ = sh.out.Success("Session reset")

	case ".close":
		if err := sh.mgr.Close(ctx); err != nil {
			sh.fail(ErrCodeTeardown, err.Error())
			return false
		}
		_ = sh.out.Success("Session closed")

	case ".load":
		if len(fields) != 3 {
			sh.fail(ErrCodeMetaSyntax, "usage: .load <csv> <table>")
			return false
		}
		n, err := source.LoadCSVFile(ctx, sh.mgr, fields[1], fields[2])
		if err != nil {
			sh.fail(ErrCodeLoad, err.Error())
			return false
		}
		if sh.out.Format == "json" {
			_ = sh.out.Success(LoadSummary{File: fields[1], Table: fields[2], Rows: n})
		} else {
			_ = sh.out.Success(fmt.Sprintf("Loaded %d rows into %s", n, fields[2]))
		}

	default:
		sh.fail(ErrCodeMetaSyntax, fmt.Sprintf("unknown meta-command %s (try .help)", fields[0]))
	}
	return false
}

func (sh *shell) fail(code, message string) {
	sh.failures++
	_ = sh.out.Error(code, message, nil)
}
