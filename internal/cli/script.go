package cli

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/sqlchef/internal/harness"
	"github.com/roach88/sqlchef/internal/session"
	"github.com/roach88/sqlchef/internal/testutil"
)

// ScriptOptions holds flags for the script command.
type ScriptOptions struct {
	*RootOptions
	GoldenDir string // compare traces against <dir>/<name>.golden
	Update    bool   // rewrite golden files instead of comparing
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	File   string   `json:"file"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// ScriptResult holds the overall result.
type ScriptResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewScriptCommand creates the script command.
func NewScriptCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScriptOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "script <scenario.yaml>...",
		Short: "Run scripted session scenarios",
		Long: `Run one or more scenario files, each against its own engine session
manager.

Session IDs are deterministic so traces can be compared against golden
files with --golden. Pass --update to rewrite them.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (missing files, invalid flags)

Examples:
  sqlchef script scenarios/reload.yaml
  sqlchef script scenarios/*.yaml --golden scenarios/golden
  sqlchef script scenarios/*.yaml --golden scenarios/golden --update`,
		Args:          checkArgs(cobra.MinimumNArgs(1)),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScripts(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.GoldenDir, "golden", "", "directory of golden trace files")
	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")

	return cmd
}

func runScripts(opts *ScriptOptions, files []string, cmd *cobra.Command) error {
	if opts.Update && opts.GoldenDir == "" {
		return NewExitError(ExitCommandError, "--update requires --golden")
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return WrapExitError(ExitCommandError, "scenario file not readable", err)
		}
	}

	result := ScriptResult{
		Scenarios: make([]ScenarioResult, 0, len(files)),
		Total:     len(files),
	}
	for _, f := range files {
		res, err := runScript(opts, f, cmd)
		if err != nil {
			return err
		}
		result.Scenarios = append(result.Scenarios, res)
		if res.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if opts.Format == "json" {
		if err := opts.formatter(cmd).Success(result); err != nil {
			return err
		}
	} else {
		w := cmd.OutOrStdout()
		for _, s := range result.Scenarios {
			if s.Pass {
				fmt.Fprintf(w, "✓ %s\n", s.Name)
				continue
			}
			fmt.Fprintf(w, "✗ %s\n", s.Name)
			for _, e := range s.Errors {
				fmt.Fprintf(w, "  %s\n", e)
			}
		}
		fmt.Fprintf(w, "\n%d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenarios failed", result.Failed, result.Total))
	}
	return nil
}

// runScript runs one scenario file. Scenario failures are reported in the
// result; only command errors are returned.
func runScript(opts *ScriptOptions, file string, cmd *cobra.Command) (ScenarioResult, error) {
	res := ScenarioResult{Name: filepath.Base(file), File: file}

	scenario, err := harness.LoadScenario(file)
	if err != nil {
		res.Errors = []string{fmt.Sprintf("failed to load scenario: %v", err)}
		return res, nil
	}
	res.Name = scenario.Name

	// Each scenario gets its own manager so one script's engine state never
	// leaks into the next.
	scriptOpts := *opts.RootOptions
	scriptOpts.SessionOptions = append([]session.Option{
		session.WithIDGenerator(testutil.NewSequenceIDGenerator("")),
		session.WithClock(testutil.NewDeterministicClock().Now),
	}, opts.SessionOptions...)

	mgr, logger, err := scriptOpts.newManager(cmd)
	if err != nil {
		return res, err
	}
	ctx := commandContext(cmd)
	defer release(ctx, mgr)

	logger.Debug("running scenario", "name", scenario.Name, "file", file, "steps", len(scenario.Steps))
	run, err := harness.Run(ctx, scenario, mgr)
	if err != nil {
		res.Errors = []string{fmt.Sprintf("execution failed: %v", err)}
		return res, nil
	}
	res.Pass = run.Pass
	res.Errors = run.Errors

	if opts.GoldenDir != "" {
		if err := checkGolden(opts, scenario.Name, run); err != nil {
			res.Pass = false
			res.Errors = append(res.Errors, err.Error())
		}
	}
	return res, nil
}

// checkGolden compares run's trace with the scenario's golden file, or
// rewrites the file when --update is set.
func checkGolden(opts *ScriptOptions, name string, run *harness.Result) error {
	trace, err := harness.MarshalTrace(name, run)
	if err != nil {
		return fmt.Errorf("failed to encode trace: %w", err)
	}
	path := filepath.Join(opts.GoldenDir, name+".golden")

	if opts.Update {
		if err := os.MkdirAll(opts.GoldenDir, 0o755); err != nil {
			return fmt.Errorf("failed to create golden dir: %w", err)
		}
		if err := os.WriteFile(path, trace, 0o644); err != nil {
			return fmt.Errorf("failed to write golden file: %w", err)
		}
		return nil
	}

	want, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("golden file not found: %s (run with --update)", path)
	}
	if err != nil {
		return fmt.Errorf("failed to read golden file: %w", err)
	}
	if !bytes.Equal(want, trace) {
		return fmt.Errorf("trace differs from golden file %s", path)
	}
	return nil
}
