package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/sqlchef/internal/bundle"
)

// BundleInfo describes one configured bundle.
type BundleInfo struct {
	Name      string `json:"name"`
	Driver    string `json:"driver"`
	DSN       string `json:"dsn"`
	Threads   int    `json:"threads"`
	Native    bool   `json:"native"`
	Supported bool   `json:"supported"`
	Selected  bool   `json:"selected"`
}

// BundlesResult is the bundles command's JSON payload.
type BundlesResult struct {
	Bundles  []BundleInfo `json:"bundles"`
	Selected string       `json:"selected,omitempty"`
}

// NewBundlesCommand creates the bundles command.
func NewBundlesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bundles",
		Short: "List engine bundles and the one that would be selected",
		Long: `List the configured engine bundles in preference order.

A bundle is supported when its driver is registered, its thread budget fits
this process, and, for native bundles, the binary was built with cgo. The
first supported bundle is the one a new session starts with. No engine is
started.`,
		Args:          checkArgs(cobra.NoArgs),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBundles(rootOpts, cmd)
		},
	}

	return cmd
}

func runBundles(opts *RootOptions, cmd *cobra.Command) error {
	cfg, _, err := opts.loadConfig(cmd)
	if err != nil {
		return err
	}

	result := describeBundles(cfg.Bundles, bundle.Detect())
	out := opts.formatter(cmd)

	if opts.Format == "json" {
		if err := out.Success(result); err != nil {
			return err
		}
	} else {
		w := cmd.OutOrStdout()
		for _, b := range result.Bundles {
			marker := " "
			if b.Selected {
				marker = "*"
			}
			var notes []string
			if b.Native {
				notes = append(notes, "native")
			}
			if !b.Supported {
				notes = append(notes, "unsupported")
			}
			line := fmt.Sprintf("%s %-10s driver=%s threads=%d", marker, b.Name, b.Driver, b.Threads)
			if len(notes) > 0 {
				line += " (" + strings.Join(notes, ", ") + ")"
			}
			fmt.Fprintln(w, line)
		}
	}

	if result.Selected == "" {
		return WrapExitError(ExitFailure, "no usable bundle", bundle.ErrNoBundle)
	}
	return nil
}

// describeBundles lists set in preference order and marks the bundle
// bundle.Select would choose.
func describeBundles(set bundle.Set, caps bundle.Capabilities) BundlesResult {
	result := BundlesResult{Bundles: make([]BundleInfo, 0, len(set))}
	if selected, err := bundle.Select(set, caps); err == nil {
		result.Selected = selected.Name
	}

	for _, name := range set.Names() {
		b, _ := set.Get(name)
		result.Bundles = append(result.Bundles, BundleInfo{
			Name:      b.Name,
			Driver:    b.Driver,
			DSN:       b.DSN,
			Threads:   b.Threads,
			Native:    b.Native,
			Supported: caps.Supports(b),
			Selected:  b.Name == result.Selected,
		})
	}
	return result
}
