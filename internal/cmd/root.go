package cmd

import (
	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// NewRootCommand creates and returns the root cobra command for smokegen
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "smokegen",
		Short: "Generate smoke tests for command-line utilities from their manual pages",
		Long: `smokegen discovers the options a utility documents in its mdoc manual page,
runs the ones it knows how to verify (such as -h and -v) under a bounded wait,
and writes the observed output and exit status as ATF-sh test scripts.

Manual pages are read from <groff-dir>/<utility>.<section> for sections 1 and 8.`,
		Version: Version,
		// Silence usage on errors to avoid duplicate help text
		SilenceUsage: true,
	}

	cmd.AddCommand(NewGenerateCommand())
	cmd.AddCommand(NewScanCommand())
	cmd.AddCommand(NewExecCommand())
	cmd.AddCommand(NewHistoryCommand())

	return cmd
}
