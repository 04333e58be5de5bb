package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harrison/smokegen/internal/logger"
)

// NewExecCommand creates the exec command
func NewExecCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exec <command>...",
		Short: "Run one shell command through the bounded execution engine",
		Long: `Exec runs the command the same way generate runs each option: through the
configured shell, in its own process group, with an empty environment apart
from PATH, and terminated once the timeout expires.

Examples:
  smokegen exec 'ls -h 2>&1'
  smokegen exec --timeout 500ms top`,
		Args: cobra.MinimumNArgs(1),
		RunE: runExec,
	}

	cmd.Flags().String("config", "", "Path to config file (default: .smokegen/config.yaml)")
	cmd.Flags().String("timeout", "", "How long the command gets to produce output (e.g. 2s, 500ms)")
	cmd.Flags().String("log-level", "", "Log level: trace, debug, info, warn, error")

	return cmd
}

func runExec(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	engine := newEngine(cfg, logger.NewConsoleLogger(cmd.ErrOrStderr(), cfg.LogLevel))
	result, err := engine.Execute(cmd.Context(), strings.Join(args, " "))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprint(out, result.Output)
	if result.Output != "" && !strings.HasSuffix(result.Output, "\n") {
		fmt.Fprintln(out)
	}
	status := fmt.Sprintf("exit status: %d", result.ExitStatus)
	if result.TimedOut {
		status += " (terminated after " + cfg.Timeout.String() + ")"
	}
	fmt.Fprintln(out, status)
	return nil
}
