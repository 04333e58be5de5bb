package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/harrison/smokegen/internal/history"
)

// NewHistoryCommand creates the history command
func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently recorded executions",
		Long: `History lists the most recent executions recorded by generate, newest first.
With --runs it lists whole runs with their totals instead.`,
		Args: cobra.NoArgs,
		RunE: runHistory,
	}

	cmd.Flags().String("config", "", "Path to config file (default: .smokegen/config.yaml)")
	cmd.Flags().Int("limit", 20, "Maximum number of entries to show")
	cmd.Flags().Bool("runs", false, "List runs instead of executions")

	return cmd
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	limit, _ := cmd.Flags().GetInt("limit")
	if limit <= 0 {
		return fmt.Errorf("--limit must be > 0, got %d", limit)
	}
	listRuns, _ := cmd.Flags().GetBool("runs")
	out := cmd.OutOrStdout()

	if _, err := os.Stat(cfg.History.DBPath); os.IsNotExist(err) {
		fmt.Fprintf(out, "No history recorded yet\n")
		fmt.Fprintf(out, "Database path: %s\n", cfg.History.DBPath)
		return nil
	}

	store, err := history.Open(cfg.History.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open history database: %w", err)
	}
	defer store.Close()

	colorOutput := isTerminal(out)

	if listRuns {
		runs, err := store.Runs(cmd.Context(), limit)
		if err != nil {
			return err
		}
		printRuns(out, runs)
		return nil
	}

	execs, err := store.RecentExecutions(cmd.Context(), limit)
	if err != nil {
		return err
	}
	printExecutions(out, execs, colorOutput)
	return nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd()) && !color.NoColor
}

func printExecutions(out io.Writer, execs []history.Execution, colorOutput bool) {
	if len(execs) == 0 {
		fmt.Fprintln(out, "No executions recorded")
		return
	}

	fmt.Fprintf(out, "%-19s  %-12s  %-8s  %-10s  %s\n", "RECORDED", "UTILITY", "OPTION", "STATUS", "COMMAND")
	fmt.Fprintln(out, strings.Repeat("-", 72))
	for _, e := range execs {
		status := executionStatus(e)
		padded := fmt.Sprintf("%-10s", status)
		if colorOutput {
			padded = statusColor(e).Sprint(padded)
		}
		fmt.Fprintf(out, "%-19s  %-12s  %-8s  %s  %s\n",
			e.RecordedAt.Format("2006-01-02 15:04:05"), e.Utility, e.Option.Flag(), padded, e.Command)
	}
}

func executionStatus(e history.Execution) string {
	switch {
	case e.Skipped:
		return "skipped"
	case e.TimedOut:
		return fmt.Sprintf("timeout/%d", e.ExitStatus)
	default:
		return fmt.Sprintf("exit %d", e.ExitStatus)
	}
}

func statusColor(e history.Execution) *color.Color {
	switch {
	case e.Skipped:
		return color.New(color.FgRed)
	case e.TimedOut:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgGreen)
	}
}

func printRuns(out io.Writer, runs []history.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded")
		return
	}

	fmt.Fprintf(out, "%-36s  %-19s  %9s  %5s  %7s  %9s  %s\n",
		"RUN", "STARTED", "UTILITIES", "CASES", "SKIPPED", "TIMED OUT", "DURATION")
	for _, r := range runs {
		duration := "unfinished"
		if r.Finished() {
			duration = r.Duration.Round(time.Millisecond).String()
		}
		fmt.Fprintf(out, "%-36s  %-19s  %9d  %5d  %7d  %9d  %s\n",
			r.ID, r.StartedAt.Format("2006-01-02 15:04:05"), r.Utilities, r.Cases, r.Skipped, r.TimedOut, duration)
	}
}
