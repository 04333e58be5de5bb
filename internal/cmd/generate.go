package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/harrison/smokegen/internal/config"
	"github.com/harrison/smokegen/internal/driver"
	"github.com/harrison/smokegen/internal/emitter"
	"github.com/harrison/smokegen/internal/fileutil"
	"github.com/harrison/smokegen/internal/history"
	"github.com/harrison/smokegen/internal/logger"
	"github.com/harrison/smokegen/internal/models"
	"github.com/harrison/smokegen/internal/report"
	"github.com/harrison/smokegen/internal/scanner"
)

// NewGenerateCommand creates the generate command
func NewGenerateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate <utility>...",
		Short: "Generate smoke-test scripts for utilities",
		Long: `Generate scans the manual page of each utility, executes every option it
can verify, and writes <out>/<utility>_test.sh.

Configuration is loaded from .smokegen/config.yaml if present.
CLI flags override configuration file settings.

Examples:
  smokegen generate date pwd
  smokegen generate --groff-dir /usr/src/man --out tests --timeout 5s ls
  smokegen generate --on-exec-error skip --probe-unknown --report cat
  smokegen generate --all --groff-dir /usr/src/man`,
		Args: func(cmd *cobra.Command, args []string) error {
			all, _ := cmd.Flags().GetBool("all")
			if all && len(args) > 0 {
				return fmt.Errorf("--all cannot be combined with utility names")
			}
			if !all && len(args) == 0 {
				return fmt.Errorf("requires at least 1 utility name or --all")
			}
			return nil
		},
		RunE: runGenerate,
	}

	cmd.Flags().String("config", "", "Path to config file (default: .smokegen/config.yaml)")
	cmd.Flags().String("groff-dir", "", "Directory holding <utility>.<section> manual pages")
	cmd.Flags().String("out", "", "Directory the test scripts are written to")
	cmd.Flags().String("timeout", "", "How long each utility gets to produce output (e.g. 2s, 500ms)")
	cmd.Flags().String("on-exec-error", "", "Policy when a command cannot be executed: abort or skip")
	cmd.Flags().Bool("probe-unknown", false, "Also test the usage output of one undeclared option")
	cmd.Flags().Bool("no-history", false, "Do not record the run in the history database")
	cmd.Flags().Bool("report", false, "Write summary.md and summary.html next to the scripts")
	cmd.Flags().String("log-dir", "", "Directory for log files")
	cmd.Flags().String("log-level", "", "Log level: trace, debug, info, warn, error")
	cmd.Flags().Bool("all", false, "Generate for every utility with a page in the groff directory")

	return cmd
}

// runGenerate implements the generate command logic
func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	reg, err := buildRegistry(cfg)
	if err != nil {
		return err
	}

	console := logger.NewConsoleLogger(cmd.OutOrStdout(), cfg.LogLevel)
	fileLog, err := logger.NewFileLoggerWithDirAndLevel(cfg.LogDir, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	defer fileLog.Close()
	log := logger.NewMulti(console, fileLog)

	sc := scanner.New(reg, cfg.GroffDir)
	sc.Sections = cfg.Sections
	sc.Logger = log

	em, err := emitter.New(cfg.OutputDir)
	if err != nil {
		return err
	}

	d := &driver.Driver{
		Scanner:      sc,
		Executor:     newEngine(cfg, log),
		Emitter:      em,
		Logger:       log,
		Policy:       cfg.OnExecError,
		ProbeUnknown: cfg.ProbeUnknown,
	}

	if cfg.History.Enabled {
		store, err := history.Open(cfg.History.DBPath)
		if err != nil {
			return fmt.Errorf("failed to open history database: %w", err)
		}
		defer store.Close()
		d.Recorder = store
	}

	if cfg.Report {
		outDir := cfg.OutputDir
		d.Report = func(s models.RunSummary) error {
			return report.Write(outDir, s)
		}
	}

	utilities := args
	if all, _ := cmd.Flags().GetBool("all"); all {
		utilities, err = discoverUtilities(cfg, log)
		if err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := d.Run(ctx, utilities)
	if err != nil {
		if ctx.Err() == context.Canceled {
			return fmt.Errorf("interrupted")
		}
		return err
	}

	written := 0
	for _, u := range summary.Utilities {
		if u.ScriptPath != "" {
			written++
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d of %d test scripts to %s (run %s)\n",
		written, len(summary.Utilities), cfg.OutputDir, summary.RunID)
	if cfg.OnExecError == config.PolicySkip && summary.TotalSkipped() > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "%d cases skipped after execution errors\n", summary.TotalSkipped())
	}
	return nil
}

// discoverUtilities lists the utilities that have a page in cfg.GroffDir.
func discoverUtilities(cfg *config.Config, log logger.Logger) ([]string, error) {
	pages, err := fileutil.FindPages(cfg.GroffDir, fileutil.PageOptions{Sections: cfg.Sections})
	if err != nil {
		return nil, fmt.Errorf("failed to list manual pages in %s: %w", cfg.GroffDir, err)
	}
	for _, perr := range pages.Errors {
		log.Warnf("%v", perr)
	}
	utilities := pages.Utilities()
	if len(utilities) == 0 {
		return nil, fmt.Errorf("no section %s manual pages found in %s",
			strings.Join(cfg.Sections, "/"), cfg.GroffDir)
	}
	log.Infof("found %d utilities in %s", len(utilities), cfg.GroffDir)
	return utilities, nil
}
