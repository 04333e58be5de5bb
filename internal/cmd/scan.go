package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harrison/smokegen/internal/logger"
	"github.com/harrison/smokegen/internal/scanner"
)

// NewScanCommand creates the scan command
func NewScanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan <utility>...",
		Short: "List the options smokegen would test for each utility",
		Long: `Scan reads the manual pages of each utility and prints the declared options
that match the option registry, without executing anything.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runScan,
	}

	cmd.Flags().String("config", "", "Path to config file (default: .smokegen/config.yaml)")
	cmd.Flags().String("groff-dir", "", "Directory holding <utility>.<section> manual pages")
	cmd.Flags().String("log-level", "", "Log level: trace, debug, info, warn, error")
	cmd.Flags().Bool("declared", false, "Also print every declared option name")

	return cmd
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	reg, err := buildRegistry(cfg)
	if err != nil {
		return err
	}
	showDeclared, _ := cmd.Flags().GetBool("declared")
	out := cmd.OutOrStdout()

	sc := scanner.New(reg, cfg.GroffDir)
	sc.Sections = cfg.Sections
	sc.Logger = logger.NewConsoleLogger(cmd.ErrOrStderr(), cfg.LogLevel)

	for _, utility := range args {
		result, err := sc.ScanDetailed(utility)
		if err != nil {
			return fmt.Errorf("failed to scan %s: %w", utility, err)
		}

		flags := make([]string, len(result.Matched))
		for i, def := range result.Matched {
			flags[i] = def.Flag()
		}
		if len(flags) == 0 {
			fmt.Fprintf(out, "%s: (none)\n", utility)
		} else {
			fmt.Fprintf(out, "%s: %s\n", utility, strings.Join(flags, " "))
		}

		if showDeclared {
			fmt.Fprintf(out, "%s declared: %s\n", utility, strings.Join(result.Declared, " "))
			if len(result.Sections) == 0 {
				fmt.Fprintf(out, "%s sections: (no manual page found)\n", utility)
			} else {
				fmt.Fprintf(out, "%s sections: %s\n", utility, strings.Join(result.Sections, " "))
			}
		}
	}
	return nil
}
