package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/harrison/smokegen/internal/config"
	"github.com/harrison/smokegen/internal/executor"
	"github.com/harrison/smokegen/internal/registry"
)

// loadConfig loads the --config file (or .smokegen/config.yaml), applies the
// flags the user set on cmd and validates the result.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
		}
	} else {
		cfg, err = config.LoadConfigFromDir(".")
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	overrides, err := overridesFromFlags(cmd)
	if err != nil {
		return nil, err
	}
	cfg.MergeWithFlags(overrides)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// changed reports whether cmd defines flag name and the user set it.
func changed(cmd *cobra.Command, name string) bool {
	return cmd.Flags().Lookup(name) != nil && cmd.Flags().Changed(name)
}

// overridesFromFlags builds pointer overrides for the flags set on cmd.
func overridesFromFlags(cmd *cobra.Command) (config.Overrides, error) {
	var o config.Overrides

	stringFlag := func(name string) *string {
		if !changed(cmd, name) {
			return nil
		}
		v, _ := cmd.Flags().GetString(name)
		return &v
	}
	boolFlag := func(name string) *bool {
		if !changed(cmd, name) {
			return nil
		}
		v, _ := cmd.Flags().GetBool(name)
		return &v
	}

	o.GroffDir = stringFlag("groff-dir")
	o.OutputDir = stringFlag("out")
	o.OnExecError = stringFlag("on-exec-error")
	o.LogDir = stringFlag("log-dir")
	o.LogLevel = stringFlag("log-level")
	o.ProbeUnknown = boolFlag("probe-unknown")
	o.Report = boolFlag("report")
	o.NoHistory = boolFlag("no-history")

	if changed(cmd, "timeout") {
		timeoutStr, _ := cmd.Flags().GetString("timeout")
		timeout, err := time.ParseDuration(timeoutStr)
		if err != nil {
			return o, fmt.Errorf("invalid timeout format %q: %w", timeoutStr, err)
		}
		o.Timeout = &timeout
	}

	return o, nil
}

// buildRegistry returns the built-in registry extended by cfg.RegistryFile.
func buildRegistry(cfg *config.Config) (*registry.Registry, error) {
	if cfg.RegistryFile == "" {
		return registry.Build(), nil
	}
	extra, err := registry.LoadFile(cfg.RegistryFile)
	if err != nil {
		return nil, err
	}
	reg, err := registry.BuildWith(extra)
	if err != nil {
		return nil, fmt.Errorf("invalid registry file %s: %w", cfg.RegistryFile, err)
	}
	return reg, nil
}

// newEngine configures an execution engine from cfg.
func newEngine(cfg *config.Config, log executor.Logger) *executor.Engine {
	engine := executor.NewEngine()
	engine.Shell = cfg.Shell
	engine.Timeout = cfg.Timeout
	engine.KillGrace = cfg.KillGrace
	engine.Env = cfg.EnvList(executor.DefaultPath)
	engine.Logger = log
	return engine
}
