package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FailurePolicy decides what happens to a run when a command cannot be executed.
type FailurePolicy string

const (
	// PolicyAbort stops the whole run on the first execution fault.
	PolicyAbort FailurePolicy = "abort"
	// PolicySkip records the failing case as skipped and continues.
	PolicySkip FailurePolicy = "skip"
)

// Valid reports whether p is a known policy.
func (p FailurePolicy) Valid() bool {
	return p == PolicyAbort || p == PolicySkip
}

// HistoryConfig configures the run history database
type HistoryConfig struct {
	// Enabled records every execution of a run
	Enabled bool `yaml:"enabled"`

	// DBPath is the path to the SQLite database
	DBPath string `yaml:"db_path"`
}

// Config represents smokegen configuration options
type Config struct {
	// GroffDir holds the manual-page sources, one <utility>.<section> file each
	GroffDir string `yaml:"groff_dir"`

	// Sections lists the manual sections scanned, in order
	Sections []string `yaml:"sections"`

	// Shell interprets every executed command
	Shell string `yaml:"shell"`

	// Timeout is how long a utility gets to produce its output
	Timeout time.Duration `yaml:"timeout"`

	// KillGrace is how long a terminated utility gets to exit before SIGKILL
	KillGrace time.Duration `yaml:"kill_grace"`

	// OnExecError is the policy for execution faults (abort, skip)
	OnExecError FailurePolicy `yaml:"on_exec_error"`

	// ProbeUnknown also tests the usage output of an undeclared option
	ProbeUnknown bool `yaml:"probe_unknown"`

	// OutputDir is where test scripts are written
	OutputDir string `yaml:"output_dir"`

	// RegistryFile adds option definitions on top of the built-in ones
	RegistryFile string `yaml:"registry_file"`

	// Env is added to the otherwise empty environment of every child
	Env map[string]string `yaml:"env"`

	// LogLevel sets the logging verbosity (trace, debug, info, warn, error)
	LogLevel string `yaml:"log_level"`

	// LogDir is the directory where logs will be written
	LogDir string `yaml:"log_dir"`

	// Report writes summary.md and summary.html to OutputDir
	Report bool `yaml:"report"`

	// History contains run history configuration
	History HistoryConfig `yaml:"history"`
}

// DefaultConfig returns a Config with sensible default values
func DefaultConfig() *Config {
	return &Config{
		GroffDir:    "groff",
		Sections:    []string{"1", "8"},
		Shell:       "/bin/sh",
		Timeout:     2 * time.Second,
		KillGrace:   time.Second,
		OnExecError: PolicyAbort,
		OutputDir:   "tests",
		LogLevel:    "info",
		LogDir:      ".smokegen/logs",
		History: HistoryConfig{
			Enabled: true,
			DBPath:  ".smokegen/history.db",
		},
	}
}

// LoadConfig loads configuration from the specified file path
// If the file doesn't exist, returns default configuration without error
// If the file exists but is malformed, returns an error
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Durations are written as strings ("2s", "500ms")
	type yamlConfig struct {
		GroffDir     string            `yaml:"groff_dir"`
		Sections     []string          `yaml:"sections"`
		Shell        string            `yaml:"shell"`
		Timeout      string            `yaml:"timeout"`
		KillGrace    string            `yaml:"kill_grace"`
		OnExecError  string            `yaml:"on_exec_error"`
		ProbeUnknown bool              `yaml:"probe_unknown"`
		OutputDir    string            `yaml:"output_dir"`
		RegistryFile string            `yaml:"registry_file"`
		Env          map[string]string `yaml:"env"`
		LogLevel     string            `yaml:"log_level"`
		LogDir       string            `yaml:"log_dir"`
		Report       bool              `yaml:"report"`
		History      HistoryConfig     `yaml:"history"`
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if yamlCfg.GroffDir != "" {
		cfg.GroffDir = yamlCfg.GroffDir
	}
	if len(yamlCfg.Sections) > 0 {
		cfg.Sections = yamlCfg.Sections
	}
	if yamlCfg.Shell != "" {
		cfg.Shell = yamlCfg.Shell
	}
	if yamlCfg.Timeout != "" {
		timeout, err := time.ParseDuration(yamlCfg.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout format %q: %w", yamlCfg.Timeout, err)
		}
		cfg.Timeout = timeout
	}
	if yamlCfg.KillGrace != "" {
		grace, err := time.ParseDuration(yamlCfg.KillGrace)
		if err != nil {
			return nil, fmt.Errorf("invalid kill_grace format %q: %w", yamlCfg.KillGrace, err)
		}
		cfg.KillGrace = grace
	}
	if yamlCfg.OnExecError != "" {
		cfg.OnExecError = FailurePolicy(yamlCfg.OnExecError)
	}
	if yamlCfg.ProbeUnknown {
		cfg.ProbeUnknown = true
	}
	if yamlCfg.OutputDir != "" {
		cfg.OutputDir = yamlCfg.OutputDir
	}
	if yamlCfg.RegistryFile != "" {
		cfg.RegistryFile = yamlCfg.RegistryFile
	}
	if len(yamlCfg.Env) > 0 {
		cfg.Env = yamlCfg.Env
	}
	if yamlCfg.LogLevel != "" {
		cfg.LogLevel = yamlCfg.LogLevel
	}
	if yamlCfg.LogDir != "" {
		cfg.LogDir = yamlCfg.LogDir
	}
	if yamlCfg.Report {
		cfg.Report = true
	}

	// history.enabled may be explicitly false, so detect which keys were set
	var rawMap map[string]interface{}
	if err := yaml.Unmarshal(data, &rawMap); err == nil {
		if section, ok := rawMap["history"].(map[string]interface{}); ok {
			if _, exists := section["enabled"]; exists {
				cfg.History.Enabled = yamlCfg.History.Enabled
			}
			if _, exists := section["db_path"]; exists {
				cfg.History.DBPath = yamlCfg.History.DBPath
			}
		}
	}

	return cfg, nil
}

// LoadConfigFromDir loads configuration from .smokegen/config.yaml in the specified directory
// If the directory or file doesn't exist, returns default configuration without error
func LoadConfigFromDir(dir string) (*Config, error) {
	return LoadConfig(filepath.Join(dir, ".smokegen", "config.yaml"))
}

// Overrides holds CLI flag values. Nil fields leave the configuration untouched.
type Overrides struct {
	GroffDir     *string
	OutputDir    *string
	Timeout      *time.Duration
	OnExecError  *string
	ProbeUnknown *bool
	LogDir       *string
	LogLevel     *string
	Report       *bool
	NoHistory    *bool
}

// MergeWithFlags merges CLI flags into the configuration
// Non-nil flag values override configuration values
func (c *Config) MergeWithFlags(o Overrides) {
	if o.GroffDir != nil {
		c.GroffDir = *o.GroffDir
	}
	if o.OutputDir != nil {
		c.OutputDir = *o.OutputDir
	}
	if o.Timeout != nil {
		c.Timeout = *o.Timeout
	}
	if o.OnExecError != nil {
		c.OnExecError = FailurePolicy(*o.OnExecError)
	}
	if o.ProbeUnknown != nil {
		c.ProbeUnknown = *o.ProbeUnknown
	}
	if o.LogDir != nil {
		c.LogDir = *o.LogDir
	}
	if o.LogLevel != nil {
		c.LogLevel = *o.LogLevel
	}
	if o.Report != nil {
		c.Report = *o.Report
	}
	if o.NoHistory != nil && *o.NoHistory {
		c.History.Enabled = false
	}
}

// EnvList returns Env as KEY=VALUE pairs, sorted by key, with PATH defaulted
// when not set explicitly.
func (c *Config) EnvList(defaultPath string) []string {
	keys := make([]string, 0, len(c.Env))
	for k := range c.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := make([]string, 0, len(keys)+1)
	if _, ok := c.Env["PATH"]; !ok {
		env = append(env, defaultPath)
	}
	for _, k := range keys {
		env = append(env, k+"="+c.Env[k])
	}
	return env
}

// Validate validates the configuration values
// Returns an error if any values are invalid
func (c *Config) Validate() error {
	if c.GroffDir == "" {
		return fmt.Errorf("groff_dir cannot be empty")
	}
	if len(c.Sections) == 0 {
		return fmt.Errorf("sections cannot be empty")
	}
	for _, s := range c.Sections {
		if s == "" || strings.ContainsRune(s, filepath.Separator) {
			return fmt.Errorf("invalid section %q", s)
		}
	}
	if c.Shell == "" {
		return fmt.Errorf("shell cannot be empty")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be > 0, got %v", c.Timeout)
	}
	if c.KillGrace <= 0 {
		return fmt.Errorf("kill_grace must be > 0, got %v", c.KillGrace)
	}
	if !c.OnExecError.Valid() {
		return fmt.Errorf("invalid on_exec_error %q, must be one of: abort, skip", c.OnExecError)
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output_dir cannot be empty")
	}
	for k := range c.Env {
		if k == "" || strings.Contains(k, "=") {
			return fmt.Errorf("invalid env variable name %q", k)
		}
	}

	validLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("invalid log_level %q, must be one of: trace, debug, info, warn, error", c.LogLevel)
	}

	if c.History.Enabled && c.History.DBPath == "" {
		return fmt.Errorf("history.db_path cannot be empty when history is enabled")
	}

	return nil
}
