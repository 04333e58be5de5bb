package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/harrison/smokegen/internal/config"
)

const echoPage = `.Dd January 1, 2026
.Dt ECHO 1
.Os
.Sh NAME
.Nm echo
.Nd write arguments to the standard output
.Sh DESCRIPTION
.Bl -tag -width Ds
.It Fl n
Do not print the trailing newline character.
.It Fl h
Display help text.
.El
`

// testWorkspace holds the paths of a throwaway smokegen project.
type testWorkspace struct {
	root       string
	groffDir   string
	outDir     string
	logDir     string
	dbPath     string
	configPath string
}

// newTestWorkspace creates a groff directory with the given pages and a
// config file pointing every output location into a temp dir.
func newTestWorkspace(t *testing.T, pages map[string]string) *testWorkspace {
	t.Helper()
	root := t.TempDir()
	ws := &testWorkspace{
		root:       root,
		groffDir:   filepath.Join(root, "groff"),
		outDir:     filepath.Join(root, "tests"),
		logDir:     filepath.Join(root, "logs"),
		dbPath:     filepath.Join(root, "history.db"),
		configPath: filepath.Join(root, "config.yaml"),
	}
	if err := os.MkdirAll(ws.groffDir, 0755); err != nil {
		t.Fatalf("failed to create groff dir: %v", err)
	}
	for name, content := range pages {
		if err := os.WriteFile(filepath.Join(ws.groffDir, name), []byte(content), 0644); err != nil {
			t.Fatalf("failed to write page: %v", err)
		}
	}

	cfg := strings.Join([]string{
		"groff_dir: " + ws.groffDir,
		"output_dir: " + ws.outDir,
		"log_dir: " + ws.logDir,
		"timeout: 500ms",
		"history:",
		"  enabled: true",
		"  db_path: " + ws.dbPath,
		"",
	}, "\n")
	if err := os.WriteFile(ws.configPath, []byte(cfg), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return ws
}

func TestOverridesFromFlags(t *testing.T) {
	cmd := NewGenerateCommand()
	if err := cmd.ParseFlags([]string{"--out", "dist", "--timeout", "3s", "--probe-unknown", "--on-exec-error", "skip"}); err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}

	o, err := overridesFromFlags(cmd)
	if err != nil {
		t.Fatalf("overridesFromFlags() error = %v", err)
	}
	if o.OutputDir == nil || *o.OutputDir != "dist" {
		t.Errorf("OutputDir = %v, want dist", o.OutputDir)
	}
	if o.Timeout == nil || *o.Timeout != 3*time.Second {
		t.Errorf("Timeout = %v, want 3s", o.Timeout)
	}
	if o.ProbeUnknown == nil || !*o.ProbeUnknown {
		t.Errorf("ProbeUnknown = %v, want true", o.ProbeUnknown)
	}
	if o.OnExecError == nil || *o.OnExecError != "skip" {
		t.Errorf("OnExecError = %v, want skip", o.OnExecError)
	}
	if o.GroffDir != nil || o.NoHistory != nil || o.Report != nil {
		t.Error("flags that were not set should stay nil")
	}
}

func TestOverridesFromFlags_InvalidTimeout(t *testing.T) {
	cmd := NewGenerateCommand()
	if err := cmd.ParseFlags([]string{"--timeout", "soon"}); err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}
	if _, err := overridesFromFlags(cmd); err == nil {
		t.Error("expected error for invalid timeout")
	}
}

func TestOverridesFromFlags_UndefinedFlagsIgnored(t *testing.T) {
	cmd := &cobra.Command{Use: "bare"}
	o, err := overridesFromFlags(cmd)
	if err != nil {
		t.Fatalf("overridesFromFlags() error = %v", err)
	}
	if o != (config.Overrides{}) {
		t.Errorf("overrides = %+v, want zero value", o)
	}
}

func TestLoadConfig_FileAndFlags(t *testing.T) {
	ws := newTestWorkspace(t, nil)

	cmd := NewGenerateCommand()
	if err := cmd.ParseFlags([]string{"--config", ws.configPath, "--timeout", "1s", "--no-history"}); err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}

	if cfg.GroffDir != ws.groffDir {
		t.Errorf("GroffDir = %q, want %q", cfg.GroffDir, ws.groffDir)
	}
	if cfg.Timeout != time.Second {
		t.Errorf("Timeout = %v, want flag value 1s", cfg.Timeout)
	}
	if cfg.History.Enabled {
		t.Error("--no-history should disable history")
	}
}

func TestLoadConfig_InvalidPolicy(t *testing.T) {
	ws := newTestWorkspace(t, nil)

	cmd := NewGenerateCommand()
	if err := cmd.ParseFlags([]string{"--config", ws.configPath, "--on-exec-error", "retry"}); err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}
	_, err := loadConfig(cmd)
	if err == nil || !strings.Contains(err.Error(), "invalid configuration") {
		t.Errorf("loadConfig() error = %v, want invalid configuration", err)
	}
}

func TestBuildRegistry(t *testing.T) {
	cfg := config.DefaultConfig()
	reg, err := buildRegistry(cfg)
	if err != nil {
		t.Fatalf("buildRegistry() error = %v", err)
	}
	if _, ok := reg.Lookup("h"); !ok {
		t.Error("built-in registry should contain h")
	}

	cfg.RegistryFile = filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := buildRegistry(cfg); err == nil {
		t.Error("expected error for missing registry file")
	}
}

func TestNewEngine(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Shell = "/bin/bash"
	cfg.Timeout = 250 * time.Millisecond
	cfg.Env = map[string]string{"LANG": "C"}

	engine := newEngine(cfg, nil)
	if engine.Shell != "/bin/bash" {
		t.Errorf("Shell = %q", engine.Shell)
	}
	if engine.Timeout != 250*time.Millisecond {
		t.Errorf("Timeout = %v", engine.Timeout)
	}
	if len(engine.Env) != 2 || !strings.HasPrefix(engine.Env[0], "PATH=") {
		t.Errorf("Env = %v, want PATH plus LANG", engine.Env)
	}
}
