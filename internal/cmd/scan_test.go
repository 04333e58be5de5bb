package cmd

import (
	"strings"
	"testing"
)

func TestScanCommand(t *testing.T) {
	ws := newTestWorkspace(t, map[string]string{"echo.1": echoPage})

	output, err := executeCommand("scan", "--config", ws.configPath, "echo")
	if err != nil {
		t.Fatalf("scan returned error: %v", err)
	}
	if !strings.Contains(output, "echo: -h\n") {
		t.Errorf("output = %q, want matched -h", output)
	}
	if strings.Contains(output, "declared") {
		t.Error("declared names should only be printed with --declared")
	}
}

func TestScanCommand_Declared(t *testing.T) {
	ws := newTestWorkspace(t, map[string]string{"echo.1": echoPage})

	output, err := executeCommand("scan", "--config", ws.configPath, "--declared", "echo", "missing")
	if err != nil {
		t.Fatalf("scan returned error: %v", err)
	}

	for _, want := range []string{
		"echo declared: n h\n",
		"echo sections: 1\n",
		"missing: (none)\n",
		"missing sections: (no manual page found)\n",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q, got:\n%s", want, output)
		}
	}
}
