package executor

import (
	"errors"
	"fmt"
	"io"
	"testing"
)

func TestExecutionErrorMessage(t *testing.T) {
	err := &ExecutionError{Command: "ls -h 2>&1", Err: io.ErrUnexpectedEOF}

	want := "unable to execute the command: ls -h 2>&1: unexpected EOF"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Error("expected ExecutionError to unwrap to its cause")
	}
}

func TestErrorPredicates(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantFatal     bool
		wantExecution bool
	}{
		{"nil", nil, false, false},
		{"plain", errors.New("boom"), false, false},
		{"pipe", &SetupError{Op: "pipe", Err: errors.New("EMFILE")}, true, false},
		{"spawn wrapped", fmt.Errorf("utility ls: %w", &SetupError{Op: "spawn", Err: errors.New("ENOENT")}), true, false},
		{"poll", &EnvironmentError{Op: "poll", Err: errors.New("EBADF")}, true, false},
		{"execution", &ExecutionError{Command: "ls -h"}, false, true},
		{"execution wrapped", fmt.Errorf("case -h: %w", &ExecutionError{Command: "ls -h"}), false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsFatal(tt.err); got != tt.wantFatal {
				t.Errorf("IsFatal() = %v, want %v", got, tt.wantFatal)
			}
			if got := IsExecutionError(tt.err); got != tt.wantExecution {
				t.Errorf("IsExecutionError() = %v, want %v", got, tt.wantExecution)
			}
		})
	}
}

func TestSetupErrorNamesPrimitive(t *testing.T) {
	err := &SetupError{Op: "pipe", Err: errors.New("too many open files")}
	if err.Error() != "pipe: too many open files" {
		t.Errorf("Error() = %q", err.Error())
	}
}
