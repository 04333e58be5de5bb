package executor

import (
	"errors"
	"fmt"
	"strings"
)

// SetupError reports that a primitive needed to run a command (the pipe or
// the child process) could not be created. The run cannot continue.
type SetupError struct {
	Op      string // "pipe" or "spawn"
	Command string
	Err     error
}

// Error implements the error interface for SetupError.
func (e *SetupError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *SetupError) Unwrap() error {
	return e.Err
}

// EnvironmentError reports that waiting on the child's output failed for a
// reason other than the timeout. The child has been terminated by the time
// this error is returned.
type EnvironmentError struct {
	Op      string // "poll"
	Command string
	Err     error
}

// Error implements the error interface for EnvironmentError.
func (e *EnvironmentError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *EnvironmentError) Unwrap() error {
	return e.Err
}

// ExecutionError reports that the child's output could not be drained.
// Only the affected command is lost; callers may skip it and continue.
type ExecutionError struct {
	Command string
	Output  string // Whatever was read before the failure
	Err     error
}

// Error implements the error interface for ExecutionError.
func (e *ExecutionError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("unable to execute the command: %s", e.Command))
	if e.Err != nil {
		sb.WriteString(fmt.Sprintf(": %v", e.Err))
	}
	return sb.String()
}

// Unwrap returns the underlying error.
func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err is a setup or environment fault, after which
// no further commands should be run.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var se *SetupError
	if errors.As(err, &se) {
		return true
	}
	var ee *EnvironmentError
	return errors.As(err, &ee)
}

// IsExecutionError checks if the error is or wraps an ExecutionError.
func IsExecutionError(err error) bool {
	if err == nil {
		return false
	}
	var ee *ExecutionError
	return errors.As(err, &ee)
}
