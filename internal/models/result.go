package models

import "time"

// ExecutionResult is what one bounded execution of a shell command observed.
// It is never mutated after the engine returns it.
type ExecutionResult struct {
	Command    string        // Command line handed to the shell
	Output     string        // Everything read from the child's stdout
	ExitStatus int           // Exit code, or 128+signal if the child was killed
	Signaled   bool          // Child was terminated by a signal
	TimedOut   bool          // Child was still running when the wait budget ran out
	PID        int           // Pid of the shell, also its process group id
	Duration   time.Duration // Wall-clock time of the invocation
}

// TestCase ties an executed option to the utility it was run against.
type TestCase struct {
	Utility string
	Option  OptionDefinition
	Result  ExecutionResult
}

// SkippedCase is a test case whose execution failed and was skipped under
// the skip-and-continue policy.
type SkippedCase struct {
	Utility string
	Option  OptionDefinition
	Command string
	Reason  string
}

// UtilityResult aggregates everything produced for a single utility.
type UtilityResult struct {
	Utility    string
	Declared   []string // Every option name declared in the manual page, in order
	Cases      []TestCase
	Skipped    []SkippedCase
	ScriptPath string // Path of the emitted test script, empty if none
}

// RunSummary is the aggregate of one generate run.
type RunSummary struct {
	RunID     string
	Started   time.Time
	Duration  time.Duration
	Utilities []UtilityResult
}

// TotalCases returns the number of executed cases across all utilities.
func (s *RunSummary) TotalCases() int {
	n := 0
	for _, u := range s.Utilities {
		n += len(u.Cases)
	}
	return n
}

// TotalSkipped returns the number of skipped cases across all utilities.
func (s *RunSummary) TotalSkipped() int {
	n := 0
	for _, u := range s.Utilities {
		n += len(u.Skipped)
	}
	return n
}

// TimedOutCases returns the number of executed cases whose child had to be
// terminated at the end of the wait budget.
func (s *RunSummary) TimedOutCases() int {
	n := 0
	for _, u := range s.Utilities {
		for _, c := range u.Cases {
			if c.Result.TimedOut {
				n++
			}
		}
	}
	return n
}
