// Package driver runs the generate pipeline: scan a utility's manual pages,
// execute every confirmed option through the bounded engine, record and emit
// the resulting test cases.
package driver

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/harrison/smokegen/internal/config"
	"github.com/harrison/smokegen/internal/executor"
	"github.com/harrison/smokegen/internal/models"
	"github.com/harrison/smokegen/internal/scanner"
)

// probeAlphabet is searched in order for an option the utility does not declare.
const probeAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

var plainWord = regexp.MustCompile(`^[A-Za-z0-9._+/-]+$`)

// Scanner discovers the options of a utility.
type Scanner interface {
	ScanDetailed(utility string) (*scanner.Result, error)
}

// Executor runs one shell command with a bounded wait.
type Executor interface {
	Execute(ctx context.Context, command string) (*models.ExecutionResult, error)
}

// Emitter turns the cases of one utility into a test script.
type Emitter interface {
	Emit(utility string, cases []models.TestCase) (string, error)
}

// Recorder persists runs and their executions.
type Recorder interface {
	BeginRun(ctx context.Context) (string, error)
	RecordExecution(ctx context.Context, runID string, tc models.TestCase) error
	RecordSkip(ctx context.Context, runID string, sc models.SkippedCase) error
	FinishRun(ctx context.Context, runID string, summary models.RunSummary) error
}

// Logger receives pipeline events.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	LogScan(utility string, declared []string, matched []models.OptionDefinition)
	LogCase(tc models.TestCase)
	LogSkip(sc models.SkippedCase)
	LogProgress(done, total int)
	LogSummary(summary models.RunSummary)
}

// Driver wires the pipeline stages together. Scanner and Executor are
// required; every other stage is optional.
type Driver struct {
	Scanner  Scanner
	Executor Executor
	Emitter  Emitter
	Recorder Recorder
	Report   func(models.RunSummary) error
	Logger   Logger

	// Policy decides whether an execution fault aborts the run or skips the case.
	Policy config.FailurePolicy
	// ProbeUnknown adds a usage case for one option the utility does not declare.
	ProbeUnknown bool

	now func() time.Time
}

// Run processes utilities in order and returns the summary of the run.
// Setup and environment faults of the engine always end the run; execution
// faults end it only under PolicyAbort. On error the summary covers the
// utilities processed so far.
func (d *Driver) Run(ctx context.Context, utilities []string) (*models.RunSummary, error) {
	if d.Scanner == nil || d.Executor == nil {
		return nil, errors.New("driver requires a scanner and an executor")
	}

	summary := &models.RunSummary{Started: d.clock()}

	runID, err := d.beginRun(ctx)
	if err != nil {
		return nil, err
	}
	summary.RunID = runID

	for i, utility := range utilities {
		result, err := d.runUtility(ctx, runID, utility)
		if result != nil {
			summary.Utilities = append(summary.Utilities, *result)
		}
		if err != nil {
			summary.Duration = d.clock().Sub(summary.Started)
			return summary, err
		}
		d.logProgress(i+1, len(utilities))
	}

	summary.Duration = d.clock().Sub(summary.Started)

	if d.Recorder != nil {
		if err := d.Recorder.FinishRun(ctx, runID, *summary); err != nil {
			d.warnf("failed to finish run %s in history: %v", runID, err)
		}
	}
	if d.Report != nil {
		if err := d.Report(*summary); err != nil {
			return summary, fmt.Errorf("failed to write report: %w", err)
		}
	}
	if d.Logger != nil {
		d.Logger.LogSummary(*summary)
	}

	return summary, nil
}

func (d *Driver) beginRun(ctx context.Context) (string, error) {
	if d.Recorder == nil {
		return uuid.New().String(), nil
	}
	runID, err := d.Recorder.BeginRun(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to start run in history: %w", err)
	}
	return runID, nil
}

// runUtility scans, executes and emits a single utility.
func (d *Driver) runUtility(ctx context.Context, runID, utility string) (*models.UtilityResult, error) {
	scan, err := d.Scanner.ScanDetailed(utility)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", utility, err)
	}
	if d.Logger != nil {
		d.Logger.LogScan(utility, scan.Declared, scan.Matched)
	}
	if len(scan.Sections) == 0 {
		d.warnf("no manual page found for %s", utility)
	}

	result := &models.UtilityResult{
		Utility:  utility,
		Declared: append([]string(nil), scan.Declared...),
	}

	options := append([]models.OptionDefinition(nil), scan.Matched...)
	if d.ProbeUnknown {
		if probe, ok := ProbeOption(scan.Declared); ok {
			options = append(options, probe)
		} else {
			d.debugf("%s declares every probe candidate, no usage case", utility)
		}
	}

	for _, opt := range options {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		command := BuildCommand(utility, opt)
		res, err := d.Executor.Execute(ctx, command)
		if err != nil {
			if executor.IsExecutionError(err) && d.Policy == config.PolicySkip {
				d.skip(ctx, runID, result, models.SkippedCase{
					Utility: utility,
					Option:  opt,
					Command: command,
					Reason:  err.Error(),
				})
				continue
			}
			return result, err
		}

		tc := models.TestCase{Utility: utility, Option: opt, Result: *res}
		result.Cases = append(result.Cases, tc)
		if d.Logger != nil {
			d.Logger.LogCase(tc)
		}
		if d.Recorder != nil {
			if err := d.Recorder.RecordExecution(ctx, runID, tc); err != nil {
				d.warnf("failed to record %s in history: %v", command, err)
			}
		}
	}

	if d.Emitter != nil {
		path, err := d.Emitter.Emit(utility, result.Cases)
		if err != nil {
			return result, err
		}
		result.ScriptPath = path
	}

	return result, nil
}

func (d *Driver) skip(ctx context.Context, runID string, result *models.UtilityResult, sc models.SkippedCase) {
	result.Skipped = append(result.Skipped, sc)
	if d.Logger != nil {
		d.Logger.LogSkip(sc)
	}
	if d.Recorder != nil {
		if err := d.Recorder.RecordSkip(ctx, runID, sc); err != nil {
			d.warnf("failed to record skipped %s in history: %v", sc.Command, err)
		}
	}
}

// BuildCommand returns the shell command line testing opt against utility,
// with stderr folded into stdout. Utility names that are not plain words
// are single-quoted.
func BuildCommand(utility string, opt models.OptionDefinition) string {
	name := utility
	if !plainWord.MatchString(name) {
		name = "'" + strings.ReplaceAll(name, "'", `'\''`) + "'"
	}
	return fmt.Sprintf("%s %s 2>&1", name, opt.Flag())
}

// ProbeOption picks the first alphanumeric short option not present in
// declared and returns it as a usage case. It reports false when every
// candidate is declared.
func ProbeOption(declared []string) (models.OptionDefinition, bool) {
	taken := make(map[string]bool, len(declared))
	for _, name := range declared {
		taken[name] = true
	}
	for _, r := range probeAlphabet {
		if c := string(r); !taken[c] {
			return models.OptionDefinition{Kind: models.OptionShort, Value: c, Keyword: models.UsageKeyword}, true
		}
	}
	return models.OptionDefinition{}, false
}

func (d *Driver) clock() time.Time {
	if d.now != nil {
		return d.now()
	}
	return time.Now()
}

func (d *Driver) logProgress(done, total int) {
	if d.Logger != nil {
		d.Logger.LogProgress(done, total)
	}
}

func (d *Driver) debugf(format string, args ...interface{}) {
	if d.Logger != nil {
		d.Logger.Debugf(format, args...)
	}
}

func (d *Driver) warnf(format string, args ...interface{}) {
	if d.Logger != nil {
		d.Logger.Warnf(format, args...)
	}
}
