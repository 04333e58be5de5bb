// Package logger provides logging implementations for smokegen runs.
//
// The logger package offers leveled printf-style diagnostics for the scanner
// and execution engine, plus structured events for the generate pipeline
// (scan, case, skip, progress and summary). Implementations are thread-safe
// and support various output destinations (console, file, etc.).
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/harrison/smokegen/internal/models"
)

// Log level constants for filtering
const (
	levelTrace int = 0
	levelDebug int = 1
	levelInfo  int = 2
	levelWarn  int = 3
	levelError int = 4
)

// Logger is the full event surface of a smokegen logger.
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

// ConsoleLogger logs run progress to a writer with timestamps and thread safety.
// All output is prefixed with [HH:MM:SS] timestamps.
// It supports log level filtering to control message verbosity.
// Color output is enabled when the writer is a terminal.
type ConsoleLogger struct {
	writer      io.Writer
	logLevel    string
	mutex       sync.Mutex
	colorOutput bool
}

// NewConsoleLogger creates a ConsoleLogger that writes to the provided io.Writer.
// If writer is nil, messages are silently discarded.
// Valid levels: trace, debug, info, warn, error (case-insensitive).
// If logLevel is empty or invalid, defaults to "info".
func NewConsoleLogger(writer io.Writer, logLevel string) *ConsoleLogger {
	return &ConsoleLogger{
		writer:      writer,
		logLevel:    normalizeLogLevel(logLevel),
		colorOutput: isTerminal(writer),
	}
}

// isTerminal reports whether w is a TTY that should receive colors.
// NO_COLOR (honored by fatih/color) always wins.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || f == nil {
		return false
	}
	if color.NoColor {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// normalizeLogLevel converts a log level string to lowercase and validates it.
// Returns "info" as default for empty or invalid levels.
func normalizeLogLevel(level string) string {
	normalized := strings.ToLower(strings.TrimSpace(level))

	switch normalized {
	case "trace", "debug", "info", "warn", "error":
		return normalized
	}
	return "info"
}

// logLevelToInt converts a log level string to its numeric value.
func logLevelToInt(level string) int {
	switch level {
	case "trace":
		return levelTrace
	case "debug":
		return levelDebug
	case "info":
		return levelInfo
	case "warn":
		return levelWarn
	case "error":
		return levelError
	default:
		return levelInfo
	}
}

// shouldLog checks if a message at the given level should be logged.
func (cl *ConsoleLogger) shouldLog(messageLevel string) bool {
	return logLevelToInt(messageLevel) >= logLevelToInt(cl.logLevel)
}

// LogTrace logs a trace-level message (most verbose).
func (cl *ConsoleLogger) LogTrace(message string) {
	cl.logWithLevel("TRACE", message)
}

// LogDebug logs a debug-level message.
func (cl *ConsoleLogger) LogDebug(message string) {
	cl.logWithLevel("DEBUG", message)
}

// LogInfo logs an info-level message.
func (cl *ConsoleLogger) LogInfo(message string) {
	cl.logWithLevel("INFO", message)
}

// LogWarn logs a warning-level message.
func (cl *ConsoleLogger) LogWarn(message string) {
	cl.logWithLevel("WARN", message)
}

// LogError logs an error-level message.
func (cl *ConsoleLogger) LogError(message string) {
	cl.logWithLevel("ERROR", message)
}

func (cl *ConsoleLogger) Debugf(format string, args ...interface{}) {
	cl.logWithLevel("DEBUG", fmt.Sprintf(format, args...))
}

func (cl *ConsoleLogger) Infof(format string, args ...interface{}) {
	cl.logWithLevel("INFO", fmt.Sprintf(format, args...))
}

func (cl *ConsoleLogger) Warnf(format string, args ...interface{}) {
	cl.logWithLevel("WARN", fmt.Sprintf(format, args...))
}

// logWithLevel logs a message at the specified level if filtering allows it.
// Format: "[HH:MM:SS] [LEVEL] <message>"
func (cl *ConsoleLogger) logWithLevel(level string, message string) {
	if cl.writer == nil || !cl.shouldLog(strings.ToLower(level)) {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	label := level
	if cl.colorOutput {
		label = levelColor(level).Sprint(level)
	}
	fmt.Fprintf(cl.writer, "[%s] [%s] %s\n", timestamp(), label, message)
}

// LogScan logs the outcome of scanning a utility's manual pages at INFO level.
// Format: "[HH:MM:SS] <utility>: <n> declared, <m> matched (-h, -v)"
func (cl *ConsoleLogger) LogScan(utility string, declared []string, matched []models.OptionDefinition) {
	if cl.writer == nil || !cl.shouldLog("info") {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	fmt.Fprintf(cl.writer, "[%s] %s\n", timestamp(), formatScan(utility, declared, matched))
}

// LogCase logs one executed test case at INFO level.
// Format: "[HH:MM:SS] <command>: exit <status> (<duration>)"
func (cl *ConsoleLogger) LogCase(tc models.TestCase) {
	if cl.writer == nil || !cl.shouldLog("info") {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	status := caseStatus(tc.Result)
	if cl.colorOutput {
		status = caseColor(tc.Result).Sprint(status)
	}
	fmt.Fprintf(cl.writer, "[%s] %s: %s (%s)\n",
		timestamp(), tc.Result.Command, status, formatDuration(tc.Result.Duration))
	if cl.shouldLog("trace") && tc.Result.Output != "" {
		fmt.Fprintf(cl.writer, "%s\n", indent(tc.Result.Output))
	}
}

// LogSkip logs a case dropped under the skip policy at WARN level.
func (cl *ConsoleLogger) LogSkip(sc models.SkippedCase) {
	cl.logWithLevel("WARN", fmt.Sprintf("skipped %s %s: %s", sc.Utility, sc.Option.Flag(), sc.Reason))
}

// LogProgress renders a progress bar of processed utilities at INFO level.
func (cl *ConsoleLogger) LogProgress(done, total int) {
	if cl.writer == nil || !cl.shouldLog("info") || total <= 0 {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	bar := NewProgressBar(total, 20, cl.colorOutput)
	bar.SetPrefix("Utilities ")
	bar.Update(done)
	fmt.Fprintf(cl.writer, "[%s] %s\n", timestamp(), bar.Render())
}

// LogSummary logs the run summary with final statistics at INFO level.
func (cl *ConsoleLogger) LogSummary(summary models.RunSummary) {
	if cl.writer == nil || !cl.shouldLog("info") {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	scheme := newColorScheme(cl.colorOutput)
	ts := timestamp()
	fmt.Fprintf(cl.writer, "[%s] === Run Summary ===\n", ts)
	fmt.Fprintf(cl.writer, "[%s] %s\n", ts, scheme.metric("Run", summary.RunID))
	fmt.Fprintf(cl.writer, "[%s] %s\n", ts, scheme.metric("Utilities", len(summary.Utilities)))
	fmt.Fprintf(cl.writer, "[%s] %s\n", ts, scheme.metric("Cases", summary.TotalCases()))
	if n := summary.TimedOutCases(); n > 0 {
		fmt.Fprintf(cl.writer, "[%s] %s\n", ts, scheme.warning("Timed out", n))
	}
	if n := summary.TotalSkipped(); n > 0 {
		fmt.Fprintf(cl.writer, "[%s] %s\n", ts, scheme.failure("Skipped", n))
	}
	for _, u := range summary.Utilities {
		if u.ScriptPath != "" {
			fmt.Fprintf(cl.writer, "[%s] %s\n", ts, scheme.metric(u.Utility, u.ScriptPath))
		}
	}
	fmt.Fprintf(cl.writer, "[%s] %s\n", ts, scheme.metric("Duration", formatDuration(summary.Duration)))
}

// timestamp returns the current time formatted as HH:MM:SS.
func timestamp() string {
	return time.Now().Format("15:04:05")
}

// formatScan renders the one-line scan outcome shared by every logger.
func formatScan(utility string, declared []string, matched []models.OptionDefinition) string {
	flags := make([]string, len(matched))
	for i, def := range matched {
		flags[i] = def.Flag()
	}
	msg := fmt.Sprintf("%s: %d declared, %d matched", utility, len(declared), len(matched))
	if len(flags) > 0 {
		msg += " (" + strings.Join(flags, ", ") + ")"
	}
	return msg
}

// caseStatus renders the outcome of an execution as text.
func caseStatus(r models.ExecutionResult) string {
	if r.TimedOut {
		return fmt.Sprintf("timed out, exit %d", r.ExitStatus)
	}
	return fmt.Sprintf("exit %d", r.ExitStatus)
}

func indent(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = "    " + l
	}
	return strings.Join(lines, "\n")
}

// formatDuration formats a duration in a human-readable format.
// Sub-second durations are shown in milliseconds.
func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Hour:
		hours := d / time.Hour
		minutes := (d % time.Hour) / time.Minute
		if minutes == 0 {
			return fmt.Sprintf("%dh", hours)
		}
		return fmt.Sprintf("%dh%dm", hours, minutes)
	case d >= time.Minute:
		minutes := d / time.Minute
		seconds := (d % time.Minute) / time.Second
		if seconds == 0 {
			return fmt.Sprintf("%dm", minutes)
		}
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	case d >= time.Second:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
}

// NoOpLogger discards every message and event.
type NoOpLogger struct{}

// NewNoOpLogger creates a logger that does nothing.
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

func (n *NoOpLogger) Debugf(format string, args ...interface{}) {}
func (n *NoOpLogger) Infof(format string, args ...interface{})  {}
func (n *NoOpLogger) Warnf(format string, args ...interface{})  {}

func (n *NoOpLogger) LogScan(utility string, declared []string, matched []models.OptionDefinition) {
}
func (n *NoOpLogger) LogCase(tc models.TestCase)           {}
func (n *NoOpLogger) LogSkip(sc models.SkippedCase)        {}
func (n *NoOpLogger) LogProgress(done, total int)          {}
func (n *NoOpLogger) LogSummary(summary models.RunSummary) {}
