package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/harrison/smokegen/internal/models"
)

// FileLogger logs run events to files in the log directory.
// It creates timestamped per-run log files, per-utility detailed logs,
// and maintains a latest.log symlink pointing to the most recent run.
// It is thread-safe and supports log level filtering.
type FileLogger struct {
	logDir       string
	runLog       *os.File
	runFile      string
	utilitiesDir string
	logLevel     string
	mu           sync.Mutex
}

// NewFileLogger creates a FileLogger that writes to .smokegen/logs/ at "info".
func NewFileLogger() (*FileLogger, error) {
	return NewFileLoggerWithDirAndLevel(filepath.Join(".smokegen", "logs"), "info")
}

// NewFileLoggerWithDirAndLevel creates a new FileLogger with a custom log directory and log level.
// It creates the log directory if it doesn't exist, opens a timestamped
// run log file, and creates/updates the latest.log symlink.
func NewFileLoggerWithDirAndLevel(logDir string, logLevel string) (*FileLogger, error) {
	utilitiesDir := filepath.Join(logDir, "utilities")
	if err := os.MkdirAll(utilitiesDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	// run-YYYYMMDD-HHMMSS.log
	runFile := filepath.Join(logDir, fmt.Sprintf("run-%s.log", time.Now().Format("20060102-150405")))

	file, err := os.OpenFile(runFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create run log file: %w", err)
	}

	symlinkPath := filepath.Join(logDir, "latest.log")
	if _, err := os.Lstat(symlinkPath); err == nil {
		if err := os.Remove(symlinkPath); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to remove old symlink: %w", err)
		}
	}
	if err := os.Symlink(filepath.Base(runFile), symlinkPath); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to create symlink: %w", err)
	}

	logger := &FileLogger{
		logDir:       logDir,
		runLog:       file,
		runFile:      runFile,
		utilitiesDir: utilitiesDir,
		logLevel:     normalizeLogLevel(logLevel),
	}

	logger.writeRunLog("=== smokegen Run Log ===\n")
	logger.writeRunLog(fmt.Sprintf("Started at: %s\n\n", time.Now().Format(time.RFC3339)))

	return logger, nil
}

// RunFile returns the path of the run log file.
func (fl *FileLogger) RunFile() string {
	return fl.runFile
}

func (fl *FileLogger) shouldLog(messageLevel string) bool {
	return logLevelToInt(messageLevel) >= logLevelToInt(fl.logLevel)
}

func (fl *FileLogger) Debugf(format string, args ...interface{}) {
	fl.logWithLevel("DEBUG", fmt.Sprintf(format, args...))
}

func (fl *FileLogger) Infof(format string, args ...interface{}) {
	fl.logWithLevel("INFO", fmt.Sprintf(format, args...))
}

func (fl *FileLogger) Warnf(format string, args ...interface{}) {
	fl.logWithLevel("WARN", fmt.Sprintf(format, args...))
}

func (fl *FileLogger) logWithLevel(level string, message string) {
	if !fl.shouldLog(strings.ToLower(level)) {
		return
	}
	fl.writeRunLog(fmt.Sprintf("[%s] [%s] %s\n", timestamp(), level, message))
}

// LogScan logs the scan outcome and starts a fresh utilities/<utility>.log.
func (fl *FileLogger) LogScan(utility string, declared []string, matched []models.OptionDefinition) {
	if fl.shouldLog("info") {
		fl.writeRunLog(fmt.Sprintf("[%s] %s\n", timestamp(), formatScan(utility, declared, matched)))
	}

	content := fmt.Sprintf("=== %s ===\n", utility)
	content += fmt.Sprintf("Declared: %s\n", strings.Join(declared, " "))
	content += fmt.Sprintf("Scanned at: %s\n\n", time.Now().Format(time.RFC3339))
	if err := fl.writeUtilityLog(utility, content, os.O_TRUNC); err != nil {
		fl.logWithLevel("WARN", err.Error())
	}
}

// LogCase logs the case to the run log and appends its full output to the
// utility log.
func (fl *FileLogger) LogCase(tc models.TestCase) {
	if fl.shouldLog("info") {
		fl.writeRunLog(fmt.Sprintf("[%s] %s: %s (%s)\n",
			timestamp(), tc.Result.Command, caseStatus(tc.Result), formatDuration(tc.Result.Duration)))
	}

	content := fmt.Sprintf("--- %s (%s) ---\n", tc.Option.Flag(), tc.Option.Keyword)
	content += fmt.Sprintf("Command: %s\n", tc.Result.Command)
	content += fmt.Sprintf("Status: %s\n", caseStatus(tc.Result))
	content += fmt.Sprintf("Duration: %s\n", tc.Result.Duration)
	content += fmt.Sprintf("Output:\n%s\n\n", tc.Result.Output)
	if err := fl.writeUtilityLog(tc.Utility, content, os.O_APPEND); err != nil {
		fl.logWithLevel("WARN", err.Error())
	}
}

func (fl *FileLogger) LogSkip(sc models.SkippedCase) {
	fl.logWithLevel("WARN", fmt.Sprintf("skipped %s %s: %s", sc.Utility, sc.Option.Flag(), sc.Reason))

	content := fmt.Sprintf("--- %s (%s) SKIPPED ---\nCommand: %s\nReason: %s\n\n",
		sc.Option.Flag(), sc.Option.Keyword, sc.Command, sc.Reason)
	if err := fl.writeUtilityLog(sc.Utility, content, os.O_APPEND); err != nil {
		fl.logWithLevel("WARN", err.Error())
	}
}

// LogProgress is a no-op: progress bars are console-only.
func (fl *FileLogger) LogProgress(done, total int) {}

// LogSummary logs the run summary with final statistics at INFO level.
func (fl *FileLogger) LogSummary(summary models.RunSummary) {
	if !fl.shouldLog("info") {
		return
	}

	ts := timestamp()
	message := fmt.Sprintf("[%s] === Run Summary ===\n", ts)
	message += fmt.Sprintf("[%s] Run: %s\n", ts, summary.RunID)
	message += fmt.Sprintf("[%s] Utilities: %d\n", ts, len(summary.Utilities))
	message += fmt.Sprintf("[%s] Cases: %d\n", ts, summary.TotalCases())
	message += fmt.Sprintf("[%s] Timed out: %d\n", ts, summary.TimedOutCases())
	message += fmt.Sprintf("[%s] Skipped: %d\n", ts, summary.TotalSkipped())
	message += fmt.Sprintf("[%s] Duration: %s\n", ts, formatDuration(summary.Duration))
	fl.writeRunLog(message)
}

// Close flushes and closes the run log file.
func (fl *FileLogger) Close() error {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.runLog != nil {
		if err := fl.runLog.Sync(); err != nil {
			return fmt.Errorf("failed to sync run log: %w", err)
		}
		if err := fl.runLog.Close(); err != nil {
			return fmt.Errorf("failed to close run log: %w", err)
		}
		fl.runLog = nil
	}

	return nil
}

// writeRunLog is a thread-safe helper to write to the run log file.
func (fl *FileLogger) writeRunLog(message string) {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.runLog != nil {
		fl.runLog.WriteString(message)
		fl.runLog.Sync()
	}
}

// writeUtilityLog writes content to utilities/<utility>.log, opened with the
// extra flag (os.O_TRUNC or os.O_APPEND).
func (fl *FileLogger) writeUtilityLog(utility, content string, flag int) error {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	name := strings.ReplaceAll(utility, string(filepath.Separator), "_") + ".log"
	file, err := os.OpenFile(filepath.Join(fl.utilitiesDir, name), os.O_CREATE|os.O_WRONLY|flag, 0644)
	if err != nil {
		return fmt.Errorf("failed to open utility log: %w", err)
	}
	defer file.Close()

	if _, err := file.WriteString(content); err != nil {
		return fmt.Errorf("failed to write utility log: %w", err)
	}
	return nil
}
