package logger

import "github.com/harrison/smokegen/internal/models"

// Multi fans every message and event out to each logger in order.
type Multi []Logger

// NewMulti returns a Multi over the non-nil loggers.
func NewMulti(loggers ...Logger) Multi {
	m := make(Multi, 0, len(loggers))
	for _, l := range loggers {
		if l != nil {
			m = append(m, l)
		}
	}
	return m
}

func (m Multi) Debugf(format string, args ...interface{}) {
	for _, l := range m {
		l.Debugf(format, args...)
	}
}

func (m Multi) Infof(format string, args ...interface{}) {
	for _, l := range m {
		l.Infof(format, args...)
	}
}

func (m Multi) Warnf(format string, args ...interface{}) {
	for _, l := range m {
		l.Warnf(format, args...)
	}
}

func (m Multi) LogScan(utility string, declared []string, matched []models.OptionDefinition) {
	for _, l := range m {
		l.LogScan(utility, declared, matched)
	}
}

func (m Multi) LogCase(tc models.TestCase) {
	for _, l := range m {
		l.LogCase(tc)
	}
}

func (m Multi) LogSkip(sc models.SkippedCase) {
	for _, l := range m {
		l.LogSkip(sc)
	}
}

func (m Multi) LogProgress(done, total int) {
	for _, l := range m {
		l.LogProgress(done, total)
	}
}

func (m Multi) LogSummary(summary models.RunSummary) {
	for _, l := range m {
		l.LogSummary(summary)
	}
}

var (
	_ Logger = (*ConsoleLogger)(nil)
	_ Logger = (*FileLogger)(nil)
	_ Logger = (*NoOpLogger)(nil)
	_ Logger = Multi(nil)
)
