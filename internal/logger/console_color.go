package logger

import (
	"fmt"

	"github.com/fatih/color"

	"github.com/harrison/smokegen/internal/models"
)

// colorScheme defines consistent colors for summary metrics.
// Green: clean results
// Red: skipped or failed cases
// Yellow: timeouts
// Cyan: labels
type colorScheme struct {
	enabled bool
	success *color.Color
	fail    *color.Color
	warn    *color.Color
	label   *color.Color
	value   *color.Color
}

// newColorScheme creates the standard color scheme. With enabled false every
// formatter returns plain text.
func newColorScheme(enabled bool) *colorScheme {
	return &colorScheme{
		enabled: enabled,
		success: color.New(color.FgGreen),
		fail:    color.New(color.FgRed),
		warn:    color.New(color.FgYellow),
		label:   color.New(color.FgCyan),
		value:   color.New(color.FgWhite),
	}
}

func (s *colorScheme) paint(c *color.Color, v interface{}) string {
	if !s.enabled {
		return fmt.Sprint(v)
	}
	return c.Sprint(v)
}

// metric formats "label: value" with a cyan label.
func (s *colorScheme) metric(label string, value interface{}) string {
	return fmt.Sprintf("%s: %s", s.paint(s.label, label), s.paint(s.value, value))
}

func (s *colorScheme) warning(label string, value interface{}) string {
	return fmt.Sprintf("%s: %s", s.paint(s.warn, label), s.paint(s.warn, value))
}

func (s *colorScheme) failure(label string, value interface{}) string {
	return fmt.Sprintf("%s: %s", s.paint(s.fail, label), s.paint(s.fail, value))
}

// levelColor returns the color used for a level label.
func levelColor(level string) *color.Color {
	switch level {
	case "TRACE":
		return color.New(color.FgHiBlack)
	case "DEBUG":
		return color.New(color.FgCyan)
	case "INFO":
		return color.New(color.FgBlue)
	case "WARN":
		return color.New(color.FgYellow)
	case "ERROR":
		return color.New(color.FgRed)
	default:
		return color.New(color.Reset)
	}
}

// caseColor picks the status color of an executed case: yellow when the
// child had to be terminated, green for exit 0, red otherwise.
func caseColor(r models.ExecutionResult) *color.Color {
	switch {
	case r.TimedOut:
		return color.New(color.FgYellow)
	case r.ExitStatus == 0:
		return color.New(color.FgGreen)
	default:
		return color.New(color.FgRed)
	}
}
