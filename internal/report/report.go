// Package report renders run summaries as Markdown and HTML.
package report

import (
	"bytes"
	"fmt"
	"html"
	"path/filepath"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/harrison/smokegen/internal/filelock"
	"github.com/harrison/smokegen/internal/models"
)

// File names written by Write.
const (
	MarkdownFile = "summary.md"
	HTMLFile     = "summary.html"
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.Table))

// Markdown renders summary as a Markdown document with one table per utility.
func Markdown(summary models.RunSummary) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# smokegen run %s\n\n", summary.RunID)
	if !summary.Started.IsZero() {
		fmt.Fprintf(&sb, "- Started: %s\n", summary.Started.UTC().Format(time.RFC3339))
	}
	fmt.Fprintf(&sb, "- Duration: %s\n", summary.Duration.Round(time.Millisecond))
	fmt.Fprintf(&sb, "- Utilities: %d\n", len(summary.Utilities))
	fmt.Fprintf(&sb, "- Cases: %d\n", summary.TotalCases())
	fmt.Fprintf(&sb, "- Timed out: %d\n", summary.TimedOutCases())
	fmt.Fprintf(&sb, "- Skipped: %d\n", summary.TotalSkipped())

	for _, u := range summary.Utilities {
		fmt.Fprintf(&sb, "\n## %s\n\n", u.Utility)
		if u.ScriptPath != "" {
			fmt.Fprintf(&sb, "Script: %s\n\n", code(u.ScriptPath))
		}

		if len(u.Cases) == 0 {
			sb.WriteString("_No matching options._\n")
		} else {
			sb.WriteString("| Option | Command | Exit status | Timed out |\n")
			sb.WriteString("|--------|---------|-------------|-----------|\n")
			for _, c := range u.Cases {
				timedOut := "no"
				if c.Result.TimedOut {
					timedOut = "yes"
				}
				fmt.Fprintf(&sb, "| %s (%s) | %s | %d | %s |\n",
					code(c.Option.Flag()), cell(c.Option.Keyword), code(c.Result.Command), c.Result.ExitStatus, timedOut)
			}
		}

		if len(u.Skipped) > 0 {
			sb.WriteString("\nSkipped:\n\n")
			for _, s := range u.Skipped {
				fmt.Fprintf(&sb, "- %s (%s): %s\n", code(s.Option.Flag()), s.Option.Keyword, s.Reason)
			}
		}
	}

	return sb.String()
}

// HTML converts the Markdown rendering of summary into a standalone page.
func HTML(summary models.RunSummary) ([]byte, error) {
	var body bytes.Buffer
	if err := markdown.Convert([]byte(Markdown(summary)), &body); err != nil {
		return nil, fmt.Errorf("failed to convert report to HTML: %w", err)
	}

	var page bytes.Buffer
	page.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&page, "<title>smokegen run %s</title>\n", html.EscapeString(summary.RunID))
	page.WriteString("</head>\n<body>\n")
	page.Write(body.Bytes())
	page.WriteString("</body>\n</html>\n")
	return page.Bytes(), nil
}

// Write writes summary.md and summary.html into dir.
func Write(dir string, summary models.RunSummary) error {
	htmlDoc, err := HTML(summary)
	if err != nil {
		return err
	}
	if err := filelock.LockAndWrite(filepath.Join(dir, MarkdownFile), []byte(Markdown(summary)), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", MarkdownFile, err)
	}
	if err := filelock.LockAndWrite(filepath.Join(dir, HTMLFile), htmlDoc, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", HTMLFile, err)
	}
	return nil
}

// code renders s as an inline code span that is safe inside a table cell.
func code(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	fence := "`"
	for strings.Contains(s, fence) {
		fence += "`"
	}
	if strings.HasPrefix(s, "`") || strings.HasSuffix(s, "`") {
		return fence + " " + s + " " + fence
	}
	return fence + s + fence
}

func cell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
