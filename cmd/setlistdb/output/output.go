// Package output prints styled CLI messages.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	colorSuccess = lipgloss.Color("#10B981")
	colorWarning = lipgloss.Color("#F59E0B")
	colorError   = lipgloss.Color("#EF4444")
	colorInfo    = lipgloss.Color("#3B82F6")
	colorMuted   = lipgloss.Color("#6B7280")
	colorPrimary = lipgloss.Color("#7C3AED")

	successStyle = lipgloss.NewStyle().Foreground(colorSuccess).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(colorWarning).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(colorError).Bold(true)
	infoStyle    = lipgloss.NewStyle().Foreground(colorInfo)
	mutedStyle   = lipgloss.NewStyle().Foreground(colorMuted)
	primaryStyle = lipgloss.NewStyle().Foreground(colorPrimary).Bold(true)
)

var out io.Writer = os.Stdout

// SetOutput redirects every message to w and returns the previous writer.
func SetOutput(w io.Writer) io.Writer {
	prev := out
	out = w
	return prev
}

func line(icon string, format string, args ...any) {
	_, _ = fmt.Fprint(out, icon)
	_, _ = fmt.Fprintf(out, format+"\n", args...)
}

// Success prints a success message
func Success(format string, args ...any) {
	line(successStyle.Render("✓ "), format, args...)
}

// Warning prints a warning message
func Warning(format string, args ...any) {
	line(warningStyle.Render("⚠ "), format, args...)
}

// Error prints an error message
func Error(format string, args ...any) {
	line(errorStyle.Render("✗ "), format, args...)
}

// Info prints an info message
func Info(format string, args ...any) {
	line(infoStyle.Render("ℹ "), format, args...)
}

// Muted prints a muted message
func Muted(format string, args ...any) {
	_, _ = fmt.Fprintln(out, mutedStyle.Render(fmt.Sprintf(format, args...)))
}

// Primary prints a primary message
func Primary(format string, args ...any) {
	_, _ = fmt.Fprintln(out, primaryStyle.Render(fmt.Sprintf(format, args...)))
}

// Section prints a section header
func Section(title string) {
	_, _ = fmt.Fprintln(out)
	_, _ = fmt.Fprintln(out, primaryStyle.Render(title))
	_, _ = fmt.Fprintln(out, mutedStyle.Render(strings.Repeat("═", lipgloss.Width(title))))
	_, _ = fmt.Fprintln(out)
}

// Newline prints an empty line.
func Newline() {
	_, _ = fmt.Fprintln(out)
}

// StatusIcon returns a colored status icon
func StatusIcon(status string) string {
	switch status {
	case "applied":
		return successStyle.Render("✓")
	case "pending":
		return warningStyle.Render("○")
	case "failed":
		return errorStyle.Render("✗")
	case "running":
		return infoStyle.Render("◉")
	default:
		return mutedStyle.Render("•")
	}
}
