// Package ui renders diagnostics for the terminal and runs the watch dashboard
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/recera/mxc/internal/diag"
)

var (
	primaryColor = lipgloss.Color("#3b82f6")
	successColor = lipgloss.Color("#10b981")
	warningColor = lipgloss.Color("#f59e0b")
	errorColor   = lipgloss.Color("#ef4444")
	mutedColor   = lipgloss.Color("#94a3b8")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor)

	mutedStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	errorStyle = lipgloss.NewStyle().
			Foreground(errorColor).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(warningColor)

	successStyle = lipgloss.NewStyle().
			Foreground(successColor).
			Bold(true)

	selectedStyle = lipgloss.NewStyle().
			Foreground(primaryColor).
			Bold(true)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(0, 1)

	helpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			MarginTop(1)
)

// RenderDiagnostic formats one diagnostic as `file:line:col severity message [kind]`
func RenderDiagnostic(d *diag.Diagnostic) string {
	loc := fmt.Sprintf("%d:%d", d.Line, d.Column)
	if d.File != "" {
		loc = d.File + ":" + loc
	}

	sev := warningStyle.Render(string(d.Severity))
	if d.IsError() {
		sev = errorStyle.Render(string(d.Severity))
	}
	return fmt.Sprintf("%s %s %s %s", mutedStyle.Render(loc), sev, d.Message, mutedStyle.Render("["+string(d.Kind)+"]"))
}

// RenderDiagnostics formats a list sorted by position, one diagnostic per line
func RenderDiagnostics(l diag.List) string {
	var b strings.Builder
	for _, d := range l.Sorted() {
		b.WriteString(RenderDiagnostic(d))
		b.WriteByte('\n')
	}
	return b.String()
}

// Summary describes a build in one line
func Summary(files, failed, warnings, cached int) string {
	parts := []string{fmt.Sprintf("%d %s", files, plural(files, "file"))}
	if cached > 0 {
		parts = append(parts, fmt.Sprintf("%d cached", cached))
	}
	if warnings > 0 {
		parts = append(parts, warningStyle.Render(fmt.Sprintf("%d %s", warnings, plural(warnings, "warning"))))
	}
	if failed > 0 {
		parts = append(parts, errorStyle.Render(fmt.Sprintf("%d failed", failed)))
		return "❌ " + strings.Join(parts, ", ")
	}
	return "✅ " + strings.Join(parts, ", ")
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
