package terminal

import (
	"UCLA-Rocket-Project/GALIL/internal/tester"

	"github.com/charmbracelet/lipgloss"
)

var (
	colorFg        = lipgloss.Color("#EDEDED")
	colorMuted     = lipgloss.Color("#666666")
	colorBorder    = lipgloss.Color("#333333")
	colorHighlight = lipgloss.Color("#0070F3")

	colorSuccess = lipgloss.Color("#50E3C2")
	colorError   = lipgloss.Color("#E00")
	colorRunning = lipgloss.Color("#0070F3")
	colorPending = lipgloss.Color("#666666")
	colorSkipped = lipgloss.Color("#F5A623")
)

// Layout styles
var (
	containerStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorFg)

	mutedStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	hintStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			Italic(true)
)

// List styles
var (
	selectedItemStyle = lipgloss.NewStyle().
				Foreground(colorHighlight).
				Bold(true)

	normalItemStyle = lipgloss.NewStyle().
			Foreground(colorFg)

	cursorStyle = lipgloss.NewStyle().
			Foreground(colorHighlight).
			Bold(true)
)

// Status indicator styles
var (
	pendingStyle = lipgloss.NewStyle().
			Foreground(colorPending)

	runningStyle = lipgloss.NewStyle().
			Foreground(colorRunning).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(colorSuccess).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorError).
			Bold(true)

	skippedStyle = lipgloss.NewStyle().
			Foreground(colorSkipped)
)

// Log styles
var (
	logContentStyle = lipgloss.NewStyle().
			Foreground(colorFg)

	logIndent = "   "
)

// Status icons
const (
	iconPending = "○"
	iconSuccess = "✓"
	iconFail    = "✕"
	iconSkipped = "-"
	// Spinner frames are handled by the spinner component
)

func statusOf(status tester.Status) TestStatus {
	switch status {
	case tester.STATUS_PASS:
		return StatusPass
	case tester.STATUS_FAIL:
		return StatusFail
	case tester.STATUS_SKIPPED:
		return StatusSkipped
	default:
		return StatusPending
	}
}

func renderCursor(active bool) string {
	if active {
		return cursorStyle.Render("▸")
	}
	return " "
}

func renderCheckbox(checked bool) string {
	if checked {
		return successStyle.Render("[✓]")
	}
	return mutedStyle.Render("[ ]")
}

func renderItem(name string, active bool) string {
	if active {
		return selectedItemStyle.Render(name)
	}
	return normalItemStyle.Render(name)
}

func renderStatusIcon(status TestStatus, spinnerView string) string {
	switch status {
	case StatusRunning:
		return runningStyle.Render(spinnerView)
	case StatusPass:
		return successStyle.Render(iconSuccess)
	case StatusFail:
		return errorStyle.Render(iconFail)
	case StatusSkipped:
		return skippedStyle.Render(iconSkipped)
	default:
		return pendingStyle.Render(iconPending)
	}
}

func renderTestName(name string, status TestStatus) string {
	switch status {
	case StatusPass:
		return successStyle.Render(name)
	case StatusFail:
		return errorStyle.Render(name)
	case StatusRunning:
		return runningStyle.Render(name)
	case StatusSkipped:
		return skippedStyle.Render(name + " (skipped)")
	default:
		return mutedStyle.Render(name)
	}
}

func renderHint(text string) string {
	return hintStyle.Render(text)
}
