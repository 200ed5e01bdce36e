package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Title renders a styled title.
func Title(text string) string {
	return TitleStyle.Render(text)
}

// Command renders an argument vector the way it is echoed before execution.
func Command(argv []string) string {
	return CommandStyle.Render(strings.Join(argv, " "))
}

// StatusKey renders a key hint for the status bar.
func StatusKey(k, desc string) string {
	return StatusBarKeyStyle.Render(k) + StatusBarStyle.Render(":"+desc)
}

// Badge renders a small colored badge.
func Badge(text string, color lipgloss.Color) string {
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color("230")).
		Background(color).
		Padding(0, 1).
		Render(text)
}

// SuccessBadge renders a green badge.
func SuccessBadge(text string) string {
	return Badge(text, Success)
}

// ErrorBadge renders a red badge.
func ErrorBadge(text string) string {
	return Badge(text, Error)
}

// Outcome renders a pass/fail badge followed by a dimmed detail.
func Outcome(ok bool, detail string) string {
	badge := ErrorBadge("FAIL")
	if ok {
		badge = SuccessBadge("PASS")
	}
	if detail == "" {
		return badge
	}
	return badge + " " + DimStyle.Render(detail)
}
