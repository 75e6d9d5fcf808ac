// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Color palette.
const (
	// ColorError is red - used for errors and failures.
	ColorError = lipgloss.Color("#EF4444")

	// ColorWarning is amber - used for warnings.
	ColorWarning = lipgloss.Color("#F59E0B")
)

var (
	// ErrorStyle is for error messages.
	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorError)

	// WarningStyle is for warnings.
	WarningStyle = lipgloss.NewStyle().
			Foreground(ColorWarning)
)

// render styles s when w is a terminal; redirected output is left plain.
func render(w io.Writer, style lipgloss.Style, s string) string {
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return style.Render(s)
	}
	return s
}
