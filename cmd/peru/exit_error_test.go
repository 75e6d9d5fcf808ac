// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/charmbracelet/fang"

	"github.com/peru/peru/internal/issue"
)

func TestExitCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, exitOK},
		{"printable", fmt.Errorf("wrapped: %w", issue.Printable("bad")), exitUser},
		{"empty printable", &issue.PrintableError{}, exitUser},
		{"actionable", issue.NewErrorContext().WithOperation("sync").Wrap(errors.New("x")).BuildError(), exitUser},
		{"internal", errors.New("boom"), exitInternal},
		{"explicit", &ExitError{Code: 5}, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := exitCode(tt.err); got != tt.want {
				t.Errorf("exitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestPrintError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"user message", issue.Printable("Usage: peru sync"), "Usage: peru sync\n"},
		{"empty message", &issue.PrintableError{}, ""},
		{"internal", errors.New("disk on fire"), "peru: internal error: disk on fire\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			printError(&buf, fang.Styles{}, tt.err)
			if buf.String() != tt.want {
				t.Errorf("printError() wrote %q, want %q", buf.String(), tt.want)
			}
		})
	}
}
