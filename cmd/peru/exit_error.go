// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/fang"

	"github.com/peru/peru/internal/issue"
)

const (
	// exitOK is returned for success, help and version output.
	exitOK = 0
	// exitUser is returned for anticipated, user-facing errors.
	exitUser = 1
	// exitInternal is returned for every other failure.
	exitInternal = 2
)

// ExitError signals a specific exit code.
type ExitError struct {
	Code int
	Err  error
}

// Error returns the error message for ExitError.
func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

// Unwrap returns the underlying error, if any.
func (e *ExitError) Unwrap() error {
	return e.Err
}

// exitCode maps an error to the process exit code.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	if _, ok := issue.UserMessage(err); ok {
		return exitUser
	}
	return exitInternal
}

// printError is the fang error handler. User-facing messages are printed as
// they are (an empty message prints nothing); anything else is reported as
// an internal error with its chain.
func printError(w io.Writer, _ fang.Styles, err error) {
	if msg, ok := issue.UserMessage(err); ok {
		if msg != "" {
			_, _ = fmt.Fprintln(w, render(w, ErrorStyle, msg))
		}
		return
	}
	_, _ = fmt.Fprintln(w, render(w, ErrorStyle, "peru: internal error: "+err.Error()))
}
