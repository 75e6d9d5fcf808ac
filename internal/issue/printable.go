// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"fmt"
)

// PrintableError is a user-facing error whose message is printed verbatim.
// An empty message is allowed: nothing is printed but the command still fails.
type PrintableError struct {
	Msg string
}

// Printable builds a PrintableError from a format string.
func Printable(format string, args ...any) *PrintableError {
	return &PrintableError{Msg: fmt.Sprintf(format, args...)}
}

// Error implements the error interface.
func (e *PrintableError) Error() string { return e.Msg }

// UserMessage reports whether err belongs to the user-facing tier and, if so,
// the message to show. It walks wrapped errors (including errors joined with
// several %w verbs) and uses the first PrintableError or ActionableError found.
func UserMessage(err error) (string, bool) {
	switch e := err.(type) {
	case nil:
		return "", false
	case *PrintableError:
		return e.Msg, true
	case *ActionableError:
		return e.Format(false), true
	case interface{ Unwrap() []error }:
		for _, inner := range e.Unwrap() {
			if msg, ok := UserMessage(inner); ok {
				return msg, true
			}
		}
		return "", false
	}
	return UserMessage(errors.Unwrap(err))
}
