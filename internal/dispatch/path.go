// SPDX-License-Identifier: MPL-2.0

package dispatch

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrInvalidPath is the sentinel error wrapped by InvalidPathError.
var ErrInvalidPath = errors.New("invalid command path")

type (
	// Path is an ordered, deduplicated, non-empty list of grammar names that
	// must all be present in the argument model for a handler to apply.
	Path struct {
		names []string
	}

	// InvalidPathError is returned when a path has no names or contains an
	// empty name.
	InvalidPathError struct {
		Names []string
	}
)

// Error implements the error interface for InvalidPathError.
func (e *InvalidPathError) Error() string {
	return fmt.Sprintf("invalid command path %q: need at least one non-empty name", e.Names)
}

// Unwrap returns ErrInvalidPath for errors.Is() compatibility.
func (e *InvalidPathError) Unwrap() error { return ErrInvalidPath }

// NewPath builds a Path. Repeated names collapse onto their first occurrence.
func NewPath(names ...string) (Path, error) {
	if len(names) == 0 {
		return Path{}, &InvalidPathError{Names: names}
	}
	deduped := make([]string, 0, len(names))
	for _, name := range names {
		if name == "" {
			return Path{}, &InvalidPathError{Names: names}
		}
		if !slices.Contains(deduped, name) {
			deduped = append(deduped, name)
		}
	}
	return Path{names: deduped}, nil
}

// MustPath is NewPath for the static command table; it panics on an invalid path.
func MustPath(names ...string) Path {
	p, err := NewPath(names...)
	if err != nil {
		panic(err)
	}
	return p
}

// Names returns a copy of the path's names in order.
func (p Path) Names() []string { return slices.Clone(p.names) }

// Len returns the number of names, i.e. how specific the path is.
func (p Path) Len() int { return len(p.names) }

// IsZero reports whether p is the zero Path (never a valid registration).
func (p Path) IsZero() bool { return len(p.names) == 0 }

// Equal reports whether both paths hold the same names in the same order.
func (p Path) Equal(o Path) bool { return slices.Equal(p.names, o.names) }

// String joins the names with spaces, e.g. "override add".
func (p Path) String() string { return strings.Join(p.names, " ") }

// PresentIn reports whether every name of the path is truthy in pr.
func (p Path) PresentIn(pr Presence) bool {
	if p.IsZero() {
		return false
	}
	for _, name := range p.names {
		if !pr.Truthy(name) {
			return false
		}
	}
	return true
}
