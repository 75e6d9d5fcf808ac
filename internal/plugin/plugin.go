// SPDX-License-Identifier: MPL-2.0

// Package plugin implements the module types a project file can use: each
// plugin knows its fields, how to fetch a module's files, and how to compute
// updated fields for "peru reup".
package plugin

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/peru/peru/internal/issue"
)

var (
	// ErrUnknownType is returned by Lookup for an unregistered module type.
	ErrUnknownType = errors.New("unknown module type")
	// ErrMissingField is returned when a required plugin field is absent.
	ErrMissingField = errors.New("missing required field")
	// ErrUnknownField is returned for a field the plugin does not accept.
	ErrUnknownField = errors.New("unknown field")
)

type (
	// Request describes one plugin invocation.
	Request struct {
		// Module is the module name, for messages.
		Module string
		// Fields are the module's plugin fields.
		Fields map[string]string
		// ProjectRoot is the directory containing the project file.
		ProjectRoot string
		// Dest is an empty scratch directory the plugin may fill.
		Dest string
		// StateDir is a persistent directory reserved for the plugin type.
		StateDir string
		Logger   *log.Logger
	}

	// Plugin is a module type.
	Plugin interface {
		// Type is the name used in "<type> module <name>" sections.
		Type() string
		// Required and Optional list the accepted fields.
		Required() []string
		Optional() []string
		// Fetch makes the module's files available and returns the directory
		// holding them: either req.Dest after filling it, or an existing
		// directory the plugin points at.
		Fetch(ctx context.Context, req Request) (string, error)
		// Reup returns the fields that should change to follow upstream. An
		// empty map means the module is current.
		Reup(ctx context.Context, req Request) (map[string]string, error)
	}
)

// Cacheable reports whether a plugin's fetch results may be cached by its
// fields. Plugins opt out by implementing Cacheable() bool.
func Cacheable(p Plugin) bool {
	if c, ok := p.(interface{ Cacheable() bool }); ok {
		return c.Cacheable()
	}
	return true
}

var registry = map[string]Plugin{
	gitType:  newGitPlugin(),
	pathType: pathPlugin{},
}

// Lookup returns the plugin for a module type.
func Lookup(typ string) (Plugin, error) {
	if p, ok := registry[typ]; ok {
		return p, nil
	}
	return nil, issue.NewErrorContext().
		WithOperation("load module type").
		WithResource(typ).
		WithSuggestion("Known module types: " + strings.Join(Types(), ", ")).
		Wrap(fmt.Errorf("%w %q", ErrUnknownType, typ)).
		BuildError()
}

// Types returns the registered module types, sorted.
func Types() []string {
	return slices.Sorted(maps.Keys(registry))
}

// CheckFields verifies fields against the plugin's required and optional lists.
func CheckFields(p Plugin, module string, fields map[string]string) error {
	var errs []error
	for _, name := range p.Required() {
		if fields[name] == "" {
			errs = append(errs, fmt.Errorf("%w %q", ErrMissingField, name))
		}
	}
	for _, name := range slices.Sorted(maps.Keys(fields)) {
		if !slices.Contains(p.Required(), name) && !slices.Contains(p.Optional(), name) {
			errs = append(errs, fmt.Errorf("%w %q", ErrUnknownField, name))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return issue.NewErrorContext().
		WithOperation("check module fields").
		WithResource(p.Type() + " module " + module).
		WithSuggestion(fieldHelp(p)).
		Wrap(errors.Join(errs...)).
		BuildError()
}

func fieldHelp(p Plugin) string {
	msg := "Required fields: " + strings.Join(p.Required(), ", ")
	if opt := p.Optional(); len(opt) > 0 {
		msg += "; optional: " + strings.Join(opt, ", ")
	}
	return msg
}

func loggerOf(req Request) *log.Logger {
	if req.Logger != nil {
		return req.Logger
	}
	return log.Default()
}
