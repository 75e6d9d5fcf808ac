// SPDX-License-Identifier: MPL-2.0

// Package app is peru's command routing layer: it parses the command line,
// selects the most specific registered command, builds the execution context
// and runs the command's handler.
package app

import (
	"context"
	"fmt"
	"io"

	"github.com/peru/peru/internal/dispatch"
	"github.com/peru/peru/internal/usage"
)

// App routes one command line per Run call.
type App struct {
	registry *dispatch.Registry[Handler]
	factory  ContextFactory
	stdout   io.Writer
	version  string
}

// New creates an App. The registry is normally Commands(); version is the
// string printed for --version.
func New(registry *dispatch.Registry[Handler], factory ContextFactory, stdout io.Writer, version string) *App {
	return &App{
		registry: registry,
		factory:  factory,
		stdout:   stdout,
		version:  version,
	}
}

// Run parses argv, dispatches to the matching handler and returns its error.
// When no command matches, Run prints the version (for --version) or the
// usage text and succeeds without building an execution context.
func (a *App) Run(ctx context.Context, argv []string) error {
	args, err := usage.Parse(argv)
	if err != nil {
		return err
	}

	handler, _, ok := a.registry.Resolve(args)
	if !ok {
		if args.Truthy(usage.Version) {
			_, err = fmt.Fprintln(a.stdout, a.version)
		} else {
			_, err = fmt.Fprint(a.stdout, usage.Text)
		}
		return err
	}

	ec, err := a.factory(ctx, args)
	if err != nil {
		return err
	}
	return handler(ctx, ec)
}
