// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/peru/peru/internal/app"
	"github.com/peru/peru/internal/argmodel"
	"github.com/peru/peru/internal/config"
	"github.com/peru/peru/internal/issue"
	"github.com/peru/peru/internal/resolver"
	"github.com/peru/peru/internal/runtime"
)

// resolverAdapter exposes a resolver through the app's interface.
type resolverAdapter struct {
	*resolver.Resolver
}

// AllModules implements app.Resolver.
func (r resolverAdapter) AllModules() []app.Module {
	modules := r.Resolver.AllModules()
	out := make([]app.Module, len(modules))
	for i, m := range modules {
		out[i] = m
	}
	return out
}

// Modules implements app.Resolver.
func (r resolverAdapter) Modules(names []string) ([]app.Module, error) {
	modules, err := r.Resolver.Modules(names)
	if err != nil {
		return nil, err
	}
	out := make([]app.Module, len(modules))
	for i, m := range modules {
		out[i] = m
	}
	return out, nil
}

// newContextFactory returns the factory the app calls once a command has
// matched: load config, then build the runtime for the project.
func newContextFactory(stdout, stderr io.Writer) app.ContextFactory {
	return func(ctx context.Context, args argmodel.Args) (*app.Context, error) {
		cfg := loadConfig(ctx, stderr)
		rt, err := runtime.New(ctx, args, cfg, runtime.Options{Stdout: stdout, Stderr: stderr})
		if err != nil {
			return nil, err
		}
		return &app.Context{
			Args:      args,
			Force:     rt.Force,
			Quiet:     rt.Quiet,
			Verbose:   rt.Verbose,
			Stdout:    stdout,
			Local:     rt.Local,
			Resolver:  resolverAdapter{rt.Resolver},
			Cache:     rt.Cache,
			Overrides: rt.Overrides,
		}, nil
	}
}

// loadConfig reads the tool configuration. A broken config file is reported
// as a warning and the defaults are used.
func loadConfig(ctx context.Context, stderr io.Writer) *config.Config {
	cfg, err := config.NewProvider().Load(ctx, config.OptionsFromEnv())
	if err != nil {
		msg, ok := issue.UserMessage(err)
		if !ok {
			msg = err.Error()
		}
		_, _ = fmt.Fprintln(stderr, render(stderr, WarningStyle, "Warning: ")+msg)
		return config.DefaultConfig()
	}
	return cfg
}
