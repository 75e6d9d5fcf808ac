// SPDX-License-Identifier: MPL-2.0

// Package shell runs build scripts with the embedded mvdan/sh interpreter, so
// rules behave the same on every platform without a system shell.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// ErrScriptFailed is wrapped by ExitError.
var ErrScriptFailed = errors.New("build script failed")

type (
	// Runner executes scripts. The zero value is not usable; use New.
	Runner struct {
		env    []string
		stdout io.Writer
		stderr io.Writer
		logger *log.Logger
	}

	// Option configures a Runner.
	Option func(*Runner)

	// ExitError reports a script that exited with a non-zero status.
	ExitError struct {
		Name string
		Code int
	}
)

// Error implements the error interface.
func (e *ExitError) Error() string {
	return fmt.Sprintf("%s: %s exited with status %d", ErrScriptFailed, e.Name, e.Code)
}

// Unwrap returns ErrScriptFailed for errors.Is compatibility.
func (e *ExitError) Unwrap() error { return ErrScriptFailed }

// WithEnv replaces the inherited environment (os.Environ) with env.
func WithEnv(env []string) Option {
	return func(r *Runner) { r.env = env }
}

// WithOutput sets where script output goes. Nil writers discard it.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(r *Runner) {
		r.stdout = stdout
		r.stderr = stderr
	}
}

// WithLogger logs every external command the script runs at debug level.
func WithLogger(logger *log.Logger) Option {
	return func(r *Runner) { r.logger = logger }
}

// New creates a Runner that inherits the process environment and writes
// script output to os.Stdout and os.Stderr.
func New(opts ...Option) *Runner {
	r := &Runner{
		env:    os.Environ(),
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.stdout == nil {
		r.stdout = io.Discard
	}
	if r.stderr == nil {
		r.stderr = io.Discard
	}
	return r
}

// Check parses script without running it.
func Check(name, script string) error {
	if _, err := syntax.NewParser().Parse(strings.NewReader(script), name); err != nil {
		return fmt.Errorf("script syntax error: %w", err)
	}
	return nil
}

// Run executes script in dir. name labels the script in errors. A non-zero
// exit status is returned as *ExitError.
func (r *Runner) Run(ctx context.Context, name, dir, script string) error {
	prog, err := syntax.NewParser().Parse(strings.NewReader(script), name)
	if err != nil {
		return fmt.Errorf("failed to parse script: %w", err)
	}

	runner, err := interp.New(
		interp.Dir(dir),
		interp.Env(expand.ListEnviron(r.env...)),
		interp.StdIO(nil, r.stdout, r.stderr),
		interp.ExecHandlers(r.execHandler),
	)
	if err != nil {
		return fmt.Errorf("failed to create interpreter: %w", err)
	}

	if err := runner.Run(ctx, prog); err != nil {
		var exitStatus interp.ExitStatus
		if errors.As(err, &exitStatus) {
			return &ExitError{Name: name, Code: int(exitStatus)}
		}
		return fmt.Errorf("script execution failed: %w", err)
	}
	return nil
}

// execHandler logs external commands before handing them to the default handler.
func (r *Runner) execHandler(next interp.ExecHandlerFunc) interp.ExecHandlerFunc {
	return func(ctx context.Context, args []string) error {
		if r.logger != nil && len(args) > 0 {
			hc := interp.HandlerCtx(ctx)
			r.logger.Debug("exec", "cmd", strings.Join(args, " "), "dir", hc.Dir)
		}
		return next(ctx, args)
	}
}
