// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/peru/peru/internal/argmodel"
	"github.com/peru/peru/internal/cache"
	"github.com/peru/peru/internal/config"
	"github.com/peru/peru/internal/localmodule"
	"github.com/peru/peru/internal/module"
	"github.com/peru/peru/internal/overrides"
	"github.com/peru/peru/internal/resolver"
	"github.com/peru/peru/internal/rule"
	"github.com/peru/peru/internal/shell"
	"github.com/peru/peru/internal/usage"
	"github.com/peru/peru/pkg/perufile"
)

const (
	// overridesFile lives in the state directory.
	overridesFile = "overrides.toml"
	// cacheDirName is the cache directory under the state directory.
	cacheDirName = "cache"
)

type (
	// Options are the process-level inputs of a runtime.
	Options struct {
		// WorkDir is where the project file search starts; os.Getwd when empty.
		WorkDir string
		// Stdout receives build script output.
		Stdout io.Writer
		// Stderr receives logs and build script errors.
		Stderr io.Writer
		// Env is the build script environment; os.Environ when nil.
		Env []string
	}

	// Runtime holds everything a command needs for one invocation.
	Runtime struct {
		Project   *perufile.Project
		StateDir  string
		Cache     *cache.Cache
		Overrides *overrides.Table
		Resolver  *resolver.Resolver
		Local     *localmodule.LocalModule
		Logger    *log.Logger

		Force   bool
		Quiet   bool
		Verbose bool
	}
)

// New finds and loads the project file, opens the state directory and binds
// the project's modules.
func New(ctx context.Context, args argmodel.Args, cfg *config.Config, opts Options) (*Runtime, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	workDir := opts.WorkDir
	if workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("get working directory: %w", err)
		}
		workDir = wd
	}
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}
	env := opts.Env
	if env == nil {
		env = os.Environ()
	}

	rt := &Runtime{
		Force:   args.Truthy(usage.Force),
		Quiet:   args.Truthy(usage.Quiet),
		Verbose: args.Truthy(usage.Verbose),
	}
	rt.Logger = NewLogger(stderr, rt.Quiet, rt.Verbose)

	projectFile, err := perufile.Find(workDir, cfg.File)
	if err != nil {
		return nil, err
	}
	if rt.Project, err = perufile.Load(projectFile); err != nil {
		return nil, err
	}
	rt.Logger.Debug("loaded project", "file", rt.Project.File, "modules", len(rt.Project.ModuleNames()))

	rt.StateDir = resolveDir(cfg.Dir, workDir, filepath.Join(rt.Project.Root, config.DefaultStateDir))
	cacheDir := resolveDir(cfg.Cache, workDir, filepath.Join(rt.StateDir, cacheDirName))
	if rt.Cache, err = cache.Open(cacheDir); err != nil {
		return nil, err
	}
	if rt.Overrides, err = overrides.Load(filepath.Join(rt.StateDir, overridesFile)); err != nil {
		return nil, err
	}

	ruleEnv := rule.Env{
		Cache:  rt.Cache,
		Shell:  shell.New(shell.WithEnv(env), shell.WithOutput(outputFor(opts.Stdout, rt.Quiet), stderr), shell.WithLogger(rt.Logger)),
		Logger: rt.Logger,
	}
	moduleEnv := module.Env{
		Env:         ruleEnv,
		ProjectFile: rt.Project.File,
		ProjectRoot: rt.Project.Root,
		Overrides:   rt.Overrides,
	}
	if rt.Resolver, err = resolver.New(rt.Project, moduleEnv, cfg.Jobs); err != nil {
		return nil, err
	}
	rt.Local = localmodule.New(rt.Project, rt.Resolver, ruleEnv, localmodule.Options{
		StateDir: rt.StateDir,
		Force:    rt.Force,
	})

	return rt, nil
}

// NewLogger returns the invocation logger: warnings by default, everything
// with verbose, errors only with quiet.
func NewLogger(w io.Writer, quiet, verbose bool) *log.Logger {
	logger := log.NewWithOptions(w, log.Options{
		Prefix: "peru",
	})
	switch {
	case verbose:
		logger.SetLevel(log.DebugLevel)
	case quiet:
		logger.SetLevel(log.ErrorLevel)
	default:
		logger.SetLevel(log.WarnLevel)
	}
	return logger
}

// resolveDir returns dir made absolute against base, or def when dir is empty.
func resolveDir(dir, base, def string) string {
	if dir == "" {
		return def
	}
	if !filepath.IsAbs(dir) {
		return filepath.Join(base, dir)
	}
	return dir
}

// outputFor silences build script stdout in quiet mode.
func outputFor(stdout io.Writer, quiet bool) io.Writer {
	if quiet {
		return io.Discard
	}
	if stdout == nil {
		return os.Stdout
	}
	return stdout
}
