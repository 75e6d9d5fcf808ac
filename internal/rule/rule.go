// SPDX-License-Identifier: MPL-2.0

// Package rule applies build rules to trees: run a build script on a copy of
// the tree, then narrow the result to an export directory and file globs.
package rule

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/peru/peru/internal/cache"
	"github.com/peru/peru/internal/issue"
	"github.com/peru/peru/internal/shell"
	"github.com/peru/peru/pkg/perufile"
)

// keyvalNamespace holds rule results: rule+input key -> output tree.
const keyvalNamespace = "rules"

type (
	// Rule transforms a tree. A rule with no fields is the identity.
	Rule struct {
		Name   string
		Build  string
		Export string
		Files  []string
	}

	// Env is what rules need to run.
	Env struct {
		Cache  *cache.Cache
		Shell  *shell.Runner
		Logger *log.Logger
	}
)

// FromDef converts a project file rule definition.
func FromDef(def perufile.RuleDef) *Rule {
	return &Rule{
		Name:   def.Name,
		Build:  def.Build,
		Export: def.Export,
		Files:  append([]string(nil), def.Files...),
	}
}

// IsZero reports whether the rule leaves trees unchanged.
func (r *Rule) IsZero() bool {
	return r.Build == "" && r.Export == "" && len(r.Files) == 0
}

// cacheKey identifies the rule's output for input.
func (r *Rule) cacheKey(input cache.TreeID) string {
	return cache.Key(r.Build, r.Export, strings.Join(r.Files, "\x00"), string(input))
}

// Tree returns the rule's output for input. Results are cached by the rule's
// fields and the input tree, so the name does not matter.
func (r *Rule) Tree(ctx context.Context, env Env, input cache.TreeID) (cache.TreeID, error) {
	if r.IsZero() {
		return input, nil
	}
	logger := loggerOf(env)

	key := r.cacheKey(input)
	if cached, ok, err := env.Cache.Get(keyvalNamespace, key); err != nil {
		return cache.EmptyTree, err
	} else if ok && env.Cache.HasTree(cache.TreeID(cached)) {
		logger.Debug("rule cache hit", "rule", r.Name)
		return cache.TreeID(cached), nil
	}

	tree := input
	if r.Build != "" {
		built, err := r.build(ctx, env, input)
		if err != nil {
			return cache.EmptyTree, err
		}
		tree = built
	}

	out, err := env.Cache.FilterTree(tree, r.Export, r.Files)
	if err != nil {
		return cache.EmptyTree, issue.NewErrorContext().
			WithOperation("apply rule").
			WithResource(r.Name).
			WithSuggestion("Check the rule's export and files fields against the files the module provides").
			Wrap(err).
			BuildError()
	}

	if err := env.Cache.Put(keyvalNamespace, key, string(out)); err != nil {
		return cache.EmptyTree, err
	}
	return out, nil
}

func (r *Rule) build(ctx context.Context, env Env, input cache.TreeID) (cache.TreeID, error) {
	dir, err := env.Cache.TempDir("build-")
	if err != nil {
		return cache.EmptyTree, fmt.Errorf("create build dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	if err := env.Cache.ExportTree(input, dir, cache.ExportOptions{Force: true}); err != nil {
		return cache.EmptyTree, err
	}

	loggerOf(env).Info("running build", "rule", r.Name)
	if err := env.Shell.Run(ctx, "rule "+r.Name, dir, r.Build); err != nil {
		return cache.EmptyTree, buildError(r.Name, err)
	}

	return env.Cache.ImportTree(dir)
}

// RunLocal runs the rule's build script in dir, the project root. Export and
// files only apply to trees, so they are ignored here.
func (r *Rule) RunLocal(ctx context.Context, env Env, dir string) error {
	if r.Build == "" {
		loggerOf(env).Debug("rule has no build script", "rule", r.Name)
		return nil
	}
	loggerOf(env).Info("running build", "rule", r.Name, "dir", dir)
	if err := env.Shell.Run(ctx, "rule "+r.Name, dir, r.Build); err != nil {
		return buildError(r.Name, err)
	}
	return nil
}

func buildError(name string, err error) error {
	return issue.NewErrorContext().
		WithOperation("run build").
		WithResource("rule " + name).
		WithSuggestion("Run the build command by hand to see why it fails").
		Wrap(err).
		BuildError()
}

func loggerOf(env Env) *log.Logger {
	if env.Logger != nil {
		return env.Logger
	}
	return log.Default()
}
