// SPDX-License-Identifier: MPL-2.0

// Package localmodule manages the working copy: the project root where
// imports are written and local builds run.
package localmodule

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/peru/peru/internal/cache"
	"github.com/peru/peru/internal/rule"
	"github.com/peru/peru/pkg/perufile"
)

// lastImportsFile records the tree last written to the working copy.
const lastImportsFile = "lastimports"

type (
	// TreeResolver builds the tree of an import set.
	TreeResolver interface {
		ImportsTree(ctx context.Context, imports []perufile.Import) (cache.TreeID, error)
	}

	// LocalModule is the project's working copy.
	LocalModule struct {
		project  *perufile.Project
		stateDir string
		resolver TreeResolver
		env      rule.Env
		force    bool
	}

	// Options configures New.
	Options struct {
		// StateDir holds lastimports.
		StateDir string
		// Force lets imports overwrite local modifications.
		Force bool
	}
)

// New returns the working copy of project.
func New(project *perufile.Project, resolver TreeResolver, env rule.Env, opts Options) *LocalModule {
	if env.Logger == nil {
		env.Logger = log.Default()
	}
	return &LocalModule{
		project:  project,
		stateDir: opts.StateDir,
		resolver: resolver,
		env:      env,
		force:    opts.Force,
	}
}

// Imports returns the project's imports in file order.
func (l *LocalModule) Imports() []perufile.Import {
	return l.project.Imports
}

// ApplyImports makes the working copy contain exactly imports: files of the
// previous import set that are no longer imported are removed. The new tree
// is recorded only after a successful export.
func (l *LocalModule) ApplyImports(ctx context.Context, imports []perufile.Import) error {
	tree, err := l.resolver.ImportsTree(ctx, imports)
	if err != nil {
		return err
	}
	prev, err := l.lastImports()
	if err != nil {
		return err
	}
	if !l.env.Cache.HasTree(prev) {
		l.env.Logger.Warn("last imported tree is missing from the cache, old files will not be removed", "tree", string(prev))
		prev = cache.EmptyTree
	}
	l.env.Logger.Debug("exporting imports", "root", l.project.Root, "imports", len(imports))
	if err := l.env.Cache.ExportTree(tree, l.project.Root, cache.ExportOptions{Previous: prev, Force: l.force}); err != nil {
		return err
	}
	return l.setLastImports(tree)
}

// DoBuild runs each rule's build script in the project root, in order.
func (l *LocalModule) DoBuild(ctx context.Context, rules []*rule.Rule) error {
	for _, r := range rules {
		if err := r.RunLocal(ctx, l.env, l.project.Root); err != nil {
			return err
		}
	}
	return nil
}

func (l *LocalModule) lastImports() (cache.TreeID, error) {
	data, err := os.ReadFile(filepath.Join(l.stateDir, lastImportsFile))
	if errors.Is(err, fs.ErrNotExist) {
		return cache.EmptyTree, nil
	}
	if err != nil {
		return cache.EmptyTree, fmt.Errorf("read last imports: %w", err)
	}
	return cache.TreeID(strings.TrimSpace(string(data))), nil
}

func (l *LocalModule) setLastImports(tree cache.TreeID) error {
	if err := os.MkdirAll(l.stateDir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(l.stateDir, lastImportsFile), []byte(string(tree)+"\n"), 0o644); err != nil {
		return fmt.Errorf("write last imports: %w", err)
	}
	return nil
}
