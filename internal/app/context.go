// SPDX-License-Identifier: MPL-2.0

package app

import (
	"context"
	"io"

	"github.com/peru/peru/internal/argmodel"
	"github.com/peru/peru/internal/cache"
	"github.com/peru/peru/internal/rule"
	"github.com/peru/peru/pkg/perufile"
)

type (
	// Handler runs one command against the execution context.
	Handler func(ctx context.Context, ec *Context) error

	// ContextFactory builds the execution context for a matched command. It
	// is only called once a command has been selected.
	ContextFactory func(ctx context.Context, args argmodel.Args) (*Context, error)

	// LocalModule is the working copy: the project's imports and how they
	// are applied.
	LocalModule interface {
		// Imports returns the import set computed from the project file.
		Imports() []perufile.Import
		// ApplyImports makes the working copy contain exactly imports.
		ApplyImports(ctx context.Context, imports []perufile.Import) error
		// DoBuild runs rules in the working copy, in order.
		DoBuild(ctx context.Context, rules []*rule.Rule) error
	}

	// Module is a named dependency that can refresh its fields from its remote.
	Module interface {
		Name() string
		Reup(ctx context.Context) error
	}

	// Resolver turns names and targets into rules, modules and trees.
	Resolver interface {
		// Rules returns the named rules, or every rule sorted by name when
		// names is empty.
		Rules(names []string) ([]*rule.Rule, error)
		// AllModules returns every module sorted by name.
		AllModules() []Module
		// Modules returns the named modules in the given order.
		Modules(names []string) ([]Module, error)
		// Tree resolves a "module|rule|..." target to a cached tree.
		Tree(ctx context.Context, target string) (cache.TreeID, error)
	}

	// TreeExporter writes cached trees to disk.
	TreeExporter interface {
		ExportTree(tree cache.TreeID, dest string, opts cache.ExportOptions) error
	}

	// OverrideTable maps module names to local paths.
	OverrideTable interface {
		// Names returns the overridden module names sorted.
		Names() []string
		Get(name string) (string, bool)
		Set(name, path string) error
		Delete(name string) error
	}

	// Context is the per-invocation execution context handed to handlers:
	// the argument model plus the collaborators the command may call.
	Context struct {
		Args    argmodel.Args
		Force   bool
		Quiet   bool
		Verbose bool

		// Stdout receives the command's mandated output.
		Stdout io.Writer

		Local     LocalModule
		Resolver  Resolver
		Cache     TreeExporter
		Overrides OverrideTable

		// MkdirTemp creates a fresh directory; os.MkdirTemp when nil.
		MkdirTemp func(dir, pattern string) (string, error)
	}
)
