// SPDX-License-Identifier: MPL-2.0

// Package resolver maps the names used on the command line and in imports
// to modules, rules and trees.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/peru/peru/internal/cache"
	"github.com/peru/peru/internal/issue"
	"github.com/peru/peru/internal/module"
	"github.com/peru/peru/internal/rule"
	"github.com/peru/peru/pkg/perufile"
)

// DefaultJobs bounds parallel fetches when New is given no limit.
const DefaultJobs = 4

var (
	// ErrUnknownModule is returned for a module name the project does not define.
	ErrUnknownModule = errors.New("unknown module")
	// ErrUnknownRule is returned for a rule name the project does not define.
	ErrUnknownRule = errors.New("unknown rule")
)

// Resolver owns the project's bound modules.
type Resolver struct {
	project *perufile.Project
	env     module.Env
	modules map[string]*module.Module
	jobs    int
}

// New binds every module of project. A module with an unknown type or bad
// fields fails the whole project.
func New(project *perufile.Project, env module.Env, jobs int) (*Resolver, error) {
	if jobs < 1 {
		jobs = DefaultJobs
	}
	r := &Resolver{
		project: project,
		env:     env,
		modules: make(map[string]*module.Module),
		jobs:    jobs,
	}
	for _, name := range project.ModuleNames() {
		def, _ := project.Module(name)
		m, err := module.New(def, env)
		if err != nil {
			return nil, err
		}
		r.modules[name] = m
	}
	return r, nil
}

// Rules returns the named top-level rules in order, or every rule sorted by
// name when names is empty.
func (r *Resolver) Rules(names []string) ([]*rule.Rule, error) {
	if len(names) == 0 {
		names = r.project.RuleNames()
	}
	rules := make([]*rule.Rule, 0, len(names))
	for _, name := range names {
		def, ok := r.project.Rule(name)
		if !ok {
			return nil, unknownName(ErrUnknownRule, name, r.project.RuleNames())
		}
		rules = append(rules, rule.FromDef(*def))
	}
	return rules, nil
}

// AllModules returns every module sorted by name.
func (r *Resolver) AllModules() []*module.Module {
	names := r.project.ModuleNames()
	out := make([]*module.Module, 0, len(names))
	for _, name := range names {
		out = append(out, r.modules[name])
	}
	return out
}

// Modules returns the named modules in the given order.
func (r *Resolver) Modules(names []string) ([]*module.Module, error) {
	out := make([]*module.Module, 0, len(names))
	for _, name := range names {
		m, ok := r.modules[name]
		if !ok {
			return nil, unknownName(ErrUnknownModule, name, r.project.ModuleNames())
		}
		out = append(out, m)
	}
	return out, nil
}

// Tree resolves a "module|rule|rule" target: the module's tree passed
// through each named rule in turn.
func (r *Resolver) Tree(ctx context.Context, target string) (cache.TreeID, error) {
	name, ruleNames, err := perufile.SplitTarget(target)
	if err != nil {
		return cache.EmptyTree, issue.NewErrorContext().
			WithOperation("resolve target").
			WithResource(target).
			WithSuggestion("Targets look like module or module|rule|rule").
			Wrap(err).
			BuildError()
	}
	modules, err := r.Modules([]string{name})
	if err != nil {
		return cache.EmptyTree, err
	}
	rules, err := r.targetRules(ruleNames)
	if err != nil {
		return cache.EmptyTree, err
	}

	tree, err := modules[0].Tree(ctx)
	if err != nil {
		return cache.EmptyTree, err
	}
	for _, rl := range rules {
		if tree, err = rl.Tree(ctx, r.env.Env, tree); err != nil {
			return cache.EmptyTree, err
		}
	}
	return tree, nil
}

func (r *Resolver) targetRules(names []string) ([]*rule.Rule, error) {
	if len(names) == 0 {
		return nil, nil
	}
	return r.Rules(names)
}

// ImportsTree builds the tree of an import set. Distinct targets are
// resolved in parallel; the trees are merged in import order so conflicts
// and results do not depend on scheduling.
func (r *Resolver) ImportsTree(ctx context.Context, imports []perufile.Import) (cache.TreeID, error) {
	targets := make([]string, 0, len(imports))
	index := make(map[string]int, len(imports))
	for _, imp := range imports {
		if _, ok := index[imp.Target]; !ok {
			index[imp.Target] = len(targets)
			targets = append(targets, imp.Target)
		}
	}

	trees := make([]cache.TreeID, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.jobs)
	for i, target := range targets {
		g.Go(func() error {
			tree, err := r.Tree(gctx, target)
			if err != nil {
				return err
			}
			trees[i] = tree
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return cache.EmptyTree, err
	}

	merged := cache.EmptyTree
	for _, imp := range imports {
		var err error
		merged, err = r.env.Cache.MergeTrees(merged, trees[index[imp.Target]], imp.Path)
		if err != nil {
			return cache.EmptyTree, err
		}
	}
	return merged, nil
}

func unknownName(sentinel error, name string, known []string) error {
	suggestion := "None are defined in peru.yaml"
	if len(known) > 0 {
		suggestion = "Defined: " + strings.Join(known, ", ")
	}
	return issue.NewErrorContext().
		WithOperation("look up name").
		WithResource(name).
		WithSuggestion(suggestion).
		Wrap(fmt.Errorf("%w %q", sentinel, name)).
		BuildError()
}
