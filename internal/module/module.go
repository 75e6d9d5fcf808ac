// SPDX-License-Identifier: MPL-2.0

// Package module turns project file module definitions into trees: fetch the
// module through its plugin (or an override directory), then apply the
// module's inline rule.
package module

import (
	"context"
	"fmt"
	"maps"
	"os"
	"slices"

	"github.com/charmbracelet/log"

	"github.com/peru/peru/internal/cache"
	"github.com/peru/peru/internal/plugin"
	"github.com/peru/peru/internal/rule"
	"github.com/peru/peru/pkg/perufile"
)

// keyvalNamespace holds fetch results: plugin type+fields -> tree.
const keyvalNamespace = "modules"

type (
	// OverrideSource resolves module names to local override directories.
	OverrideSource interface {
		Resolve(name, root string) (string, bool)
	}

	// Env is what modules need to fetch and reup.
	Env struct {
		rule.Env
		// ProjectFile is rewritten by Reup.
		ProjectFile string
		ProjectRoot string
		Overrides   OverrideSource
	}

	// Module is a project file module bound to its plugin and environment.
	Module struct {
		def    *perufile.ModuleDef
		plugin plugin.Plugin
		rule   *rule.Rule
		env    Env
	}
)

// New binds def to its plugin, checking the plugin fields.
func New(def *perufile.ModuleDef, env Env) (*Module, error) {
	p, err := plugin.Lookup(def.Type)
	if err != nil {
		return nil, err
	}
	if err := plugin.CheckFields(p, def.Name, def.Fields); err != nil {
		return nil, err
	}
	if env.Logger == nil {
		env.Logger = log.Default()
	}
	r := rule.FromDef(def.Rule)
	r.Name = def.Name
	return &Module{def: def, plugin: p, rule: r, env: env}, nil
}

// Name returns the module name.
func (m *Module) Name() string { return m.def.Name }

// Def returns the module definition.
func (m *Module) Def() *perufile.ModuleDef { return m.def }

// Tree returns the module's files after its inline rule.
func (m *Module) Tree(ctx context.Context) (cache.TreeID, error) {
	fetched, err := m.fetchTree(ctx)
	if err != nil {
		return cache.EmptyTree, err
	}
	return m.rule.Tree(ctx, m.env.Env, fetched)
}

// fetchTree returns the module's raw files. Override directories are
// imported on every call.
func (m *Module) fetchTree(ctx context.Context) (cache.TreeID, error) {
	logger := m.env.Logger
	if m.env.Overrides != nil {
		if dir, ok := m.env.Overrides.Resolve(m.def.Name, m.env.ProjectRoot); ok {
			logger.Debug("using override", "module", m.def.Name, "path", dir)
			tree, err := m.env.Cache.ImportTree(dir)
			if err != nil {
				return cache.EmptyTree, fmt.Errorf("import override for %s: %w", m.def.Name, err)
			}
			return tree, nil
		}
	}

	cacheable := plugin.Cacheable(m.plugin)
	key := m.cacheKey()
	if cacheable {
		if cached, ok, err := m.env.Cache.Get(keyvalNamespace, key); err != nil {
			return cache.EmptyTree, err
		} else if ok && m.env.Cache.HasTree(cache.TreeID(cached)) {
			logger.Debug("module cache hit", "module", m.def.Name)
			return cache.TreeID(cached), nil
		}
	}

	tree, err := m.fetch(ctx)
	if err != nil {
		return cache.EmptyTree, err
	}
	if cacheable {
		if err := m.env.Cache.Put(keyvalNamespace, key, string(tree)); err != nil {
			return cache.EmptyTree, err
		}
	}
	return tree, nil
}

func (m *Module) fetch(ctx context.Context) (cache.TreeID, error) {
	dest, err := m.env.Cache.TempDir("fetch-")
	if err != nil {
		return cache.EmptyTree, fmt.Errorf("create fetch dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(dest) }()

	req, err := m.request(dest)
	if err != nil {
		return cache.EmptyTree, err
	}
	m.env.Logger.Info("fetching", "module", m.def.Name, "type", m.def.Type)
	dir, err := m.plugin.Fetch(ctx, req)
	if err != nil {
		return cache.EmptyTree, err
	}
	return m.env.Cache.ImportTree(dir)
}

// Reup asks the plugin for newer fields and writes any changes back to the
// project file.
func (m *Module) Reup(ctx context.Context) error {
	req, err := m.request("")
	if err != nil {
		return err
	}
	fields, err := m.plugin.Reup(ctx, req)
	if err != nil {
		return err
	}
	if len(fields) == 0 {
		m.env.Logger.Info("module is up to date", "module", m.def.Name)
		return nil
	}
	if err := perufile.UpdateModuleFields(m.env.ProjectFile, m.def, fields); err != nil {
		return fmt.Errorf("update %s in %s: %w", m.def.Name, m.env.ProjectFile, err)
	}
	updated := maps.Clone(m.def.Fields)
	maps.Copy(updated, fields)
	m.def.Fields = updated
	for _, name := range slices.Sorted(maps.Keys(fields)) {
		m.env.Logger.Info("updated", "module", m.def.Name, "field", name, "value", fields[name])
	}
	return nil
}

func (m *Module) request(dest string) (plugin.Request, error) {
	state, err := m.env.Cache.PluginDir(m.def.Type)
	if err != nil {
		return plugin.Request{}, err
	}
	return plugin.Request{
		Module:      m.def.Name,
		Fields:      m.def.Fields,
		ProjectRoot: m.env.ProjectRoot,
		Dest:        dest,
		StateDir:    state,
		Logger:      m.env.Logger,
	}, nil
}

// cacheKey identifies a fetch by plugin type and fields.
func (m *Module) cacheKey() string {
	parts := []string{m.def.Type}
	for _, name := range slices.Sorted(maps.Keys(m.def.Fields)) {
		parts = append(parts, name, m.def.Fields[name])
	}
	return cache.Key(parts...)
}
