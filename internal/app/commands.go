// SPDX-License-Identifier: MPL-2.0

package app

import (
	"context"
	"fmt"
	"os"

	"github.com/peru/peru/internal/cache"
	"github.com/peru/peru/internal/dispatch"
	"github.com/peru/peru/internal/usage"
	"github.com/peru/peru/pkg/perufile"
)

// tempCopyPrefix names the directories made by "peru copy" without a destination.
const tempCopyPrefix = "peru_copy_"

// Commands returns the command table. "override list" has no entry of its
// own: it resolves to the bare "override" handler.
func Commands() *dispatch.Registry[Handler] {
	r := dispatch.NewRegistry[Handler]()
	r.Register(dispatch.MustPath("sync"), doSync)
	r.Register(dispatch.MustPath("build"), doBuild)
	r.Register(dispatch.MustPath("reup"), doReup)
	r.Register(dispatch.MustPath("override"), doOverride)
	r.Register(dispatch.MustPath("override", "add"), doOverrideAdd)
	r.Register(dispatch.MustPath("override", "delete"), doOverrideDelete)
	r.Register(dispatch.MustPath("copy"), doCopy)
	r.Register(dispatch.MustPath("clean"), doClean)
	return r
}

func doSync(ctx context.Context, ec *Context) error {
	return ec.Local.ApplyImports(ctx, ec.Local.Imports())
}

func doBuild(ctx context.Context, ec *Context) error {
	rules, err := ec.Resolver.Rules(ec.Args.Strings(usage.Rules))
	if err != nil {
		return err
	}
	return ec.Local.DoBuild(ctx, rules)
}

func doReup(ctx context.Context, ec *Context) error {
	var modules []Module
	if names := ec.Args.Strings(usage.Modules); len(names) == 0 {
		modules = ec.Resolver.AllModules()
	} else {
		var err error
		if modules, err = ec.Resolver.Modules(names); err != nil {
			return err
		}
	}
	for _, m := range modules {
		if err := m.Reup(ctx); err != nil {
			return err
		}
	}
	return nil
}

func doOverride(_ context.Context, ec *Context) error {
	for _, name := range ec.Overrides.Names() {
		path, _ := ec.Overrides.Get(name)
		if _, err := fmt.Fprintf(ec.Stdout, "%s: %s\n", name, path); err != nil {
			return err
		}
	}
	return nil
}

func doOverrideAdd(_ context.Context, ec *Context) error {
	return ec.Overrides.Set(ec.Args.String(usage.Module), ec.Args.String(usage.Path))
}

func doOverrideDelete(_ context.Context, ec *Context) error {
	return ec.Overrides.Delete(ec.Args.String(usage.Module))
}

func doCopy(ctx context.Context, ec *Context) error {
	dest := ec.Args.String(usage.Dest)
	generated := dest == ""
	if generated {
		mkdirTemp := ec.MkdirTemp
		if mkdirTemp == nil {
			mkdirTemp = os.MkdirTemp
		}
		var err error
		if dest, err = mkdirTemp("", tempCopyPrefix); err != nil {
			return fmt.Errorf("create copy destination: %w", err)
		}
	}

	tree, err := ec.Resolver.Tree(ctx, ec.Args.String(usage.Target))
	if err != nil {
		return err
	}
	if err := ec.Cache.ExportTree(tree, dest, cache.ExportOptions{Force: ec.Force}); err != nil {
		return err
	}

	if generated {
		_, err = fmt.Fprintln(ec.Stdout, dest)
	}
	return err
}

func doClean(ctx context.Context, ec *Context) error {
	return ec.Local.ApplyImports(ctx, []perufile.Import{})
}
