// SPDX-License-Identifier: MPL-2.0

package localmodule

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/peru/peru/internal/cache"
	"github.com/peru/peru/internal/rule"
	"github.com/peru/peru/internal/shell"
	"github.com/peru/peru/internal/testutil"
	"github.com/peru/peru/pkg/perufile"
)

// stubResolver maps each import target to a fixed tree and merges them.
type stubResolver struct {
	cache *cache.Cache
	trees map[string]cache.TreeID
}

func (s *stubResolver) ImportsTree(_ context.Context, imports []perufile.Import) (cache.TreeID, error) {
	merged := cache.EmptyTree
	for _, imp := range imports {
		var err error
		if merged, err = s.cache.MergeTrees(merged, s.trees[imp.Target], imp.Path); err != nil {
			return cache.EmptyTree, err
		}
	}
	return merged, nil
}

type fixture struct {
	root  string
	state string
	cache *cache.Cache
	res   *stubResolver
	proj  *perufile.Project
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	c, err := cache.Open(filepath.Join(t.TempDir(), "cache"))
	if err != nil {
		t.Fatal(err)
	}
	src := t.TempDir()
	testutil.WriteFiles(t, src, map[string]string{"lib.h": "h"})
	tree, err := c.ImportTree(src)
	if err != nil {
		t.Fatal(err)
	}
	return &fixture{
		root:  root,
		state: filepath.Join(root, ".peru"),
		cache: c,
		res:   &stubResolver{cache: c, trees: map[string]cache.TreeID{"lib": tree}},
		proj: &perufile.Project{
			File:    filepath.Join(root, perufile.DefaultFileName),
			Root:    root,
			Imports: []perufile.Import{{Target: "lib", Path: "vendor/lib"}},
		},
	}
}

func (f *fixture) local(force bool) *LocalModule {
	env := rule.Env{Cache: f.cache, Shell: shell.New(shell.WithEnv(os.Environ()), shell.WithOutput(nil, nil))}
	return New(f.proj, f.res, env, Options{StateDir: f.state, Force: force})
}

func TestApplyImports_SyncThenClean(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	l := f.local(false)
	header := filepath.Join(f.root, "vendor", "lib", "lib.h")

	if err := l.ApplyImports(t.Context(), l.Imports()); err != nil {
		t.Fatalf("sync error = %v", err)
	}
	if !testutil.Exists(header) {
		t.Fatal("sync did not write vendor/lib/lib.h")
	}
	if data, err := os.ReadFile(filepath.Join(f.state, lastImportsFile)); err != nil || len(data) == 0 {
		t.Errorf("lastimports = %q, %v", data, err)
	}

	// Syncing twice is a no-op.
	if err := l.ApplyImports(t.Context(), l.Imports()); err != nil {
		t.Fatalf("second sync error = %v", err)
	}

	if err := l.ApplyImports(t.Context(), []perufile.Import{}); err != nil {
		t.Fatalf("clean error = %v", err)
	}
	if testutil.Exists(header) || testutil.Exists(filepath.Join(f.root, "vendor")) {
		t.Error("clean should remove imported files and emptied directories")
	}
}

func TestApplyImports_DirtyNeedsForce(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	header := filepath.Join(f.root, "vendor", "lib", "lib.h")

	if err := f.local(false).ApplyImports(t.Context(), f.proj.Imports); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(header, []byte("edited"), 0o644); err != nil {
		t.Fatal(err)
	}

	err := f.local(false).ApplyImports(t.Context(), []perufile.Import{})
	if !errors.Is(err, cache.ErrDirty) {
		t.Fatalf("clean of a modified file = %v, want ErrDirty", err)
	}
	if !testutil.Exists(header) {
		t.Error("a refused clean must not delete anything")
	}

	if err := f.local(true).ApplyImports(t.Context(), []perufile.Import{}); err != nil {
		t.Fatalf("forced clean error = %v", err)
	}
	if testutil.Exists(header) {
		t.Error("forced clean should remove the modified file")
	}
}

func TestApplyImports_MissingLastTree(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	if err := os.MkdirAll(f.state, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(f.state, lastImportsFile), []byte("deadbeef\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := f.local(false).ApplyImports(t.Context(), f.proj.Imports); err != nil {
		t.Fatalf("sync with a stale lastimports = %v", err)
	}
}

func TestDoBuild_RunsInOrder(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	rules := []*rule.Rule{
		{Name: "first", Build: "echo one > log.txt"},
		{Name: "second", Build: "echo two >> log.txt"},
	}
	if err := f.local(false).DoBuild(t.Context(), rules); err != nil {
		t.Fatalf("DoBuild() error = %v", err)
	}
	data, err := os.ReadFile(filepath.Join(f.root, "log.txt"))
	if err != nil || string(data) != "one\ntwo\n" {
		t.Errorf("log.txt = %q, %v", data, err)
	}

	failing := []*rule.Rule{{Name: "bad", Build: "exit 1"}, {Name: "never", Build: "echo x > never.txt"}}
	if err := f.local(false).DoBuild(t.Context(), failing); err == nil {
		t.Error("DoBuild() should stop at a failing rule")
	}
	if testutil.Exists(filepath.Join(f.root, "never.txt")) {
		t.Error("rules after a failure must not run")
	}
}
