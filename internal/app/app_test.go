// SPDX-License-Identifier: MPL-2.0

package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"testing"

	"github.com/peru/peru/internal/argmodel"
	"github.com/peru/peru/internal/cache"
	"github.com/peru/peru/internal/rule"
	"github.com/peru/peru/internal/usage"
	"github.com/peru/peru/pkg/perufile"
)

var errNoOverride = errors.New("no such override")

type fakeLocal struct {
	imports  []perufile.Import
	applied  [][]perufile.Import
	built    [][]string
	applyErr error
}

func (f *fakeLocal) Imports() []perufile.Import { return f.imports }

func (f *fakeLocal) ApplyImports(_ context.Context, imports []perufile.Import) error {
	f.applied = append(f.applied, slices.Clone(imports))
	return f.applyErr
}

func (f *fakeLocal) DoBuild(_ context.Context, rules []*rule.Rule) error {
	names := make([]string, 0, len(rules))
	for _, r := range rules {
		names = append(names, r.Name)
	}
	f.built = append(f.built, names)
	return nil
}

type fakeModule struct {
	name string
	log  *[]string
	err  error
}

func (m fakeModule) Name() string { return m.name }

func (m fakeModule) Reup(context.Context) error {
	*m.log = append(*m.log, m.name)
	return m.err
}

type fakeResolver struct {
	rules   map[string]*rule.Rule
	modules map[string]Module
	trees   map[string]cache.TreeID
	targets []string
}

func (r *fakeResolver) Rules(names []string) ([]*rule.Rule, error) {
	if len(names) == 0 {
		for name := range r.rules {
			names = append(names, name)
		}
		sort.Strings(names)
	}
	out := make([]*rule.Rule, 0, len(names))
	for _, name := range names {
		ru, ok := r.rules[name]
		if !ok {
			return nil, fmt.Errorf("no rule named %q", name)
		}
		out = append(out, ru)
	}
	return out, nil
}

func (r *fakeResolver) AllModules() []Module {
	names := make([]string, 0, len(r.modules))
	for name := range r.modules {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]Module, 0, len(names))
	for _, name := range names {
		out = append(out, r.modules[name])
	}
	return out
}

func (r *fakeResolver) Modules(names []string) ([]Module, error) {
	out := make([]Module, 0, len(names))
	for _, name := range names {
		m, ok := r.modules[name]
		if !ok {
			return nil, fmt.Errorf("no module named %q", name)
		}
		out = append(out, m)
	}
	return out, nil
}

func (r *fakeResolver) Tree(_ context.Context, target string) (cache.TreeID, error) {
	r.targets = append(r.targets, target)
	tree, ok := r.trees[target]
	if !ok {
		return cache.EmptyTree, fmt.Errorf("unknown target %q", target)
	}
	return tree, nil
}

type export struct {
	tree cache.TreeID
	dest string
	opts cache.ExportOptions
}

type fakeExporter struct {
	exports []export
}

func (e *fakeExporter) ExportTree(tree cache.TreeID, dest string, opts cache.ExportOptions) error {
	e.exports = append(e.exports, export{tree: tree, dest: dest, opts: opts})
	return nil
}

type fakeOverrides map[string]string

func (o fakeOverrides) Names() []string {
	names := make([]string, 0, len(o))
	for name := range o {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (o fakeOverrides) Get(name string) (string, bool) {
	p, ok := o[name]
	return p, ok
}

func (o fakeOverrides) Set(name, path string) error {
	o[name] = path
	return nil
}

func (o fakeOverrides) Delete(name string) error {
	if _, ok := o[name]; !ok {
		return fmt.Errorf("%w: %s", errNoOverride, name)
	}
	delete(o, name)
	return nil
}

type harness struct {
	local     *fakeLocal
	resolver  *fakeResolver
	exporter  *fakeExporter
	overrides fakeOverrides
	reups     []string
	stdout    bytes.Buffer
	built     int
	app       *App
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		local:     &fakeLocal{imports: []perufile.Import{{Target: "lib", Path: "third_party/lib"}}},
		exporter:  &fakeExporter{},
		overrides: fakeOverrides{},
	}
	h.resolver = &fakeResolver{
		rules: map[string]*rule.Rule{
			"docs":  {Name: "docs"},
			"tests": {Name: "tests"},
		},
		modules: map[string]Module{
			"alpha": fakeModule{name: "alpha", log: &h.reups},
			"beta":  fakeModule{name: "beta", log: &h.reups},
			"gamma": fakeModule{name: "gamma", log: &h.reups},
		},
		trees: map[string]cache.TreeID{"lib|docs": "tree-1"},
	}

	factory := func(_ context.Context, args argmodel.Args) (*Context, error) {
		h.built++
		return &Context{
			Args:      args,
			Force:     args.Truthy(usage.Force),
			Quiet:     args.Truthy(usage.Quiet),
			Verbose:   args.Truthy(usage.Verbose),
			Stdout:    &h.stdout,
			Local:     h.local,
			Resolver:  h.resolver,
			Cache:     h.exporter,
			Overrides: h.overrides,
			MkdirTemp: func(_, pattern string) (string, error) {
				return "/tmp/" + pattern + "123", nil
			},
		}, nil
	}
	h.app = New(Commands(), factory, &h.stdout, "peru 1.2.3")
	return h
}

func (h *harness) run(t *testing.T, argv ...string) error {
	t.Helper()
	return h.app.Run(t.Context(), argv)
}

func TestOverride_AddListAndOverwrite(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	if err := h.run(t, "override", "add", "zlib", "../zlib"); err != nil {
		t.Fatalf("override add: %v", err)
	}
	if err := h.run(t, "override", "add", "alib", "../alib"); err != nil {
		t.Fatalf("override add: %v", err)
	}
	if err := h.run(t, "override", "add", "zlib", "/abs/zlib"); err != nil {
		t.Fatalf("override add: %v", err)
	}

	if err := h.run(t, "override"); err != nil {
		t.Fatalf("override: %v", err)
	}
	want := "alib: ../alib\nzlib: /abs/zlib\n"
	if got := h.stdout.String(); got != want {
		t.Errorf("override output = %q, want %q", got, want)
	}

	h.stdout.Reset()
	if err := h.run(t, "override", "list"); err != nil {
		t.Fatalf("override list: %v", err)
	}
	if got := h.stdout.String(); got != want {
		t.Errorf("override list output = %q, want %q", got, want)
	}
}

func TestOverride_DeleteMissingFails(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	err := h.run(t, "override", "delete", "nope")
	if !errors.Is(err, errNoOverride) {
		t.Fatalf("override delete error = %v, want errNoOverride", err)
	}

	_ = h.overrides.Set("lib", "../lib")
	if err := h.run(t, "override", "delete", "lib"); err != nil {
		t.Fatalf("override delete: %v", err)
	}
	if _, ok := h.overrides.Get("lib"); ok {
		t.Error("override still present after delete")
	}
}

func TestReup_Order(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	if err := h.run(t, "reup"); err != nil {
		t.Fatalf("reup: %v", err)
	}
	if want := []string{"alpha", "beta", "gamma"}; !slices.Equal(h.reups, want) {
		t.Errorf("reup order = %v, want %v", h.reups, want)
	}

	h.reups = nil
	if err := h.run(t, "reup", "gamma", "alpha"); err != nil {
		t.Fatalf("reup explicit: %v", err)
	}
	if want := []string{"gamma", "alpha"}; !slices.Equal(h.reups, want) {
		t.Errorf("reup order = %v, want %v", h.reups, want)
	}
}

func TestReup_StopsAtFirstError(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	boom := errors.New("remote unreachable")
	h.resolver.modules["beta"] = fakeModule{name: "beta", log: &h.reups, err: boom}

	if err := h.run(t, "reup"); !errors.Is(err, boom) {
		t.Fatalf("reup error = %v, want %v", err, boom)
	}
	if want := []string{"alpha", "beta"}; !slices.Equal(h.reups, want) {
		t.Errorf("reup order = %v, want %v", h.reups, want)
	}
}

func TestReup_UnknownModule(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	if err := h.run(t, "reup", "alpha", "missing"); err == nil {
		t.Fatal("reup of an unknown module should fail")
	}
	if len(h.reups) != 0 {
		t.Errorf("no module should be reupped, got %v", h.reups)
	}
}

func TestSyncAndClean(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	if err := h.run(t, "sync", "-f"); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if err := h.run(t, "clean"); err != nil {
		t.Fatalf("clean: %v", err)
	}

	if len(h.local.applied) != 2 {
		t.Fatalf("ApplyImports called %d times, want 2", len(h.local.applied))
	}
	if !slices.Equal(h.local.applied[0], h.local.imports) {
		t.Errorf("sync applied %v, want %v", h.local.applied[0], h.local.imports)
	}
	if len(h.local.applied[1]) != 0 {
		t.Errorf("clean applied %v, want nothing", h.local.applied[1])
	}
}

func TestBuild_Rules(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	if err := h.run(t, "build"); err != nil {
		t.Fatalf("build: %v", err)
	}
	if err := h.run(t, "build", "tests"); err != nil {
		t.Fatalf("build tests: %v", err)
	}
	want := [][]string{{"docs", "tests"}, {"tests"}}
	if len(h.local.built) != len(want) {
		t.Fatalf("DoBuild calls = %v, want %v", h.local.built, want)
	}
	for i := range want {
		if !slices.Equal(h.local.built[i], want[i]) {
			t.Errorf("DoBuild call %d = %v, want %v", i, h.local.built[i], want[i])
		}
	}

	if err := h.run(t, "build", "missing"); err == nil {
		t.Error("build of an unknown rule should fail")
	}
}

func TestCopy(t *testing.T) {
	t.Parallel()

	t.Run("generated destination is printed", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)
		if err := h.run(t, "copy", "lib|docs"); err != nil {
			t.Fatalf("copy: %v", err)
		}
		if got, want := h.stdout.String(), "/tmp/peru_copy_123\n"; got != want {
			t.Errorf("stdout = %q, want %q", got, want)
		}
		want := export{tree: "tree-1", dest: "/tmp/peru_copy_123"}
		if len(h.exporter.exports) != 1 || h.exporter.exports[0] != want {
			t.Errorf("exports = %+v, want [%+v]", h.exporter.exports, want)
		}
	})

	t.Run("explicit destination is silent", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)
		if err := h.run(t, "copy", "--force", "lib|docs", "out"); err != nil {
			t.Fatalf("copy: %v", err)
		}
		if h.stdout.Len() != 0 {
			t.Errorf("stdout = %q, want nothing", h.stdout.String())
		}
		want := export{tree: "tree-1", dest: "out", opts: cache.ExportOptions{Force: true}}
		if len(h.exporter.exports) != 1 || h.exporter.exports[0] != want {
			t.Errorf("exports = %+v, want [%+v]", h.exporter.exports, want)
		}
	})

	t.Run("unknown target", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)
		if err := h.run(t, "copy", "nope", "out"); err == nil {
			t.Fatal("copy of an unknown target should fail")
		}
		if len(h.exporter.exports) != 0 {
			t.Errorf("nothing should be exported, got %+v", h.exporter.exports)
		}
	})
}

func TestFallback_SkipsContextFactory(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		argv []string
		want func(string) bool
	}{
		{name: "version", argv: []string{"--version"}, want: func(s string) bool { return s == "peru 1.2.3\n" }},
		{name: "long help", argv: []string{"--help"}, want: func(s string) bool { return s == usage.Text }},
		{name: "help word", argv: []string{"help"}, want: func(s string) bool { return s == usage.Text }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t)
			if err := h.run(t, tt.argv...); err != nil {
				t.Fatalf("Run(%q) error = %v", tt.argv, err)
			}
			if h.built != 0 {
				t.Errorf("context factory called %d times, want 0", h.built)
			}
			if got := h.stdout.String(); !tt.want(got) {
				t.Errorf("stdout = %q", got)
			}
		})
	}
}

func TestRun_UsageErrorSkipsContextFactory(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	err := h.run(t, "frobnicate")
	if !errors.Is(err, usage.ErrNoMatch) {
		t.Fatalf("error = %v, want ErrNoMatch", err)
	}
	if h.built != 0 {
		t.Errorf("context factory called %d times, want 0", h.built)
	}
	if h.stdout.Len() != 0 {
		t.Errorf("stdout = %q, want nothing", h.stdout.String())
	}
}

func TestRun_FactoryError(t *testing.T) {
	t.Parallel()

	boom := errors.New("no peru.yaml")
	a := New(Commands(), func(context.Context, argmodel.Args) (*Context, error) {
		return nil, boom
	}, &strings.Builder{}, "peru test")

	if err := a.Run(t.Context(), []string{"sync"}); !errors.Is(err, boom) {
		t.Errorf("Run() error = %v, want %v", err, boom)
	}
}
