// SPDX-License-Identifier: MPL-2.0

package perufile

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/peru/peru/internal/issue"
)

const sample = `# project deps
imports:
    zlib: third_party/zlib
    lib|docs: docs/lib

git module lib:
    url: https://example.com/lib.git
    rev: 4f1c2a
    export: include   # headers only

path module zlib:
    path: ../zlib

rule docs:
    build: make docs
    export: out/html
    files:
      - "*.html"
      - "**/*.css"
`

func TestParse_Sample(t *testing.T) {
	t.Parallel()

	p, err := Parse([]byte(sample), "/proj/peru.yaml")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if p.Root != filepath.FromSlash("/proj") {
		t.Errorf("Root = %q", p.Root)
	}

	wantImports := []Import{{Target: "zlib", Path: "third_party/zlib"}, {Target: "lib|docs", Path: "docs/lib"}}
	if !slices.Equal(p.Imports, wantImports) {
		t.Errorf("Imports = %v, want %v (file order)", p.Imports, wantImports)
	}

	if got, want := p.ModuleNames(), []string{"lib", "zlib"}; !slices.Equal(got, want) {
		t.Errorf("ModuleNames() = %v, want %v", got, want)
	}
	lib, ok := p.Module("lib")
	if !ok {
		t.Fatal("module lib missing")
	}
	if lib.Type != "git" || lib.Key() != "git module lib" {
		t.Errorf("lib type/key = %q/%q", lib.Type, lib.Key())
	}
	if lib.Fields["url"] != "https://example.com/lib.git" || lib.Fields["rev"] != "4f1c2a" {
		t.Errorf("lib fields = %v", lib.Fields)
	}
	if _, ok := lib.Fields["export"]; ok {
		t.Error("export is a rule field, not a plugin field")
	}
	if lib.Rule.Export != "include" || lib.Rule.Name != "lib" {
		t.Errorf("lib default rule = %+v", lib.Rule)
	}

	zlib, _ := p.Module("zlib")
	if !zlib.Rule.IsZero() {
		t.Errorf("zlib default rule should be empty, got %+v", zlib.Rule)
	}

	docs, ok := p.Rule("docs")
	if !ok {
		t.Fatal("rule docs missing")
	}
	if docs.Build != "make docs" || docs.Export != "out/html" || !slices.Equal(docs.Files, []string{"*.html", "**/*.css"}) {
		t.Errorf("docs = %+v", docs)
	}
}

func TestParse_ScalarFieldsAndSingleGlob(t *testing.T) {
	t.Parallel()

	p, err := Parse([]byte("git module a:\n    url: u\n    rev: 1234\n    files: \"*.c\"\n"), "peru.yaml")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	a, _ := p.Module("a")
	if a.Fields["rev"] != "1234" {
		t.Errorf("rev = %q, want the scalar text", a.Fields["rev"])
	}
	if !slices.Equal(a.Rule.Files, []string{"*.c"}) {
		t.Errorf("files = %v", a.Rule.Files)
	}
}

func TestParse_Empty(t *testing.T) {
	t.Parallel()

	for _, data := range []string{"", "imports:\n"} {
		p, err := Parse([]byte(data), "peru.yaml")
		if err != nil {
			t.Fatalf("Parse(%q) error = %v", data, err)
		}
		if len(p.Imports) != 0 || len(p.ModuleNames()) != 0 || len(p.RuleNames()) != 0 {
			t.Errorf("Parse(%q) = %+v, want empty", data, p)
		}
	}
}

func TestParse_Rejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		data    string
		wantErr error
	}{
		{name: "unknown section", data: "dependencies:\n    a: b\n"},
		{name: "rule with plugin field", data: "rule r:\n    url: x\n"},
		{name: "nested plugin field", data: "git module a:\n    url:\n        x: y\n"},
		{name: "import path not a string", data: "imports:\n    a: [x]\n"},
		{name: "files wrong type", data: "rule r:\n    files: {a: b}\n"},
		{name: "not yaml", data: "imports: [\n"},
		{name: "empty target segment", data: "imports:\n    \"a||b\": x\n", wantErr: ErrInvalidTarget},
		{name: "duplicate module", data: "git module a:\n    url: u\npath module a:\n    path: p\n", wantErr: ErrDuplicateName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Parse([]byte(tt.data), "peru.yaml")
			if err == nil {
				t.Fatal("Parse() should fail")
			}
			if _, ok := issue.UserMessage(err); !ok {
				t.Errorf("error %v should be user-facing", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestFind(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	file := filepath.Join(root, DefaultFileName)
	if err := os.WriteFile(file, []byte("imports:\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	deep := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(deep, 0o755); err != nil {
		t.Fatal(err)
	}

	got, err := Find(deep, DefaultFileName)
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if got != file {
		t.Errorf("Find() = %q, want %q", got, file)
	}

	_, err = Find(deep, "missing.yaml")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Find(missing) error = %v, want ErrNotFound", err)
	}
	if _, ok := issue.UserMessage(err); !ok {
		t.Error("missing project file should be a user-facing error")
	}
}

func TestSplitTarget(t *testing.T) {
	t.Parallel()

	mod, rules, err := SplitTarget("lib|docs|strip")
	if err != nil || mod != "lib" || !slices.Equal(rules, []string{"docs", "strip"}) {
		t.Errorf("SplitTarget() = %q, %v, %v", mod, rules, err)
	}
	mod, rules, err = SplitTarget("lib")
	if err != nil || mod != "lib" || len(rules) != 0 {
		t.Errorf("SplitTarget(lib) = %q, %v, %v", mod, rules, err)
	}
	if _, _, err := SplitTarget("lib|"); !errors.Is(err, ErrInvalidTarget) {
		t.Errorf("SplitTarget(lib|) error = %v", err)
	}
}

func TestUpdateModuleFields(t *testing.T) {
	t.Parallel()

	file := filepath.Join(t.TempDir(), DefaultFileName)
	if err := os.WriteFile(file, []byte(sample), 0o644); err != nil {
		t.Fatal(err)
	}
	p, err := Load(file)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	lib, _ := p.Module("lib")

	if err := UpdateModuleFields(file, lib, map[string]string{"rev": "9e8d7c", "reup": "main"}); err != nil {
		t.Fatalf("UpdateModuleFields() error = %v", err)
	}

	data, err := os.ReadFile(file)
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	for _, want := range []string{"# project deps", "# headers only", "9e8d7c", "reup: main"} {
		if !strings.Contains(text, want) {
			t.Errorf("updated file lacks %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "4f1c2a") {
		t.Errorf("old rev still present:\n%s", text)
	}

	again, err := Parse(data, file)
	if err != nil {
		t.Fatalf("re-Parse() error = %v", err)
	}
	lib2, _ := again.Module("lib")
	if lib2.Fields["rev"] != "9e8d7c" || lib2.Fields["reup"] != "main" || lib2.Rule.Export != "include" {
		t.Errorf("re-parsed lib = %+v", lib2)
	}
	if !slices.Equal(again.Imports, p.Imports) {
		t.Errorf("imports changed: %v vs %v", again.Imports, p.Imports)
	}

	missing := &ModuleDef{Name: "nope", Type: "git"}
	if err := UpdateModuleFields(file, missing, map[string]string{"rev": "x"}); err == nil {
		t.Error("updating an unknown module should fail")
	}
}
