// SPDX-License-Identifier: MPL-2.0

package dispatch

import (
	"errors"
	"slices"
	"testing"
)

// present is a Presence where listed names are truthy.
type present []string

func (p present) Truthy(name string) bool { return slices.Contains(p, name) }

func newTestRegistry() *Registry[string] {
	r := NewRegistry[string]()
	r.Register(MustPath("sync"), "sync")
	r.Register(MustPath("override"), "override")
	r.Register(MustPath("override", "add"), "override add")
	r.Register(MustPath("override", "delete"), "override delete")
	r.Register(MustPath("copy"), "copy")
	return r
}

func TestRegistry_ResolveLongestMatch(t *testing.T) {
	t.Parallel()

	r := newTestRegistry()

	tests := []struct {
		name    string
		args    present
		want    string
		wantOK  bool
		wantLen int
	}{
		{name: "single word", args: present{"sync"}, want: "sync", wantOK: true, wantLen: 1},
		{name: "bare override", args: present{"override"}, want: "override", wantOK: true, wantLen: 1},
		{name: "override add beats override", args: present{"override", "add", "<module>", "<path>"}, want: "override add", wantOK: true, wantLen: 2},
		{name: "override delete beats override", args: present{"delete", "override"}, want: "override delete", wantOK: true, wantLen: 2},
		{name: "unregistered refinement degenerates", args: present{"override", "list"}, want: "override", wantOK: true, wantLen: 1},
		{name: "sub word alone is not enough", args: present{"add"}, wantOK: false},
		{name: "nothing present", args: present{}, wantOK: false},
		{name: "version only", args: present{"--version"}, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, path, ok := r.Resolve(tt.args)
			if ok != tt.wantOK {
				t.Fatalf("Resolve() ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				if !path.IsZero() {
					t.Errorf("Resolve() path = %q, want zero path", path)
				}
				return
			}
			if got != tt.want {
				t.Errorf("Resolve() handler = %q, want %q", got, tt.want)
			}
			if path.Len() != tt.wantLen {
				t.Errorf("Resolve() path len = %d, want %d", path.Len(), tt.wantLen)
			}
		})
	}
}

func TestRegistry_SupersetAlwaysWins(t *testing.T) {
	t.Parallel()

	// Register refinements before and after their prefixes; order must not matter.
	orders := [][]Path{
		{MustPath("a"), MustPath("a", "b"), MustPath("a", "b", "c")},
		{MustPath("a", "b", "c"), MustPath("a", "b"), MustPath("a")},
		{MustPath("a", "b"), MustPath("a", "b", "c"), MustPath("a")},
	}

	for i, order := range orders {
		r := NewRegistry[string]()
		for _, p := range order {
			r.Register(p, p.String())
		}
		for _, args := range []present{{"a"}, {"a", "b"}, {"a", "b", "c"}} {
			got, _, ok := r.Resolve(args)
			want := MustPath(args...).String()
			if !ok || got != want {
				t.Errorf("order %d: Resolve(%v) = %q, %v; want %q", i, args, got, ok, want)
			}
		}
	}
}

func TestRegistry_TieBreakIsRegistrationOrder(t *testing.T) {
	t.Parallel()

	r := NewRegistry[string]()
	r.Register(MustPath("x", "first"), "first")
	r.Register(MustPath("x", "second"), "second")

	got, _, ok := r.Resolve(present{"x", "first", "second"})
	if !ok || got != "first" {
		t.Errorf("Resolve() = %q, %v; want first registered candidate", got, ok)
	}

	matches := r.Candidates(present{"x", "second", "first"})
	if len(matches) != 2 || matches[0].Handler != "first" || matches[1].Handler != "second" {
		t.Errorf("Candidates() = %+v, want registration order", matches)
	}
}

func TestRegistry_CaptureGroupsMustBePresent(t *testing.T) {
	t.Parallel()

	r := NewRegistry[string]()
	r.Register(MustPath("override"), "override")
	r.Register(MustPath("override", "add", "<module>", "<path>"), "add")

	got, _, _ := r.Resolve(present{"override", "add", "<module>"})
	if got != "override" {
		t.Errorf("Resolve() with a missing capture group = %q, want override", got)
	}

	got, _, _ = r.Resolve(present{"override", "add", "<module>", "<path>"})
	if got != "add" {
		t.Errorf("Resolve() with all capture groups = %q, want add", got)
	}
}

func TestRegistry_RegisterOverwrites(t *testing.T) {
	t.Parallel()

	r := NewRegistry[string]()
	r.Register(MustPath("sync"), "old")
	r.Register(MustPath("clean"), "clean")
	r.Register(MustPath("sync"), "new")

	if r.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", r.Len())
	}
	if got, _, _ := r.Resolve(present{"sync"}); got != "new" {
		t.Errorf("Resolve() = %q, want the replacement handler", got)
	}
	if paths := r.Paths(); paths[0].String() != "sync" || paths[1].String() != "clean" {
		t.Errorf("Paths() = %v, replacement should keep its original position", paths)
	}
}

func TestNewPath(t *testing.T) {
	t.Parallel()

	if _, err := NewPath(); !errors.Is(err, ErrInvalidPath) {
		t.Errorf("NewPath() error = %v, want ErrInvalidPath", err)
	}
	if _, err := NewPath("override", ""); !errors.Is(err, ErrInvalidPath) {
		t.Errorf("NewPath with empty name error = %v, want ErrInvalidPath", err)
	}

	p, err := NewPath("override", "add", "override")
	if err != nil {
		t.Fatalf("NewPath() error = %v", err)
	}
	if !slices.Equal(p.Names(), []string{"override", "add"}) {
		t.Errorf("Names() = %v, want duplicates collapsed", p.Names())
	}
	if p.String() != "override add" {
		t.Errorf("String() = %q", p.String())
	}
}

func TestPath_ZeroNeverPresent(t *testing.T) {
	t.Parallel()

	if (Path{}).PresentIn(present{"anything"}) {
		t.Error("zero Path must never be present")
	}
}
