// SPDX-License-Identifier: MPL-2.0

// Package argmodel holds the parsed form of a peru command line.
//
// An Args value maps every name of the usage grammar (command words such as
// "override", options such as "--force", and capture groups such as
// "<module>") to its parsed value. Values are one of bool, string, []string or
// nil. Args is immutable: the constructor copies its input and accessors
// return copies.
package argmodel

import (
	"fmt"
	"maps"
	"slices"
)

// Args is the immutable argument model for one invocation.
type Args struct {
	values map[string]any
}

// New builds an Args from parsed values. Slices are copied so later changes
// to the caller's data never leak into the model. Values of any type other
// than bool, string, []string or nil are rejected.
func New(values map[string]any) (Args, error) {
	copied := make(map[string]any, len(values))
	for name, v := range values {
		switch tv := v.(type) {
		case nil, bool, string:
			copied[name] = tv
		case []string:
			copied[name] = slices.Clone(tv)
		default:
			return Args{}, fmt.Errorf("argument %q: unsupported value type %T", name, v)
		}
	}
	return Args{values: copied}, nil
}

// MustNew is New for statically known values; it panics on a bad value type.
func MustNew(values map[string]any) Args {
	a, err := New(values)
	if err != nil {
		panic(err)
	}
	return a
}

// Truthy reports whether name is present with a non-empty value: true, a
// non-empty string, or a non-empty list. Absent names, false, "" and empty
// lists are not truthy.
func (a Args) Truthy(name string) bool {
	switch v := a.values[name].(type) {
	case bool:
		return v
	case string:
		return v != ""
	case []string:
		return len(v) > 0
	default:
		return false
	}
}

// Has reports whether the grammar produced a value (possibly empty) for name.
func (a Args) Has(name string) bool {
	_, ok := a.values[name]
	return ok
}

// Bool returns the switch value of name, false when absent or not a bool.
func (a Args) Bool(name string) bool {
	v, _ := a.values[name].(bool)
	return v
}

// String returns the single value of name, "" when absent or not a string.
func (a Args) String(name string) string {
	v, _ := a.values[name].(string)
	return v
}

// Strings returns a copy of the repeated value of name, nil when absent.
func (a Args) Strings(name string) []string {
	v, _ := a.values[name].([]string)
	return slices.Clone(v)
}

// Names returns every name in the model, sorted.
func (a Args) Names() []string {
	return slices.Sorted(maps.Keys(a.values))
}

// GoString renders the truthy names, which is what dispatch looks at.
func (a Args) GoString() string {
	var truthy []string
	for _, name := range a.Names() {
		if a.Truthy(name) {
			truthy = append(truthy, name)
		}
	}
	return fmt.Sprintf("argmodel.Args%v", truthy)
}
