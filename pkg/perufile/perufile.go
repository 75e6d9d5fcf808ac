// SPDX-License-Identifier: MPL-2.0

package perufile

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

const (
	// DefaultFileName is the project file name.
	DefaultFileName = "peru.yaml"

	// TargetSeparator separates the module and rule names of an import target.
	TargetSeparator = "|"

	importsKey   = "imports"
	moduleMarker = " module "
	rulePrefix   = "rule "

	fieldBuild  = "build"
	fieldExport = "export"
	fieldFiles  = "files"
)

var (
	// ErrNotFound is returned by Find when no project file exists above the start directory.
	ErrNotFound = errors.New("project file not found")
	// ErrDuplicateName is wrapped by DuplicateNameError.
	ErrDuplicateName = errors.New("duplicate name")
	// ErrInvalidTarget is returned for malformed import targets.
	ErrInvalidTarget = errors.New("invalid import target")
)

type (
	// Project is a parsed project file.
	Project struct {
		// File is the absolute path of the project file.
		File string
		// Root is the directory containing File.
		Root string
		// Imports are the project's imports in file order.
		Imports []Import

		modules map[string]*ModuleDef
		rules   map[string]*RuleDef
	}

	// Import places a target's tree at Path in the working copy.
	Import struct {
		Target string
		Path   string
	}

	// RuleDef is a named transformation of a tree.
	RuleDef struct {
		Name   string
		Build  string
		Export string
		Files  []string
	}

	// ModuleDef is a dependency fetched by a plugin. Its own build, export and
	// files fields form the module's default rule.
	ModuleDef struct {
		Name string
		Type string
		// Fields are the plugin fields as written in the file.
		Fields map[string]string
		Rule   RuleDef
	}

	// DuplicateNameError is returned when two sections define the same module
	// or rule name.
	DuplicateNameError struct {
		Kind string
		Name string
	}
)

// Error implements the error interface.
func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("%s %s %q", ErrDuplicateName, e.Kind, e.Name)
}

// Unwrap returns ErrDuplicateName for errors.Is compatibility.
func (e *DuplicateNameError) Unwrap() error { return ErrDuplicateName }

// Module returns the module named name.
func (p *Project) Module(name string) (*ModuleDef, bool) {
	m, ok := p.modules[name]
	return m, ok
}

// Rule returns the top-level rule named name.
func (p *Project) Rule(name string) (*RuleDef, bool) {
	r, ok := p.rules[name]
	return r, ok
}

// ModuleNames returns every module name, sorted.
func (p *Project) ModuleNames() []string {
	return slices.Sorted(maps.Keys(p.modules))
}

// RuleNames returns every top-level rule name, sorted.
func (p *Project) RuleNames() []string {
	return slices.Sorted(maps.Keys(p.rules))
}

// Key returns the section key of the module in the project file.
func (m *ModuleDef) Key() string {
	return m.Type + moduleMarker + m.Name
}

// IsZero reports whether the rule does nothing.
func (r RuleDef) IsZero() bool {
	return r.Build == "" && r.Export == "" && len(r.Files) == 0
}

// SplitTarget splits "module|rule|rule" into its module and rule names.
func SplitTarget(target string) (string, []string, error) {
	parts := strings.Split(target, TargetSeparator)
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			return "", nil, fmt.Errorf("%w: %q", ErrInvalidTarget, target)
		}
	}
	return parts[0], parts[1:], nil
}
