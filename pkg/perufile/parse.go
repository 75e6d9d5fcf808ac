// SPDX-License-Identifier: MPL-2.0

package perufile

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/peru/peru/internal/issue"
	"github.com/peru/peru/pkg/cueutil"

	"gopkg.in/yaml.v3"
)

//go:embed perufile_schema.cue
var perufileSchema []byte

// Find walks up from dir looking for a file called name and returns its
// absolute path.
func Find(dir, name string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", dir, err)
	}
	for start := dir; ; {
		candidate := filepath.Join(dir, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("stat %s: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", issue.NewErrorContext().
				WithOperation("find project file").
				WithResource(name).
				WithSuggestion(fmt.Sprintf("Create %s in your project root, or run peru from inside the project", name)).
				WithSuggestion("Set PERU_FILE if the project file has a different name").
				Wrap(fmt.Errorf("%w in %s or any parent directory", ErrNotFound, start)).
				BuildError()
		}
		dir = parent
	}
}

// Load reads and parses the project file at path.
func Load(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read project file at %s: %w", path, err)
	}
	return Parse(data, path)
}

// Parse parses project file content. path is recorded in the result and used
// in error messages.
func Parse(data []byte, path string) (*Project, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}

	if err := cueutil.CheckFileSize(data, cueutil.DefaultMaxFileSize, path); err != nil {
		return nil, invalid(path, err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, invalid(path, fmt.Errorf("%s: %w", path, err))
	}

	var generic map[string]any
	if err := doc.Decode(&generic); err != nil && !isEmptyDocument(&doc) {
		return nil, invalid(path, fmt.Errorf("%s: %w", path, err))
	}
	if generic == nil {
		generic = map[string]any{}
	}
	if err := cueutil.Validate(perufileSchema, "#Project", generic, cueutil.WithFilename(path)); err != nil {
		return nil, invalid(path, err)
	}

	p := &Project{
		File:    abs,
		Root:    filepath.Dir(abs),
		modules: map[string]*ModuleDef{},
		rules:   map[string]*RuleDef{},
	}

	root := mappingRoot(&doc)
	if root == nil {
		return p, nil
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i].Value, root.Content[i+1]
		switch {
		case key == importsKey:
			if err := p.parseImports(value); err != nil {
				return nil, invalid(path, err)
			}
		case strings.HasPrefix(key, rulePrefix):
			name := strings.TrimPrefix(key, rulePrefix)
			if _, dup := p.rules[name]; dup {
				return nil, invalid(path, &DuplicateNameError{Kind: "rule", Name: name})
			}
			r := parseRule(name, value)
			p.rules[name] = &r
		case strings.Contains(key, moduleMarker):
			typ, name, _ := strings.Cut(key, moduleMarker)
			if _, dup := p.modules[name]; dup {
				return nil, invalid(path, &DuplicateNameError{Kind: "module", Name: name})
			}
			p.modules[name] = parseModule(typ, name, value)
		}
	}
	return p, nil
}

func (p *Project) parseImports(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		target, dest := node.Content[i].Value, node.Content[i+1].Value
		if _, _, err := SplitTarget(target); err != nil {
			return err
		}
		p.Imports = append(p.Imports, Import{Target: target, Path: dest})
	}
	return nil
}

func parseRule(name string, node *yaml.Node) RuleDef {
	r := RuleDef{Name: name}
	if node.Kind != yaml.MappingNode {
		return r
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		r.set(node.Content[i].Value, node.Content[i+1])
	}
	return r
}

func parseModule(typ, name string, node *yaml.Node) *ModuleDef {
	m := &ModuleDef{Name: name, Type: typ, Fields: map[string]string{}, Rule: RuleDef{Name: name}}
	if node.Kind != yaml.MappingNode {
		return m
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i].Value, node.Content[i+1]
		if !m.Rule.set(key, value) {
			m.Fields[key] = value.Value
		}
	}
	return m
}

// set assigns a rule field and reports whether key was one.
func (r *RuleDef) set(key string, value *yaml.Node) bool {
	switch key {
	case fieldBuild:
		r.Build = value.Value
	case fieldExport:
		r.Export = value.Value
	case fieldFiles:
		if value.Kind == yaml.SequenceNode {
			for _, item := range value.Content {
				r.Files = append(r.Files, item.Value)
			}
		} else {
			r.Files = []string{value.Value}
		}
	default:
		return false
	}
	return true
}

// mappingRoot returns the top-level mapping of a document, or nil for an
// empty document.
func mappingRoot(doc *yaml.Node) *yaml.Node {
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil
	}
	if root := doc.Content[0]; root.Kind == yaml.MappingNode {
		return root
	}
	return nil
}

func isEmptyDocument(doc *yaml.Node) bool {
	return doc.Kind == 0 || len(doc.Content) == 0
}

func invalid(path string, err error) error {
	return issue.NewErrorContext().
		WithOperation("parse project file").
		WithResource(path).
		WithSuggestion("Sections are \"imports\", \"<type> module <name>\" and \"rule <name>\"").
		Wrap(err).
		BuildError()
}
