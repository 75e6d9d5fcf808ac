// SPDX-License-Identifier: MPL-2.0

// Package overrides stores the module overrides of a project: local
// directories used in place of a module's fetched content.
package overrides

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/pelletier/go-toml/v2"
)

// ErrNotFound is returned by Delete for a module without an override.
var ErrNotFound = errors.New("no override for module")

type (
	// Table maps module names to local paths. Every mutation is written back
	// to the backing file.
	Table struct {
		file    string
		entries map[string]string
	}

	document struct {
		Overrides map[string]string `toml:"overrides"`
	}
)

// Load reads the table from file. A missing file is an empty table.
func Load(file string) (*Table, error) {
	t := &Table{file: file, entries: map[string]string{}}
	data, err := os.ReadFile(file)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return t, nil
		}
		return nil, fmt.Errorf("read overrides: %w", err)
	}
	var doc document
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode overrides %s: %w", file, err)
	}
	maps.Copy(t.entries, doc.Overrides)
	return t, nil
}

// Names returns the overridden module names in sorted order.
func (t *Table) Names() []string {
	return slices.Sorted(maps.Keys(t.entries))
}

// Get returns the override path for name exactly as it was stored.
func (t *Table) Get(name string) (string, bool) {
	p, ok := t.entries[name]
	return p, ok
}

// Set adds or replaces the override for name.
func (t *Table) Set(name, path string) error {
	t.entries[name] = path
	return t.save()
}

// Delete removes the override for name.
func (t *Table) Delete(name string) error {
	if _, ok := t.entries[name]; !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	delete(t.entries, name)
	return t.save()
}

// Resolve returns the override directory for name, resolving relative paths
// against root.
func (t *Table) Resolve(name, root string) (string, bool) {
	p, ok := t.entries[name]
	if !ok {
		return "", false
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(root, p)
	}
	return p, true
}

func (t *Table) save() error {
	data, err := toml.Marshal(document{Overrides: t.entries})
	if err != nil {
		return fmt.Errorf("encode overrides: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(t.file), 0o755); err != nil {
		return fmt.Errorf("create overrides dir: %w", err)
	}
	if err := os.WriteFile(t.file, data, 0o644); err != nil {
		return fmt.Errorf("write overrides: %w", err)
	}
	return nil
}
