// SPDX-License-Identifier: MPL-2.0

package perufile

import (
	"bytes"
	"fmt"
	"maps"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// UpdateModuleFields rewrites plugin fields of one module section in the
// project file at path. Existing fields keep their position; new fields are
// appended to the section. Comments and the order of everything else are
// kept, though yaml.v3 normalises indentation.
func UpdateModuleFields(path string, module *ModuleDef, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat project file: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read project file: %w", err)
	}

	out, err := updateFields(data, module.Key(), fields)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := os.WriteFile(path, out, info.Mode().Perm()); err != nil {
		return fmt.Errorf("write project file: %w", err)
	}
	return nil
}

func updateFields(data []byte, sectionKey string, fields map[string]string) ([]byte, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	root := mappingRoot(&doc)
	if root == nil {
		return nil, fmt.Errorf("no section %q", sectionKey)
	}

	var section *yaml.Node
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value == sectionKey {
			section = root.Content[i+1]
			break
		}
	}
	if section == nil || section.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("no section %q", sectionKey)
	}

	for _, key := range slices.Sorted(maps.Keys(fields)) {
		value := fields[key]
		updated := false
		for i := 0; i+1 < len(section.Content); i += 2 {
			if section.Content[i].Value != key {
				continue
			}
			node := section.Content[i+1]
			node.Kind = yaml.ScalarNode
			node.Tag = "!!str"
			node.Value = value
			node.Content = nil
			updated = true
			break
		}
		if !updated {
			section.Content = append(section.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value},
			)
		}
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(4)
	if err := enc.Encode(&doc); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
