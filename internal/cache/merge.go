// SPDX-License-Identifier: MPL-2.0

package cache

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/peru/peru/internal/issue"
)

var (
	// ErrMergeConflict is wrapped by MergeConflictError.
	ErrMergeConflict = errors.New("merge conflict")
	// ErrInvalidTreePath is returned for absolute paths or paths leaving the tree.
	ErrInvalidTreePath = errors.New("invalid tree path")
	// ErrExportPathMissing is returned when FilterTree's export path is not a
	// directory of the tree.
	ErrExportPathMissing = errors.New("export path not found")
	// ErrNoFilesMatched is returned when a FilterTree glob selects nothing.
	ErrNoFilesMatched = errors.New("no files matched")
)

// MergeConflictError lists the paths two merged trees disagree on.
type MergeConflictError struct {
	Prefix string
	Paths  []string
}

// Error implements the error interface.
func (e *MergeConflictError) Error() string {
	prefix := e.Prefix
	if prefix == "" {
		prefix = "."
	}
	return fmt.Sprintf("%s at %s: %s", ErrMergeConflict, prefix, strings.Join(e.Paths, ", "))
}

// Unwrap returns ErrMergeConflict for errors.Is compatibility.
func (e *MergeConflictError) Unwrap() error { return ErrMergeConflict }

// MergeTrees returns base with every file of other added under prefix. Files
// present in both with identical content are fine; differing content, or a
// file in one tree where the other has a directory, is a conflict.
func (c *Cache) MergeTrees(base, other TreeID, prefix string) (TreeID, error) {
	prefix, err := cleanRelative(prefix)
	if err != nil {
		return EmptyTree, err
	}
	b, err := c.ReadTree(base)
	if err != nil {
		return EmptyTree, err
	}
	o, err := c.ReadTree(other)
	if err != nil {
		return EmptyTree, err
	}

	merged := make(map[string]Entry, len(b.Entries)+len(o.Entries))
	for _, e := range b.Entries {
		merged[e.Path] = e
	}

	var conflicts []string
	for _, e := range o.Entries {
		if prefix != "" {
			e.Path = prefix + "/" + e.Path
		}
		if existing, ok := merged[e.Path]; ok {
			if existing.Blob != e.Blob || existing.Executable != e.Executable {
				conflicts = append(conflicts, e.Path)
			}
			continue
		}
		merged[e.Path] = e
	}

	// A path that is both a file and a parent directory of another file.
	for p := range merged {
		for dir := parentDir(p); dir != ""; dir = parentDir(dir) {
			if _, ok := merged[dir]; ok {
				conflicts = append(conflicts, dir)
			}
		}
	}

	if len(conflicts) > 0 {
		conflicts = sortedUnique(conflicts)
		return EmptyTree, issue.NewErrorContext().
			WithOperation("merge imports").
			WithSuggestion("Check that import paths in peru.yaml do not overlap with different content").
			Wrap(&MergeConflictError{Prefix: prefix, Paths: conflicts}).
			BuildError()
	}

	entries := make([]Entry, 0, len(merged))
	for _, e := range merged {
		entries = append(entries, e)
	}
	return c.writeTree(Tree{Entries: entries})
}

// FilterTree narrows a tree. A non-empty export path selects that directory
// and makes it the new root; it must exist. Non-empty files globs (doublestar
// syntax, matched against paths after the export step) keep only matching
// files; every glob must match at least one file.
func (c *Cache) FilterTree(tree TreeID, export string, files []string) (TreeID, error) {
	t, err := c.ReadTree(tree)
	if err != nil {
		return EmptyTree, err
	}

	entries := t.Entries
	if export != "" {
		dir, err := cleanRelative(export)
		if err != nil {
			return EmptyTree, err
		}
		if dir != "" {
			var sub []Entry
			for _, e := range entries {
				if rest, ok := strings.CutPrefix(e.Path, dir+"/"); ok {
					e.Path = rest
					sub = append(sub, e)
				}
			}
			if len(sub) == 0 {
				return EmptyTree, fmt.Errorf("%w: %s", ErrExportPathMissing, export)
			}
			entries = sub
		}
	}

	if len(files) > 0 {
		for _, pat := range files {
			if !doublestar.ValidatePattern(pat) {
				return EmptyTree, fmt.Errorf("invalid files glob %q: %w", pat, doublestar.ErrBadPattern)
			}
		}
		var kept []Entry
		matchedAny := make([]bool, len(files))
		for _, e := range entries {
			keep := false
			for i, pat := range files {
				if ok, _ := doublestar.Match(pat, e.Path); ok {
					matchedAny[i] = true
					keep = true
				}
			}
			if keep {
				kept = append(kept, e)
			}
		}
		for i, ok := range matchedAny {
			if !ok {
				return EmptyTree, fmt.Errorf("%w: %s", ErrNoFilesMatched, files[i])
			}
		}
		entries = kept
	}

	return c.writeTree(Tree{Entries: entries})
}

func parentDir(p string) string {
	i := strings.LastIndexByte(p, '/')
	if i < 0 {
		return ""
	}
	return p[:i]
}

func sortedUnique(s []string) []string {
	seen := make(map[string]bool, len(s))
	out := s[:0]
	for _, v := range s {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	slices.Sort(out)
	return out
}
