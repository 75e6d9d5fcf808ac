// SPDX-License-Identifier: MPL-2.0

package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/peru/peru/internal/issue"
)

// ErrDirty is wrapped by DirtyError.
var ErrDirty = errors.New("destination has local changes")

type (
	// ExportOptions controls ExportTree.
	ExportOptions struct {
		// Previous is the tree last exported to the same destination. Its
		// files are the ones ExportTree may delete or replace.
		Previous TreeID
		// Force overwrites local changes instead of failing.
		Force bool
	}

	// DirtyError lists the files that stop an unforced export.
	DirtyError struct {
		Dest string
		// Modified are previously exported files changed or deleted on disk.
		Modified []string
		// Existing are files not exported before that would be overwritten.
		Existing []string
	}

	fileState int
)

const (
	stateMissing fileState = iota
	stateMatches
	stateDiffers
)

// Error implements the error interface.
func (e *DirtyError) Error() string {
	var parts []string
	if len(e.Modified) > 0 {
		parts = append(parts, "modified: "+strings.Join(e.Modified, ", "))
	}
	if len(e.Existing) > 0 {
		parts = append(parts, "would overwrite: "+strings.Join(e.Existing, ", "))
	}
	return fmt.Sprintf("%s: %s (%s)", e.Dest, ErrDirty, strings.Join(parts, "; "))
}

// Unwrap returns ErrDirty for errors.Is compatibility.
func (e *DirtyError) Unwrap() error { return ErrDirty }

// ExportTree makes dest reflect tree. Files of opts.Previous that are absent
// from tree are deleted (and directories left empty by that are removed);
// files of tree are written unless already identical on disk. Nothing outside
// the two trees is touched.
//
// Without Force, the export fails before changing anything when a previously
// exported file it would touch differs from what was exported, or when a new
// file would replace different existing content.
func (c *Cache) ExportTree(tree TreeID, dest string, opts ExportOptions) error {
	next, err := c.ReadTree(tree)
	if err != nil {
		return err
	}
	prev, err := c.ReadTree(opts.Previous)
	if err != nil {
		return err
	}

	if !opts.Force {
		if dirty := c.checkDirty(dest, prev, next); dirty != nil {
			return issue.NewErrorContext().
				WithOperation("update files").
				WithResource(dest).
				WithSuggestion("Commit or move your local changes, or re-run with --force to overwrite them").
				Wrap(dirty).
				BuildError()
		}
	}

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}

	for _, e := range prev.Entries {
		if _, ok := next.Lookup(e.Path); ok {
			continue
		}
		target := filepath.Join(dest, filepath.FromSlash(e.Path))
		if err := os.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", e.Path, err)
		}
		pruneEmptyDirs(dest, filepath.Dir(target))
	}

	for _, e := range next.Entries {
		target := filepath.Join(dest, filepath.FromSlash(e.Path))
		if c.diskState(target, e) == stateMatches && modeMatches(target, e.Executable) {
			continue
		}
		if err := c.writeEntry(target, e, opts.Force); err != nil {
			return fmt.Errorf("write %s: %w", e.Path, err)
		}
	}
	return nil
}

func (c *Cache) checkDirty(dest string, prev, next Tree) *DirtyError {
	dirty := &DirtyError{Dest: dest}
	for _, pe := range prev.Entries {
		target := filepath.Join(dest, filepath.FromSlash(pe.Path))
		state := c.diskState(target, pe)
		if state == stateMatches {
			continue
		}
		ne, inNext := next.Lookup(pe.Path)
		if !inNext && state == stateMissing {
			continue
		}
		if inNext && c.diskState(target, ne) == stateMatches {
			continue
		}
		dirty.Modified = append(dirty.Modified, pe.Path)
	}
	for _, ne := range next.Entries {
		if _, inPrev := prev.Lookup(ne.Path); inPrev {
			continue
		}
		target := filepath.Join(dest, filepath.FromSlash(ne.Path))
		if c.diskState(target, ne) == stateDiffers {
			dirty.Existing = append(dirty.Existing, ne.Path)
		}
	}
	if len(dirty.Modified) == 0 && len(dirty.Existing) == 0 {
		return nil
	}
	return dirty
}

// diskState compares the file at target with the content of e.
func (c *Cache) diskState(target string, e Entry) fileState {
	info, err := os.Lstat(target)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return stateMissing
		}
		return stateDiffers
	}
	if !info.Mode().IsRegular() {
		return stateDiffers
	}
	sum, err := hashFile(target)
	if err != nil || sum != e.Blob {
		return stateDiffers
	}
	return stateMatches
}

func (c *Cache) writeEntry(target string, e Entry, force bool) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	if info, err := os.Lstat(target); err == nil {
		if info.IsDir() && !force {
			return errors.New("a directory is in the way")
		}
		if err := os.RemoveAll(target); err != nil {
			return err
		}
	}

	src, err := os.Open(c.blobPath(e.Blob))
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	mode := os.FileMode(0o644)
	if e.Executable {
		mode = 0o755
	}
	dst, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return err
	}
	if err := dst.Close(); err != nil {
		return err
	}
	return os.Chmod(target, mode)
}

func modeMatches(target string, executable bool) bool {
	info, err := os.Stat(target)
	if err != nil {
		return false
	}
	return (info.Mode()&0o111 != 0) == executable
}

// pruneEmptyDirs removes dir and its parents while they are empty, stopping
// at root.
func pruneEmptyDirs(root, dir string) {
	root = filepath.Clean(root)
	for dir = filepath.Clean(dir); dir != root && strings.HasPrefix(dir, root+string(filepath.Separator)); dir = filepath.Dir(dir) {
		if err := os.Remove(dir); err != nil {
			return
		}
	}
}

func hashFile(p string) (string, error) {
	f, err := os.Open(p)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
