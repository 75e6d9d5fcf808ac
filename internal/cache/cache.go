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
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pelletier/go-toml/v2"
)

// EmptyTree is the ID of the tree with no entries.
const EmptyTree TreeID = ""

const (
	blobsDir   = "blobs"
	treesDir   = "trees"
	keyvalDir  = "keyval"
	pluginsDir = "plugins"
	tmpDir     = "tmp"

	treeExt = ".toml"
)

// ErrTreeNotFound is returned when a tree ID has no manifest in the cache.
var ErrTreeNotFound = errors.New("tree not found in cache")

type (
	// TreeID identifies a tree by the hash of its manifest.
	TreeID string

	// Entry is one file of a tree. Path is slash-separated and relative.
	Entry struct {
		Path       string `toml:"path"`
		Blob       string `toml:"blob"`
		Executable bool   `toml:"executable,omitempty"`
	}

	// Tree is a file set sorted by path.
	Tree struct {
		Entries []Entry `toml:"entry"`
	}

	// Cache is an on-disk store rooted at a single directory. It is safe for
	// concurrent use by multiple goroutines: every write lands in a temporary
	// file first and is renamed into place.
	Cache struct {
		root string
	}
)

// Open creates (if needed) and opens the cache rooted at dir.
func Open(dir string) (*Cache, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve cache dir: %w", err)
	}
	for _, sub := range []string{blobsDir, treesDir, keyvalDir, pluginsDir, tmpDir} {
		if err := os.MkdirAll(filepath.Join(abs, sub), 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
	}
	return &Cache{root: abs}, nil
}

// Root returns the cache's absolute root directory.
func (c *Cache) Root() string { return c.root }

// PluginDir returns a persistent directory reserved for the named plugin.
func (c *Cache) PluginDir(name string) (string, error) {
	dir := filepath.Join(c.root, pluginsDir, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create plugin dir: %w", err)
	}
	return dir, nil
}

// TempDir creates a fresh scratch directory inside the cache. The caller
// removes it.
func (c *Cache) TempDir(pattern string) (string, error) {
	return os.MkdirTemp(filepath.Join(c.root, tmpDir), pattern)
}

// Lookup returns the entry at p.
func (t Tree) Lookup(p string) (Entry, bool) {
	i, ok := slices.BinarySearchFunc(t.Entries, p, func(e Entry, target string) int {
		return strings.Compare(e.Path, target)
	})
	if !ok {
		return Entry{}, false
	}
	return t.Entries[i], true
}

// Paths returns every path in the tree, sorted.
func (t Tree) Paths() []string {
	paths := make([]string, len(t.Entries))
	for i, e := range t.Entries {
		paths[i] = e.Path
	}
	return paths
}

// ImportTree stores every regular file under src and returns the tree ID.
// Paths (files or directories, relative to src) matching any exclude glob are
// skipped. Symlinks to regular files are stored as the files they point to;
// other symlinks are skipped.
func (c *Cache) ImportTree(src string, exclude ...string) (TreeID, error) {
	var entries []Entry
	err := filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if excluded(rel, exclude) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		info, err := os.Stat(p)
		if err != nil {
			if d.Type()&fs.ModeSymlink != 0 {
				return nil
			}
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		blob, err := c.storeBlob(p)
		if err != nil {
			return err
		}
		entries = append(entries, Entry{Path: rel, Blob: blob, Executable: info.Mode()&0o111 != 0})
		return nil
	})
	if err != nil {
		return EmptyTree, fmt.Errorf("import %s: %w", src, err)
	}
	return c.writeTree(Tree{Entries: entries})
}

// ReadTree loads a tree manifest.
func (c *Cache) ReadTree(id TreeID) (Tree, error) {
	if id == EmptyTree {
		return Tree{}, nil
	}
	data, err := os.ReadFile(c.treePath(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Tree{}, fmt.Errorf("%w: %s", ErrTreeNotFound, id)
		}
		return Tree{}, fmt.Errorf("read tree %s: %w", id, err)
	}
	var t Tree
	if err := toml.Unmarshal(data, &t); err != nil {
		return Tree{}, fmt.Errorf("decode tree %s: %w", id, err)
	}
	return t, nil
}

// HasTree reports whether id is the empty tree or has a manifest in the cache.
func (c *Cache) HasTree(id TreeID) bool {
	if id == EmptyTree {
		return true
	}
	_, err := os.Stat(c.treePath(id))
	return err == nil
}

// WriteTree stores t (sorting it first) and returns its ID.
func (c *Cache) WriteTree(t Tree) (TreeID, error) {
	return c.writeTree(t)
}

func (c *Cache) writeTree(t Tree) (TreeID, error) {
	if len(t.Entries) == 0 {
		return EmptyTree, nil
	}
	entries := slices.Clone(t.Entries)
	slices.SortFunc(entries, func(a, b Entry) int { return strings.Compare(a.Path, b.Path) })
	data, err := toml.Marshal(Tree{Entries: entries})
	if err != nil {
		return EmptyTree, fmt.Errorf("encode tree: %w", err)
	}
	sum := sha256.Sum256(data)
	id := TreeID(hex.EncodeToString(sum[:]))
	dst := c.treePath(id)
	if _, err := os.Stat(dst); err == nil {
		return id, nil
	}
	if err := c.writeAtomic(dst, data); err != nil {
		return EmptyTree, fmt.Errorf("write tree: %w", err)
	}
	return id, nil
}

// storeBlob copies the file at p into the blob store and returns its hash.
func (c *Cache) storeBlob(p string) (string, error) {
	src, err := os.Open(p)
	if err != nil {
		return "", err
	}
	defer func() { _ = src.Close() }()

	tmp, err := os.CreateTemp(filepath.Join(c.root, tmpDir), "blob-")
	if err != nil {
		return "", err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	h := sha256.New()
	if _, err := io.Copy(io.MultiWriter(tmp, h), src); err != nil {
		_ = tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}

	sum := hex.EncodeToString(h.Sum(nil))
	dst := c.blobPath(sum)
	if _, err := os.Stat(dst); err == nil {
		return sum, nil
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", err
	}
	return sum, nil
}

func (c *Cache) writeAtomic(dst string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Join(c.root, tmpDir), "write-")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}

func (c *Cache) blobPath(sum string) string {
	return filepath.Join(c.root, blobsDir, sum)
}

func (c *Cache) treePath(id TreeID) string {
	return filepath.Join(c.root, treesDir, string(id)+treeExt)
}

func excluded(rel string, patterns []string) bool {
	for _, pat := range patterns {
		if matched, err := doublestar.Match(pat, rel); err == nil && matched {
			return true
		}
	}
	return false
}

// cleanRelative normalises a slash-separated relative path. It returns "" for
// the root and an error for absolute paths or paths leaving the root.
func cleanRelative(p string) (string, error) {
	p = path.Clean(filepath.ToSlash(p))
	switch {
	case p == ".":
		return "", nil
	case path.IsAbs(p), p == "..", strings.HasPrefix(p, "../"):
		return "", fmt.Errorf("%w: %q", ErrInvalidTreePath, p)
	}
	return p, nil
}
