// SPDX-License-Identifier: MPL-2.0

// Package cache is peru's content-addressed store.
//
// Files are stored once as blobs named by the SHA-256 of their content. A tree
// is a sorted manifest of (path, blob, executable) entries persisted as TOML and
// identified by the SHA-256 of that manifest, so equal file sets always share an
// ID. The empty tree has the ID EmptyTree and no manifest on disk.
//
// Trees are combined with MergeTrees, narrowed with FilterTree and written to a
// directory with ExportTree, which refuses to clobber local edits unless
// forced. A small namespaced key/value store records fetch and build results.
package cache
