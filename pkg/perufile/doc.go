// SPDX-License-Identifier: MPL-2.0

// Package perufile reads and edits peru.yaml, the project file.
//
// A project file has three kinds of top-level sections:
//
//	imports:
//	    lib: third_party/lib          # module tree at a path
//	    lib|docs: docs/lib            # module tree after rule "docs"
//
//	git module lib:                   # <plugin type> module <name>
//	    url: https://example.com/lib.git
//	    rev: 4f1c2a...
//	    export: include               # optional default rule of the module
//
//	rule docs:
//	    build: make docs
//	    export: out/html
//	    files: ["*.html", "**/*.css"]
//
// The document is decoded with yaml.v3, validated against an embedded CUE
// schema, and then read in file order so imports keep their written order.
package perufile
