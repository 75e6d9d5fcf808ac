// SPDX-License-Identifier: MPL-2.0

// Package runtime assembles the per-invocation state of a peru command.
//
// New walks up from the working directory to the project file, parses it,
// opens the state directory (overrides, last imports, cache) and binds every
// module to its plugin. Flags from the argument model set the export policy
// (--force) and the log level (--quiet, --verbose).
//
// The runtime is only built once a command has been matched, so "peru
// --help" and "peru --version" work outside a project.
package runtime
