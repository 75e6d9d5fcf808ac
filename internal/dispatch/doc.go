// SPDX-License-Identifier: MPL-2.0

// Package dispatch maps command paths to handlers and picks the handler for a
// parsed command line.
//
// A command path is the set of grammar names that must all be present for a
// handler to apply, e.g. ("override") or ("override", "add"). Because the
// parser marks every word it saw, a coarse path matches whenever one of its
// refinements does, so Resolve always picks the longest matching path. A
// phrase that was never registered on its own, such as "override list",
// falls back to the coarser registered behaviour.
package dispatch
