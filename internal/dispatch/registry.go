// SPDX-License-Identifier: MPL-2.0

package dispatch

type (
	// Presence is the view of a parsed command line that dispatch needs.
	// argmodel.Args satisfies it.
	Presence interface {
		Truthy(name string) bool
	}

	// Registry binds command paths to handlers of type H. It remembers
	// registration order, which decides ties between equally long matches.
	// A Registry is built once at startup and only read afterwards.
	Registry[H any] struct {
		entries []entry[H]
	}

	entry[H any] struct {
		path    Path
		handler H
	}

	// Match is one candidate found by Candidates.
	Match[H any] struct {
		Path    Path
		Handler H
	}
)

// NewRegistry returns an empty registry.
func NewRegistry[H any]() *Registry[H] {
	return &Registry[H]{}
}

// Register binds path to handler. Registering a path that already exists
// replaces its handler and keeps its original position.
func (r *Registry[H]) Register(path Path, handler H) {
	for i := range r.entries {
		if r.entries[i].path.Equal(path) {
			r.entries[i].handler = handler
			return
		}
	}
	r.entries = append(r.entries, entry[H]{path: path, handler: handler})
}

// Paths returns the registered paths in registration order.
func (r *Registry[H]) Paths() []Path {
	paths := make([]Path, 0, len(r.entries))
	for _, e := range r.entries {
		paths = append(paths, e.path)
	}
	return paths
}

// Len returns the number of registered paths.
func (r *Registry[H]) Len() int { return len(r.entries) }

// Candidates returns every registered path whose names are all present,
// in registration order.
func (r *Registry[H]) Candidates(pr Presence) []Match[H] {
	var matches []Match[H]
	for _, e := range r.entries {
		if e.path.PresentIn(pr) {
			matches = append(matches, Match[H]{Path: e.path, Handler: e.handler})
		}
	}
	return matches
}

// Resolve picks the most specific registered path present in pr and returns
// its handler. Among candidates of equal length the earliest registered one
// wins. ok is false when no registered path is present.
func (r *Registry[H]) Resolve(pr Presence) (handler H, path Path, ok bool) {
	var best *entry[H]
	for i := range r.entries {
		e := &r.entries[i]
		if !e.path.PresentIn(pr) {
			continue
		}
		// Strictly greater: an equal-length later entry never displaces an earlier one.
		if best == nil || e.path.Len() > best.path.Len() {
			best = e
		}
	}
	if best == nil {
		return handler, Path{}, false
	}
	return best.handler, best.path, true
}
