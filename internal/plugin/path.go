// SPDX-License-Identifier: MPL-2.0

package plugin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/peru/peru/internal/issue"
)

const pathType = "path"

// pathPlugin serves a module from a local directory.
type pathPlugin struct{}

func (pathPlugin) Type() string       { return pathType }
func (pathPlugin) Required() []string { return []string{"path"} }
func (pathPlugin) Optional() []string { return nil }

// Cacheable is false: the directory can change without its fields changing.
func (pathPlugin) Cacheable() bool { return false }

// Fetch returns the directory itself; relative paths are resolved against
// the project root.
func (pathPlugin) Fetch(_ context.Context, req Request) (string, error) {
	dir := req.Fields["path"]
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(req.ProjectRoot, dir)
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		if err == nil {
			err = fmt.Errorf("%s is not a directory", dir)
		}
		return "", issue.NewErrorContext().
			WithOperation("fetch module").
			WithResource(req.Module).
			WithSuggestion("Check the module's path field in peru.yaml").
			Wrap(err).
			BuildError()
	}
	return dir, nil
}

// Reup has nothing to follow for a local directory.
func (pathPlugin) Reup(context.Context, Request) (map[string]string, error) {
	return map[string]string{}, nil
}
