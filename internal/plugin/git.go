// SPDX-License-Identifier: MPL-2.0

package plugin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"
	"github.com/go-git/go-git/v5/storage/memory"

	"github.com/peru/peru/internal/cache"
	"github.com/peru/peru/internal/issue"
)

const (
	gitType = "git"

	// defaultBranch is used when a module sets neither rev nor reup.
	defaultBranch = "master"
)

var (
	// ErrRevisionNotFound is returned when rev names nothing in the repository.
	ErrRevisionNotFound = errors.New("revision not found")
	// ErrBranchNotFound is returned when reup names no remote branch or tag.
	ErrBranchNotFound = errors.New("branch not found")

	fullHashPattern = regexp.MustCompile(`^[0-9a-f]{40}$`)
)

// gitPlugin fetches modules from git repositories. Each URL gets a bare
// mirror under the plugin state directory, shared across modules and runs.
type gitPlugin struct {
	// locks serializes access to a mirror: url -> *sync.Mutex.
	locks sync.Map
}

func newGitPlugin() *gitPlugin { return &gitPlugin{} }

func (*gitPlugin) Type() string       { return gitType }
func (*gitPlugin) Required() []string { return []string{"url"} }
func (*gitPlugin) Optional() []string { return []string{"rev", "reup"} }

// Fetch writes the files of the module's revision into req.Dest.
func (g *gitPlugin) Fetch(ctx context.Context, req Request) (string, error) {
	url := req.Fields["url"]
	rev := fieldOr(req.Fields, "rev", defaultBranch)

	unlock := g.lock(url)
	defer unlock()

	repo, err := g.mirror(ctx, req, url, !fullHashPattern.MatchString(rev))
	if err != nil {
		return "", fetchError(req.Module, url, err)
	}

	hash, err := resolveRevision(repo, rev)
	if errors.Is(err, ErrRevisionNotFound) && fullHashPattern.MatchString(rev) {
		// A pinned commit may be newer than the mirror.
		if err = fetch(ctx, repo, authFor(url)); err == nil {
			hash, err = resolveRevision(repo, rev)
		}
	}
	if err != nil {
		return "", fetchError(req.Module, url, err)
	}

	commit, err := repo.CommitObject(hash)
	if err != nil {
		return "", fetchError(req.Module, url, fmt.Errorf("read commit %s: %w", hash, err))
	}
	loggerOf(req).Debug("writing git tree", "module", req.Module, "commit", hash.String())
	if err := writeCommit(commit, req.Dest); err != nil {
		return "", err
	}
	return req.Dest, nil
}

// Reup looks up the remote head of the reup branch without touching the mirror.
func (g *gitPlugin) Reup(ctx context.Context, req Request) (map[string]string, error) {
	url := req.Fields["url"]
	branch := fieldOr(req.Fields, "reup", defaultBranch)

	// Use in-memory storage to list remote refs without cloning
	remote := git.NewRemote(memory.NewStorage(), &config.RemoteConfig{
		Name: "origin",
		URLs: []string{url},
	})
	refs, err := remote.ListContext(ctx, &git.ListOptions{Auth: authFor(url)})
	if err != nil {
		return nil, fetchError(req.Module, url, fmt.Errorf("list remote refs: %w", err))
	}

	candidates := []plumbing.ReferenceName{
		plumbing.NewBranchReferenceName(branch),
		plumbing.NewTagReferenceName(branch),
	}
	for _, want := range candidates {
		for _, ref := range refs {
			if ref.Name() != want {
				continue
			}
			rev := ref.Hash().String()
			if rev == req.Fields["rev"] {
				return map[string]string{}, nil
			}
			return map[string]string{"rev": rev}, nil
		}
	}

	return nil, issue.NewErrorContext().
		WithOperation("reup module").
		WithResource(req.Module).
		WithSuggestion("Set the module's reup field to a branch that exists on " + url).
		Wrap(fmt.Errorf("%w: %q", ErrBranchNotFound, branch)).
		BuildError()
}

func (g *gitPlugin) lock(url string) func() {
	mu, _ := g.locks.LoadOrStore(url, &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}

// mirror opens or creates the bare mirror for url. An existing mirror is
// refreshed when refresh is set; a failed refresh is logged and the stale
// mirror is used.
func (g *gitPlugin) mirror(ctx context.Context, req Request, url string, refresh bool) (*git.Repository, error) {
	dir := filepath.Join(req.StateDir, cache.Key(url))
	auth := authFor(url)

	repo, err := git.PlainOpen(dir)
	if err == nil {
		if refresh {
			if err := fetch(ctx, repo, auth); err != nil {
				loggerOf(req).Warn("git fetch failed, using cached mirror", "url", url, "err", err)
			}
		}
		return repo, nil
	}
	if !errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create parent directory: %w", err)
	}
	loggerOf(req).Info("cloning", "module", req.Module, "url", url)
	repo, err = git.PlainCloneContext(ctx, dir, true, &git.CloneOptions{
		URL:  url,
		Auth: auth,
		Tags: git.AllTags,
	})
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}
	return repo, nil
}

// fetch fetches updates from the remote repository.
func fetch(ctx context.Context, repo *git.Repository, auth transport.AuthMethod) error {
	err := repo.FetchContext(ctx, &git.FetchOptions{
		Auth:  auth,
		Tags:  git.AllTags,
		Force: true,
	})
	// ErrAlreadyUpToDate is not a real error
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return err
	}
	return nil
}

// resolveRevision maps rev to a commit: a full hash, a remote branch, a tag
// (annotated tags are dereferenced), then anything git rev-parse accepts.
func resolveRevision(repo *git.Repository, rev string) (plumbing.Hash, error) {
	if fullHashPattern.MatchString(rev) {
		hash := plumbing.NewHash(rev)
		if _, err := repo.CommitObject(hash); err != nil {
			return plumbing.ZeroHash, fmt.Errorf("%w: %s", ErrRevisionNotFound, rev)
		}
		return hash, nil
	}

	if ref, err := repo.Reference(plumbing.NewRemoteReferenceName("origin", rev), true); err == nil {
		return ref.Hash(), nil
	}
	if ref, err := repo.Reference(plumbing.NewTagReferenceName(rev), true); err == nil {
		if tag, err := repo.TagObject(ref.Hash()); err == nil {
			return tag.Target, nil
		}
		return ref.Hash(), nil
	}
	hash, err := repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("%w: %s", ErrRevisionNotFound, rev)
	}
	return *hash, nil
}

// writeCommit writes the regular files of commit into dest. Symlinks and
// submodules are skipped.
func writeCommit(commit *object.Commit, dest string) error {
	files, err := commit.Files()
	if err != nil {
		return err
	}
	defer files.Close()

	return files.ForEach(func(f *object.File) error {
		var perm os.FileMode
		switch f.Mode {
		case filemode.Regular, filemode.Deprecated:
			perm = 0o644
		case filemode.Executable:
			perm = 0o755
		default:
			return nil
		}

		path := filepath.Join(dest, filepath.FromSlash(f.Name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		r, err := f.Reader()
		if err != nil {
			return fmt.Errorf("read %s: %w", f.Name, err)
		}
		defer r.Close()

		out, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
		if err != nil {
			return err
		}
		if _, err := io.Copy(out, r); err != nil {
			_ = out.Close()
			return fmt.Errorf("write %s: %w", f.Name, err)
		}
		return out.Close()
	})
}

// authFor picks credentials by URL scheme. Public repositories and local
// paths need none.
func authFor(url string) transport.AuthMethod {
	switch {
	case strings.HasPrefix(url, "ssh://"), strings.HasPrefix(url, "git@"):
		return trySSHAuth()
	case strings.HasPrefix(url, "https://"), strings.HasPrefix(url, "http://"):
		return tryHTTPAuth()
	default:
		return nil
	}
}

// trySSHAuth loads the first usable key from the common SSH key locations.
func trySSHAuth() transport.AuthMethod {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil
	}

	keyPaths := []string{
		filepath.Join(homeDir, ".ssh", "id_ed25519"),
		filepath.Join(homeDir, ".ssh", "id_rsa"),
		filepath.Join(homeDir, ".ssh", "id_ecdsa"),
	}
	for _, keyPath := range keyPaths {
		if _, err := os.Stat(keyPath); err == nil {
			auth, err := ssh.NewPublicKeysFromFile("git", keyPath, "")
			if err == nil {
				return auth
			}
		}
	}
	return nil
}

// tryHTTPAuth reads a token from the environment.
func tryHTTPAuth() transport.AuthMethod {
	tokens := []struct{ env, user string }{
		{"GITHUB_TOKEN", "x-access-token"},
		{"GITLAB_TOKEN", "gitlab-ci-token"},
		{"GIT_TOKEN", "git"},
	}
	for _, tok := range tokens {
		if token := os.Getenv(tok.env); token != "" {
			return &http.BasicAuth{Username: tok.user, Password: token}
		}
	}
	return nil
}

func fetchError(module, url string, err error) error {
	return issue.NewErrorContext().
		WithOperation("fetch module").
		WithResource(module).
		WithSuggestion("Check that " + url + " is reachable and the module's rev exists").
		Wrap(err).
		BuildError()
}

func fieldOr(fields map[string]string, name, def string) string {
	if v := fields[name]; v != "" {
		return v
	}
	return def
}
