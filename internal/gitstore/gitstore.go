// Package gitstore maintains one clone per remote URL and resolves
// revisions against it, the cache layer spec.md §4.8 describes.
// Grounded on golang-dep/internal/gps/vcs_repo.go's gitRepo wrapper
// (embed Masterminds/vcs.GitRepo for identity/CheckLocal, drive git
// directly for anything the library's own Get/Update don't support —
// here, a custom refspec mapping every remote ref under
// refs/remotes/cache/*).
package gitstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/Masterminds/vcs"
	"github.com/pkg/errors"

	"github.com/depotpm/depot/internal/depoterr"
)

// Store is a directory of clones, keyed by a hash of their remote
// URL so two registries never collide on a shared basename.
type Store struct {
	Root string
}

// New returns a Store rooted at root (conventionally
// "<depot>/clones").
func New(root string) *Store { return &Store{Root: root} }

func (s *Store) cloneDir(url string) string {
	sum := sha256.Sum256([]byte(url))
	return filepath.Join(s.Root, hex.EncodeToString(sum[:])[:16])
}

func (s *Store) repo(url string) (*vcs.GitRepo, error) {
	r, err := vcs.NewGitRepo(url, s.cloneDir(url))
	if err != nil {
		return nil, errors.Wrapf(err, "open git store for %s", url)
	}
	return r, nil
}

// Fetch clones url on first use (an ordinary clone through vcs Get,
// with the remote's default branch checked out), then on every call
// fetches every branch and tag into refs/remotes/cache/*.
func (s *Store) Fetch(ctx context.Context, url string) error {
	r, err := s.repo(url)
	if err != nil {
		return err
	}
	if !r.CheckLocal() {
		if err := os.MkdirAll(filepath.Dir(r.LocalPath()), 0o755); err != nil {
			return errors.Wrap(err, "create clone parent dir")
		}
		if err := r.Get(); err != nil {
			return errors.Wrapf(err, "clone %s", url)
		}
	}
	if _, err := r.RunFromDir("git", "fetch", "--prune", "origin",
		"+refs/heads/*:refs/remotes/cache/heads/*",
		"+refs/tags/*:refs/remotes/cache/tags/*"); err != nil {
		return errors.Wrapf(err, "fetch %s", url)
	}
	return nil
}

// ResolveRev resolves rev against url's cache: first as a cached
// remote branch or tag ref, then as a literal object already present
// locally; if neither works, it fetches once and retries both. Two
// failed lookups raise RevNotFound, per spec.md §4.8.
func (s *Store) ResolveRev(ctx context.Context, url, rev string) (treeSHA1, commitSHA1 string, isBranch bool, err error) {
	r, err := s.repo(url)
	if err != nil {
		return "", "", false, err
	}
	if !r.CheckLocal() {
		if err := s.Fetch(ctx, url); err != nil {
			return "", "", false, err
		}
	}

	if t, c, branch, ok := s.lookup(r, rev); ok {
		return t, c, branch, nil
	}

	if err := s.Fetch(ctx, url); err != nil {
		return "", "", false, err
	}
	if t, c, branch, ok := s.lookup(r, rev); ok {
		return t, c, branch, nil
	}

	return "", "", false, depoterr.RevNotFound(url, rev)
}

// lookup tries rev as a cached branch ref, a cached tag ref, then a
// literal object (full or abbreviated commit SHA, or a tag name not
// mirrored under cache/tags for some reason).
func (s *Store) lookup(r *vcs.GitRepo, rev string) (treeSHA1, commitSHA1 string, isBranch, ok bool) {
	candidates := []struct {
		ref    string
		branch bool
	}{
		{"refs/remotes/cache/heads/" + rev, true},
		{"refs/remotes/cache/tags/" + rev, false},
		{rev, false},
	}
	for _, c := range candidates {
		commit, err := r.RunFromDir("git", "rev-parse", "--verify", c.ref+"^{commit}")
		if err != nil {
			continue
		}
		tree, err := r.RunFromDir("git", "rev-parse", "--verify", c.ref+"^{tree}")
		if err != nil {
			continue
		}
		return strings.TrimSpace(string(tree)), strings.TrimSpace(string(commit)), c.branch, true
	}
	return "", "", false, false
}

// CheckoutTree materializes treeSHA1 into destdir without disturbing
// the clone's own working state, using a throwaway index file the way
// a detached `git archive`-style export would, since the vendored
// vcs.GitRepo has no tree-only export primitive of its own.
func (s *Store) CheckoutTree(ctx context.Context, url, treeSHA1, destdir string) error {
	r, err := s.repo(url)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(destdir, 0o755); err != nil {
		return errors.Wrap(err, "create checkout destination")
	}

	tmpIndex, err := os.CreateTemp("", "depot-index-*")
	if err != nil {
		return errors.Wrap(err, "create temp git index")
	}
	tmpIndex.Close()
	os.Remove(tmpIndex.Name())
	defer os.Remove(tmpIndex.Name())

	gitDir := filepath.Join(r.LocalPath(), ".git")
	env := append(os.Environ(), "GIT_INDEX_FILE="+tmpIndex.Name())

	read := exec.CommandContext(ctx, "git", "--git-dir="+gitDir, "read-tree", treeSHA1)
	read.Env = env
	if out, err := read.CombinedOutput(); err != nil {
		return errors.Wrapf(err, "read-tree %s: %s", treeSHA1, out)
	}

	prefix := destdir
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	checkout := exec.CommandContext(ctx, "git", "--git-dir="+gitDir, "checkout-index",
		"-a", "-f", "--prefix="+prefix)
	checkout.Env = env
	checkout.Dir = r.LocalPath()
	if out, err := checkout.CombinedOutput(); err != nil {
		return errors.Wrapf(err, "checkout-index %s: %s", treeSHA1, out)
	}
	return nil
}
