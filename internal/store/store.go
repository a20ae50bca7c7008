// Package store is depot's content-addressed package install tree:
// materialize a checked-out or extracted package into
// "<depot>/packages/<name>/<slug>" atomically, idempotent on repeat
// installs. Grounded on golang-dep/txn_writer.go's temp-then-rename
// transaction pattern and fs.go's renameWithFallback/CopyDir for the
// cross-filesystem case.
package store

import (
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	"github.com/pkg/errors"

	"github.com/depotpm/depot/pkg/duid"
)

// Store is a package install tree rooted at Root.
type Store struct {
	Root string
}

// New returns a Store rooted at root (conventionally
// "<depot>/packages").
func New(root string) *Store { return &Store{Root: root} }

// slug is the (uuid, tree-sha1) encoding of a package's install
// directory name. The long form is current and is always written;
// the short form is a legacy width some installs on disk may still
// use, and is only ever probed on read (DESIGN.md's resolution of
// spec.md §9's open question on slug width).
func slug(id duid.ID, treeSHA1 string, short bool) string {
	idStr := strings.ReplaceAll(id.String(), "-", "")
	if short {
		n := 8
		if len(treeSHA1) < n {
			n = len(treeSHA1)
		}
		return idStr[:8] + "-" + treeSHA1[:n]
	}
	return idStr + "-" + treeSHA1
}

// Path returns the canonical (current-width) install path for
// (name, uuid, tree-sha1).
func (s *Store) Path(name string, id duid.ID, treeSHA1 string) string {
	return filepath.Join(s.Root, name, slug(id, treeSHA1, false))
}

// Installed reports whether (name, uuid, tree-sha1) is already
// installed, probing both slug widths, and returns the path actually
// found.
func (s *Store) Installed(name string, id duid.ID, treeSHA1 string) (string, bool) {
	for _, short := range []bool{false, true} {
		p := filepath.Join(s.Root, name, slug(id, treeSHA1, short))
		if fi, err := os.Stat(p); err == nil && fi.IsDir() {
			return p, true
		}
	}
	return "", false
}

// Install materializes srcDir — already checked out or extracted and
// hash-verified by the caller — into the canonical install path via a
// rename, idempotent if the destination already exists and tolerant
// of a concurrent installer winning the race (spec.md §4.10 step 3:
// on a losing rename, discard the temp copy and use the winner's).
func (s *Store) Install(name string, id duid.ID, treeSHA1, srcDir string) (string, error) {
	if p, ok := s.Installed(name, id, treeSHA1); ok {
		os.RemoveAll(srcDir)
		return p, nil
	}

	dest := s.Path(name, id, treeSHA1)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", errors.Wrap(err, "create package parent dir")
	}

	if err := renameWithFallback(srcDir, dest); err != nil {
		if isDir(dest) {
			os.RemoveAll(srcDir)
			return dest, nil
		}
		return "", errors.Wrapf(err, "install %s into %s", name, dest)
	}
	return dest, nil
}

func isDir(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && fi.IsDir()
}

// renameWithFallback mirrors golang-dep's fs.go: prefer an atomic
// os.Rename, falling back to a recursive copy-then-remove across
// filesystem boundaries (EXDEV) or on Windows, which cannot rename a
// directory onto another volume either.
func renameWithFallback(src, dest string) error {
	fi, err := os.Lstat(src)
	if err != nil {
		return err
	}

	if runtime.GOOS == "windows" && fi.IsDir() {
		if err := copyDir(src, dest); err != nil {
			return err
		}
		return os.RemoveAll(src)
	}

	err = os.Rename(src, dest)
	if err == nil {
		return nil
	}

	lerr, ok := err.(*os.LinkError)
	if !ok || lerr.Err != syscall.EXDEV {
		return err
	}
	if err := copyDir(src, dest); err != nil {
		return err
	}
	return os.RemoveAll(src)
}

func copyDir(src, dest string) error {
	fi, err := os.Lstat(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dest, fi.Mode()); err != nil {
		return err
	}

	dir, err := os.Open(src)
	if err != nil {
		return err
	}
	defer dir.Close()

	entries, err := dir.Readdir(-1)
	if err != nil {
		return err
	}

	for _, e := range entries {
		if e.Mode()&os.ModeSymlink != 0 {
			continue
		}
		sp := filepath.Join(src, e.Name())
		dp := filepath.Join(dest, e.Name())
		if e.IsDir() {
			if err := copyDir(sp, dp); err != nil {
				return err
			}
			continue
		}
		if err := copyFile(sp, dp, e.Mode()); err != nil {
			return err
		}
	}
	return nil
}

// copyFile copies a file from src to dest with its permission bits
// preserved.
func copyFile(src, dest string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dest, os.O_RDWR|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}
