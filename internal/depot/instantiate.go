package depot

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/depotpm/depot/internal/artifact"
	"github.com/depotpm/depot/internal/depoterr"
	"github.com/depotpm/depot/internal/gitstore"
	"github.com/depotpm/depot/internal/manifest"
	"github.com/depotpm/depot/internal/registry"
	"github.com/depotpm/depot/internal/store"
	"github.com/depotpm/depot/pkg/duid"
)

// Stores bundles the on-disk caches Instantiate materializes resolved
// packages through: a git clone cache, a downloaded-artifact cache,
// and the content-addressed package install tree. Grounded on
// spec.md §4.8-§4.10, rooted at DEPOT_PATH/clones, DEPOT_PATH/artifacts,
// and DEPOT_PATH/packages respectively.
type Stores struct {
	Git       *gitstore.Store
	Artifacts *artifact.Cache
	Packages  *store.Store
}

// OpenStores opens the three install-pipeline stores rooted under the
// first DEPOT_PATH entry (the conventional write target, the way
// golang-dep always writes through its single GOPATH cache).
func OpenStores(cfg Config) (*Stores, error) {
	if len(cfg.DepotPath) == 0 {
		return nil, errors.New("DEPOT_PATH is empty; nowhere to materialize packages")
	}
	root := cfg.DepotPath[0]

	ac, err := artifact.Open(filepath.Join(root, "artifacts"), cfg.Concurrency)
	if err != nil {
		return nil, err
	}
	return &Stores{
		Git:       gitstore.New(filepath.Join(root, "clones")),
		Artifacts: ac,
		Packages:  store.New(filepath.Join(root, "packages")),
	}, nil
}

// Close releases anything OpenStores opened.
func (s *Stores) Close() error {
	if s.Artifacts != nil {
		return s.Artifacts.Close()
	}
	return nil
}

// locationless reports whether e names no install source at all,
// the shape every stdlib or not-yet-resolved entry has.
func locationless(e *manifest.ManifestEntry) bool {
	return e.ContentHash == "" && e.Path == "" && e.RepoURL == ""
}

func isHTTPURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// Instantiate materializes every Manifest entry that names an install
// source into Stores.Packages, skipping entries already installed,
// dev-path entries used directly off disk, and stdlib entries with
// nothing to fetch. Per spec.md §4.11, OFFLINE forbids any operation
// that would need the network; already-installed entries still
// succeed under OFFLINE.
func (c *Context) Instantiate(ctx context.Context, s *Stores) error {
	for id, e := range c.Manifest.Entries {
		if err := c.instantiateOne(ctx, s, id, e); err != nil {
			return errors.Wrapf(err, "instantiate %s", e.Name)
		}
	}
	return nil
}

func (c *Context) instantiateOne(ctx context.Context, s *Stores, id duid.ID, e *manifest.ManifestEntry) error {
	switch {
	case e.Path != "", locationless(e):
		return nil

	case e.ContentHash != "":
		return c.instantiateTree(ctx, s, id, e, e.ContentHash, c.repoURLFor(id, e))

	case e.RepoURL != "" && !isHTTPURL(e.RepoURL):
		if c.Config.Offline {
			return depoterr.NetworkRequired("instantiate " + e.Name)
		}
		treeSHA1, _, _, err := s.Git.ResolveRev(ctx, e.RepoURL, e.RepoRev)
		if err != nil {
			return err
		}
		return c.instantiateTree(ctx, s, id, e, treeSHA1, e.RepoURL)

	case e.RepoURL != "" && isHTTPURL(e.RepoURL):
		return c.instantiateArchive(ctx, s, id, e)
	}
	return nil
}

// repoURLFor falls back to the entry's registry Package.RepoURL when
// the manifest entry itself carries no repo descriptor (the common
// case for a plain registry-resolved dependency).
func (c *Context) repoURLFor(id duid.ID, e *manifest.ManifestEntry) string {
	if e.RepoURL != "" {
		return e.RepoURL
	}
	if pkg, ok := registry.Lookup(c.Registries, id); ok {
		return pkg.RepoURL
	}
	return ""
}

func (c *Context) instantiateTree(ctx context.Context, s *Stores, id duid.ID, e *manifest.ManifestEntry, treeSHA1, repoURL string) error {
	if _, ok := s.Packages.Installed(e.Name, id, treeSHA1); ok {
		return nil
	}
	if repoURL == "" {
		return errors.Errorf("%s: no repo URL to materialize git-tree-sha1 %s", e.Name, treeSHA1)
	}
	if c.Config.Offline {
		return depoterr.NetworkRequired("instantiate " + e.Name)
	}

	tmp, err := os.MkdirTemp("", "depot-checkout-")
	if err != nil {
		return errors.Wrap(err, "create checkout temp dir")
	}
	if err := s.Git.Fetch(ctx, repoURL); err != nil {
		os.RemoveAll(tmp)
		return err
	}
	if err := s.Git.CheckoutTree(ctx, repoURL, treeSHA1, tmp); err != nil {
		os.RemoveAll(tmp)
		return err
	}
	if _, err := s.Packages.Install(e.Name, id, treeSHA1, tmp); err != nil {
		return err
	}
	if c.Log != nil {
		c.Log.LogDepotfln("installed %s@%s", e.Name, treeSHA1[:min(len(treeSHA1), 8)])
	}
	return nil
}

// instantiateArchive handles an entry whose repo descriptor is a
// plain downloadable archive rather than a git remote: fetched
// through the artifact cache and extracted into the package store.
// An entry with a ContentHash takes the git route in instantiateOne,
// so ContentHash is always empty here: the download is not verified
// against any hash, and the install is keyed by the UUID alone, so an
// entry already installed this way is not fetched again.
func (c *Context) instantiateArchive(ctx context.Context, s *Stores, id duid.ID, e *manifest.ManifestEntry) error {
	if _, ok := s.Packages.Installed(e.Name, id, e.ContentHash); ok {
		return nil
	}
	if c.Config.Offline {
		return depoterr.NetworkRequired("instantiate " + e.Name)
	}

	path, err := s.Artifacts.Fetch(ctx, e.RepoURL, e.ContentHash)
	if err != nil {
		return err
	}

	tmp, err := os.MkdirTemp("", "depot-extract-")
	if err != nil {
		return errors.Wrap(err, "create extract temp dir")
	}
	if err := extractTarGz(path, tmp); err != nil {
		os.RemoveAll(tmp)
		return errors.Wrapf(err, "extract %s", path)
	}
	if _, err := s.Packages.Install(e.Name, id, e.ContentHash, tmp); err != nil {
		return err
	}
	return nil
}

// extractTarGz extracts a gzip-compressed tar archive into dest.
// Using the standard library here is deliberate: none of the
// retrieved example repos import a third-party archive library, and
// archive/tar plus compress/gzip are already the idiomatic choice for
// this exact format.
func extractTarGz(archivePath, dest string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return err
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		target := filepath.Join(dest, filepath.Clean(hdr.Name))
		if !strings.HasPrefix(target, filepath.Clean(dest)+string(filepath.Separator)) {
			return errors.Errorf("archive entry %q escapes extraction root", hdr.Name)
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			out, err := os.OpenFile(target, os.O_RDWR|os.O_CREATE|os.O_TRUNC, os.FileMode(hdr.Mode))
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return err
			}
			out.Close()
		}
	}
}
