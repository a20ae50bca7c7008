// Package artifact is depot's SHA-256-addressed download cache: a
// single bolt-backed index mapping a source URL to the local path
// holding its verified content, fetched with a bounded worker pool.
// Grounded on golang-dep/internal/gps/source_cache_bolt.go's boltCache
// (a single *bolt.DB as a persistent index opened once per process),
// substituting the maintained go.etcd.io/bbolt fork for the archived
// boltdb/bolt the teacher vendors (see DESIGN.md).
package artifact

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
	"golang.org/x/sync/errgroup"

	"github.com/depotpm/depot/internal/depoterr"
)

var indexBucket = []byte("artifacts")

// Cache is a download cache rooted at Root, indexed by a single bolt
// database file.
type Cache struct {
	Root        string
	Concurrency int
	Client      *http.Client

	db *bolt.DB
}

// Open opens (creating if absent) the cache index under root. A
// concurrency of 0 or less defaults to 8, matching spec.md §6's
// default worker-pool size.
func Open(root string, concurrency int) (*Cache, error) {
	if concurrency <= 0 {
		concurrency = 8
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrap(err, "create artifact cache dir")
	}
	db, err := bolt.Open(filepath.Join(root, "index.db"), 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrap(err, "open artifact cache index")
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(indexBucket)
		return err
	}); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "init artifact cache bucket")
	}
	return &Cache{Root: root, Concurrency: concurrency, Client: http.DefaultClient, db: db}, nil
}

// Close closes the underlying index.
func (c *Cache) Close() error { return c.db.Close() }

// pathFor is the deterministic destination for url: a two-hex-digit
// shard directory (so no single directory grows unbounded) plus a
// digest-qualified basename, so two URLs sharing a basename never
// collide.
func (c *Cache) pathFor(url string) string {
	sum := sha256.Sum256([]byte(url))
	digest := hex.EncodeToString(sum[:])
	base := filepath.Base(url)
	if base == "" || base == "." || base == string(filepath.Separator) {
		base = "artifact"
	}
	return filepath.Join(c.Root, digest[:2], digest+"-"+base)
}

func (c *Cache) cachedPath(url string) (string, bool) {
	var path string
	c.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(indexBucket).Get([]byte(url)); v != nil {
			path = string(v)
		}
		return nil
	})
	if path == "" {
		return "", false
	}
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	return path, true
}

func (c *Cache) record(url, path string) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(indexBucket).Put([]byte(url), []byte(path))
	})
}

func (c *Cache) forget(url string) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(indexBucket).Delete([]byte(url))
	})
}

// Fetch returns the local path holding url's content, downloading (or
// re-downloading) it if absent or if expectedSHA256 no longer
// matches. A mismatch after a fresh download is retried exactly once
// before returning a HashMismatch error, per spec.md §4.9 invariant 7.
// An empty expectedSHA256 skips verification entirely.
func (c *Cache) Fetch(ctx context.Context, url, expectedSHA256 string) (string, error) {
	if path, ok := c.cachedPath(url); ok {
		if expectedSHA256 == "" {
			return path, nil
		}
		if actual, err := sha256File(path); err == nil && actual == expectedSHA256 {
			return path, nil
		}
		os.Remove(path)
		c.forget(url)
	}

	path := c.pathFor(url)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", errors.Wrap(err, "create artifact shard dir")
	}

	var lastActual string
	for attempt := 0; attempt < 2; attempt++ {
		if err := c.download(ctx, url, path); err != nil {
			return "", err
		}
		if expectedSHA256 == "" {
			if err := c.record(url, path); err != nil {
				return "", err
			}
			return path, nil
		}
		actual, err := sha256File(path)
		if err != nil {
			return "", errors.Wrap(err, "hash downloaded artifact")
		}
		if actual == expectedSHA256 {
			if err := c.record(url, path); err != nil {
				return "", err
			}
			return path, nil
		}
		lastActual = actual
		os.Remove(path)
	}
	return "", depoterr.HashMismatch(url, expectedSHA256, lastActual)
}

func (c *Cache) download(ctx context.Context, url, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.Wrap(err, "build download request")
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return depoterr.Interrupted()
		}
		return errors.Wrapf(err, "download %s", url)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("download %s: unexpected status %s", url, resp.Status)
	}

	tmp := destPath + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return errors.Wrap(err, "create temp download file")
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(tmp)
		if ctx.Err() != nil {
			return depoterr.Interrupted()
		}
		return errors.Wrapf(err, "write %s", url)
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, "close temp download file")
	}
	if err := os.Rename(tmp, destPath); err != nil {
		os.Remove(tmp)
		return errors.Wrap(err, "rename downloaded artifact into place")
	}
	return nil
}

func sha256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Task is one requested download for FetchAll.
type Task struct {
	URL    string
	SHA256 string
}

// Result pairs a Task with its outcome. Err is non-nil exactly when
// the artifact could not be made available; per spec.md §7, a single
// artifact failure is reported back to the caller rather than
// aborting every other in-flight download.
type Result struct {
	Task Task
	Path string
	Err  error
}

// FetchAll runs Fetch over every task with bounded concurrency
// (Cache.Concurrency workers at most), preserving the input order in
// the returned slice.
func (c *Cache) FetchAll(ctx context.Context, tasks []Task) []Result {
	results := make([]Result, len(tasks))
	sem := make(chan struct{}, c.Concurrency)
	var g errgroup.Group
	for i, t := range tasks {
		i, t := i, t
		g.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()
			path, err := c.Fetch(ctx, t.URL, t.SHA256)
			results[i] = Result{Task: t, Path: path, Err: err}
			return nil
		})
	}
	g.Wait()
	return results
}
