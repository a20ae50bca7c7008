package depot

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/depotpm/depot/internal/depoterr"
	"github.com/depotpm/depot/internal/logutil"
	"github.com/depotpm/depot/internal/manifest"
	"github.com/depotpm/depot/internal/registry"
	"github.com/depotpm/depot/internal/resolve"
	"github.com/depotpm/depot/internal/stdlib"
	"github.com/depotpm/depot/pkg/duid"
	"github.com/depotpm/depot/pkg/semver"
)

// Context bundles everything a single depot operation needs: the
// resolved Project/Manifest paths and their in-memory form, the
// reachable registries, the effective stdlib map, the target
// host-language version, a user agent for disambiguation, a log
// sink, and the preview flag. Grounded on golang-dep's Ctx/Project
// pairing in context.go.
type Context struct {
	Config Config

	ProjectPath  string
	ManifestPath string
	Project      *manifest.Project
	Manifest     *manifest.Manifest

	Registries  []*registry.Registry
	Stdlib      *stdlib.Table
	HostVersion *semver.Version

	Agent   UserAgent
	Log     *logutil.Logger
	Preview bool
}

// findProjectRoot searches every LOAD_PATH entry first, then walks
// upward from startDir looking for a Project.toml, the way
// golang-dep's findProjectRootFromWD walks up for a manifest.
func findProjectRoot(startDir string, loadPath []string) (string, error) {
	for _, dir := range loadPath {
		if _, err := os.Stat(filepath.Join(dir, manifest.ProjectFileName)); err == nil {
			return dir, nil
		}
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", errors.Wrap(err, "resolve absolute start directory")
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, manifest.ProjectFileName)); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.Errorf("no %s found above %s", manifest.ProjectFileName, startDir)
		}
		dir = parent
	}
}

// NewContext loads (or initializes, if none exists yet) the
// Project/Manifest rooted at startDir or the first LOAD_PATH entry
// that has one, and scans DEPOT_PATH for reachable registries.
func NewContext(startDir string, agent UserAgent, log *logutil.Logger) (*Context, error) {
	cfg := LoadConfig()

	root, err := findProjectRoot(startDir, cfg.LoadPath)
	if err != nil {
		root, err = filepath.Abs(startDir)
		if err != nil {
			return nil, err
		}
	}

	c := &Context{
		Config:       cfg,
		ProjectPath:  filepath.Join(root, manifest.ProjectFileName),
		ManifestPath: filepath.Join(root, manifest.ManifestFileName),
		Stdlib:       stdlib.New(),
		Agent:        agent,
		Log:          log,
	}

	switch data, err := os.ReadFile(c.ProjectPath); {
	case err == nil:
		p, err := manifest.ParseProject(data)
		if err != nil {
			return nil, errors.Wrapf(err, "parse %s", c.ProjectPath)
		}
		c.Project = p
	case os.IsNotExist(err):
		c.Project = manifest.New()
	default:
		return nil, errors.Wrapf(err, "read %s", c.ProjectPath)
	}

	switch data, err := os.ReadFile(c.ManifestPath); {
	case err == nil:
		m, err := manifest.ParseManifest(data)
		if err != nil {
			return nil, errors.Wrapf(err, "parse %s", c.ManifestPath)
		}
		c.Manifest = m
		c.HostVersion = m.HostVersion
	case os.IsNotExist(err):
		c.Manifest = manifest.New()
	default:
		return nil, errors.Wrapf(err, "read %s", c.ManifestPath)
	}

	regs, err := registry.ReachableRegistries(cfg.DepotPath)
	if err != nil {
		return nil, errors.Wrap(err, "scan reachable registries")
	}
	c.Registries = regs

	return c, nil
}

// Save atomically rewrites Project and Manifest: everything new is
// written to a temp dir first, then each destination is backed up and
// replaced in turn; on any failure every backup is restored so the
// on-disk state is left exactly as it was, per spec.md §4.11 and
// golang-dep's txn_writer.go SafeWriter.Write. A no-op under preview.
func (c *Context) Save() error {
	if c.Preview {
		return nil
	}

	projData, err := c.Project.Encode()
	if err != nil {
		return errors.Wrap(err, "encode project")
	}
	manData, err := c.Manifest.Encode()
	if err != nil {
		return errors.Wrap(err, "encode manifest")
	}

	td, err := os.MkdirTemp("", "depot-save-")
	if err != nil {
		return errors.Wrap(err, "create temp save dir")
	}
	defer os.RemoveAll(td)

	tmpProj := filepath.Join(td, manifest.ProjectFileName)
	tmpMan := filepath.Join(td, manifest.ManifestFileName)
	if err := os.WriteFile(tmpProj, projData, 0o644); err != nil {
		return errors.Wrap(err, "write temp project")
	}
	if err := os.WriteFile(tmpMan, manData, 0o644); err != nil {
		return errors.Wrap(err, "write temp manifest")
	}

	type pathpair = struct{ from, to string }
	var restore []pathpair

	commit := func(tmp, dest string) error {
		if _, err := os.Stat(dest); err == nil {
			bak := dest + ".depot-orig"
			if err := os.Rename(dest, bak); err != nil {
				return err
			}
			restore = append(restore, pathpair{from: bak, to: dest})
		} else {
			// no prior file: rollback removes dest instead of restoring it
			restore = append(restore, pathpair{to: dest})
		}
		return os.Rename(tmp, dest)
	}

	if err := commit(tmpProj, c.ProjectPath); err != nil {
		c.rollback(restore)
		return errors.Wrap(err, "save project")
	}
	if err := commit(tmpMan, c.ManifestPath); err != nil {
		c.rollback(restore)
		return errors.Wrap(err, "save manifest")
	}

	for _, pair := range restore {
		if pair.from != "" {
			os.Remove(pair.from)
		}
	}
	return nil
}

func (c *Context) rollback(restore []struct{ from, to string }) {
	for _, pair := range restore {
		if pair.from == "" {
			os.Remove(pair.to)
			continue
		}
		os.Rename(pair.from, pair.to)
	}
}

// ResolveNameOrUUID implements spec.md §4.7's disambiguation order:
// the Project's own self-identity, its direct deps, its extras, the
// current Manifest, the effective stdlib map, then the registry
// (soliciting Agent when more than one registry UUID matches).
func (c *Context) ResolveNameOrUUID(name string) (duid.ID, error) {
	if c.Project.HasSelf && c.Project.SelfName == name {
		return c.Project.SelfUUID, nil
	}
	if id, ok := c.Project.Deps[name]; ok {
		return id, nil
	}
	if id, ok := c.Project.Extras[name]; ok {
		return id, nil
	}
	for id, e := range c.Manifest.Entries {
		if e.Name == name {
			return id, nil
		}
	}
	for id, e := range c.Stdlib.EffectiveMap(c.HostVersion) {
		if e.Name == name {
			return id, nil
		}
	}

	ids := registry.RegisteredUUIDs(c.Registries, name)
	switch len(ids) {
	case 0:
		return duid.ID{}, errors.Errorf("no registered package named %q", name)
	case 1:
		return ids[0], nil
	default:
		strs := make([]string, len(ids))
		for i, id := range ids {
			strs[i] = id.String()
		}
		if c.Agent == nil {
			return duid.ID{}, depoterr.AmbiguousPackage(name, strs)
		}
		chosen, err := c.Agent.ChoosePackage(name, strs)
		if err != nil {
			return duid.ID{}, err
		}
		return duid.Parse(chosen)
	}
}

func (c *Context) newResolver() *resolve.Resolver {
	return &resolve.Resolver{
		Registries:  c.Registries,
		HostVersion: c.HostVersion,
		Stdlib:      c.Stdlib,
		Manifest:    c.Manifest,
	}
}

func (c *Context) directRequests() []resolve.Request {
	var reqs []resolve.Request
	add := func(name string, id duid.ID) {
		spec, _ := c.Project.CompatSpec(name)
		reqs = append(reqs, resolve.Request{Name: name, UUID: id, Spec: spec})
	}
	for name, id := range c.Project.Deps {
		add(name, id)
	}
	for name, id := range c.Project.Extras {
		add(name, id)
	}
	return reqs
}

// Resolve re-solves the Project's full declared dependency set at the
// given preservation level, replaces Manifest with the result, prunes
// it to what's reachable from the Project's own deps/extras, and
// saves both files (all-or-nothing, per Save).
func (c *Context) Resolve(level resolve.Preservation) error {
	resolved, err := c.newResolver().Resolve(c.directRequests(), level)
	if err != nil {
		return err
	}
	c.applyResolved(resolved)
	c.pruneToProjectRoots()
	effective := c.Stdlib.EffectiveMap(c.HostVersion)
	isStdlib := func(id duid.ID) bool {
		if _, ok := effective[id]; ok {
			return true
		}
		return c.Stdlib.AlwaysStdlib(id)
	}
	if err := c.Manifest.Validate(isStdlib); err != nil {
		return err
	}
	if c.Log != nil {
		c.Log.LogDepotfln("resolved %d packages", len(c.Manifest.Entries))
	}
	return c.Save()
}

func (c *Context) applyResolved(resolved map[duid.ID]*resolve.Resolved) {
	m := manifest.New()
	m.HostVersion = c.HostVersion
	for id, r := range resolved {
		e := &manifest.ManifestEntry{
			Name:        r.Name,
			UUID:        id,
			Version:     r.Version,
			ContentHash: r.TreeSHA1,
			Deps:        r.Deps,
		}
		if old, ok := c.Manifest.Entries[id]; ok {
			e.Pinned = old.Pinned
			if e.ContentHash == "" {
				e.Path = old.Path
				e.RepoURL = old.RepoURL
				e.RepoRev = old.RepoRev
				e.RepoSubdir = old.RepoSubdir
			}
		}
		m.Entries[id] = e
	}
	c.Manifest = m
}

func (c *Context) pruneToProjectRoots() {
	var keep []duid.ID
	for _, id := range c.Project.Deps {
		keep = append(keep, id)
	}
	for _, id := range c.Project.Extras {
		keep = append(keep, id)
	}
	c.Manifest.Prune(keep)
}

// Add inserts name (resolved per §4.7) as a direct dependency,
// constrains it with spec if non-empty, and re-resolves with
// preservation `direct` so only the newly added package (and anything
// already unsatisfiable) may move.
func (c *Context) Add(name string, spec semver.Spec) error {
	id, err := c.ResolveNameOrUUID(name)
	if err != nil {
		return err
	}
	c.Project.Deps[name] = id
	if !spec.Empty() {
		c.Project.CompatRaw[name] = spec.String()
	}
	if err := c.Project.Validate(); err != nil {
		return err
	}
	return c.Resolve(resolve.Direct)
}

// Remove drops name from deps/extras/compat and re-resolves with
// preservation `all`, so removing one package never perturbs any
// other package's version, only the closure that becomes unreachable.
func (c *Context) Remove(name string) error {
	delete(c.Project.Deps, name)
	delete(c.Project.Extras, name)
	delete(c.Project.CompatRaw, name)
	return c.Resolve(resolve.All)
}

// Up re-resolves at the given preservation level, typically `semver`
// or `none`, moving already-resolved deps forward.
func (c *Context) Up(level resolve.Preservation) error {
	return c.Resolve(level)
}
