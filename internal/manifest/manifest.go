package manifest

import (
	"fmt"
	"sort"
	"strings"

	toml "github.com/pelletier/go-toml"
	"github.com/pkg/errors"

	"github.com/depotpm/depot/internal/depoterr"
	"github.com/depotpm/depot/pkg/duid"
	"github.com/depotpm/depot/pkg/semver"
)

// ManifestFileName is the conventional file name for a Manifest.
const ManifestFileName = "Manifest.toml"

// manifestHeader is written as a leading comment on every generated
// Manifest, the TOML equivalent of the teacher's machine-generated
// JSON lock file.
const manifestHeader = "# This file is machine-generated - editing it directly is not advised\n\n"

// ManifestEntry records one resolved package: its identity, the
// exactly-one-of location descriptor that materializes it, the set
// of dependency UUIDs it actually uses, and whether the resolver is
// allowed to move its version.
type ManifestEntry struct {
	Name    string
	UUID    duid.ID
	Version *semver.Version

	ContentHash string // 40-hex git tree SHA-1
	Path        string // local filesystem path

	RepoRev    string
	RepoURL    string
	RepoSubdir string

	Pinned bool
	Deps   []duid.ID
}

// locationCount returns how many of {ContentHash, Path, repo
// descriptor} are populated.
func (e *ManifestEntry) locationCount() int {
	n := 0
	if e.ContentHash != "" {
		n++
	}
	if e.Path != "" {
		n++
	}
	if e.RepoURL != "" || e.RepoRev != "" {
		n++
	}
	return n
}

// Validate enforces spec.md §4.3's ManifestEntry construction rules.
// isStdlib reports whether uuid is resolvable as a stdlib under the
// manifest's declared host-language version, used to permit entries
// with no location descriptor at all.
func (e *ManifestEntry) Validate(isStdlib func(duid.ID) bool) error {
	if (e.RepoRev != "") != (e.RepoURL != "") {
		return depoterr.InconsistentRepoDescriptor(e.Name)
	}
	if e.locationCount() > 1 {
		return depoterr.AmbiguousLocation(e.Name)
	}
	if e.locationCount() == 0 && (isStdlib == nil || !isStdlib(e.UUID)) {
		return errors.Errorf("%s: no location and not a known stdlib for this manifest's host version", e.Name)
	}
	return nil
}

// Manifest is the resolver-generated description of exactly which
// versions and source artifacts satisfy a Project.
type Manifest struct {
	HostVersion *semver.Version
	Entries     map[duid.ID]*ManifestEntry
}

// New returns an empty Manifest.
func New() *Manifest {
	return &Manifest{Entries: map[duid.ID]*ManifestEntry{}}
}

// Validate runs ManifestEntry.Validate over every entry.
func (m *Manifest) Validate(isStdlib func(duid.ID) bool) error {
	for _, e := range m.Entries {
		if err := e.Validate(isStdlib); err != nil {
			return err
		}
	}
	return nil
}

// Prune keeps only the entries reachable from keep via
// ManifestEntry.Deps, iterating to a fixed point (spec.md §4.3,
// invariant 4 in §8).
func (m *Manifest) Prune(keep []duid.ID) {
	reached := map[duid.ID]bool{}
	var visit func(duid.ID)
	visit = func(id duid.ID) {
		if reached[id] {
			return
		}
		reached[id] = true
		e, ok := m.Entries[id]
		if !ok {
			return
		}
		for _, d := range e.Deps {
			visit(d)
		}
	}
	for _, id := range keep {
		visit(id)
	}
	for id := range m.Entries {
		if !reached[id] {
			delete(m.Entries, id)
		}
	}
}

// uniqueNameIndex maps each name held by exactly one entry to that
// entry's UUID; names shared by several entries are left out. A dep
// list can use the compact name-sequence serialization only when all
// of its names are in this index.
func (m *Manifest) uniqueNameIndex() map[string]duid.ID {
	byName := map[string][]duid.ID{}
	for id, e := range m.Entries {
		byName[e.Name] = append(byName[e.Name], id)
	}
	unique := map[string]duid.ID{}
	for name, ids := range byName {
		if len(ids) == 1 {
			unique[name] = ids[0]
		}
	}
	return unique
}

// ParseManifest decodes a Manifest.toml document. Per spec.md §4.3,
// top-level keys are package names, each holding one or more entry
// tables (an array of tables, to accommodate two entries sharing a
// name); deps is accepted in either its compact name-sequence or its
// explicit name→uuid form.
func ParseManifest(data []byte) (*Manifest, error) {
	tree, err := toml.LoadBytes(data)
	if err != nil {
		return nil, errors.Wrap(err, "parse manifest toml")
	}
	m := New()

	if hv := tree.Get("julia-version"); hv != nil {
		s, ok := hv.(string)
		if !ok {
			return nil, depoterr.UnexpectedType("julia-version", "string")
		}
		v, err := semver.ParseVersion(s)
		if err != nil {
			return nil, err
		}
		m.HostVersion = &v
	}

	pendingDeps := map[duid.ID][]depRef{}

	for _, name := range tree.Keys() {
		if name == "julia-version" {
			continue
		}
		raw := tree.Get(name)
		tables, ok := raw.([]*toml.Tree)
		if !ok {
			return nil, depoterr.UnexpectedType(name, "array of tables")
		}
		for _, t := range tables {
			e, pending, err := decodeEntry(name, t)
			if err != nil {
				return nil, err
			}
			m.Entries[e.UUID] = e
			if len(pending) > 0 {
				pendingDeps[e.UUID] = pending
			}
		}
	}

	// second pass: resolve each entry's deps, accepting either a name
	// sequence (resolved against the unique-name index) or an explicit
	// name->uuid map (already captured during decode).
	unique := m.uniqueNameIndex()
	for id, pending := range pendingDeps {
		e := m.Entries[id]
		for _, d := range pending {
			if !d.uuid.Zero() {
				e.Deps = append(e.Deps, d.uuid)
				continue
			}
			resolved, ok := unique[d.name]
			if !ok {
				return nil, errors.Errorf("%s: dep %q is ambiguous by name alone in this manifest", e.Name, d.name)
			}
			e.Deps = append(e.Deps, resolved)
		}
	}

	return m, nil
}

type depRef struct {
	name string
	uuid duid.ID
}

func decodeEntry(name string, t *toml.Tree) (*ManifestEntry, []depRef, error) {
	e := &ManifestEntry{Name: name}
	var pending []depRef

	uStr, _ := t.Get("uuid").(string)
	if uStr == "" {
		return nil, nil, depoterr.InsufficientPackageKeys(name)
	}
	id, err := duid.Parse(uStr)
	if err != nil {
		return nil, nil, depoterr.BadSpec("uuid", uStr)
	}
	e.UUID = id

	if vs, ok := t.Get("version").(string); ok && vs != "" {
		v, err := semver.ParseVersion(vs)
		if err != nil {
			return nil, nil, err
		}
		e.Version = &v
	}
	if s, ok := t.Get("git-tree-sha1").(string); ok {
		e.ContentHash = s
	}
	if s, ok := t.Get("path").(string); ok {
		e.Path = s
	}
	if s, ok := t.Get("repo-rev").(string); ok {
		e.RepoRev = s
	}
	if s, ok := t.Get("repo-url").(string); ok {
		e.RepoURL = s
	}
	if s, ok := t.Get("repo-subdir").(string); ok {
		e.RepoSubdir = s
	}
	if b, ok := t.Get("pinned").(bool); ok {
		e.Pinned = b
	}

	switch depsVal := t.Get("deps").(type) {
	case nil:
		// no deps
	case []interface{}:
		for _, item := range depsVal {
			s, ok := item.(string)
			if !ok {
				return nil, nil, depoterr.UnexpectedType(name+".deps", "array of names")
			}
			pending = append(pending, depRef{name: s})
		}
	case *toml.Tree:
		for _, dname := range depsVal.Keys() {
			s, ok := depsVal.Get(dname).(string)
			if !ok {
				return nil, nil, depoterr.UnexpectedType(name+".deps."+dname, "string uuid")
			}
			id, err := duid.Parse(s)
			if err != nil {
				return nil, nil, depoterr.BadSpec("uuid", s)
			}
			pending = append(pending, depRef{name: dname, uuid: id})
		}
	default:
		return nil, nil, depoterr.UnexpectedType(name+".deps", "array of names or name->uuid table")
	}

	return e, pending, nil
}

// Encode renders the Manifest deterministically: top-level package
// keys sorted by name, within each name entries sorted by UUID, and
// a machine-generated header line, per spec.md §5's ordering
// guarantees.
func (m *Manifest) Encode() ([]byte, error) {
	var buf strings.Builder
	buf.WriteString(manifestHeader)

	if m.HostVersion != nil {
		fmt.Fprintf(&buf, "julia-version = %q\n\n", m.HostVersion.String())
	}

	unique := m.uniqueNameIndex()

	byName := map[string][]*ManifestEntry{}
	for _, e := range m.Entries {
		byName[e.Name] = append(byName[e.Name], e)
	}
	names := make([]string, 0, len(byName))
	for n := range byName {
		names = append(names, n)
	}
	sort.Strings(names)

	for _, name := range names {
		entries := byName[name]
		sort.Slice(entries, func(i, j int) bool { return entries[i].UUID.Less(entries[j].UUID) })
		for _, e := range entries {
			fmt.Fprintf(&buf, "[[%s]]\n", name)
			fmt.Fprintf(&buf, "uuid = %q\n", e.UUID.String())
			if e.Version != nil {
				fmt.Fprintf(&buf, "version = %q\n", e.Version.String())
			}
			if e.ContentHash != "" {
				fmt.Fprintf(&buf, "git-tree-sha1 = %q\n", e.ContentHash)
			}
			if e.Path != "" {
				fmt.Fprintf(&buf, "path = %q\n", e.Path)
			}
			if e.RepoURL != "" {
				fmt.Fprintf(&buf, "repo-url = %q\n", e.RepoURL)
				fmt.Fprintf(&buf, "repo-rev = %q\n", e.RepoRev)
				if e.RepoSubdir != "" {
					fmt.Fprintf(&buf, "repo-subdir = %q\n", e.RepoSubdir)
				}
			}
			if e.Pinned {
				buf.WriteString("pinned = true\n")
			}
			writeDeps(&buf, e, unique, m.Entries)
			buf.WriteString("\n")
		}
	}
	return []byte(buf.String()), nil
}

func writeDeps(buf *strings.Builder, e *ManifestEntry, unique map[string]duid.ID, all map[duid.ID]*ManifestEntry) {
	if len(e.Deps) == 0 {
		return
	}
	sorted := append([]duid.ID{}, e.Deps...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Less(sorted[j]) })

	compact := true
	names := make([]string, len(sorted))
	for i, id := range sorted {
		// compact form requires every referenced uuid to be the
		// unique entry for its own name across the whole manifest.
		found := false
		for n, u := range unique {
			if u == id {
				names[i] = n
				found = true
				break
			}
		}
		if !found {
			compact = false
			break
		}
	}

	if compact {
		fmt.Fprintf(buf, "deps = [%s]\n", quoteJoin(names))
		return
	}

	// Not every dep UUID owns its name uniquely in this manifest:
	// write the explicit name->uuid form as an inline table instead of
	// a nested array-of-tables sub-section.
	pairs := make([]string, len(sorted))
	for i, id := range sorted {
		n := id.String()
		if dep, ok := all[id]; ok {
			n = dep.Name
		}
		pairs[i] = fmt.Sprintf("%q = %q", n, id.String())
	}
	fmt.Fprintf(buf, "deps = { %s }\n", strings.Join(pairs, ", "))
}

func quoteJoin(names []string) string {
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = fmt.Sprintf("%q", n)
	}
	return strings.Join(parts, ", ")
}
