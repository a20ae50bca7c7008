// Package resolve implements depot's dependency resolver: given a set
// of direct constraints, a preservation level, the reachable
// registries and the effective stdlib map, it searches for a
// consistent assignment of one concrete version per reachable
// package. Grounded on golang-dep's solver.go (the backtracking
// search loop) and version_queue.go (the per-package descending-
// version cursor with rollback); the solver<->SourceManager
// indirection there is mirrored here as Resolver<->registry lookups.
package resolve

import (
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/depotpm/depot/internal/depoterr"
	"github.com/depotpm/depot/internal/manifest"
	"github.com/depotpm/depot/internal/registry"
	"github.com/depotpm/depot/internal/stdlib"
	"github.com/depotpm/depot/pkg/duid"
	"github.com/depotpm/depot/pkg/semver"
)

// Preservation is how much of the previous Manifest a resolve is
// permitted to perturb, ordered strictest to loosest.
type Preservation string

const (
	All     Preservation = "all"
	Direct  Preservation = "direct"
	Semver  Preservation = "semver"
	None    Preservation = "none"
	Tiered  Preservation = "tiered"
)

var tierOrder = []Preservation{All, Direct, Semver, None}

// Request is one direct dependency constraint, by name (resolved to a
// UUID via §4.7's disambiguation order) with an optional SemverSpec.
type Request struct {
	Name string
	UUID duid.ID
	Spec semver.Spec
}

// Resolved is one package's outcome: the concrete version chosen and
// its content hash at that version (from the registry's Versions
// table).
type Resolved struct {
	UUID      duid.ID
	Name      string
	Version   *semver.Version
	TreeSHA1  string
	Deps      []duid.ID
}

// Resolver ties together the inputs described in spec.md §4.6.
type Resolver struct {
	Registries  []*registry.Registry
	HostVersion *semver.Version
	Stdlib      *stdlib.Table
	Manifest    *manifest.Manifest
}

// Resolve runs the resolver at the given preservation level (or all
// tiers in order for Tiered) against direct requests, returning one
// Resolved entry per reachable package.
func (r *Resolver) Resolve(direct []Request, level Preservation) (map[duid.ID]*Resolved, error) {
	tiers := []Preservation{level}
	if level == Tiered {
		tiers = tierOrder
	}

	var lastErr error
	for _, tier := range tiers {
		out, err := r.resolveAt(direct, tier)
		if err == nil {
			return out, nil
		}
		lastErr = err
	}
	summary := "no preservation tier produced a consistent assignment"
	if lastErr != nil {
		summary = lastErr.Error()
	}
	return nil, depoterr.Unsatisfiable(summary, string(tiers[len(tiers)-1]))
}

// resolveAt runs a single backtracking search at one preservation
// level.
func (r *Resolver) resolveAt(direct []Request, level Preservation) (map[duid.ID]*Resolved, error) {
	stdlibMap := r.Stdlib.EffectiveMap(r.HostVersion)

	s := &search{
		r:         r,
		level:     level,
		stdlib:    stdlibMap,
		assigned:  map[duid.ID]semver.Version{},
		compat:    map[duid.ID]semver.Spec{},
		candCache: map[duid.ID][]semver.Version{},
		nameOf:    map[duid.ID]string{},
		direct:    map[duid.ID]bool{},
	}

	roots := map[duid.ID]bool{}
	for _, d := range direct {
		id := d.UUID
		if id.Zero() {
			resolved, err := s.resolveName(d.Name)
			if err != nil {
				return nil, err
			}
			id = resolved
		}
		roots[id] = true
		s.direct[id] = true
		s.nameOf[id] = d.Name
		if !d.Spec.Empty() {
			s.compat[id] = d.Spec
		}
	}
	if r.Manifest != nil {
		for id, e := range r.Manifest.Entries {
			roots[id] = true
			s.nameOf[id] = e.Name
		}
	}

	order := make([]duid.ID, 0, len(roots))
	for id := range roots {
		order = append(order, id)
	}
	sort.Slice(order, func(i, j int) bool { return order[i].Less(order[j]) })

	if !s.assign(order, 0) {
		return nil, fmt.Errorf("unsatisfiable at preservation level %q: %s", level, s.conflict)
	}

	out := map[duid.ID]*Resolved{}
	for id, v := range s.assigned {
		vv := v
		deps := s.depsOf(id, v)
		sha, _ := s.treeSHA1(id, v)
		out[id] = &Resolved{UUID: id, Name: s.nameOf[id], Version: &vv, TreeSHA1: sha, Deps: deps}
	}
	for id, e := range stdlibMap {
		_ = e
		if _, ok := out[id]; !ok {
			ver := stdlibMap[id].Version
			out[id] = &Resolved{UUID: id, Name: stdlibMap[id].Name, Version: ver}
		}
	}
	return out, nil
}

// search is the mutable state of one backtracking attempt.
type search struct {
	r      *Resolver
	level  Preservation
	stdlib map[duid.ID]stdlib.Entry

	assigned  map[duid.ID]semver.Version
	compat    map[duid.ID]semver.Spec // accumulated constraints per package
	candCache map[duid.ID][]semver.Version
	nameOf    map[duid.ID]string
	direct    map[duid.ID]bool // explicitly requested, as opposed to pulled in transitively
	conflict  string
}

func (s *search) resolveName(name string) (duid.ID, error) {
	ids := registry.RegisteredUUIDs(s.r.Registries, name)
	switch len(ids) {
	case 0:
		return duid.ID{}, fmt.Errorf("no registered package named %q", name)
	case 1:
		return ids[0], nil
	default:
		strs := make([]string, len(ids))
		for i, id := range ids {
			strs[i] = id.String()
		}
		return duid.ID{}, depoterr.AmbiguousPackage(name, strs)
	}
}

// assign tries to give every package in order (and everything they
// transitively require) a concrete version, backtracking on failure.
func (s *search) assign(order []duid.ID, i int) bool {
	if i >= len(order) {
		return true
	}
	id := order[i]
	if _, ok := s.assigned[id]; ok {
		return s.assign(order, i+1)
	}
	if e, ok := s.stdlib[id]; ok {
		_ = e
		return s.assign(order, i+1) // stdlib packages contribute no free choice
	}

	savedCompat := cloneCompat(s.compat)

	for _, v := range s.candidates(id) {
		if !s.satisfiesCompat(id, v) {
			continue
		}
		s.assigned[id] = v
		depNames, err := s.depsAt(id, v)
		if err != nil {
			delete(s.assigned, id)
			continue
		}
		extended := append([]duid.ID{}, order...)
		ok := true
		for depName, depUUIDStr := range depNames {
			depID, err := duid.Parse(depUUIDStr)
			if err != nil {
				ok = false
				break
			}
			s.nameOf[depID] = depName
			if !s.addCompat(id, v, depID) {
				ok = false
				break
			}
			found := false
			for _, existing := range extended {
				if existing == depID {
					found = true
					break
				}
			}
			if !found {
				extended = append(extended, depID)
			}
		}
		if ok && s.assign(extended, i+1) {
			return true
		}
		delete(s.assigned, id)
		s.compat = cloneCompat(savedCompat)
	}
	s.conflict = fmt.Sprintf("no version of %s satisfies its constraints", s.nameOf[id])
	return false
}

// cloneCompat shallow-copies the running per-package constraint map,
// so a failed candidate's compat-narrowing can be undone on
// backtrack without affecting sibling branches.
func cloneCompat(m map[duid.ID]semver.Spec) map[duid.ID]semver.Spec {
	out := make(map[duid.ID]semver.Spec, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// addCompat intersects dep's running constraint with parent@v's
// compat entry for dep, returning false if the result is empty.
func (s *search) addCompat(parent duid.ID, v semver.Version, dep duid.ID) bool {
	compatMap, err := s.compatAt(parent, v)
	if err != nil {
		return true
	}
	depName := s.nameOf[dep]
	raw, ok := compatMap[depName]
	if !ok {
		return true
	}
	spec, err := semver.ParseSpec(raw)
	if err != nil {
		return false
	}
	existing, ok := s.compat[dep]
	if !ok {
		s.compat[dep] = spec
		return true
	}
	merged := semver.Intersect(existing, spec)
	if merged.Empty() {
		return false
	}
	s.compat[dep] = merged
	return true
}

func (s *search) satisfiesCompat(id duid.ID, v semver.Version) bool {
	spec, ok := s.compat[id]
	if !ok {
		return true
	}
	return spec.Contains(v)
}

// candidates returns id's candidate versions for this preservation
// level, newest first, honoring pinned manifest entries and the
// level's restriction.
func (s *search) candidates(id duid.ID) []semver.Version {
	if c, ok := s.candCache[id]; ok {
		return c
	}
	pkg, ok := registry.Lookup(s.r.Registries, id)
	if !ok {
		s.candCache[id] = nil
		return nil
	}
	all := pkg.Versions()
	sort.Slice(all, func(i, j int) bool { return all[j].Less(all[i]) }) // descending

	var cur *semver.Version
	pinned := false
	if s.r.Manifest != nil {
		if e, ok := s.r.Manifest.Entries[id]; ok {
			cur = e.Version
			pinned = e.Pinned
		}
	}

	var filtered []semver.Version
	for _, v := range all {
		if pkg.Yanked(v) && (cur == nil || !v.Equal(*cur)) {
			continue
		}
		if s.r.HostVersion != nil {
			compatMap, err := pkg.CompatAt(v)
			if err == nil {
				if raw, ok := compatMap["julia"]; ok {
					spec, err := semver.ParseSpec(raw)
					if err == nil && !spec.Contains(*s.r.HostVersion) {
						continue
					}
				}
			}
		}
		filtered = append(filtered, v)
	}

	if pinned && cur != nil {
		s.candCache[id] = []semver.Version{*cur}
		return s.candCache[id]
	}

	switch s.level {
	case All:
		if cur != nil {
			filtered = onlyVersion(filtered, *cur)
		}
	case Direct:
		// the explicitly targeted direct deps may move freely;
		// everything else stays pinned to its current manifest
		// version unless that version is no longer a valid
		// candidate at all (e.g. yanked or host-incompatible), in
		// which case it falls back to the unrestricted pool so the
		// search can still find a consistent assignment per spec.md
		// §4.6 step 3 ("unless they become unsatisfiable").
		if !s.direct[id] && cur != nil {
			if pinnedOnly := onlyVersion(filtered, *cur); len(pinnedOnly) > 0 {
				filtered = pinnedOnly
			}
		}
	case Semver:
		if cur != nil {
			spec, err := semver.ParseSpec("^" + cur.String())
			if err == nil {
				var within []semver.Version
				for _, v := range filtered {
					if spec.Contains(v) {
						within = append(within, v)
					}
				}
				filtered = within
			}
		}
	case None:
		// all candidates remain eligible
	}

	s.candCache[id] = filtered
	return filtered
}

func onlyVersion(all []semver.Version, v semver.Version) []semver.Version {
	for _, c := range all {
		if c.Equal(v) {
			return []semver.Version{c}
		}
	}
	return nil
}

func (s *search) compatAt(id duid.ID, v semver.Version) (map[string]string, error) {
	pkg, ok := registry.Lookup(s.r.Registries, id)
	if !ok {
		return nil, fmt.Errorf("no registry entry for %s", id)
	}
	return pkg.CompatAt(v)
}

func (s *search) depsAt(id duid.ID, v semver.Version) (map[string]string, error) {
	pkg, ok := registry.Lookup(s.r.Registries, id)
	if !ok {
		return nil, nil
	}
	return pkg.DepsAt(v)
}

func (s *search) depsOf(id duid.ID, v semver.Version) []duid.ID {
	names, err := s.depsAt(id, v)
	if err != nil {
		return nil
	}
	out := make([]duid.ID, 0, len(names))
	for _, uStr := range names {
		depID, err := duid.Parse(uStr)
		if err == nil {
			out = append(out, depID)
		}
	}
	return out
}

func (s *search) treeSHA1(id duid.ID, v semver.Version) (string, bool) {
	pkg, ok := registry.Lookup(s.r.Registries, id)
	if !ok {
		return "", false
	}
	return pkg.TreeSHA1(v)
}

// ProbeAll looks up every id across regs and lists its versions, with
// at most workers lookups running at once (8 if workers <= 0). Nothing
// it reads is cached, and Resolve does not call it, so it never changes
// the resolution outcome.
func ProbeAll(regs []*registry.Registry, ids []duid.ID, workers int) error {
	if workers <= 0 {
		workers = 8
	}
	sem := make(chan struct{}, workers)
	var g errgroup.Group
	for _, id := range ids {
		id := id
		g.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()
			if pkg, ok := registry.Lookup(regs, id); ok {
				pkg.Versions()
			}
			return nil
		})
	}
	return g.Wait()
}
