// Package stdlib implements depot's StdlibTable: packages bundled
// with the host runtime rather than fetched from a registry, whose
// effective version is a function of the host-language version.
// Grounded on golang-dep's analysis.go version-keyed analyzer
// cache-and-select idiom; only the select half is used here:
// EffectiveMap picks the highest applicable entry on every call and
// caches nothing.
package stdlib

import (
	"sort"

	"github.com/depotpm/depot/pkg/duid"
	"github.com/depotpm/depot/pkg/semver"
)

// Entry is one stdlib's identity at a given host version.
type Entry struct {
	UUID    duid.ID
	Name    string
	Version *semver.Version // absent for certain stdlibs
}

// Table is the ordered (host-language version -> UUID -> Entry)
// mapping, plus the set of UUIDs that are always stdlib regardless of
// host version.
type Table struct {
	byVersion map[semver.Version]map[duid.ID]Entry
	unregistered map[duid.ID]bool
}

// New returns an empty Table.
func New() *Table {
	return &Table{byVersion: map[semver.Version]map[duid.ID]Entry{}, unregistered: map[duid.ID]bool{}}
}

// Add records that entry is part of the stdlib set as of hostVersion
// (i.e. for every host version >= hostVersion until a later entry
// supersedes it, per the ascending-scan selection rule).
func (t *Table) Add(hostVersion semver.Version, e Entry) {
	m, ok := t.byVersion[hostVersion]
	if !ok {
		m = map[duid.ID]Entry{}
		t.byVersion[hostVersion] = m
	}
	m[e.UUID] = e
}

// MarkUnregistered records uuid as always-stdlib: never consulted in
// any registry, in every host version.
func (t *Table) MarkUnregistered(id duid.ID) { t.unregistered[id] = true }

// AlwaysStdlib reports whether uuid is unconditionally a stdlib.
func (t *Table) AlwaysStdlib(id duid.ID) bool { return t.unregistered[id] }

// EffectiveMap returns the stdlib map in effect for host version v:
// the entry whose recorded version is the largest one <= v, per
// spec.md §4.5. If hostVersion is nil, the union of all entries over
// every known host version is returned instead, with their
// per-entry versions stripped — stdlibs then compete as ordinary
// registered packages.
func (t *Table) EffectiveMap(hostVersion *semver.Version) map[duid.ID]Entry {
	if hostVersion == nil {
		return t.unionAllVersions()
	}
	versions := t.sortedVersions()
	var selected semver.Version
	found := false
	for _, hv := range versions {
		if hv.Compare(*hostVersion) <= 0 {
			selected = hv
			found = true
			continue
		}
		break
	}
	if !found {
		return map[duid.ID]Entry{}
	}
	out := make(map[duid.ID]Entry, len(t.byVersion[selected]))
	for id, e := range t.byVersion[selected] {
		out[id] = e
	}
	return out
}

func (t *Table) unionAllVersions() map[duid.ID]Entry {
	out := map[duid.ID]Entry{}
	for _, m := range t.byVersion {
		for id, e := range m {
			stripped := e
			stripped.Version = nil
			out[id] = stripped
		}
	}
	return out
}

func (t *Table) sortedVersions() []semver.Version {
	out := make([]semver.Version, 0, len(t.byVersion))
	for v := range t.byVersion {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}
