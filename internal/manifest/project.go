// Package manifest implements depot's two on-disk, per-environment
// files: the user-declarative Project and the resolver-generated
// Manifest. Both use the TOML codec in pkg/tomlfile, grounded on the
// teacher's tomlMapper query-and-accumulate idiom in toml.go and its
// single-constraint-kind validation in manifest.go's toProps.
package manifest

import (
	"fmt"
	"sort"

	"github.com/pkg/errors"

	"github.com/depotpm/depot/internal/depoterr"
	"github.com/depotpm/depot/pkg/duid"
	"github.com/depotpm/depot/pkg/semver"
	"github.com/depotpm/depot/pkg/tomlfile"
)

// ProjectFileName is the conventional file name for a Project.
const ProjectFileName = "Project.toml"

// projectKeyPriority mirrors spec.md §4.3's fixed Project key order.
var projectKeyPriority = []string{"name", "uuid", "keywords", "license", "desc", "deps", "compat"}

// Project is the declarative, user-maintained description of what a
// source tree depends on.
type Project struct {
	HasSelf     bool
	SelfName    string
	SelfUUID    duid.ID
	SelfVersion semver.Version

	// Deps maps a direct runtime dependency's name to its UUID.
	Deps map[string]duid.ID

	// CompatRaw preserves the exact declared SemverSpec string per
	// name, so an unmodified compat entry reserializes byte-identical.
	// A "julia" entry is always present, synthesized as "*" if the
	// project never declared one.
	CompatRaw map[string]string

	// Extras has the same shape as Deps but lists deps only required
	// for specific targets.
	Extras map[string]duid.ID

	// Targets maps a target name (e.g. "test") to the dep names (from
	// Deps ∪ Extras) it requires.
	Targets map[string][]string

	// Opaque preserves any top-level key this codec does not
	// recognize, verbatim, so it round-trips.
	Opaque map[string]interface{}
}

// CompatSpec parses and returns the VersionSpec for name, or an error
// if it was never declared or fails to parse.
func (p *Project) CompatSpec(name string) (semver.Spec, error) {
	raw, ok := p.CompatRaw[name]
	if !ok {
		return semver.Spec{}, fmt.Errorf("no compat entry for %q", name)
	}
	return semver.ParseSpec(raw)
}

// Validate checks the invariants from spec.md §3: every compat name
// appears in deps, extras, or is "julia"; every target dep name
// resolves to a known name in deps ∪ extras.
func (p *Project) Validate() error {
	for name := range p.CompatRaw {
		if name == "julia" {
			continue
		}
		if _, ok := p.Deps[name]; ok {
			continue
		}
		if _, ok := p.Extras[name]; ok {
			continue
		}
		return errors.Errorf("compat entry %q is not in deps, extras, or \"julia\"", name)
	}
	for target, names := range p.Targets {
		for _, n := range names {
			_, inDeps := p.Deps[n]
			_, inExtras := p.Extras[n]
			if !inDeps && !inExtras {
				return errors.Errorf("target %q: dep %q is not in deps or extras", target, n)
			}
		}
	}
	return nil
}

// New returns an empty Project with its "julia" compat entry
// synthesized as unconstrained.
func New() *Project {
	return &Project{
		Deps:      map[string]duid.ID{},
		CompatRaw: map[string]string{"julia": "*"},
		Extras:    map[string]duid.ID{},
		Targets:   map[string][]string{},
		Opaque:    map[string]interface{}{},
	}
}

// ParseProject decodes data as a Project file. Type mismatches in the
// string fields read through the tomlfile Reader (name, uuid, version,
// targets, keywords, license, desc) are collected and reported
// together in one error. A name without a uuid (or the reverse), a bad
// uuid or version, and a malformed deps, compat or extras entry are not
// collected: each ends the parse with that single error.
func ParseProject(data []byte) (*Project, error) {
	r, err := tomlfile.NewReader(data)
	if err != nil {
		return nil, err
	}
	p := New()

	known := map[string]bool{
		"name": true, "uuid": true, "version": true, "keywords": true,
		"license": true, "desc": true, "deps": true, "compat": true,
		"extras": true, "targets": true,
	}

	name := r.String("name")
	uuidStr := r.String("uuid")
	if (name != "") != (uuidStr != "") {
		return nil, depoterr.InsufficientPackageKeys(name + uuidStr)
	}
	if name != "" && uuidStr != "" {
		id, err := duid.Parse(uuidStr)
		if err != nil {
			return nil, depoterr.BadSpec("uuid", uuidStr)
		}
		p.HasSelf = true
		p.SelfName = name
		p.SelfUUID = id
		if vs := r.String("version"); vs != "" {
			v, err := semver.ParseVersion(vs)
			if err != nil {
				return nil, err
			}
			p.SelfVersion = v
		}
	}

	if deps := r.Sub("deps"); deps != nil {
		for _, dname := range deps.Keys() {
			uStr, ok := deps.Raw(dname).(string)
			if !ok {
				return nil, depoterr.UnexpectedType("deps."+dname, "string uuid")
			}
			id, err := duid.Parse(uStr)
			if err != nil {
				return nil, depoterr.BadSpec("uuid", uStr)
			}
			p.Deps[dname] = id
		}
	}

	if compat := r.Sub("compat"); compat != nil {
		for _, cname := range compat.Keys() {
			sStr, ok := compat.Raw(cname).(string)
			if !ok {
				return nil, depoterr.UnexpectedType("compat."+cname, "string semverspec")
			}
			if _, err := semver.ParseSpec(sStr); err != nil {
				return nil, err
			}
			p.CompatRaw[cname] = sStr
		}
	}
	if _, ok := p.CompatRaw["julia"]; !ok {
		p.CompatRaw["julia"] = "*"
	}

	if extras := r.Sub("extras"); extras != nil {
		for _, ename := range extras.Keys() {
			uStr, ok := extras.Raw(ename).(string)
			if !ok {
				return nil, depoterr.UnexpectedType("extras."+ename, "string uuid")
			}
			id, err := duid.Parse(uStr)
			if err != nil {
				return nil, depoterr.BadSpec("uuid", uStr)
			}
			p.Extras[ename] = id
		}
	}

	if targets := r.Sub("targets"); targets != nil {
		for _, tname := range targets.Keys() {
			names := targets.StringSlice(tname)
			p.Targets[tname] = names
		}
	}

	if kw := r.StringSlice("keywords"); len(kw) > 0 {
		p.Opaque["keywords"] = kw
	}
	if lic := r.String("license"); lic != "" {
		p.Opaque["license"] = lic
	}
	if desc := r.String("desc"); desc != "" {
		p.Opaque["desc"] = desc
	}
	for _, k := range r.Keys() {
		if !known[k] {
			p.Opaque[k] = r.Raw(k)
		}
	}

	if err := r.Err(); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Encode renders the Project in the fixed key-priority TOML form,
// eliding empty sub-tables. The "julia" compat entry is always
// written under compat and never under deps.
func (p *Project) Encode() ([]byte, error) {
	w := tomlfile.NewWriter(projectKeyPriority...)

	if p.HasSelf {
		w.Set("name", p.SelfName)
		w.Set("uuid", p.SelfUUID.String())
		if !p.SelfVersion.Equal(semver.Version{}) {
			w.Set("version", p.SelfVersion.String())
		}
	}
	for k, v := range p.Opaque {
		w.Set(k, v)
	}

	deps := tomlfile.NewWriter()
	for _, name := range sortedKeys(p.Deps) {
		deps.Set(name, p.Deps[name].String())
	}
	w.SetTable("deps", deps)

	compat := tomlfile.NewWriter()
	for _, name := range sortedStringKeys(p.CompatRaw) {
		compat.Set(name, p.CompatRaw[name])
	}
	w.SetTable("compat", compat)

	extras := tomlfile.NewWriter()
	for _, name := range sortedKeys(p.Extras) {
		extras.Set(name, p.Extras[name].String())
	}
	w.SetTable("extras", extras)

	targets := tomlfile.NewWriter()
	for _, name := range sortedStringSliceKeys(p.Targets) {
		targets.Set(name, p.Targets[name])
	}
	w.SetTable("targets", targets)

	return w.Bytes()
}

func sortedKeys(m map[string]duid.ID) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedStringKeys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedStringSliceKeys(m map[string][]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
