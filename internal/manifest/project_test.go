package manifest

import (
	"strings"
	"testing"

	"github.com/depotpm/depot/pkg/semver"
)

func TestNewProjectHasJuliaCompat(t *testing.T) {
	p := New()
	if got, ok := p.CompatRaw["julia"]; !ok || got != "*" {
		t.Errorf("New() julia compat = %q, %v, want \"*\", true", got, ok)
	}
}

func TestProjectCompatSpec(t *testing.T) {
	p := New()
	p.CompatRaw["foo"] = "^1.2.3"
	sp, err := p.CompatSpec("foo")
	if err != nil {
		t.Fatalf("CompatSpec: %v", err)
	}
	if !sp.Contains(mustVersionHelper(t, "1.5.0")) {
		t.Error("parsed compat spec should contain 1.5.0")
	}
	if _, err := p.CompatSpec("missing"); err == nil {
		t.Error("CompatSpec for an undeclared name should error")
	}
}

func mustVersionHelper(t *testing.T, s string) semver.Version {
	t.Helper()
	v, err := semver.ParseVersion(s)
	if err != nil {
		t.Fatalf("ParseVersion(%q): %v", s, err)
	}
	return v
}

func TestProjectValidate(t *testing.T) {
	p := New()
	fooID := mustID(t, "11111111-1111-1111-1111-111111111111")
	p.Deps["foo"] = fooID
	p.CompatRaw["foo"] = "^1.0.0"
	if err := p.Validate(); err != nil {
		t.Errorf("valid project failed Validate: %v", err)
	}

	p.CompatRaw["bar"] = "^1.0.0" // not in deps or extras
	if err := p.Validate(); err == nil {
		t.Error("compat entry with no matching dep/extra should fail Validate")
	}
	delete(p.CompatRaw, "bar")

	p.Targets["test"] = []string{"unknown-dep"}
	if err := p.Validate(); err == nil {
		t.Error("target referencing an unknown dep should fail Validate")
	}
}

func TestParseProjectRoundtrip(t *testing.T) {
	data := []byte(`
name = "MyPkg"
uuid = "11111111-1111-1111-1111-111111111111"
version = "1.2.3"

[deps]
foo = "22222222-2222-2222-2222-222222222222"

[compat]
foo = "^1.0.0"
julia = "1.6"

[extras]
bar = "33333333-3333-3333-3333-333333333333"

[targets]
test = ["bar"]
`)
	p, err := ParseProject(data)
	if err != nil {
		t.Fatalf("ParseProject: %v", err)
	}
	if !p.HasSelf || p.SelfName != "MyPkg" {
		t.Errorf("self identity not parsed: %+v", p)
	}
	if p.Deps["foo"] != mustID(t, "22222222-2222-2222-2222-222222222222") {
		t.Errorf("deps.foo = %v", p.Deps["foo"])
	}
	if p.CompatRaw["julia"] != "1.6" {
		t.Errorf("compat.julia = %q, want 1.6", p.CompatRaw["julia"])
	}
	if p.Extras["bar"] != mustID(t, "33333333-3333-3333-3333-333333333333") {
		t.Errorf("extras.bar = %v", p.Extras["bar"])
	}
	if len(p.Targets["test"]) != 1 || p.Targets["test"][0] != "bar" {
		t.Errorf("targets.test = %v", p.Targets["test"])
	}

	out, err := p.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	reparsed, err := ParseProject(out)
	if err != nil {
		t.Fatalf("ParseProject(Encode output): %v", err)
	}
	if reparsed.SelfName != p.SelfName || reparsed.CompatRaw["julia"] != p.CompatRaw["julia"] {
		t.Errorf("roundtrip mismatch: %+v vs %+v", reparsed, p)
	}
}

func TestParseProjectNameWithoutUUID(t *testing.T) {
	data := []byte(`name = "MyPkg"`)
	if _, err := ParseProject(data); err == nil {
		t.Error("name without uuid should fail to parse")
	}
}

func TestProjectEncodeKeyOrder(t *testing.T) {
	p := New()
	p.HasSelf = true
	p.SelfName = "MyPkg"
	p.SelfUUID = mustID(t, "11111111-1111-1111-1111-111111111111")
	p.Opaque["desc"] = "a package"

	out, err := p.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	s := string(out)
	if strings.Index(s, "name") > strings.Index(s, "desc") {
		t.Errorf("name should come before desc per priority order, got:\n%s", s)
	}
}
