package depoterr

import (
	"errors"
	"testing"
)

func TestConstructorsSetKindAndMessage(t *testing.T) {
	cases := []struct {
		name string
		err  *Error
		kind Kind
	}{
		{"BadSpec", BadSpec("version", "bogus"), KindBadSpec},
		{"InsufficientPackageKeys", InsufficientPackageKeys("foo"), KindInsufficientPackageKeys},
		{"UnexpectedType", UnexpectedType("deps", "table"), KindUnexpectedType},
		{"InconsistentRepoDescriptor", InconsistentRepoDescriptor("foo"), KindInconsistentRepoDescriptor},
		{"AmbiguousLocation", AmbiguousLocation("foo"), KindAmbiguousLocation},
		{"AmbiguousPackage", AmbiguousPackage("foo", []string{"a", "b"}), KindAmbiguousPackage},
		{"RevNotFound", RevNotFound("https://example.com/repo", "main"), KindRevNotFound},
		{"HashMismatch", HashMismatch("https://example.com/a.tar.gz", "abc", "def"), KindHashMismatch},
		{"Unsatisfiable", Unsatisfiable("no version satisfies", "semver"), KindUnsatisfiable},
		{"NetworkRequired", NetworkRequired("instantiate"), KindNetworkRequired},
		{"Interrupted", Interrupted(), KindInterrupted},
		{"RegistryDirty", RegistryDirty("/reg"), KindRegistryDirty},
		{"RegistryDetached", RegistryDetached("/reg"), KindRegistryDetached},
	}
	for _, c := range cases {
		if c.err.Kind != c.kind {
			t.Errorf("%s: Kind = %q, want %q", c.name, c.err.Kind, c.kind)
		}
		if c.err.Error() == "" {
			t.Errorf("%s: Error() returned empty string", c.name)
		}
	}
}

func TestErrorFallsBackToKindWhenMessageEmpty(t *testing.T) {
	e := &Error{Kind: KindBadSpec}
	if got, want := e.Error(), string(KindBadSpec); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestFieldPayloads(t *testing.T) {
	e := AmbiguousPackage("foo", []string{"u1", "u2"})
	if e.Name != "foo" || len(e.UUIDs) != 2 {
		t.Errorf("AmbiguousPackage payload = %+v", e)
	}

	h := HashMismatch("url", "want", "got")
	if h.Expected256 != "want" || h.Actual256 != "got" {
		t.Errorf("HashMismatch payload = %+v", h)
	}

	u := Unsatisfiable("summary text", "direct")
	if u.Summary != "summary text" || u.LastTier != "direct" {
		t.Errorf("Unsatisfiable payload = %+v", u)
	}
	if got := u.Error(); got == u.Summary {
		t.Error("Unsatisfiable.Error() should mention the last tier when set")
	}

	u2 := Unsatisfiable("summary text", "")
	if got, want := u2.Error(), "summary text"; got != want {
		t.Errorf("Unsatisfiable.Error() with no tier = %q, want %q", got, want)
	}
}

func TestIs(t *testing.T) {
	err := RevNotFound("url", "rev")
	if !Is(err, KindRevNotFound) {
		t.Error("Is should match the constructed kind")
	}
	if Is(err, KindHashMismatch) {
		t.Error("Is should not match a different kind")
	}
	if Is(errors.New("plain"), KindRevNotFound) {
		t.Error("Is should return false for a non-depoterr error")
	}
}
