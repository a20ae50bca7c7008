package semver

import "testing"

func mustV(t *testing.T, s string) Version {
	t.Helper()
	v, err := ParseVersion(s)
	if err != nil {
		t.Fatalf("ParseVersion(%q): %v", s, err)
	}
	return v
}

func TestParseSpecCaret(t *testing.T) {
	cases := []struct {
		spec    string
		in, out []string // versions expected to satisfy / not satisfy
	}{
		{"^1.2.3", []string{"1.2.3", "1.9.9", "1.2.4"}, []string{"2.0.0", "1.2.2"}},
		{"^0.2.3", []string{"0.2.3", "0.2.9"}, []string{"0.3.0", "0.2.2"}},
		{"^0.0.3", []string{"0.0.3"}, []string{"0.0.4", "0.1.0"}},
		{"1.2.3", []string{"1.2.3", "1.9.0"}, []string{"2.0.0"}}, // bare = caret
	}
	for _, c := range cases {
		sp, err := ParseSpec(c.spec)
		if err != nil {
			t.Fatalf("ParseSpec(%q): %v", c.spec, err)
		}
		for _, s := range c.in {
			if !sp.Contains(mustV(t, s)) {
				t.Errorf("%s should contain %s", c.spec, s)
			}
		}
		for _, s := range c.out {
			if sp.Contains(mustV(t, s)) {
				t.Errorf("%s should not contain %s", c.spec, s)
			}
		}
	}
}

func TestParseSpecTilde(t *testing.T) {
	sp, err := ParseSpec("~1.2.3")
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range []string{"1.2.3", "1.2.9"} {
		if !sp.Contains(mustV(t, s)) {
			t.Errorf("~1.2.3 should contain %s", s)
		}
	}
	for _, s := range []string{"1.3.0", "1.2.2"} {
		if sp.Contains(mustV(t, s)) {
			t.Errorf("~1.2.3 should not contain %s", s)
		}
	}
}

func TestParseSpecExactOpenStrictRange(t *testing.T) {
	cases := []struct {
		spec    string
		in, out []string
	}{
		{"=1.2.3", []string{"1.2.3"}, []string{"1.2.4", "1.2.2"}},
		{"=1.2", []string{"1.2.0", "1.2.9"}, []string{"1.3.0", "1.1.9"}},
		{">=1.2.3", []string{"1.2.3", "2.0.0", "100.0.0"}, []string{"1.2.2"}},
		{"<2.0.0", []string{"1.9.9", "0.0.1"}, []string{"2.0.0", "2.0.1"}},
		{"1.2.3 - 1.4.5", []string{"1.2.3", "1.4.5", "1.3.0"}, []string{"1.2.2", "1.4.6"}},
	}
	for _, c := range cases {
		sp, err := ParseSpec(c.spec)
		if err != nil {
			t.Fatalf("ParseSpec(%q): %v", c.spec, err)
		}
		for _, s := range c.in {
			if !sp.Contains(mustV(t, s)) {
				t.Errorf("%s should contain %s", c.spec, s)
			}
		}
		for _, s := range c.out {
			if sp.Contains(mustV(t, s)) {
				t.Errorf("%s should not contain %s", c.spec, s)
			}
		}
	}
}

func TestParseSpecUnion(t *testing.T) {
	sp, err := ParseSpec("^1.0.0, ^2.0.0")
	if err != nil {
		t.Fatal(err)
	}
	// [1.0.0, 2.0.0) and [2.0.0, 3.0.0) touch, so canonicalization
	// merges them into the single range [1.0.0, 3.0.0).
	if len(sp.Ranges) != 1 {
		t.Fatalf("expected the adjoining ranges to merge into 1, got %d", len(sp.Ranges))
	}
	for _, s := range []string{"1.5.0", "2.5.0"} {
		if !sp.Contains(mustV(t, s)) {
			t.Errorf("union should contain %s", s)
		}
	}
	if sp.Contains(mustV(t, "3.0.0")) {
		t.Errorf("union should not contain 3.0.0")
	}
}

func TestParseSpecErrors(t *testing.T) {
	for _, s := range []string{"", "  ", "^1.2.3,", ",^1.2.3", "not-a-version"} {
		if _, err := ParseSpec(s); err == nil {
			t.Errorf("ParseSpec(%q): expected error", s)
		}
	}
}

func TestSpecEmpty(t *testing.T) {
	var s Spec
	if !s.Empty() {
		t.Error("zero-value Spec should be Empty")
	}
	sp, err := ParseSpec("^1.0.0")
	if err != nil {
		t.Fatal(err)
	}
	if sp.Empty() {
		t.Error("non-empty spec reported Empty")
	}
}

func TestUnionIntersect(t *testing.T) {
	a, _ := ParseSpec("^1.0.0")
	b, _ := ParseSpec("^1.5.0")
	u := Union(a, b)
	if len(u.Ranges) != 1 {
		t.Fatalf("overlapping union should merge to one range, got %d", len(u.Ranges))
	}

	i := Intersect(a, b)
	if !i.Contains(mustV(t, "1.5.0")) {
		t.Errorf("intersection should contain 1.5.0")
	}
	if i.Contains(mustV(t, "1.4.0")) {
		t.Errorf("intersection should not contain 1.4.0")
	}

	c, _ := ParseSpec("^2.0.0")
	disjoint := Intersect(a, c)
	if !disjoint.Empty() {
		t.Errorf("disjoint intersection should be Empty")
	}
}

func TestSpecStringRoundtrip(t *testing.T) {
	cases := []string{"^1.2.3", "~1.2.3", ">=1.2.3", "<2.0.0", "1.2.3 - 1.4.5"}
	for _, in := range cases {
		sp, err := ParseSpec(in)
		if err != nil {
			t.Fatalf("ParseSpec(%q): %v", in, err)
		}
		s := sp.String()
		reparsed, err := ParseSpec(s)
		if err != nil {
			t.Fatalf("ParseSpec(String()=%q) for input %q: %v", s, in, err)
		}
		// same set of ranges after canonicalization
		if len(reparsed.Ranges) != len(sp.Ranges) {
			t.Errorf("%q -> %q: range count changed (%d vs %d)", in, s, len(sp.Ranges), len(reparsed.Ranges))
		}
		for _, probe := range []string{"0.0.1", "1.2.3", "1.9.9", "2.0.0", "2.5.0"} {
			v := mustV(t, probe)
			if sp.Contains(v) != reparsed.Contains(v) {
				t.Errorf("%q -> %q: Contains(%s) mismatch after roundtrip", in, s, probe)
			}
		}
	}
}
