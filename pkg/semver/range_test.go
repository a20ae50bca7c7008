package semver

import "testing"

func TestRangeContains(t *testing.T) {
	upper := mustVersion(t, "2.0.0")
	r := Range{Lower: mustVersion(t, "1.0.0"), Upper: &upper}
	for _, s := range []string{"1.0.0", "1.5.0", "1.9.9"} {
		if !r.Contains(mustVersion(t, s)) {
			t.Errorf("range should contain %s", s)
		}
	}
	for _, s := range []string{"0.9.9", "2.0.0", "2.0.1"} {
		if r.Contains(mustVersion(t, s)) {
			t.Errorf("range should not contain %s", s)
		}
	}

	unbounded := Range{Lower: mustVersion(t, "1.0.0")}
	if !unbounded.Contains(mustVersion(t, "1000.0.0")) {
		t.Error("unbounded range should contain arbitrarily high versions")
	}
}

func mustVersion(t *testing.T, s string) Version {
	t.Helper()
	v, err := ParseVersion(s)
	if err != nil {
		t.Fatalf("ParseVersion(%q): %v", s, err)
	}
	return v
}

func TestRangeEmpty(t *testing.T) {
	lower := mustVersion(t, "1.0.0")
	upper := mustVersion(t, "1.0.0")
	if r := (Range{Lower: lower, Upper: &upper}); !r.Empty() {
		t.Error("range with Lower == Upper should be Empty")
	}
	upper2 := mustVersion(t, "0.9.0")
	if r := (Range{Lower: lower, Upper: &upper2}); !r.Empty() {
		t.Error("range with Lower > Upper should be Empty")
	}
	if r := (Range{Lower: lower}); r.Empty() {
		t.Error("unbounded range should not be Empty")
	}
}

func TestIntersectRanges(t *testing.T) {
	u1 := mustVersion(t, "2.0.0")
	u2 := mustVersion(t, "3.0.0")
	a := Range{Lower: mustVersion(t, "1.0.0"), Upper: &u1}
	b := Range{Lower: mustVersion(t, "1.5.0"), Upper: &u2}

	r, ok := intersectRanges(a, b)
	if !ok {
		t.Fatal("expected non-empty intersection")
	}
	if !r.Lower.Equal(mustVersion(t, "1.5.0")) || r.Upper == nil || !r.Upper.Equal(u1) {
		t.Errorf("intersectRanges = %+v", r)
	}

	u3 := mustVersion(t, "1.0.0")
	c := Range{Lower: mustVersion(t, "2.0.0"), Upper: &u3} // disjoint from a
	disjointLower := Range{Lower: mustVersion(t, "5.0.0")}
	if _, ok := intersectRanges(a, disjointLower); ok {
		t.Error("expected empty intersection for disjoint ranges")
	}
	_ = c
}

func TestOverlapsOrAdjoinsAndMerge(t *testing.T) {
	u1 := mustVersion(t, "2.0.0")
	a := Range{Lower: mustVersion(t, "1.0.0"), Upper: &u1}
	// touching: b starts exactly where a ends
	b := Range{Lower: mustVersion(t, "2.0.0"), Upper: nil}
	if !overlapsOrAdjoins(a, b) {
		t.Error("touching ranges should be considered adjoining")
	}
	merged := mergeRanges(a, b)
	if !merged.Lower.Equal(mustVersion(t, "1.0.0")) || merged.Upper != nil {
		t.Errorf("mergeRanges(touching) = %+v", merged)
	}

	u2 := mustVersion(t, "1.5.0")
	c := Range{Lower: mustVersion(t, "0.0.0"), Upper: &u2}
	d := Range{Lower: mustVersion(t, "3.0.0"), Upper: nil}
	if overlapsOrAdjoins(c, d) {
		t.Error("disjoint ranges should not be considered adjoining")
	}
}
