package semver

import "testing"

func TestParseVersion(t *testing.T) {
	cases := []struct {
		in   string
		want Version
	}{
		{"1.2.3", Version{Major: 1, Minor: 2, Patch: 3}},
		{"v1.2.3", Version{Major: 1, Minor: 2, Patch: 3}},
		{"1", Version{Major: 1}},
		{"1.2", Version{Major: 1, Minor: 2}},
		{"1.2.3-rc1", Version{Major: 1, Minor: 2, Patch: 3, Pre: "rc1"}},
		{"1.2.3+build5", Version{Major: 1, Minor: 2, Patch: 3, Build: "build5"}},
		{"1.2.3-rc1+build5", Version{Major: 1, Minor: 2, Patch: 3, Pre: "rc1", Build: "build5"}},
	}
	for _, c := range cases {
		got, err := ParseVersion(c.in)
		if err != nil {
			t.Fatalf("ParseVersion(%q): %v", c.in, err)
		}
		if got != c.want {
			t.Errorf("ParseVersion(%q) = %+v, want %+v", c.in, got, c.want)
		}
	}
}

func TestParseVersionErrors(t *testing.T) {
	for _, in := range []string{"", "1.2.3.4", "a.b.c", "-1.0.0"} {
		if _, err := ParseVersion(in); err == nil {
			t.Errorf("ParseVersion(%q): expected error", in)
		}
	}
}

func TestVersionCompare(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"1.0.0", "1.0.0", 0},
		{"1.0.0", "1.0.1", -1},
		{"1.1.0", "1.0.9", 1},
		{"2.0.0", "1.9.9", 1},
		// pre-release/build are cosmetic only, never affect ordering.
		{"1.0.0-rc1", "1.0.0", 0},
		{"1.0.0+abc", "1.0.0+def", 0},
	}
	for _, c := range cases {
		a, err := ParseVersion(c.a)
		if err != nil {
			t.Fatal(err)
		}
		b, err := ParseVersion(c.b)
		if err != nil {
			t.Fatal(err)
		}
		if got := a.Compare(b); got != c.want {
			t.Errorf("%s.Compare(%s) = %d, want %d", c.a, c.b, got, c.want)
		}
		if got := a.Equal(b); got != (c.want == 0) {
			t.Errorf("%s.Equal(%s) = %v", c.a, c.b, got)
		}
		if got := a.Less(b); got != (c.want < 0) {
			t.Errorf("%s.Less(%s) = %v", c.a, c.b, got)
		}
	}
}

func TestVersionString(t *testing.T) {
	v := Version{Major: 1, Minor: 2, Patch: 3, Pre: "rc1", Build: "xyz"}
	if got, want := v.String(), "1.2.3-rc1+xyz"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
