package semver

import "testing"

func TestParseBound(t *testing.T) {
	cases := []struct {
		in   string
		want []int64
	}{
		{"", nil},
		{"1", []int64{1}},
		{"1.2", []int64{1, 2}},
		{"1.2.3", []int64{1, 2, 3}},
	}
	for _, c := range cases {
		b, err := ParseBound(c.in)
		if err != nil {
			t.Fatalf("ParseBound(%q): %v", c.in, err)
		}
		if len(b.Components) != len(c.want) {
			t.Fatalf("ParseBound(%q) = %v, want %v", c.in, b.Components, c.want)
		}
		for i := range c.want {
			if b.Components[i] != c.want[i] {
				t.Errorf("ParseBound(%q)[%d] = %d, want %d", c.in, i, b.Components[i], c.want[i])
			}
		}
	}
}

func TestParseBoundErrors(t *testing.T) {
	for _, s := range []string{"1.2.3.4", "a.b", "1.x"} {
		if _, err := ParseBound(s); err == nil {
			t.Errorf("ParseBound(%q): expected error", s)
		}
	}
}

func TestBoundPadLower(t *testing.T) {
	b, _ := ParseBound("1.2")
	v := b.padLower()
	want := Version{Major: 1, Minor: 2, Patch: 0}
	if v != want {
		t.Errorf("padLower() = %+v, want %+v", v, want)
	}
}

func TestBoundBumpAt(t *testing.T) {
	b, _ := ParseBound("1.2.3")
	cases := []struct {
		idx  int
		want Version
	}{
		{0, Version{Major: 2}},
		{1, Version{Major: 1, Minor: 3}},
		{2, Version{Major: 1, Minor: 2, Patch: 4}},
	}
	for _, c := range cases {
		if got := b.bumpAt(c.idx); got != c.want {
			t.Errorf("bumpAt(%d) = %+v, want %+v", c.idx, got, c.want)
		}
	}
}

func TestBoundSignificantIndex(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"1.2.3", 0},
		{"0.2.3", 1},
		{"0.0.3", 2},
		{"0.0.0", 2},
		{"", 2},
	}
	for _, c := range cases {
		b, err := ParseBound(c.in)
		if err != nil {
			t.Fatal(err)
		}
		if got := b.significantIndex(); got != c.want {
			t.Errorf("significantIndex(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestBoundLastGivenIndex(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"1", 0},
		{"1.2", 1},
		{"1.2.3", 2},
	}
	for _, c := range cases {
		b, err := ParseBound(c.in)
		if err != nil {
			t.Fatal(err)
		}
		if got := b.lastGivenIndex(); got != c.want {
			t.Errorf("lastGivenIndex(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}
