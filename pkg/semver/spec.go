package semver

import (
	"fmt"
	"sort"
	"strings"
)

// Spec is a version set: a canonicalized union of disjoint, mutually
// non-adjacent Ranges sorted by Lower ascending. It is the value form
// of the textual SemverSpec grammar (caret/tilde/exact/open/strict/
// inclusive-range items, comma-separated and unioned).
type Spec struct {
	Ranges []Range
}

// Contains reports whether v satisfies the spec.
func (s Spec) Contains(v Version) bool {
	for _, r := range s.Ranges {
		if r.Contains(v) {
			return true
		}
	}
	return false
}

// Empty reports whether the spec admits no version.
func (s Spec) Empty() bool { return len(s.Ranges) == 0 }

// canonicalize sorts ranges by lower bound and merges any that
// overlap or touch, dropping empty ranges.
func canonicalize(ranges []Range) []Range {
	kept := make([]Range, 0, len(ranges))
	for _, r := range ranges {
		if !r.Empty() {
			kept = append(kept, r)
		}
	}
	sort.Slice(kept, func(i, j int) bool {
		return kept[i].Lower.Compare(kept[j].Lower) < 0
	})
	out := make([]Range, 0, len(kept))
	for _, r := range kept {
		if len(out) == 0 {
			out = append(out, r)
			continue
		}
		last := out[len(out)-1]
		if overlapsOrAdjoins(last, r) {
			out[len(out)-1] = mergeRanges(last, r)
		} else {
			out = append(out, r)
		}
	}
	return out
}

// Union returns the canonicalized union of two specs.
func Union(a, b Spec) Spec {
	all := append(append([]Range{}, a.Ranges...), b.Ranges...)
	return Spec{Ranges: canonicalize(all)}
}

// Intersect returns the canonicalized intersection of two specs.
func Intersect(a, b Spec) Spec {
	var out []Range
	for _, ra := range a.Ranges {
		for _, rb := range b.Ranges {
			if r, ok := intersectRanges(ra, rb); ok {
				out = append(out, r)
			}
		}
	}
	return Spec{Ranges: canonicalize(out)}
}

// FromRanges builds a canonicalized spec from loose ranges.
func FromRanges(ranges ...Range) Spec {
	return Spec{Ranges: canonicalize(ranges)}
}

// ParseSpec parses the SemverSpec grammar: a comma-separated list of
// items, each one of:
//
//	^X[.Y[.Z]]   caret    - most permissive change allowed by the
//	                        leftmost significant (non-zero) digit
//	~X[.Y[.Z]]   tilde    - patch bumps only, major and minor pinned
//	=X[.Y[.Z]]   exact    - any version sharing the given prefix
//	≥X[.Y[.Z]]   open     - lower bound only, no upper
//	<X[.Y[.Z]]   strict   - upper bound only, zero-padded, exclusive
//	X - Y        range    - inclusive lower X, upper padded from Y
//	X            bare     - same as ^X
//
// Items are unioned together into the resulting Spec.
func ParseSpec(s string) (Spec, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Spec{}, &BadSpecError{Kind: "semverspec", Text: s, Err: fmt.Errorf("empty spec")}
	}
	var ranges []Range
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			return Spec{}, &BadSpecError{Kind: "semverspec", Text: s, Err: fmt.Errorf("empty item")}
		}
		r, err := parseSpecItem(item)
		if err != nil {
			return Spec{}, err
		}
		ranges = append(ranges, r)
	}
	return Spec{Ranges: canonicalize(ranges)}, nil
}

func parseSpecItem(item string) (Range, error) {
	switch {
	case strings.Contains(item, " - "):
		parts := strings.SplitN(item, " - ", 2)
		x, err := ParseBound(strings.TrimSpace(parts[0]))
		if err != nil {
			return Range{}, err
		}
		y, err := ParseBound(strings.TrimSpace(parts[1]))
		if err != nil {
			return Range{}, err
		}
		upper := y.bumpAt(y.lastGivenIndex())
		return Range{Lower: x.padLower(), Upper: upperPtr(upper)}, nil

	case strings.HasPrefix(item, "^"):
		b, err := ParseBound(item[len("^"):])
		if err != nil {
			return Range{}, err
		}
		upper := b.bumpAt(b.significantIndex())
		return Range{Lower: b.padLower(), Upper: upperPtr(upper)}, nil

	case strings.HasPrefix(item, "~"):
		b, err := ParseBound(item[len("~"):])
		if err != nil {
			return Range{}, err
		}
		upper := b.bumpAt(1)
		return Range{Lower: b.padLower(), Upper: upperPtr(upper)}, nil

	case strings.HasPrefix(item, "="):
		b, err := ParseBound(item[len("="):])
		if err != nil {
			return Range{}, err
		}
		upper := b.bumpAt(b.lastGivenIndex())
		return Range{Lower: b.padLower(), Upper: upperPtr(upper)}, nil

	case strings.HasPrefix(item, "≥"):
		b, err := ParseBound(strings.TrimPrefix(item, "≥"))
		if err != nil {
			return Range{}, err
		}
		return Range{Lower: b.padLower(), Upper: nil}, nil

	case strings.HasPrefix(item, ">="):
		b, err := ParseBound(item[len(">="):])
		if err != nil {
			return Range{}, err
		}
		return Range{Lower: b.padLower(), Upper: nil}, nil

	case strings.HasPrefix(item, "<"):
		b, err := ParseBound(item[len("<"):])
		if err != nil {
			return Range{}, err
		}
		upper := b.padLower()
		return Range{Lower: Version{}, Upper: upperPtr(upper)}, nil

	default:
		b, err := ParseBound(item)
		if err != nil {
			return Range{}, err
		}
		upper := b.bumpAt(b.significantIndex())
		return Range{Lower: b.padLower(), Upper: upperPtr(upper)}, nil
	}
}

// String renders the spec in canonical form: each disjoint range as
// ">=lower" (when it has no upper bound), "<upper" (when it starts at
// 0.0.0) or "lower - y" (an inclusive-range item whose padded upper
// reproduces the range's exclusive bound), joined by ", ". The result is guaranteed to
// re-parse to an equal spec, though not necessarily to the same text
// that produced it.
func (s Spec) String() string {
	if len(s.Ranges) == 0 {
		return ""
	}
	items := make([]string, len(s.Ranges))
	for i, r := range s.Ranges {
		items[i] = rangeString(r)
	}
	return strings.Join(items, ", ")
}

var zeroVersion = Version{}

func rangeString(r Range) string {
	if r.Upper == nil {
		return ">=" + r.Lower.String()
	}
	if r.Lower.Compare(zeroVersion) == 0 {
		return "<" + fullString(*r.Upper)
	}
	y := upperToBound(*r.Upper)
	return fmt.Sprintf("%s - %s", fullString(r.Lower), y)
}

func fullString(v Version) string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// upperToBound inverts bumpAt: given an exclusive upper bound value,
// find the shortest prefix Y such that ParseBound(Y).bumpAt(len(Y)-1)
// reproduces u. Any upper bound above 0.0.0 has zeros after some
// index j (its last non-zero component); decrementing at j gives a
// prefix whose bump at j is u again.
func upperToBound(u Version) string {
	j := 2
	switch {
	case u.Patch != 0:
		j = 2
	case u.Minor != 0:
		j = 1
	default:
		j = 0
	}
	c := []int64{u.Major, u.Minor, u.Patch}[:j+1]
	c[j]--
	parts := make([]string, len(c))
	for i, n := range c {
		parts[i] = fmt.Sprintf("%d", n)
	}
	return strings.Join(parts, ".")
}
