package semver

import "fmt"

// Bound is a tuple of 0-3 non-negative integer components. A bound of
// length n matches any version whose first n components equal the
// bound, per spec §3. Length 0 is unbounded.
type Bound struct {
	Components []int64
}

// ParseBound parses a dotted sequence of 1-3 non-negative integers
// (e.g. "1", "1.2", "1.2.3") into a Bound. An empty string parses to
// the zero-length (unbounded) Bound.
func ParseBound(s string) (Bound, error) {
	if s == "" {
		return Bound{}, nil
	}
	nums, err := splitNumeric(s)
	if err != nil {
		return Bound{}, &BadSpecError{Kind: "bound", Text: s, Err: err}
	}
	if len(nums) > 3 {
		return Bound{}, &BadSpecError{Kind: "bound", Text: s, Err: fmt.Errorf("at most 3 components")}
	}
	return Bound{Components: nums}, nil
}

// padLower fills missing trailing components with zero.
func (b Bound) padLower() Version {
	v := Version{}
	c := b.Components
	if len(c) > 0 {
		v.Major = c[0]
	}
	if len(c) > 1 {
		v.Minor = c[1]
	}
	if len(c) > 2 {
		v.Patch = c[2]
	}
	return v
}

// bumpAt returns the version formed by zero-padding the bound, then
// incrementing the component at idx by one and zeroing everything
// after it. This is the shared "next boundary" computation used by
// caret, tilde, exact-prefix, and "X - Y" upper endpoints: in each
// case the upper bound of the admitted range is the first version
// that is NOT admitted.
func (b Bound) bumpAt(idx int) Version {
	v := b.padLower()
	switch idx {
	case 0:
		v.Major++
		v.Minor, v.Patch = 0, 0
	case 1:
		v.Minor++
		v.Patch = 0
	case 2:
		v.Patch++
	}
	return v
}

// significantIndex returns the position of the leftmost non-zero
// component of the zero-padded bound (0=major, 1=minor, 2=patch). If
// all components are zero, it returns 2 (patch), the narrowest
// possible boundary, per spec's "^0.0.Z" edge case.
func (b Bound) significantIndex() int {
	v := b.padLower()
	switch {
	case v.Major != 0:
		return 0
	case v.Minor != 0:
		return 1
	default:
		return 2
	}
}

// lastGivenIndex returns the index of the last explicitly supplied
// component (0, 1, or 2), defaulting to 0 for an empty bound.
func (b Bound) lastGivenIndex() int {
	if len(b.Components) == 0 {
		return 0
	}
	return len(b.Components) - 1
}
