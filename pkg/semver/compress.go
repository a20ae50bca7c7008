package semver

import "sort"

// CompressVersions finds a minimal Spec that admits exactly the
// versions in subset out of the full candidate pool. It proceeds by
// greedy enlargement: repeatedly take the smallest not-yet-covered
// subset version as a range's lower bound, then search pool versions
// above it from largest to smallest, at each one trying boundary
// widths from the most generous (coarsest prefix) to the most
// precise (exact exclusion of that pool version), accepting the
// first construction whose range admits no pool version outside
// subset. The immediate next pool version above the lower bound,
// excluded exactly, is always a valid fallback, so the search always
// terminates.
func CompressVersions(pool, subset []Version) Spec {
	poolSorted := sortedUnique(pool)
	subSet := make(map[Version]bool, len(subset))
	for _, v := range subset {
		subSet[v] = true
	}
	remaining := sortedUnique(subset)

	var ranges []Range
	for len(remaining) > 0 {
		lo := remaining[0]
		upper := bestUpper(poolSorted, subSet, lo)
		ranges = append(ranges, Range{Lower: lo, Upper: upper})

		var next []Version
		for _, v := range remaining {
			if upper == nil || v.Compare(*upper) < 0 {
				continue
			}
			next = append(next, v)
		}
		remaining = next
	}
	return Spec{Ranges: canonicalize(ranges)}
}

// bestUpper searches candidates above lo for the most enlarging valid
// exclusive upper bound, or nil if no pool version sits above lo.
func bestUpper(poolSorted []Version, subSet map[Version]bool, lo Version) *Version {
	var above []Version
	for _, v := range poolSorted {
		if v.Compare(lo) > 0 {
			above = append(above, v)
		}
	}
	if len(above) == 0 {
		return nil
	}
	// descending
	for i, j := 0, len(above)-1; i < j; i, j = i+1, j-1 {
		above[i], above[j] = above[j], above[i]
	}

	for _, cand := range above {
		for width := 1; width <= 3; width++ {
			b := boundPrefix(cand, width)
			u := b.bumpAt(width - 1)
			if rangeAdmitsOnlySubset(poolSorted, subSet, lo, &u) {
				return &u
			}
		}
		// exact exclusion of cand itself
		u := cand
		if rangeAdmitsOnlySubset(poolSorted, subSet, lo, &u) {
			return &u
		}
	}
	// unreachable given the exact-exclusion fallback on the immediate
	// successor, but fall back to it explicitly for safety.
	u := above[len(above)-1]
	return &u
}

func rangeAdmitsOnlySubset(poolSorted []Version, subSet map[Version]bool, lo Version, upper *Version) bool {
	for _, v := range poolSorted {
		if v.Compare(lo) < 0 {
			continue
		}
		if upper != nil && v.Compare(*upper) >= 0 {
			continue
		}
		if !subSet[v] {
			return false
		}
	}
	return true
}

func boundPrefix(v Version, width int) Bound {
	c := []int64{v.Major, v.Minor, v.Patch}[:width]
	return Bound{Components: append([]int64{}, c...)}
}

func sortedUnique(vs []Version) []Version {
	seen := make(map[Version]bool, len(vs))
	out := make([]Version, 0, len(vs))
	for _, v := range vs {
		key := Version{Major: v.Major, Minor: v.Minor, Patch: v.Patch}
		if !seen[key] {
			seen[key] = true
			out = append(out, key)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Compare(out[j]) < 0 })
	return out
}

// ExpandTable resolves a registry's compressed version→value table
// (e.g. Deps or Compat, keyed by SemverSpec string) against a known
// version pool into a per-version map, deep-merging entries from
// every spec that admits a given version. Each admitting entry's
// values are folded into the version's map through merge, or by plain
// key assignment if merge is nil. Table entries are visited in map
// order, which is unspecified, so when two admitting entries set the
// same key, which value survives is not defined.
func ExpandTable(pool []Version, table map[string]map[string]string, merge func(dst, src map[string]string)) (map[Version]map[string]string, error) {
	out := make(map[Version]map[string]string, len(pool))
	for _, v := range pool {
		out[v] = map[string]string{}
	}
	for specStr, values := range table {
		spec, err := ParseSpec(specStr)
		if err != nil {
			return nil, err
		}
		for _, v := range pool {
			if !spec.Contains(v) {
				continue
			}
			if merge != nil {
				merge(out[v], values)
			} else {
				for k, val := range values {
					out[v][k] = val
				}
			}
		}
	}
	return out, nil
}

// CompressTable inverts an expanded per-version table back into a
// compressed SemverSpec-keyed table: versions sharing byte-identical
// serialized values are grouped and compressed together via
// CompressVersions. serialize must produce a stable, comparable
// representation of each version's value map (e.g. a sorted
// key=value join).
func CompressTable(pool []Version, expanded map[Version]map[string]string, serialize func(map[string]string) string) map[string]map[string]string {
	groups := make(map[string][]Version)
	values := make(map[string]map[string]string)
	for v, val := range expanded {
		if len(val) == 0 {
			continue
		}
		key := serialize(val)
		groups[key] = append(groups[key], v)
		values[key] = val
	}
	out := make(map[string]map[string]string, len(groups))
	for key, versions := range groups {
		spec := CompressVersions(pool, versions)
		out[spec.String()] = values[key]
	}
	return out
}
