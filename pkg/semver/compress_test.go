package semver

import (
	"sort"
	"strings"
	"testing"
)

func pool(t *testing.T, vs ...string) []Version {
	t.Helper()
	out := make([]Version, len(vs))
	for i, s := range vs {
		out[i] = mustVersion(t, s)
	}
	return out
}

func TestCompressVersionsRoundtrip(t *testing.T) {
	full := pool(t, "1.0.0", "1.1.0", "1.2.0", "2.0.0", "2.1.0", "3.0.0")
	subset := pool(t, "1.1.0", "1.2.0", "2.0.0", "2.1.0")

	spec := CompressVersions(full, subset)

	for _, v := range subset {
		if !spec.Contains(v) {
			t.Errorf("compressed spec should contain %s", v)
		}
	}
	for _, v := range []Version{mustVersion(t, "1.0.0"), mustVersion(t, "3.0.0")} {
		if spec.Contains(v) {
			t.Errorf("compressed spec should not contain %s", v)
		}
	}
}

func TestCompressVersionsSingleton(t *testing.T) {
	full := pool(t, "1.0.0", "1.1.0", "1.2.0")
	subset := pool(t, "1.1.0")

	spec := CompressVersions(full, subset)
	if !spec.Contains(mustVersion(t, "1.1.0")) {
		t.Error("should contain 1.1.0")
	}
	if spec.Contains(mustVersion(t, "1.0.0")) || spec.Contains(mustVersion(t, "1.2.0")) {
		t.Error("should admit only the singleton subset version among pool members")
	}
}

func TestCompressVersionsEmptySubset(t *testing.T) {
	full := pool(t, "1.0.0", "1.1.0")
	spec := CompressVersions(full, nil)
	if !spec.Empty() {
		t.Error("empty subset should compress to an empty spec")
	}
}

func TestExpandCompressTableRoundtrip(t *testing.T) {
	full := pool(t, "1.0.0", "1.1.0", "1.2.0", "2.0.0")
	table := map[string]map[string]string{
		"^1.0.0": {"foo": "a"},
		"^2.0.0": {"foo": "b"},
	}

	expanded, err := ExpandTable(full, table, nil)
	if err != nil {
		t.Fatalf("ExpandTable: %v", err)
	}
	if got := expanded[mustVersion(t, "1.1.0")]["foo"]; got != "a" {
		t.Errorf("expanded[1.1.0][foo] = %q, want %q", got, "a")
	}
	if got := expanded[mustVersion(t, "2.0.0")]["foo"]; got != "b" {
		t.Errorf("expanded[2.0.0][foo] = %q, want %q", got, "b")
	}

	serialize := func(m map[string]string) string {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + "=" + m[k]
		}
		return strings.Join(parts, ";")
	}
	recompressed := CompressTable(full, expanded, serialize)

	// re-expand the recompressed table and check it agrees with the original expansion.
	reexpanded, err := ExpandTable(full, recompressed, nil)
	if err != nil {
		t.Fatalf("ExpandTable(recompressed): %v", err)
	}
	for _, v := range full {
		if serialize(reexpanded[v]) != serialize(expanded[v]) {
			t.Errorf("roundtrip mismatch at %s: got %v, want %v", v, reexpanded[v], expanded[v])
		}
	}
}

func TestExpandTableMerge(t *testing.T) {
	full := pool(t, "1.0.0")
	table := map[string]map[string]string{
		"^1.0.0": {"a": "1"},
		"=1.0.0": {"b": "2"},
	}
	merge := func(dst, src map[string]string) {
		for k, v := range src {
			dst[k] = v
		}
	}
	expanded, err := ExpandTable(full, table, merge)
	if err != nil {
		t.Fatal(err)
	}
	v := mustVersion(t, "1.0.0")
	if expanded[v]["a"] != "1" || expanded[v]["b"] != "2" {
		t.Errorf("expected merged entries from both specs, got %v", expanded[v])
	}
}

func TestExpandTableBadSpec(t *testing.T) {
	full := pool(t, "1.0.0")
	table := map[string]map[string]string{"not-a-spec!!": {}}
	if _, err := ExpandTable(full, table, nil); err == nil {
		t.Error("expected error for unparseable spec key")
	}
}
