// Package tomlfile provides a deterministic TOML reader/writer on top
// of go-toml's tree API. Reads accumulate every problem found instead
// of stopping at the first, and writes emit keys in a fixed priority
// order so that re-serializing an unmodified document is byte-stable.
package tomlfile

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	toml "github.com/pelletier/go-toml"
	"github.com/pkg/errors"
)

// Reader walks a parsed TOML tree, collecting every query or
// type-mismatch error it encounters rather than aborting at the
// first one. Call Err after the last field read to get the combined
// problem list.
type Reader struct {
	Tree   *toml.Tree
	errs   *[]error
}

// NewReader parses data and returns a Reader positioned at its root.
// Parse failures are reported immediately since nothing downstream
// can proceed from a malformed document.
func NewReader(data []byte) (*Reader, error) {
	tree, err := toml.LoadBytes(data)
	if err != nil {
		return nil, errors.Wrap(err, "parse toml")
	}
	return &Reader{Tree: tree, errs: new([]error)}, nil
}

// Err returns a single aggregated error summarizing every problem
// recorded during reads, or nil if none occurred.
func (r *Reader) Err() error {
	if len(*r.errs) == 0 {
		return nil
	}
	msgs := make([]string, len(*r.errs))
	for i, e := range *r.errs {
		msgs[i] = e.Error()
	}
	return errors.New(strings.Join(msgs, "; "))
}

func (r *Reader) fail(format string, args ...interface{}) {
	*r.errs = append(*r.errs, fmt.Errorf(format, args...))
}

// String reads a string field at key, recording a problem (and
// returning "") if it is present but not a string. Absence is not an
// error; callers decide whether a missing key is required.
func (r *Reader) String(key string) string {
	v := r.Tree.Get(key)
	if v == nil {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		r.fail("key %q: expected string, got %T", key, v)
		return ""
	}
	return s
}

// StringSlice reads an array-of-strings field at key.
func (r *Reader) StringSlice(key string) []string {
	v := r.Tree.Get(key)
	if v == nil {
		return nil
	}
	raw, ok := v.([]interface{})
	if !ok {
		r.fail("key %q: expected array, got %T", key, v)
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		s, ok := item.(string)
		if !ok {
			r.fail("key %q: array element %T is not a string", key, item)
			continue
		}
		out = append(out, s)
	}
	return out
}

// Sub returns the nested table at key as its own Reader sharing this
// Reader's error list, or nil if the key is absent.
func (r *Reader) Sub(key string) *Reader {
	v := r.Tree.Get(key)
	if v == nil {
		return nil
	}
	sub, ok := v.(*toml.Tree)
	if !ok {
		r.fail("key %q: expected table, got %T", key, v)
		return nil
	}
	return &Reader{Tree: sub, errs: r.errs}
}

// Tables returns every key in the tree whose value is a sub-table,
// mapped to that sub-table's Reader (a map, so in no particular
// order). Used for maps keyed by dependency
// name or UUID where the key itself is caller-meaningful.
func (r *Reader) Tables() map[string]*Reader {
	out := map[string]*Reader{}
	for _, k := range r.Tree.Keys() {
		v := r.Tree.Get(k)
		if sub, ok := v.(*toml.Tree); ok {
			out[k] = &Reader{Tree: sub, errs: r.errs}
		}
	}
	return out
}

// Keys returns the tree's top-level keys, sorted.
func (r *Reader) Keys() []string {
	ks := append([]string{}, r.Tree.Keys()...)
	sort.Strings(ks)
	return ks
}

// Raw returns the raw, untyped value at key, for preserving unknown
// keys verbatim through a round trip.
func (r *Reader) Raw(key string) interface{} { return r.Tree.Get(key) }

// Writer builds a TOML document with deterministic key ordering:
// keys named in Priority are emitted first, in the order given, then
// any remaining keys in alphabetical order. Tables that end up empty
// are elided entirely rather than written as "[x]\n".
type Writer struct {
	Priority []string
	tree     *toml.Tree
}

// NewWriter returns an empty Writer.
func NewWriter(priority ...string) *Writer {
	t, _ := toml.TreeFromMap(map[string]interface{}{})
	return &Writer{Priority: priority, tree: t}
}

// Set stores a scalar or slice value at key. An empty string slice is
// treated as absent (the key is not written).
func (w *Writer) Set(key string, value interface{}) {
	switch v := value.(type) {
	case string:
		if v == "" {
			return
		}
	case []string:
		if len(v) == 0 {
			return
		}
	}
	w.tree.Set(key, value)
}

// SetTable stores a nested table built by a child Writer, eliding it
// if the child has no keys at all.
func (w *Writer) SetTable(key string, child *Writer) {
	if child == nil || len(child.tree.Keys()) == 0 {
		return
	}
	w.tree.Set(key, child.tree)
}

func (w *Writer) orderedKeys() []string {
	seen := map[string]bool{}
	var out []string
	for _, k := range w.Priority {
		if w.tree.Has(k) {
			out = append(out, k)
			seen[k] = true
		}
	}
	var rest []string
	for _, k := range w.tree.Keys() {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

// Bytes renders the document in deterministic key order.
func (w *Writer) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	for _, k := range w.orderedKeys() {
		v := w.tree.Get(k)
		sub, err := toml.TreeFromMap(map[string]interface{}{k: v})
		if err != nil {
			return nil, errors.Wrapf(err, "encode key %q", k)
		}
		b, err := sub.ToTomlString()
		if err != nil {
			return nil, errors.Wrapf(err, "encode key %q", k)
		}
		buf.WriteString(b)
	}
	return buf.Bytes(), nil
}
