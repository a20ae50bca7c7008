// Package depoterr declares the typed error kinds callers branch on,
// replacing the ad hoc sentinel values and wrapped strings the
// teacher uses in project.go and context.go with field-carrying
// structs, since several operations need to inspect the kind and its
// payload (a package name, a pair of UUIDs, two hashes) rather than
// just print a message.
package depoterr

import "fmt"

// Kind names one of the error kinds a caller may branch on.
type Kind string

const (
	KindBadSpec                  Kind = "bad_spec"
	KindInsufficientPackageKeys  Kind = "insufficient_package_keys"
	KindUnexpectedType           Kind = "unexpected_type"
	KindInconsistentRepoDescriptor Kind = "inconsistent_repo_descriptor"
	KindAmbiguousLocation        Kind = "ambiguous_location"
	KindAmbiguousPackage         Kind = "ambiguous_package"
	KindRevNotFound              Kind = "rev_not_found"
	KindHashMismatch             Kind = "hash_mismatch"
	KindUnsatisfiable            Kind = "unsatisfiable"
	KindNetworkRequired          Kind = "network_required"
	KindInterrupted              Kind = "interrupted"
	KindRegistryDirty            Kind = "registry_dirty"
	KindRegistryDetached         Kind = "registry_detached"
)

// Error is the common shape for every depot error kind. Fields beyond
// Kind and Message are populated only for the kinds that carry them;
// callers that need structured access switch on Kind and read the
// matching fields below.
type Error struct {
	Kind    Kind
	Message string

	// BadSpec
	SpecKind string
	Text     string

	// UnexpectedType
	Field    string
	Expected string

	// AmbiguousPackage / AmbiguousLocation
	Name  string
	UUIDs []string

	// RevNotFound
	URL string
	Rev string

	// HashMismatch
	Expected256 string
	Actual256   string

	// Unsatisfiable
	Summary string
	LastTier string

	// RegistryDirty / RegistryDetached
	Path string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s", e.Kind)
}

// BadSpec reports a parse failure for a version, bound, spec, or
// UUID token.
func BadSpec(kind, text string) *Error {
	return &Error{Kind: KindBadSpec, SpecKind: kind, Text: text,
		Message: fmt.Sprintf("bad %s %q", kind, text)}
}

// InsufficientPackageKeys reports a name present without a uuid, or
// vice versa, where the codec requires both.
func InsufficientPackageKeys(name string) *Error {
	return &Error{Kind: KindInsufficientPackageKeys, Name: name,
		Message: fmt.Sprintf("%s: has name or uuid but not both", name)}
}

// UnexpectedType reports a TOML field present with the wrong shape.
func UnexpectedType(field, expected string) *Error {
	return &Error{Kind: KindUnexpectedType, Field: field, Expected: expected,
		Message: fmt.Sprintf("field %q: expected %s", field, expected)}
}

// InconsistentRepoDescriptor reports repo-rev/repo-url given in only
// one half of the required pair.
func InconsistentRepoDescriptor(name string) *Error {
	return &Error{Kind: KindInconsistentRepoDescriptor, Name: name,
		Message: fmt.Sprintf("%s: repo-rev and repo-url must both be present or both absent", name)}
}

// AmbiguousLocation reports more than one of {path, git-tree-sha1,
// repo descriptor} on a single manifest entry.
func AmbiguousLocation(name string) *Error {
	return &Error{Kind: KindAmbiguousLocation, Name: name,
		Message: fmt.Sprintf("%s: at most one of path, git-tree-sha1, or repo descriptor may appear", name)}
}

// AmbiguousPackage reports a name that resolved to more than one UUID
// across reachable registries, with no interactive agent available
// to disambiguate.
func AmbiguousPackage(name string, uuids []string) *Error {
	return &Error{Kind: KindAmbiguousPackage, Name: name, UUIDs: uuids,
		Message: fmt.Sprintf("%s: ambiguous, matches %d packages: %v", name, len(uuids), uuids)}
}

// RevNotFound reports a revision absent from both the cached remote
// ref and a literal object lookup, even after a fetch-and-retry.
func RevNotFound(url, rev string) *Error {
	return &Error{Kind: KindRevNotFound, URL: url, Rev: rev,
		Message: fmt.Sprintf("revision %q not found in %s", rev, url)}
}

// HashMismatch reports a downloaded artifact whose SHA-256 does not
// match the expected value after one retry.
func HashMismatch(url, expected, actual string) *Error {
	return &Error{Kind: KindHashMismatch, URL: url, Expected256: expected, Actual256: actual,
		Message: fmt.Sprintf("%s: sha256 mismatch: expected %s, got %s", url, expected, actual)}
}

// Unsatisfiable reports a resolver failure, naming the last
// preservation tier tried (for a tiered resolve, the loosest one);
// with an empty lastTier the message names no tier.
func Unsatisfiable(summary, lastTier string) *Error {
	msg := summary
	if lastTier != "" {
		msg = fmt.Sprintf("%s (last tier tried: %s)", summary, lastTier)
	}
	return &Error{Kind: KindUnsatisfiable, Summary: summary, LastTier: lastTier, Message: msg}
}

// NetworkRequired reports an operation that needed the network while
// OFFLINE was set.
func NetworkRequired(op string) *Error {
	return &Error{Kind: KindNetworkRequired, Message: fmt.Sprintf("%s requires network access but OFFLINE is set", op)}
}

// Interrupted reports user cancellation.
func Interrupted() *Error {
	return &Error{Kind: KindInterrupted, Message: "interrupted"}
}

// RegistryDirty reports a `registry up` precondition failure: the
// local clone has uncommitted changes.
func RegistryDirty(path string) *Error {
	return &Error{Kind: KindRegistryDirty, Path: path, Message: fmt.Sprintf("%s: registry clone is dirty", path)}
}

// RegistryDetached reports a `registry up` precondition failure: the
// local clone's HEAD is not on the tracked branch.
func RegistryDetached(path string) *Error {
	return &Error{Kind: KindRegistryDetached, Path: path, Message: fmt.Sprintf("%s: registry clone HEAD is detached", path)}
}

// Is reports whether err is itself a *depoterr.Error of kind k. It
// does not unwrap err, so an Error wrapped by another error does not
// match.
func Is(err error, k Kind) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == k
}
