// Package source reads desired state out of manifest sources.
//
// A source is a location (git remote or local directory) plus a revision
// pointer (branch, tag, or pinned hash). Resolving a pointer yields an
// immutable Revision; loading a Revision yields the manifest documents
// declared under the Application's path, optionally rendered through
// text/template with the sprig function map, and finally parsed into
// unstructured Kubernetes objects.
//
// The package guarantees idempotence per revision: the same resolved
// Revision always yields the same bundle, which is what makes the
// Reader's revision-keyed cache safe. Symbolic pointers are re-resolved
// on every poll; resolved content is never re-read.
//
// Error classification follows the engine's retry taxonomy: unreachable
// locations surface as SourceUnavailable (transient), unresolvable
// pointers as RevisionNotFound (permanent when the pointer was a pinned
// hash), malformed manifests as ParseError (permanent), and rejected
// credentials as Unauthorized (permanent).
package source
