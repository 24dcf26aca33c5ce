package source

import (
	"context"
	"strings"
	"time"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

// Revision is a resolved, immutable snapshot identifier. For git sources
// it is the full commit SHA; for directory sources it is a SHA-256 over
// the tree contents. Ref preserves the symbolic pointer it was resolved
// from, when there was one.
type Revision struct {
	SHA string `json:"sha"`
	Ref string `json:"ref,omitempty"`
}

// Short returns the abbreviated revision used in log lines and tables.
func (r Revision) Short() string {
	if len(r.SHA) > 8 {
		return r.SHA[:8]
	}
	return r.SHA
}

// Document is one raw manifest file read from a source, before any
// rendering or decoding.
type Document struct {
	Path string
	Raw  []byte
}

// Bundle is the fully parsed result of reading one revision: the objects
// an Application declares, in file-then-document order.
type Bundle struct {
	Revision Revision
	Objects  []*unstructured.Unstructured
}

// Options configures source backends.
type Options struct {
	// CacheDir is where git backends keep their bare clones.
	CacheDir string
	// FetchTimeout bounds a single network operation (clone or fetch).
	FetchTimeout time.Duration
}

// Source resolves symbolic revision pointers and reads manifest files at
// a resolved revision. Implementations must be safe for concurrent use.
//
// Load is idempotent: calling it twice with the same resolved revision
// returns byte-identical documents.
type Source interface {
	// Resolve turns a ref (branch, tag, abbreviated or full hash; empty
	// means the default branch) into a concrete Revision.
	Resolve(ctx context.Context, ref string) (Revision, error)

	// Load reads every manifest file under path at the given revision.
	Load(ctx context.Context, rev Revision, path string) ([]Document, error)
}

// Open picks the backend for a repository URL. Local paths and file://
// URLs get the directory backend; everything else is treated as a git
// remote.
func Open(repoURL string, opts Options) Source {
	if local, path := splitLocal(repoURL); local {
		return newDirSource(path)
	}
	return newGitSource(repoURL, opts)
}

// splitLocal reports whether the URL names a local directory and returns
// the filesystem path. scp-style URLs (git@host:path) are remote even
// though they carry no scheme.
func splitLocal(repoURL string) (bool, string) {
	if strings.HasPrefix(repoURL, "file://") {
		return true, strings.TrimPrefix(repoURL, "file://")
	}
	if strings.Contains(repoURL, "://") || strings.HasPrefix(repoURL, "git@") {
		return false, ""
	}
	return true, repoURL
}

// isManifest reports whether a file name is one the parser understands.
func isManifest(name string) bool {
	switch {
	case strings.HasSuffix(name, ".yaml"), strings.HasSuffix(name, ".yml"), strings.HasSuffix(name, ".json"):
		return true
	}
	return false
}

// refPinned reports whether ref is a full content hash (40 hex chars for
// git commits, 64 for directory tree hashes) rather than a symbolic
// pointer. Pinned refs that fail to resolve are permanent errors.
func refPinned(ref string) bool {
	if len(ref) != 40 && len(ref) != 64 {
		return false
	}
	for _, c := range ref {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
