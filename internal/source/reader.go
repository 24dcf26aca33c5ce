package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	v1alpha1 "capstan/pkg/apis/capstan/v1alpha1"
	"capstan/pkg/logging"
)

// bundleCacheSize bounds the parsed-bundle cache. Entries are keyed by
// immutable revisions, so eviction only ever costs a re-parse.
const bundleCacheSize = 64

// Reader is the engine-facing entry point to manifest sources. It owns
// one backend per repository URL, caches parsed bundles per revision,
// and collapses concurrent loads of the same revision into a single
// backend call. Safe for concurrent use.
type Reader struct {
	opts Options

	mu      sync.Mutex
	sources map[string]Source

	bundles *lru.Cache[string, *Bundle]
	group   singleflight.Group
}

func NewReader(opts Options) *Reader {
	cache, err := lru.New[string, *Bundle](bundleCacheSize)
	if err != nil {
		// Only reachable with a non-positive size constant.
		panic(err)
	}
	return &Reader{
		opts:    opts,
		sources: make(map[string]Source),
		bundles: cache,
	}
}

// source returns the backend for a repository URL, creating it on first
// use so every Application sharing a repository shares one clone.
func (r *Reader) source(repoURL string) Source {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sources[repoURL]; ok {
		return s
	}
	s := Open(repoURL, r.opts)
	r.sources[repoURL] = s
	return s
}

// Resolve resolves the Application's target revision without loading any
// manifests. The engine polls this to notice upstream changes.
func (r *Reader) Resolve(ctx context.Context, app *v1alpha1.Application) (Revision, error) {
	return r.source(app.Spec.Source.RepoURL).Resolve(ctx, app.Spec.Source.TargetRevision)
}

// ResolveRef resolves an explicit ref against the Application's source,
// used by manual syncs that pin a revision other than the target.
func (r *Reader) ResolveRef(ctx context.Context, app *v1alpha1.Application, ref string) (Revision, error) {
	return r.source(app.Spec.Source.RepoURL).Resolve(ctx, ref)
}

// Fetch resolves the Application's target revision and returns the
// parsed bundle for it.
func (r *Reader) Fetch(ctx context.Context, app *v1alpha1.Application) (*Bundle, error) {
	rev, err := r.Resolve(ctx, app)
	if err != nil {
		return nil, err
	}
	return r.FetchRevision(ctx, app, rev)
}

// FetchRevision returns the parsed bundle for an already-resolved
// revision. Concurrent calls for the same revision share one load.
func (r *Reader) FetchRevision(ctx context.Context, app *v1alpha1.Application, rev Revision) (*Bundle, error) {
	key := bundleKey(app, rev)
	if b, ok := r.bundles.Get(key); ok {
		logging.Debug("Source", "Bundle cache hit for %s at %s", app.Name, rev.Short())
		return b, nil
	}

	v, err, _ := r.group.Do(key, func() (interface{}, error) {
		if b, ok := r.bundles.Get(key); ok {
			return b, nil
		}
		b, err := r.load(ctx, app, rev)
		if err != nil {
			return nil, err
		}
		r.bundles.Add(key, b)
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Bundle), nil
}

func (r *Reader) load(ctx context.Context, app *v1alpha1.Application, rev Revision) (*Bundle, error) {
	docs, err := r.source(app.Spec.Source.RepoURL).Load(ctx, rev, app.Spec.Source.Path)
	if err != nil {
		return nil, err
	}
	if render := app.Spec.Source.Render; render != nil && render.Enabled {
		if docs, err = renderDocuments(docs, app); err != nil {
			return nil, err
		}
	}
	objects, err := parseDocuments(docs)
	if err != nil {
		return nil, err
	}
	logging.Debug("Source", "Loaded %d objects for %s at %s", len(objects), app.Name, rev.Short())
	return &Bundle{Revision: rev, Objects: objects}, nil
}

// bundleKey builds the cache key for a parsed bundle: repository,
// revision, path within the repository, and the render inputs. Revisions
// are immutable, so entries never need invalidation.
func bundleKey(app *v1alpha1.Application, rev Revision) string {
	repo := sha256.Sum256([]byte(app.Spec.Source.RepoURL))
	return fmt.Sprintf("%s|%s|%s|%s",
		hex.EncodeToString(repo[:8]), rev.SHA, app.Spec.Source.Path, renderFingerprint(app))
}

// renderFingerprint digests everything that can change a render's
// output. Empty when rendering is disabled.
func renderFingerprint(app *v1alpha1.Application) string {
	r := app.Spec.Source.Render
	if r == nil || !r.Enabled {
		return ""
	}
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00", app.Name, app.Spec.Destination.Namespace)
	keys := make([]string, 0, len(r.Values))
	for k := range r.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(h, "%s=%s\x00", k, r.Values[k])
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}
