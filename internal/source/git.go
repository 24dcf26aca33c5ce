package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"

	"capstan/internal/api"
	"capstan/pkg/logging"
)

// gitSource reads manifests from a git remote through a bare mirror
// clone in the cache directory. Files are read straight from commit
// trees; no worktree is ever checked out.
type gitSource struct {
	url          string
	cachePath    string
	fetchTimeout time.Duration

	// mu serializes clone and fetch against tree reads. Loads of an
	// already-fetched revision only pay for it while a fetch is running.
	mu sync.Mutex
}

func newGitSource(repoURL string, opts Options) *gitSource {
	digest := sha256.Sum256([]byte(repoURL))
	return &gitSource{
		url:          repoURL,
		cachePath:    filepath.Join(opts.CacheDir, "repos", hex.EncodeToString(digest[:])),
		fetchTimeout: opts.FetchTimeout,
	}
}

func (s *gitSource) Resolve(ctx context.Context, ref string) (Revision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ref == "" {
		ref = "HEAD"
	}
	op := fmt.Sprintf("resolve %q in %s", ref, s.url)

	repo, fresh, err := s.ensureRepo(ctx)
	if err != nil {
		return Revision{}, err
	}

	// Pinned hashes never move, so a commit we already have needs no
	// network round trip.
	if refPinned(ref) && len(ref) == 40 {
		sha := strings.ToLower(ref)
		if _, err := repo.CommitObject(plumbing.NewHash(sha)); err == nil {
			return Revision{SHA: sha, Ref: ref}, nil
		}
	}

	if !fresh {
		if err := s.fetch(ctx, repo); err != nil {
			return Revision{}, err
		}
	}

	hash, err := repo.ResolveRevision(plumbing.Revision(ref))
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) || errors.Is(err, plumbing.ErrObjectNotFound) {
			return Revision{}, api.NewRevisionNotFound(op, refPinned(ref), err)
		}
		return Revision{}, api.NewSourceUnavailable(op, err)
	}
	return Revision{SHA: hash.String(), Ref: ref}, nil
}

func (s *gitSource) Load(ctx context.Context, rev Revision, path string) ([]Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	op := fmt.Sprintf("load %s at %s", s.url, rev.Short())

	repo, _, err := s.ensureRepo(ctx)
	if err != nil {
		return nil, err
	}

	commit, err := repo.CommitObject(plumbing.NewHash(rev.SHA))
	if errors.Is(err, plumbing.ErrObjectNotFound) {
		// The cache can lose objects between resolve and load (wiped
		// directory, fresh replica). One fetch before giving up.
		if ferr := s.fetch(ctx, repo); ferr != nil {
			return nil, ferr
		}
		commit, err = repo.CommitObject(plumbing.NewHash(rev.SHA))
	}
	if err != nil {
		return nil, api.NewRevisionNotFound(op, true, err)
	}

	tree, err := commit.Tree()
	if err != nil {
		return nil, api.NewSourceUnavailable(op, err)
	}

	dir := strings.Trim(path, "/")
	if dir != "" && dir != "." {
		sub, err := tree.Tree(dir)
		if err != nil {
			return nil, api.NewParseError(dir, fmt.Errorf("path not found at revision %s: %w", rev.Short(), err))
		}
		tree = sub
	}

	var docs []Document
	err = tree.Files().ForEach(func(f *object.File) error {
		if !isManifest(f.Name) {
			return nil
		}
		content, err := f.Contents()
		if err != nil {
			return err
		}
		name := f.Name
		if dir != "" && dir != "." {
			name = dir + "/" + name
		}
		docs = append(docs, Document{Path: name, Raw: []byte(content)})
		return nil
	})
	if err != nil {
		return nil, api.NewSourceUnavailable(op, err)
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].Path < docs[j].Path })
	return docs, nil
}

// ensureRepo opens the cached mirror, cloning it first if this is the
// first contact with the remote. fresh reports that a clone just
// happened, so callers can skip an immediate fetch.
func (s *gitSource) ensureRepo(ctx context.Context) (repo *git.Repository, fresh bool, err error) {
	repo, err = git.PlainOpen(s.cachePath)
	if err == nil {
		return repo, false, nil
	}
	if !errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, false, api.NewSourceUnavailable(fmt.Sprintf("open cache for %s", s.url), err)
	}

	if err := os.MkdirAll(filepath.Dir(s.cachePath), 0o755); err != nil {
		return nil, false, api.NewSourceUnavailable(fmt.Sprintf("create cache for %s", s.url), err)
	}

	logging.Info("Source", "Cloning %s", s.url)
	cctx, cancel := s.networkContext(ctx)
	defer cancel()

	repo, err = git.PlainCloneContext(cctx, s.cachePath, true, &git.CloneOptions{
		URL:    s.url,
		Mirror: true,
		Tags:   git.AllTags,
	})
	if err != nil {
		// A half-written clone would poison every later open.
		_ = os.RemoveAll(s.cachePath)
		return nil, false, s.transportError(fmt.Sprintf("clone %s", s.url), err)
	}
	return repo, true, nil
}

func (s *gitSource) fetch(ctx context.Context, repo *git.Repository) error {
	fctx, cancel := s.networkContext(ctx)
	defer cancel()

	err := repo.FetchContext(fctx, &git.FetchOptions{
		RemoteName: git.DefaultRemoteName,
		Force:      true,
		Prune:      true,
		Tags:       git.AllTags,
	})
	if err == nil || errors.Is(err, git.NoErrAlreadyUpToDate) {
		return nil
	}
	return s.transportError(fmt.Sprintf("fetch %s", s.url), err)
}

func (s *gitSource) networkContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.fetchTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.fetchTimeout)
}

func (s *gitSource) transportError(op string, err error) error {
	if errors.Is(err, transport.ErrAuthenticationRequired) || errors.Is(err, transport.ErrAuthorizationFailed) {
		return api.NewUnauthorized(op, err)
	}
	return api.NewSourceUnavailable(op, err)
}
