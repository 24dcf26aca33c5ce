package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"capstan/internal/api"
)

// dirSource reads manifests from a local directory. There is no history
// to resolve against, so the revision is a SHA-256 over the sorted
// (path, contents) pairs of the tree: content-addressed like a commit.
type dirSource struct {
	root string
}

func newDirSource(root string) *dirSource {
	return &dirSource{root: root}
}

func (d *dirSource) Resolve(_ context.Context, ref string) (Revision, error) {
	sum, err := d.treeHash()
	if err != nil {
		return Revision{}, err
	}
	// A pinned revision can only be satisfied if the tree still hashes
	// to it; directories cannot time-travel.
	if refPinned(ref) && !strings.EqualFold(ref, sum) {
		return Revision{}, api.NewRevisionNotFound(
			fmt.Sprintf("resolve %q in %s", ref, d.root), true,
			fmt.Errorf("directory contents hash to %s", sum[:8]))
	}
	return Revision{SHA: sum, Ref: ref}, nil
}

func (d *dirSource) Load(_ context.Context, rev Revision, path string) ([]Document, error) {
	op := fmt.Sprintf("load %s", d.root)

	current, err := d.treeHash()
	if err != nil {
		return nil, err
	}
	if rev.SHA != "" && current != rev.SHA {
		return nil, api.NewRevisionNotFound(op, true,
			fmt.Errorf("directory changed since revision %s was resolved", rev.Short()))
	}

	// Clean against a rooted path so ".." cannot escape the source tree.
	dir := d.root
	rel := strings.Trim(path, "/")
	if rel != "" && rel != "." {
		dir = filepath.Join(d.root, filepath.Clean("/"+rel))
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return nil, api.NewParseError(rel, fmt.Errorf("path not found in %s", d.root))
	}

	var docs []Document
	err = filepath.WalkDir(dir, func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if skip, stop := skipEntry(dir, p, entry); skip {
			return stop
		}
		if !isManifest(entry.Name()) {
			return nil
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		name, err := filepath.Rel(d.root, p)
		if err != nil {
			return err
		}
		docs = append(docs, Document{Path: filepath.ToSlash(name), Raw: data})
		return nil
	})
	if err != nil {
		return nil, api.NewSourceUnavailable(op, err)
	}
	return docs, nil
}

// treeHash walks the whole source tree in lexical order and hashes every
// regular file. Hidden files and directories do not participate, so a
// .git directory next to the manifests does not churn the revision.
func (d *dirSource) treeHash() (string, error) {
	h := sha256.New()
	err := filepath.WalkDir(d.root, func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if skip, stop := skipEntry(d.root, p, entry); skip {
			return stop
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(d.root, p)
		if err != nil {
			return err
		}
		h.Write([]byte(filepath.ToSlash(rel)))
		h.Write([]byte{0})
		h.Write(data)
		h.Write([]byte{0})
		return nil
	})
	if err != nil {
		return "", api.NewSourceUnavailable(fmt.Sprintf("read %s", d.root), err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// skipEntry centralizes the walk rules: descend past the root, prune
// hidden directories, visit only regular non-hidden files.
func skipEntry(root, path string, entry fs.DirEntry) (skip bool, stop error) {
	if entry.IsDir() {
		if path != root && strings.HasPrefix(entry.Name(), ".") {
			return true, fs.SkipDir
		}
		return true, nil
	}
	if strings.HasPrefix(entry.Name(), ".") || !entry.Type().IsRegular() {
		return true, nil
	}
	return false, nil
}
