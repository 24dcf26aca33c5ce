package source

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOpen_BackendSelection(t *testing.T) {
	opts := Options{CacheDir: t.TempDir(), FetchTimeout: time.Minute}

	tests := []struct {
		name    string
		repoURL string
		wantGit bool
	}{
		{name: "https remote", repoURL: "https://github.com/acme/manifests.git", wantGit: true},
		{name: "ssh remote", repoURL: "ssh://git@github.com/acme/manifests.git", wantGit: true},
		{name: "scp-style remote", repoURL: "git@github.com:acme/manifests.git", wantGit: true},
		{name: "file url", repoURL: "file:///srv/manifests", wantGit: false},
		{name: "absolute path", repoURL: "/srv/manifests", wantGit: false},
		{name: "relative path", repoURL: "./manifests", wantGit: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := Open(tt.repoURL, opts)
			_, isGit := src.(*gitSource)
			assert.Equal(t, tt.wantGit, isGit)
		})
	}
}

func TestRefPinned(t *testing.T) {
	tests := []struct {
		ref  string
		want bool
	}{
		{ref: "main", want: false},
		{ref: "v1.2.3", want: false},
		{ref: "", want: false},
		{ref: "deadbeef", want: false},
		{ref: "0123456789abcdef0123456789abcdef01234567", want: true},
		{ref: "0123456789ABCDEF0123456789ABCDEF01234567", want: true},
		{ref: "0123456789abcdef0123456789abcdef0123456g", want: false},
		{ref: "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08", want: true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, refPinned(tt.ref), "ref %q", tt.ref)
	}
}

func TestIsManifest(t *testing.T) {
	assert.True(t, isManifest("app.yaml"))
	assert.True(t, isManifest("app.yml"))
	assert.True(t, isManifest("app.json"))
	assert.False(t, isManifest("README.md"))
	assert.False(t, isManifest("kustomization"))
	assert.False(t, isManifest("app.yaml.bak"))
}
