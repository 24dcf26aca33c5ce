package api

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReconcileErrorMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      *ReconcileError
		expected string
	}{
		{
			name:     "kind op and cause",
			err:      NewSourceUnavailable("fetch", errors.New("connection refused")),
			expected: "SourceUnavailable: fetch: connection refused",
		},
		{
			name:     "parse error names the file",
			err:      NewParseError("manifests/web.yaml", errors.New("yaml: line 7: mapping values are not allowed")),
			expected: "ParseError: parse: manifests/web.yaml: yaml: line 7: mapping values are not allowed",
		},
		{
			name:     "no cause",
			err:      &ReconcileError{Kind: KindConflict, Op: "apply"},
			expected: "Conflict: apply",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		transient bool
		permanent bool
	}{
		{
			name:      "source unavailable is transient",
			err:       NewSourceUnavailable("fetch", errors.New("timeout")),
			transient: true,
		},
		{
			name:      "destination unreachable is transient",
			err:       NewDestinationUnreachable("list", errors.New("dial tcp: refused")),
			transient: true,
		},
		{
			name:      "conflict is transient",
			err:       NewConflict("apply", errors.New("the object has been modified")),
			transient: true,
		},
		{
			name:      "parse error is permanent",
			err:       NewParseError("broken.yaml", errors.New("bad indent")),
			permanent: true,
		},
		{
			name:      "unauthorized is permanent",
			err:       NewUnauthorized("fetch", errors.New("401")),
			permanent: true,
		},
		{
			name:      "symbolic revision miss is transient",
			err:       NewRevisionNotFound("resolve", false, errors.New("unknown ref")),
			transient: true,
		},
		{
			name:      "pinned revision miss is permanent",
			err:       NewRevisionNotFound("resolve", true, errors.New("unknown sha")),
			permanent: true,
		},
		{
			name:      "unclassified errors retry",
			err:       errors.New("something odd"),
			transient: true,
		},
		{
			name: "wrapped errors keep their kind",
			err: fmt.Errorf("sync hello-web: %w",
				NewDestinationUnreachable("observe", errors.New("refused"))),
			transient: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.transient, IsTransient(tt.err), "IsTransient")
			assert.Equal(t, tt.permanent, IsPermanent(tt.err), "IsPermanent")
		})
	}
}

func TestHealthTimeoutIsNeitherRetriedNorPermanent(t *testing.T) {
	err := NewHealthCheckTimeout("assess", errors.New("deployment web not converged"))

	assert.False(t, IsTransient(err))
	assert.False(t, IsPermanent(err))
	assert.True(t, IsHealthTimeout(err))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindConflict, KindOf(NewConflict("apply", nil)))
	assert.Equal(t, ErrorKind(""), KindOf(errors.New("plain")))
	assert.Equal(t, KindParseError,
		KindOf(fmt.Errorf("wrapped: %w", NewParseError("x.yaml", nil))))
}

func TestNotFoundError(t *testing.T) {
	err := NewApplicationNotFoundError("hello-web")
	assert.Equal(t, "application hello-web not found", err.Error())
	assert.True(t, IsNotFound(err))
	assert.True(t, IsNotFound(fmt.Errorf("trigger: %w", err)))
	assert.False(t, IsNotFound(errors.New("other")))
}
