package api

import (
	"errors"
	"fmt"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
)

// ErrorKind classifies a reconciliation failure. The kind decides how the
// engine reacts: transient kinds are retried with backoff while the
// Application shows Retrying; permanent kinds park the Application as
// Failed until an operator intervenes.
type ErrorKind string

const (
	// KindSourceUnavailable means the manifest source could not be reached
	// (network failure, remote down). Transient.
	KindSourceUnavailable ErrorKind = "SourceUnavailable"

	// KindRevisionNotFound means the revision pointer did not resolve.
	// Transient for symbolic pointers (the branch may appear or move),
	// permanent for pinned content hashes.
	KindRevisionNotFound ErrorKind = "RevisionNotFound"

	// KindParseError means a manifest is malformed. Permanent: retrying
	// cannot fix a configuration defect, the source must change.
	KindParseError ErrorKind = "ParseError"

	// KindDestinationUnreachable means the cluster API is not responding.
	// Transient.
	KindDestinationUnreachable ErrorKind = "DestinationUnreachable"

	// KindConflict means an optimistic-concurrency write lost the race.
	// Transient: the next cycle re-diffs against fresh state.
	KindConflict ErrorKind = "Conflict"

	// KindHealthCheckTimeout means the sync applied at the API level but a
	// workload did not converge within the health window. Grades the sync
	// Degraded, never Failed.
	KindHealthCheckTimeout ErrorKind = "HealthCheckTimeout"

	// KindUnauthorized means credentials were rejected by the source or
	// the destination. Permanent.
	KindUnauthorized ErrorKind = "Unauthorized"
)

// ReconcileError is the typed error flowing out of the source reader,
// observer, diff engine, and executor into the reconciliation loop.
type ReconcileError struct {
	// Kind classifies the failure for retry policy decisions.
	Kind ErrorKind

	// Op names the operation that failed (e.g. "resolve", "apply").
	Op string

	// Path optionally names the manifest file involved (parse errors).
	Path string

	// Pinned marks RevisionNotFound errors for exact content addresses,
	// which never resolve later and are therefore permanent.
	Pinned bool

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *ReconcileError) Error() string {
	switch {
	case e.Path != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %s: %v", e.Kind, e.Op, e.Path, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
	case e.Path != "":
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Op, e.Path)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	}
}

// Unwrap exposes the cause to errors.Is/As chains.
func (e *ReconcileError) Unwrap() error {
	return e.Err
}

// NewReconcileError creates a ReconcileError of the given kind.
func NewReconcileError(kind ErrorKind, op string, err error) *ReconcileError {
	return &ReconcileError{Kind: kind, Op: op, Err: err}
}

// NewSourceUnavailable wraps a source connectivity failure.
func NewSourceUnavailable(op string, err error) *ReconcileError {
	return NewReconcileError(KindSourceUnavailable, op, err)
}

// NewRevisionNotFound wraps an unresolvable revision pointer. pinned
// marks exact content addresses, which makes the error permanent.
func NewRevisionNotFound(op string, pinned bool, err error) *ReconcileError {
	return &ReconcileError{Kind: KindRevisionNotFound, Op: op, Pinned: pinned, Err: err}
}

// NewParseError wraps a malformed manifest, naming the offending file.
func NewParseError(path string, err error) *ReconcileError {
	return &ReconcileError{Kind: KindParseError, Op: "parse", Path: path, Err: err}
}

// NewDestinationUnreachable wraps a cluster connectivity failure.
func NewDestinationUnreachable(op string, err error) *ReconcileError {
	return NewReconcileError(KindDestinationUnreachable, op, err)
}

// NewConflict wraps an optimistic-concurrency failure.
func NewConflict(op string, err error) *ReconcileError {
	return NewReconcileError(KindConflict, op, err)
}

// NewHealthCheckTimeout records a health assessment that ran out of time.
func NewHealthCheckTimeout(op string, err error) *ReconcileError {
	return NewReconcileError(KindHealthCheckTimeout, op, err)
}

// NewUnauthorized wraps a credential rejection.
func NewUnauthorized(op string, err error) *ReconcileError {
	return NewReconcileError(KindUnauthorized, op, err)
}

// FromK8sError classifies a Kubernetes API error into the taxonomy:
// rejected credentials are permanent, optimistic-concurrency conflicts
// transient, and anything else counts as an unreachable destination. The
// caller handles IsNotFound itself, because whether a 404 is an error
// depends entirely on the operation.
func FromK8sError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case apierrors.IsUnauthorized(err) || apierrors.IsForbidden(err):
		return NewUnauthorized(op, err)
	case apierrors.IsConflict(err):
		return NewConflict(op, err)
	default:
		return NewDestinationUnreachable(op, err)
	}
}

// KindOf extracts the ErrorKind from an error chain. Unclassified errors
// return the empty kind.
func KindOf(err error) ErrorKind {
	var re *ReconcileError
	if errors.As(err, &re) {
		return re.Kind
	}
	return ""
}

// IsTransient reports whether the engine should retry with backoff
// rather than fail the Application. Unclassified errors count as
// transient so that an unknown failure never parks an Application
// forever.
func IsTransient(err error) bool {
	var re *ReconcileError
	if !errors.As(err, &re) {
		return true
	}
	switch re.Kind {
	case KindSourceUnavailable, KindDestinationUnreachable, KindConflict:
		return true
	case KindRevisionNotFound:
		return !re.Pinned
	default:
		return false
	}
}

// IsPermanent reports whether the failure requires operator action.
func IsPermanent(err error) bool {
	var re *ReconcileError
	if !errors.As(err, &re) {
		return false
	}
	switch re.Kind {
	case KindParseError, KindUnauthorized:
		return true
	case KindRevisionNotFound:
		return re.Pinned
	default:
		return false
	}
}

// IsHealthTimeout reports whether the failure is a health window
// expiration, which degrades the sync instead of failing it.
func IsHealthTimeout(err error) bool {
	return KindOf(err) == KindHealthCheckTimeout
}

// NotFoundError represents a lookup miss with contextual information.
type NotFoundError struct {
	// ResourceType categorizes what was looked up (e.g. "application").
	ResourceType string

	// ResourceName is the identifier that missed.
	ResourceName string
}

// Error implements the error interface for NotFoundError.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.ResourceType, e.ResourceName)
}

// IsNotFound checks if an error is a NotFoundError using error
// unwrapping.
func IsNotFound(err error) bool {
	var notFoundErr *NotFoundError
	return errors.As(err, &notFoundErr)
}

// NewApplicationNotFoundError creates an Application not found error.
func NewApplicationNotFoundError(name string) *NotFoundError {
	return &NotFoundError{ResourceType: "application", ResourceName: name}
}
