package registry

import (
	"context"
	"time"

	v1alpha1 "capstan/pkg/apis/capstan/v1alpha1"
)

// ChangeOperation describes what happened to an Application definition.
type ChangeOperation string

const (
	// OperationCreate indicates a new Application was registered.
	OperationCreate ChangeOperation = "Create"

	// OperationUpdate indicates an existing Application's spec changed.
	OperationUpdate ChangeOperation = "Update"

	// OperationDelete indicates an Application was removed.
	OperationDelete ChangeOperation = "Delete"
)

// ChangeEvent is emitted when the set of Application definitions
// changes, regardless of which store backs the registry.
type ChangeEvent struct {
	// Name is the Application the change applies to.
	Name string

	// Operation describes the kind of change.
	Operation ChangeOperation

	// Timestamp is when the change was observed.
	Timestamp time.Time
}

// Store is a backend holding Application definitions. Implementations
// exist for a watched YAML directory and for in-cluster custom
// resources.
type Store interface {
	// Start loads the current definitions and begins watching for
	// changes, sending them to the provided channel. Initial content
	// does not produce events; the caller lists after Start.
	Start(ctx context.Context, changes chan<- ChangeEvent) error

	// Stop ends watching. Safe to call more than once.
	Stop() error

	// List returns copies of all known Applications.
	List() []*v1alpha1.Application

	// Get returns a copy of one Application by name.
	Get(name string) (*v1alpha1.Application, bool)
}
