package events

import (
	"time"
)

// EventType represents the type/severity of a Kubernetes Event.
type EventType string

const (
	// EventTypeNormal indicates normal, non-problematic events.
	EventTypeNormal EventType = "Normal"

	// EventTypeWarning indicates events that may require attention.
	EventTypeWarning EventType = "Warning"
)

// EventReason represents the reason code for an event.
type EventReason string

// Sync lifecycle event reasons
const (
	// ReasonSyncStarted indicates a sync attempt began executing.
	ReasonSyncStarted EventReason = "SyncStarted"

	// ReasonSyncSucceeded indicates a sync attempt applied cleanly and the
	// workloads converged.
	ReasonSyncSucceeded EventReason = "SyncSucceeded"

	// ReasonSyncFailed indicates a sync attempt stopped on an error.
	ReasonSyncFailed EventReason = "SyncFailed"

	// ReasonSyncRetrying indicates a failed sync attempt was scheduled for
	// another try after a backoff delay.
	ReasonSyncRetrying EventReason = "SyncRetrying"
)

// Drift and prune event reasons
const (
	// ReasonDriftDetected indicates live cluster state diverged from the
	// synced revision outside of capstan.
	ReasonDriftDetected EventReason = "DriftDetected"

	// ReasonResourcePruned indicates a tracked resource absent from the
	// desired revision was deleted from the cluster.
	ReasonResourcePruned EventReason = "ResourcePruned"
)

// Health event reasons
const (
	// ReasonHealthDegraded indicates workloads failed to converge within
	// the health timeout or reported a terminal condition.
	ReasonHealthDegraded EventReason = "HealthDegraded"
)

// Registration event reasons
const (
	// ReasonApplicationRegistered indicates a new Application definition
	// entered the registry.
	ReasonApplicationRegistered EventReason = "ApplicationRegistered"

	// ReasonApplicationUpdated indicates an Application definition changed.
	ReasonApplicationUpdated EventReason = "ApplicationUpdated"

	// ReasonApplicationRemoved indicates an Application definition left the
	// registry.
	ReasonApplicationRemoved EventReason = "ApplicationRemoved"
)

// EventData holds contextual information for event message templating.
type EventData struct {
	// Name is the name of the Application involved in the event.
	Name string

	// Revision is the manifest revision the event relates to.
	Revision string

	// Trigger is the reason the reconciliation ran (resync, source-change,
	// manual, ...).
	Trigger string

	// Resource identifies a single cluster resource for drift and prune
	// events, e.g. "apps/Deployment default/web".
	Resource string

	// Error contains error information for failure events.
	Error string

	// Duration is the duration of a sync attempt.
	Duration time.Duration

	// Changes is the number of resources the attempt created, updated or
	// pruned.
	Changes int
}

// getEventType returns the appropriate EventType for a given EventReason.
func getEventType(reason EventReason) EventType {
	switch reason {
	case ReasonSyncFailed,
		ReasonSyncRetrying,
		ReasonDriftDetected,
		ReasonHealthDegraded:
		return EventTypeWarning
	default:
		return EventTypeNormal
	}
}
