package api

import (
	"fmt"
	"time"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"

	v1alpha1 "capstan/pkg/apis/capstan/v1alpha1"
)

// ResourceKey identifies a resource across the desired and observed sets.
// Group disambiguates kinds that exist in more than one API group;
// cluster-scoped resources leave Namespace empty.
type ResourceKey struct {
	Group     string `json:"group,omitempty"`
	Kind      string `json:"kind"`
	Namespace string `json:"namespace,omitempty"`
	Name      string `json:"name"`
}

// KeyFor builds the key for an object. The API version is reduced to its
// group: two manifests for the same object at different versions are the
// same resource, not two.
func KeyFor(obj *unstructured.Unstructured) ResourceKey {
	gv, err := schema.ParseGroupVersion(obj.GetAPIVersion())
	if err != nil {
		// Malformed apiVersion values are caught during parsing; fall
		// back to the raw string so the key is still distinguishable.
		gv = schema.GroupVersion{Group: obj.GetAPIVersion()}
	}
	return ResourceKey{
		Group:     gv.Group,
		Kind:      obj.GetKind(),
		Namespace: obj.GetNamespace(),
		Name:      obj.GetName(),
	}
}

// String renders the key the way it appears in logs and sync results,
// e.g. "apps/Deployment ns1/web" or "Namespace ns1".
func (k ResourceKey) String() string {
	kind := k.Kind
	if k.Group != "" {
		kind = k.Group + "/" + k.Kind
	}
	if k.Namespace != "" {
		return fmt.Sprintf("%s %s/%s", kind, k.Namespace, k.Name)
	}
	return fmt.Sprintf("%s %s", kind, k.Name)
}

// Action is what the executor does to one resource during a sync.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionPrune  Action = "prune"
	ActionNoOp   Action = "noop"
)

// ActionResult records the outcome of one action within a sync attempt.
type ActionResult struct {
	Key     ResourceKey `json:"key"`
	Action  Action      `json:"action"`
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
}

// SyncResult records one reconciliation attempt end to end. Results are
// append-only: the engine keeps a bounded ring of them per Application.
type SyncResult struct {
	// OperationID ties the attempt together across logs and events.
	OperationID string `json:"operationID"`

	// Application names the Application this attempt belonged to.
	Application string `json:"application"`

	// Revision is the resolved immutable revision that was compared.
	Revision string `json:"revision"`

	// Phase is the attempt outcome: healthy, degraded, or failed.
	Phase v1alpha1.ApplicationPhase `json:"phase"`

	// Actions lists what was done, in execution order.
	Actions []ActionResult `json:"actions,omitempty"`

	// Error carries the failure detail when the attempt did not complete.
	Error string `json:"error,omitempty"`

	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

// Counts tallies the attempt's actions for status summaries.
func (r *SyncResult) Counts() v1alpha1.ActionCounts {
	var c v1alpha1.ActionCounts
	for _, a := range r.Actions {
		if !a.Success {
			c.Failed++
			continue
		}
		switch a.Action {
		case ActionCreate:
			c.Created++
		case ActionUpdate:
			c.Updated++
		case ActionPrune:
			c.Pruned++
		case ActionNoOp:
			c.Unchanged++
		}
	}
	return c
}

// TriggerReason says why a reconciliation was scheduled.
type TriggerReason string

const (
	// TriggerResync is the scheduled timer tick.
	TriggerResync TriggerReason = "resync"
	// TriggerSourceChange means the source poll resolved a new revision.
	TriggerSourceChange TriggerReason = "source-change"
	// TriggerSpecChange means the Application definition changed.
	TriggerSpecChange TriggerReason = "spec-change"
	// TriggerSelfHeal means the observer saw out-of-band drift.
	TriggerSelfHeal TriggerReason = "self-heal"
	// TriggerManual is an operator request via CLI or API.
	TriggerManual TriggerReason = "manual"
	// TriggerRetry is a backed-off re-attempt after a transient error.
	TriggerRetry TriggerReason = "retry"
)

// ApplicationSummary is the list-view projection of an Application.
type ApplicationSummary struct {
	Name           string                    `json:"name"`
	Source         string                    `json:"source"`
	Path           string                    `json:"path,omitempty"`
	TargetRevision string                    `json:"targetRevision,omitempty"`
	Destination    string                    `json:"destination,omitempty"`
	Automated      bool                      `json:"automated"`
	Phase          v1alpha1.ApplicationPhase `json:"phase"`
	Health         v1alpha1.HealthState      `json:"health"`
	SyncedRevision string                    `json:"syncedRevision,omitempty"`
	LastSyncTime   *time.Time                `json:"lastSyncTime,omitempty"`
	Message        string                    `json:"message,omitempty"`
}

// ApplicationDetail is the single-Application projection, carrying the
// full spec and the most recent attempt.
type ApplicationDetail struct {
	ApplicationSummary

	Spec            v1alpha1.ApplicationSpec `json:"spec"`
	RetryCount      int                      `json:"retryCount,omitempty"`
	NextAttemptTime *time.Time               `json:"nextAttemptTime,omitempty"`
	LastResult      *SyncResult              `json:"lastResult,omitempty"`
}

// SyncRequest is the manual trigger payload accepted by the status API.
type SyncRequest struct {
	// Revision optionally pins the revision to sync instead of the
	// Application's configured target.
	Revision string `json:"revision,omitempty"`

	// Prune permits pruning for this one attempt even when the policy
	// does not enable it.
	Prune bool `json:"prune,omitempty"`
}
