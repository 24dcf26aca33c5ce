package v1alpha1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// ApplicationPhase describes where an Application currently sits in its
// reconciliation state machine.
type ApplicationPhase string

const (
	// PhaseIdle means the Application is registered but no reconciliation
	// has run since creation or since its state was reset.
	PhaseIdle ApplicationPhase = "idle"
	// PhaseSyncing means a reconciliation is in flight.
	PhaseSyncing ApplicationPhase = "syncing"
	// PhaseRetrying means the last attempt hit a transient error and a
	// backed-off re-attempt is scheduled.
	PhaseRetrying ApplicationPhase = "retrying"
	// PhaseHealthy means the last sync applied cleanly and every resource
	// passed its health assessment.
	PhaseHealthy ApplicationPhase = "healthy"
	// PhaseDegraded means the last sync applied at the API level but one
	// or more resources did not converge within the health window.
	PhaseDegraded ApplicationPhase = "degraded"
	// PhaseFailed means the last attempt hit a permanent error; operator
	// action (or a spec change) is required before another attempt runs.
	PhaseFailed ApplicationPhase = "failed"
)

// HealthState is the aggregate workload health recorded on the status.
type HealthState string

const (
	HealthUnknown     HealthState = "unknown"
	HealthHealthy     HealthState = "healthy"
	HealthProgressing HealthState = "progressing"
	HealthDegraded    HealthState = "degraded"
)

// SourceSpec locates the desired manifests.
type SourceSpec struct {
	// RepoURL is the manifest source location: a git URL (https, ssh) or
	// a local directory path (optionally file://) for air-gapped use.
	// +kubebuilder:validation:Required
	// +kubebuilder:validation:MinLength=1
	RepoURL string `json:"repoURL" yaml:"repoURL"`

	// Path is the directory within the source that holds the manifests.
	// Defaults to the source root.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`

	// TargetRevision pins the revision to sync: a branch, tag, or commit
	// SHA for git sources. Empty means the default branch head. Directory
	// sources may pin a previously resolved content hash.
	TargetRevision string `json:"targetRevision,omitempty" yaml:"targetRevision,omitempty"`

	// Render enables template rendering of manifests before parsing.
	Render *RenderSpec `json:"render,omitempty" yaml:"render,omitempty"`
}

// RenderSpec configures the template pass applied to each manifest file.
type RenderSpec struct {
	// Enabled turns the render pass on.
	// +kubebuilder:default=false
	Enabled bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`

	// Values are exposed to templates as {{ .Values.<key> }}.
	Values map[string]string `json:"values,omitempty" yaml:"values,omitempty"`
}

// DestinationSpec identifies the cluster and namespace to converge.
type DestinationSpec struct {
	// Server is the Kubernetes API endpoint. Empty selects the ambient
	// configuration (kubeconfig current context, or in-cluster).
	Server string `json:"server,omitempty" yaml:"server,omitempty"`

	// Kubeconfig optionally names a kubeconfig file for this destination.
	Kubeconfig string `json:"kubeconfig,omitempty" yaml:"kubeconfig,omitempty"`

	// Namespace is applied to namespaced resources that do not set one.
	Namespace string `json:"namespace,omitempty" yaml:"namespace,omitempty"`
}

// SyncPolicySpec controls when and how aggressively the engine converges.
type SyncPolicySpec struct {
	// Automated enables syncing on every detected difference between the
	// resolved revision and the cluster. When nil, syncs run only on
	// manual triggers or Application spec changes.
	Automated *AutomatedSyncPolicy `json:"automated,omitempty" yaml:"automated,omitempty"`

	// Interval overrides the global resync interval for this Application.
	Interval *metav1.Duration `json:"interval,omitempty" yaml:"interval,omitempty"`

	// Retry overrides the global transient-error retry behavior.
	Retry *RetrySpec `json:"retry,omitempty" yaml:"retry,omitempty"`
}

// AutomatedSyncPolicy tunes automated reconciliation.
type AutomatedSyncPolicy struct {
	// Prune permits deletion of live resources that carry this
	// Application's ownership label but are gone from the desired set.
	// +kubebuilder:default=false
	Prune bool `json:"prune,omitempty" yaml:"prune,omitempty"`

	// SelfHeal triggers an immediate reconciliation when drift is
	// observed outside the engine's own actions.
	// +kubebuilder:default=false
	SelfHeal bool `json:"selfHeal,omitempty" yaml:"selfHeal,omitempty"`
}

// RetrySpec bounds transient-error retries.
type RetrySpec struct {
	// Limit caps consecutive transient failures before the Application is
	// parked as failed. Zero means unlimited.
	// +kubebuilder:validation:Minimum=0
	Limit int `json:"limit,omitempty" yaml:"limit,omitempty"`

	// Backoff shapes the delay between attempts.
	Backoff *BackoffSpec `json:"backoff,omitempty" yaml:"backoff,omitempty"`
}

// BackoffSpec is an exponential backoff description.
type BackoffSpec struct {
	// Duration is the base delay before the first retry.
	Duration *metav1.Duration `json:"duration,omitempty" yaml:"duration,omitempty"`

	// Factor multiplies the delay after each attempt.
	// +kubebuilder:validation:Minimum=1
	Factor int `json:"factor,omitempty" yaml:"factor,omitempty"`

	// MaxDuration caps the delay regardless of attempt count.
	MaxDuration *metav1.Duration `json:"maxDuration,omitempty" yaml:"maxDuration,omitempty"`
}

// ApplicationSpec defines the desired state of Application
type ApplicationSpec struct {
	// Source locates the manifests that describe the desired state.
	// +kubebuilder:validation:Required
	Source SourceSpec `json:"source" yaml:"source"`

	// Destination selects the cluster and default namespace to converge.
	Destination DestinationSpec `json:"destination,omitempty" yaml:"destination,omitempty"`

	// SyncPolicy controls automation, pruning, self-heal, and retries.
	SyncPolicy *SyncPolicySpec `json:"syncPolicy,omitempty" yaml:"syncPolicy,omitempty"`
}

// ActionCounts summarizes per-resource actions of one sync attempt.
type ActionCounts struct {
	Created   int `json:"created,omitempty" yaml:"created,omitempty"`
	Updated   int `json:"updated,omitempty" yaml:"updated,omitempty"`
	Pruned    int `json:"pruned,omitempty" yaml:"pruned,omitempty"`
	Unchanged int `json:"unchanged,omitempty" yaml:"unchanged,omitempty"`
	Failed    int `json:"failed,omitempty" yaml:"failed,omitempty"`
}

// SyncAttemptSummary condenses the last SyncResult for the status.
type SyncAttemptSummary struct {
	// OperationID identifies the attempt across logs, events, and the
	// sync history.
	OperationID string `json:"operationID,omitempty" yaml:"operationID,omitempty"`

	// Revision is the resolved, immutable revision the attempt compared.
	Revision string `json:"revision,omitempty" yaml:"revision,omitempty"`

	// Phase is the attempt outcome (healthy, degraded, failed).
	Phase ApplicationPhase `json:"phase,omitempty" yaml:"phase,omitempty"`

	// Actions counts what the executor did.
	Actions ActionCounts `json:"actions,omitempty" yaml:"actions,omitempty"`

	StartedAt  metav1.Time `json:"startedAt,omitempty" yaml:"startedAt,omitempty"`
	FinishedAt metav1.Time `json:"finishedAt,omitempty" yaml:"finishedAt,omitempty"`

	// Error holds the failure detail when Phase is failed.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

// ApplicationStatus defines the observed state of Application
type ApplicationStatus struct {
	// Phase is the current state-machine position.
	// +kubebuilder:validation:Enum=idle;syncing;retrying;healthy;degraded;failed
	Phase ApplicationPhase `json:"phase,omitempty" yaml:"phase,omitempty"`

	// Health is the aggregate workload health from the last assessment.
	// +kubebuilder:validation:Enum=unknown;healthy;progressing;degraded
	Health HealthState `json:"health,omitempty" yaml:"health,omitempty"`

	// SyncedRevision is the last revision applied successfully.
	SyncedRevision string `json:"syncedRevision,omitempty" yaml:"syncedRevision,omitempty"`

	// LastSyncTime is when the last attempt finished.
	LastSyncTime *metav1.Time `json:"lastSyncTime,omitempty" yaml:"lastSyncTime,omitempty"`

	// RetryCount is the number of consecutive transient failures.
	RetryCount int `json:"retryCount,omitempty" yaml:"retryCount,omitempty"`

	// NextAttemptTime is set while retrying: when the next attempt runs.
	NextAttemptTime *metav1.Time `json:"nextAttemptTime,omitempty" yaml:"nextAttemptTime,omitempty"`

	// LastError contains the error message from the most recent attempt.
	LastError string `json:"lastError,omitempty" yaml:"lastError,omitempty"`

	// LastResult summarizes the most recent completed sync attempt.
	LastResult *SyncAttemptSummary `json:"lastResult,omitempty" yaml:"lastResult,omitempty"`

	// Conditions represent the latest available observations of the
	// Application's state.
	Conditions []metav1.Condition `json:"conditions,omitempty" yaml:"conditions,omitempty"`
}

// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
// +kubebuilder:resource:shortName=capp
// +kubebuilder:printcolumn:name="Phase",type="string",JSONPath=".status.phase"
// +kubebuilder:printcolumn:name="Health",type="string",JSONPath=".status.health"
// +kubebuilder:printcolumn:name="Revision",type="string",JSONPath=".status.syncedRevision"
// +kubebuilder:printcolumn:name="Age",type="date",JSONPath=".metadata.creationTimestamp"

// Application is the Schema for the applications API: a desired-state
// source bound to a destination cluster plus the policy for converging
// one into the other.
type Application struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   ApplicationSpec   `json:"spec,omitempty"`
	Status ApplicationStatus `json:"status,omitempty"`
}

// +kubebuilder:object:root=true

// ApplicationList contains a list of Application
type ApplicationList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []Application `json:"items"`
}

func init() {
	SchemeBuilder.Register(&Application{}, &ApplicationList{})
}
