package engine

import (
	"reflect"
	"sort"
	"sync"
	"time"

	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"

	"capstan/internal/api"
	v1alpha1 "capstan/pkg/apis/capstan/v1alpha1"
)

// defaultHistoryLimit bounds the per-Application sync result ring when
// the configuration does not say otherwise.
const defaultHistoryLimit = 20

// conditionSynced is the single condition the tracker maintains on each
// Application's status.
const conditionSynced = "Synced"

// appState is everything the engine knows about one Application beyond
// its definition: the live status, the retained sync results, the
// consecutive transient-failure count, and the union of kinds ever
// applied for it. The last one is what lets a later sync prune resources
// whose kind left the desired set entirely.
type appState struct {
	app     *v1alpha1.Application
	status  v1alpha1.ApplicationStatus
	history []api.SyncResult
	attempt int
	gvks    []schema.GroupVersionKind
}

// trackedState is a copied projection of one Application's runtime
// state. Holders may read it without locking.
type trackedState struct {
	App    *v1alpha1.Application
	Status v1alpha1.ApplicationStatus
}

// statusTracker holds the runtime state of every registered Application.
// State lives in memory only: a restart starts every Application back at
// idle and the next reconciliation rebuilds the rest.
type statusTracker struct {
	mu    sync.RWMutex
	limit int
	apps  map[string]*appState
}

func newStatusTracker(historyLimit int) *statusTracker {
	if historyLimit <= 0 {
		historyLimit = defaultHistoryLimit
	}
	return &statusTracker{
		limit: historyLimit,
		apps:  make(map[string]*appState),
	}
}

// upsert stores a definition, creating idle state for new Applications.
// A changed spec resets the transient-failure counter and lifts a failed
// park, so the definition change gets a clean first attempt.
func (t *statusTracker) upsert(app *v1alpha1.Application) (specChanged bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	copied := app.DeepCopy()
	st, ok := t.apps[app.Name]
	if !ok {
		st = &appState{
			app: copied,
			status: v1alpha1.ApplicationStatus{
				Phase:  v1alpha1.PhaseIdle,
				Health: v1alpha1.HealthUnknown,
			},
		}
		setSyncedCondition(st)
		t.apps[app.Name] = st
		return true
	}

	specChanged = !reflect.DeepEqual(st.app.Spec, copied.Spec)
	st.app = copied
	if specChanged {
		st.attempt = 0
		st.status.RetryCount = 0
		st.status.NextAttemptTime = nil
		if st.status.Phase == v1alpha1.PhaseFailed || st.status.Phase == v1alpha1.PhaseRetrying {
			st.status.Phase = v1alpha1.PhaseIdle
		}
		setSyncedCondition(st)
	}
	return specChanged
}

// remove drops an Application and returns what the deletion cascade
// needs: the last definition and the kinds ever applied for it.
func (t *statusTracker) remove(name string) (*v1alpha1.Application, []schema.GroupVersionKind, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	st, ok := t.apps[name]
	if !ok {
		return nil, nil, false
	}
	delete(t.apps, name)
	return st.app, st.gvks, true
}

// get returns one Application's state, or false when it is unknown.
func (t *statusTracker) get(name string) (trackedState, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	st, ok := t.apps[name]
	if !ok {
		return trackedState{}, false
	}
	return trackedState{App: st.app.DeepCopy(), Status: *st.status.DeepCopy()}, true
}

// list returns the state of every Application, sorted by name.
func (t *statusTracker) list() []trackedState {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]trackedState, 0, len(t.apps))
	for _, st := range t.apps {
		out = append(out, trackedState{App: st.app.DeepCopy(), Status: *st.status.DeepCopy()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].App.Name < out[j].App.Name })
	return out
}

// historyOf returns the retained sync results, newest first.
func (t *statusTracker) historyOf(name string) ([]api.SyncResult, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	st, ok := t.apps[name]
	if !ok {
		return nil, false
	}
	out := make([]api.SyncResult, len(st.history))
	copy(out, st.history)
	return out, true
}

// lastAttemptedRevision is what the source poll compares a freshly
// resolved revision against: the revision of the most recent attempt,
// whatever its outcome, falling back to the synced revision. Comparing
// against attempts rather than successes keeps a failed Application from
// being re-triggered every poll tick for the same revision.
func (t *statusTracker) lastAttemptedRevision(name string) string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	st, ok := t.apps[name]
	if !ok {
		return ""
	}
	for _, res := range st.history {
		if res.Revision != "" {
			return res.Revision
		}
	}
	return st.status.SyncedRevision
}

// beginSync moves an Application into the syncing phase. Starting an
// attempt on a failed Application lifts the park: every path that gets
// here on one (manual trigger, spec change, moved revision) is a
// clearing condition, so the failure chain starts over.
func (t *statusTracker) beginSync(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	st, ok := t.apps[name]
	if !ok {
		return
	}
	if st.status.Phase == v1alpha1.PhaseFailed {
		st.attempt = 0
		st.status.RetryCount = 0
	}
	st.status.Phase = v1alpha1.PhaseSyncing
	st.status.NextAttemptTime = nil
	setSyncedCondition(st)
}

// nextAttempt bumps and returns the consecutive transient-failure
// counter, the attempt number the backoff is computed from.
func (t *statusTracker) nextAttempt(name string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	st, ok := t.apps[name]
	if !ok {
		return 1
	}
	st.attempt++
	return st.attempt
}

// completeSync records a finished attempt and moves the Application to
// the attempt's outcome phase. Healthy and degraded attempts both
// advance SyncedRevision: a degraded sync applied at the API level, the
// workloads just did not converge in time.
func (t *statusTracker) completeSync(res *api.SyncResult, healthState v1alpha1.HealthState) {
	t.mu.Lock()
	defer t.mu.Unlock()

	st, ok := t.apps[res.Application]
	if !ok {
		return
	}
	st.record(res, t.limit)
	st.status.Phase = res.Phase
	st.status.Health = healthState
	st.status.NextAttemptTime = nil

	switch res.Phase {
	case v1alpha1.PhaseHealthy:
		st.status.SyncedRevision = res.Revision
		st.status.LastError = ""
		st.attempt = 0
		st.status.RetryCount = 0
	case v1alpha1.PhaseDegraded:
		st.status.SyncedRevision = res.Revision
		st.status.LastError = res.Error
		st.attempt = 0
		st.status.RetryCount = 0
	default:
		st.status.LastError = res.Error
	}
	setSyncedCondition(st)
}

// markRetrying records a transiently failed attempt and parks the
// Application as retrying until the scheduled time.
func (t *statusTracker) markRetrying(res *api.SyncResult, attempt int, next time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	st, ok := t.apps[res.Application]
	if !ok {
		return
	}
	st.record(res, t.limit)
	st.status.Phase = v1alpha1.PhaseRetrying
	st.status.LastError = res.Error
	st.status.RetryCount = attempt
	nextTime := metav1.NewTime(next)
	st.status.NextAttemptTime = &nextTime
	setSyncedCondition(st)
}

// addGVKs merges kinds into the Application's tracked union.
func (t *statusTracker) addGVKs(name string, gvks []schema.GroupVersionKind) {
	t.mu.Lock()
	defer t.mu.Unlock()

	st, ok := t.apps[name]
	if !ok {
		return
	}
	seen := make(map[schema.GroupVersionKind]bool, len(st.gvks))
	for _, gvk := range st.gvks {
		seen[gvk] = true
	}
	for _, gvk := range gvks {
		if !seen[gvk] {
			st.gvks = append(st.gvks, gvk)
			seen[gvk] = true
		}
	}
}

// gvksFor returns the tracked kind union for an Application.
func (t *statusTracker) gvksFor(name string) []schema.GroupVersionKind {
	t.mu.RLock()
	defer t.mu.RUnlock()

	st, ok := t.apps[name]
	if !ok {
		return nil
	}
	out := make([]schema.GroupVersionKind, len(st.gvks))
	copy(out, st.gvks)
	return out
}

// phaseCounts tallies Applications by phase for the census gauge.
func (t *statusTracker) phaseCounts() map[v1alpha1.ApplicationPhase]int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	counts := make(map[v1alpha1.ApplicationPhase]int, 6)
	for _, st := range t.apps {
		counts[st.status.Phase]++
	}
	return counts
}

// record appends a result to the history ring, newest first, and
// refreshes the status summary fields derived from it.
func (st *appState) record(res *api.SyncResult, limit int) {
	st.history = append([]api.SyncResult{*res}, st.history...)
	if len(st.history) > limit {
		st.history = st.history[:limit]
	}

	summary := v1alpha1.SyncAttemptSummary{
		OperationID: res.OperationID,
		Revision:    res.Revision,
		Phase:       res.Phase,
		Actions:     res.Counts(),
		StartedAt:   metav1.NewTime(res.StartedAt),
		FinishedAt:  metav1.NewTime(res.FinishedAt),
		Error:       res.Error,
	}
	st.status.LastResult = &summary
	finished := metav1.NewTime(res.FinishedAt)
	st.status.LastSyncTime = &finished
}

// setSyncedCondition keeps the one status condition in step with the
// phase. Callers hold the tracker lock.
func setSyncedCondition(st *appState) {
	cond := metav1.Condition{
		Type:    conditionSynced,
		Message: st.status.LastError,
	}
	switch st.status.Phase {
	case v1alpha1.PhaseHealthy:
		cond.Status = metav1.ConditionTrue
		cond.Reason = "Healthy"
	case v1alpha1.PhaseDegraded:
		cond.Status = metav1.ConditionFalse
		cond.Reason = "Degraded"
	case v1alpha1.PhaseFailed:
		cond.Status = metav1.ConditionFalse
		cond.Reason = "Failed"
	case v1alpha1.PhaseRetrying:
		cond.Status = metav1.ConditionFalse
		cond.Reason = "Retrying"
	case v1alpha1.PhaseSyncing:
		cond.Status = metav1.ConditionUnknown
		cond.Reason = "Syncing"
	default:
		cond.Status = metav1.ConditionUnknown
		cond.Reason = "Idle"
	}
	meta.SetStatusCondition(&st.status.Conditions, cond)
}
