package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"

	"capstan/internal/api"
	"capstan/internal/diff"
	"capstan/internal/events"
	"capstan/internal/source"
	v1alpha1 "capstan/pkg/apis/capstan/v1alpha1"
	"capstan/pkg/health"
	"capstan/pkg/logging"
)

// teardownRetryLimit bounds how often a failed deletion cascade is
// re-attempted before the runtime state is dropped anyway.
const teardownRetryLimit = 5

// process runs one task end to end: the policy gates, one sync attempt,
// outcome handling, and follow-up scheduling. Removal tasks take the
// teardown path instead.
func (e *Engine) process(t task) {
	defer e.refreshCensus()

	if t.remove {
		e.runTeardown(t)
		return
	}

	st, ok := e.tracker.get(t.App)
	if !ok {
		// Removed between scheduling and pickup.
		return
	}

	if !shouldSync(st.App, t.Reason) {
		logging.Debug("Engine", "Skipping %s trigger for %s: sync policy is manual", t.Reason, t.App)
		return
	}
	if st.Status.Phase == v1alpha1.PhaseFailed && !clearsFailure(t.Reason) {
		logging.Debug("Engine", "Skipping %s trigger for %s: parked as failed", t.Reason, t.App)
		return
	}
	if err := st.App.ValidateSpec(); err != nil {
		e.tracker.beginSync(t.App)
		res := newSyncResult(t.App)
		e.finishAttempt(st.App, t, res, api.NewReconcileError(api.KindParseError, "validate definition", err), health.Result{})
		return
	}

	e.runSync(st.App, t)
}

// shouldSync is the policy gate. Automated Applications sync on every
// trigger; manual-policy ones only on operator action, definition
// changes, and the retry chain those start.
func shouldSync(app *v1alpha1.Application, reason api.TriggerReason) bool {
	if app.IsAutomated() {
		return true
	}
	switch reason {
	case api.TriggerManual, api.TriggerSpecChange, api.TriggerRetry:
		return true
	}
	return false
}

// clearsFailure lists the triggers allowed to restart a permanently
// failed Application: operator action, a changed definition, or a moved
// source revision. Timer ticks and drift notifications stay parked.
func clearsFailure(reason api.TriggerReason) bool {
	switch reason {
	case api.TriggerManual, api.TriggerSpecChange, api.TriggerSourceChange:
		return true
	}
	return false
}

func newSyncResult(app string) *api.SyncResult {
	return &api.SyncResult{
		OperationID: uuid.NewString(),
		Application: app,
		StartedAt:   time.Now(),
	}
}

// runSync performs one full attempt: resolve, fetch, observe, diff,
// execute, health wait. Every exit goes through finishAttempt so the
// result ring, status, events, and metrics always agree.
func (e *Engine) runSync(app *v1alpha1.Application, t task) {
	ctx, cancel := context.WithTimeout(e.ctx, e.cfg.Engine.SyncTimeout.Std())
	defer cancel()

	e.tracker.beginSync(app.Name)
	e.refreshCensus()
	res := newSyncResult(app.Name)

	rev, err := e.resolveRevision(ctx, app, t)
	if err != nil {
		e.finishAttempt(app, t, res, err, health.Result{})
		return
	}
	res.Revision = rev.SHA

	logging.Info("Engine", "Syncing %s at %s (trigger: %s, operation: %s)",
		app.Name, rev.Short(), t.Reason, res.OperationID[:8])
	e.recorder.Record(app, events.ReasonSyncStarted, events.EventData{
		Name:     app.Name,
		Revision: rev.Short(),
		Trigger:  string(t.Reason),
	})

	bundle, err := e.source.FetchRevision(ctx, app, rev)
	if err != nil {
		e.finishAttempt(app, t, res, err, health.Result{})
		return
	}

	// The cached bundle is shared across attempts; the pipeline mutates
	// its own copies only.
	desired := make([]*unstructured.Unstructured, len(bundle.Objects))
	for i, obj := range bundle.Objects {
		desired[i] = obj.DeepCopy()
	}

	dest, err := e.destinationFor(app)
	if err != nil {
		e.finishAttempt(app, t, res, err, health.Result{})
		return
	}

	dest.observer.ApplyNamespaceDefaults(desired, app.Spec.Destination.Namespace)

	e.tracker.addGVKs(app.Name, desiredGVKs(desired))
	tracked := e.tracker.gvksFor(app.Name)

	if app.SelfHealEnabled() {
		e.ensureStreaming(dest)
		if err := dest.observer.EnsureWatches(ctx, tracked); err != nil {
			logging.Warn("Engine", "Drift watches for %s incomplete: %v", app.Name, err)
		}
	}

	snap, err := dest.observer.Observe(ctx, app, tracked)
	if err != nil {
		e.finishAttempt(app, t, res, err, health.Result{})
		return
	}

	plan, err := diff.Compare(desired, snap.Resources, diff.Policy{
		Application: app.Name,
		Prune:       app.PruneEnabled() || t.Prune,
	})
	if err != nil {
		e.finishAttempt(app, t, res, err, health.Result{})
		return
	}

	if plan.InSync() {
		logging.Debug("Engine", "%s is in sync at %s", app.Name, rev.Short())
	} else {
		logging.Info("Engine", "%s drifted at %s: %d to create, %d to update, %d to prune",
			app.Name, rev.Short(), plan.Summary.Create, plan.Summary.Update, plan.Summary.Prune)
	}

	actions, err := dest.executor.Execute(ctx, app, plan)
	res.Actions = actions
	if err != nil {
		e.finishAttempt(app, t, res, err, health.Result{})
		return
	}

	hres, err := dest.executor.WaitHealthy(ctx, app, desired)
	e.finishAttempt(app, t, res, err, hres)
}

// resolveRevision turns the task's pin or the Application's target into
// an immutable revision.
func (e *Engine) resolveRevision(ctx context.Context, app *v1alpha1.Application, t task) (source.Revision, error) {
	if t.Revision != "" {
		return e.source.ResolveRef(ctx, app, t.Revision)
	}
	return e.source.Resolve(ctx, app)
}

// finishAttempt classifies the attempt's outcome and fans it out: the
// result ring, the Application status, events, metrics, and whatever
// follow-up the outcome demands (the next resync timer, a backed-off
// retry, or a park).
func (e *Engine) finishAttempt(app *v1alpha1.Application, t task, res *api.SyncResult, err error, hres health.Result) {
	res.FinishedAt = time.Now()
	duration := res.FinishedAt.Sub(res.StartedAt)

	switch {
	case err == nil:
		res.Phase = v1alpha1.PhaseHealthy
		e.tracker.completeSync(res, v1alpha1.HealthState(hres.Status))
		e.metrics.recordAttempt(app.Name, string(v1alpha1.PhaseHealthy), duration, res.Actions)
		e.emitPruneEvents(app, res)
		e.recorder.Record(app, events.ReasonSyncSucceeded, events.EventData{
			Name:     app.Name,
			Revision: shortRev(res.Revision),
			Changes:  changesOf(res),
			Duration: duration.Round(time.Millisecond),
		})
		logging.Info("Engine", "Sync of %s succeeded at %s (%d changes in %s)",
			app.Name, shortRev(res.Revision), changesOf(res), duration.Round(time.Millisecond))
		e.scheduleResync(app)

	case api.IsHealthTimeout(err):
		res.Phase = v1alpha1.PhaseDegraded
		res.Error = err.Error()
		e.tracker.completeSync(res, v1alpha1.HealthState(hres.Status))
		e.metrics.recordAttempt(app.Name, string(v1alpha1.PhaseDegraded), duration, res.Actions)
		e.emitPruneEvents(app, res)
		e.recorder.Record(app, events.ReasonHealthDegraded, events.EventData{
			Name:  app.Name,
			Error: err.Error(),
		})
		logging.Warn("Engine", "Sync of %s applied but degraded: %v", app.Name, err)
		e.scheduleResync(app)

	case api.IsPermanent(err):
		res.Phase = v1alpha1.PhaseFailed
		res.Error = err.Error()
		e.tracker.completeSync(res, v1alpha1.HealthUnknown)
		e.metrics.recordAttempt(app.Name, string(v1alpha1.PhaseFailed), duration, res.Actions)
		e.recorder.Record(app, events.ReasonSyncFailed, events.EventData{
			Name:  app.Name,
			Error: err.Error(),
		})
		logging.Error("Engine", err, "Sync of %s failed, operator action required", app.Name)

	default:
		e.scheduleRetry(app, t, res, err, duration)
	}
}

// scheduleRetry handles a transient failure: the attempt counter climbs,
// and either a backed-off re-attempt is armed or, once the retry limit
// is spent, the Application parks as failed.
func (e *Engine) scheduleRetry(app *v1alpha1.Application, t task, res *api.SyncResult, err error, duration time.Duration) {
	attempt := e.tracker.nextAttempt(app.Name)
	base, max, factor, limit := retryParams(app, e.cfg.Engine.Retry)

	if limit > 0 && attempt >= limit {
		res.Phase = v1alpha1.PhaseFailed
		res.Error = fmt.Sprintf("retry limit (%d) exhausted: %v", limit, err)
		e.tracker.completeSync(res, v1alpha1.HealthUnknown)
		e.metrics.recordAttempt(app.Name, string(v1alpha1.PhaseFailed), duration, res.Actions)
		e.recorder.Record(app, events.ReasonSyncFailed, events.EventData{
			Name:  app.Name,
			Error: res.Error,
		})
		logging.Error("Engine", err, "Sync of %s failed %d times, giving up", app.Name, attempt)
		return
	}

	delay := backoffFor(attempt, base, max, factor)
	next := time.Now().Add(delay)

	res.Phase = v1alpha1.PhaseFailed
	res.Error = err.Error()
	e.tracker.markRetrying(res, attempt, next)
	e.metrics.recordAttempt(app.Name, string(v1alpha1.PhaseRetrying), duration, res.Actions)
	e.recorder.Record(app, events.ReasonSyncRetrying, events.EventData{
		Name:  app.Name,
		Error: err.Error(),
	})
	logging.Warn("Engine", "Sync of %s failed (attempt %d), retrying in %s: %v",
		app.Name, attempt, delay.Round(time.Millisecond), err)

	e.queue.AddAfter(task{
		App:      app.Name,
		Reason:   api.TriggerRetry,
		Attempt:  attempt + 1,
		Revision: t.Revision,
		Prune:    t.Prune,
	}, delay)
}

// scheduleResync arms the next timer tick for an automated Application.
// Manual-policy Applications get no timer; their next sync is whatever
// trigger the operator sends.
func (e *Engine) scheduleResync(app *v1alpha1.Application) {
	if !app.IsAutomated() {
		return
	}
	interval := app.ResyncInterval(e.cfg.Engine.ResyncInterval.Std())
	e.queue.AddAfter(task{App: app.Name, Reason: api.TriggerResync}, interval)
}

// runTeardown prunes everything a removed Application still owns, then
// drops its runtime state. The observation runs over the kind union of
// past syncs, so resources whose kind left the desired set long ago are
// still found.
func (e *Engine) runTeardown(t task) {
	st, ok := e.tracker.get(t.App)
	if !ok {
		return
	}
	app := st.App
	gvks := e.tracker.gvksFor(t.App)

	// Syncing suppresses the drift echo of the teardown's own deletes.
	e.tracker.beginSync(t.App)

	if len(gvks) > 0 {
		if err := e.pruneOwned(app, gvks); err != nil {
			attempt := e.tracker.nextAttempt(t.App)
			if attempt < teardownRetryLimit {
				base, max, factor, _ := retryParams(app, e.cfg.Engine.Retry)
				delay := backoffFor(attempt, base, max, factor)
				logging.Warn("Engine", "Teardown of %s failed (attempt %d), retrying in %s: %v",
					t.App, attempt, delay.Round(time.Millisecond), err)
				e.queue.AddAfter(t, delay)
				return
			}
			logging.Error("Engine", err, "Teardown of %s failed %d times, dropping state; owned resources may remain",
				t.App, attempt)
		}
	}

	e.tracker.remove(t.App)
	e.queue.Cancel(t.App)
	e.metrics.forgetApplication(t.App)
	e.forgetOnDestination(app)
	e.recorder.Record(app, events.ReasonApplicationRemoved, events.EventData{Name: app.Name})
	logging.Info("Engine", "Application %s removed", t.App)

	// A definition re-created under the same name while the teardown ran
	// comes back as a fresh Application.
	if recreated, err := e.registry.Get(t.App); err == nil {
		e.tracker.upsert(recreated)
		e.enqueue(task{App: recreated.Name, Reason: api.TriggerSpecChange})
	}
}

// pruneOwned deletes every live resource still carrying the
// Application's tracking label.
func (e *Engine) pruneOwned(app *v1alpha1.Application, gvks []schema.GroupVersionKind) error {
	ctx, cancel := context.WithTimeout(e.ctx, e.cfg.Engine.SyncTimeout.Std())
	defer cancel()

	dest, err := e.destinationFor(app)
	if err != nil {
		return err
	}

	snap, err := dest.observer.Observe(ctx, app, gvks)
	if err != nil {
		return err
	}
	if len(snap.Resources) == 0 {
		return nil
	}

	plan, err := diff.Compare(nil, snap.Resources, diff.Policy{Application: app.Name, Prune: true})
	if err != nil {
		return err
	}

	logging.Info("Engine", "Tearing down %s: pruning %d owned resources", app.Name, plan.Summary.Prune)
	actions, err := dest.executor.Execute(ctx, app, plan)
	for _, a := range actions {
		outcome := "success"
		if !a.Success {
			outcome = "failure"
		}
		e.metrics.actionsTotal.WithLabelValues(string(a.Action), outcome).Inc()
		if a.Action == api.ActionPrune && a.Success && a.Message == "" {
			e.recorder.Record(app, events.ReasonResourcePruned, events.EventData{
				Name:     app.Name,
				Resource: a.Key.String(),
			})
		}
	}
	return err
}

func (e *Engine) forgetOnDestination(app *v1alpha1.Application) {
	e.destMu.Lock()
	d, ok := e.dests[destinationKey(app)]
	e.destMu.Unlock()
	if ok {
		d.observer.Forget(app.Name)
	}
}

// emitPruneEvents records one event per resource actually deleted. The
// executor notes prunes it skipped or found already gone; only unnoted
// successes removed something.
func (e *Engine) emitPruneEvents(app *v1alpha1.Application, res *api.SyncResult) {
	for _, a := range res.Actions {
		if a.Action == api.ActionPrune && a.Success && a.Message == "" {
			e.recorder.Record(app, events.ReasonResourcePruned, events.EventData{
				Name:     app.Name,
				Revision: shortRev(res.Revision),
				Resource: a.Key.String(),
			})
		}
	}
}

// desiredGVKs collects the distinct kinds of the desired set.
func desiredGVKs(objs []*unstructured.Unstructured) []schema.GroupVersionKind {
	seen := make(map[schema.GroupVersionKind]bool)
	out := make([]schema.GroupVersionKind, 0, 4)
	for _, obj := range objs {
		gvk := obj.GroupVersionKind()
		if !seen[gvk] {
			seen[gvk] = true
			out = append(out, gvk)
		}
	}
	return out
}

// changesOf counts the actions that modified the cluster.
func changesOf(res *api.SyncResult) int {
	n := 0
	for _, a := range res.Actions {
		if a.Success && a.Action != api.ActionNoOp {
			n++
		}
	}
	return n
}

func shortRev(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}
