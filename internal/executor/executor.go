// Package executor turns a drift plan into cluster writes: ordered
// applies and prunes with short-circuit on hard failure, followed by a
// bounded wait for the applied workloads to become healthy.
package executor

import (
	"context"
	"fmt"
	"time"

	apierrors "k8s.io/apimachinery/pkg/api/errors"

	"capstan/internal/api"
	"capstan/internal/diff"
	v1alpha1 "capstan/pkg/apis/capstan/v1alpha1"
	"capstan/pkg/logging"
)

// Options bound the executor's interactions with the cluster.
type Options struct {
	// OpTimeout caps a single API call. An in-flight call survives sync
	// cancellation (the work is detached), but never longer than this.
	OpTimeout time.Duration
	// HealthTimeout caps the post-sync wait for workload health.
	HealthTimeout time.Duration
	// HealthInterval is the polling cadence during the health wait.
	HealthInterval time.Duration
}

func (o *Options) setDefaults() {
	if o.OpTimeout <= 0 {
		o.OpTimeout = 30 * time.Second
	}
	if o.HealthTimeout <= 0 {
		o.HealthTimeout = 2 * time.Minute
	}
	if o.HealthInterval <= 0 {
		o.HealthInterval = 5 * time.Second
	}
}

// Executor executes drift plans against one destination.
type Executor struct {
	writer ResourceWriter
	opts   Options
}

func New(writer ResourceWriter, opts Options) *Executor {
	opts.setDefaults()
	return &Executor{writer: writer, opts: opts}
}

// Execute runs the plan's records in order. It stops at the first hard
// failure so later resources are never applied past a broken dependency;
// everything attempted is reported, including the failure itself.
//
// Cancellation is honored between records, never inside one: each API
// call runs detached from the sync context with its own timeout, so a
// canceled sync cannot truncate an apply halfway through a resource.
func (e *Executor) Execute(ctx context.Context, app *v1alpha1.Application, plan *diff.Plan) ([]api.ActionResult, error) {
	actions := make([]api.ActionResult, 0, len(plan.Records))

	for _, rec := range plan.Records {
		if rec.Action == api.ActionNoOp {
			actions = append(actions, api.ActionResult{
				Key: rec.Key, Action: api.ActionNoOp, Success: true, Message: rec.Note,
			})
			continue
		}

		if err := ctx.Err(); err != nil {
			return actions, fmt.Errorf("sync interrupted before %s: %w", rec.Key, err)
		}

		var (
			note string
			err  error
		)
		switch rec.Action {
		case api.ActionCreate, api.ActionUpdate:
			err = e.apply(ctx, app, rec)
		case api.ActionPrune:
			note, err = e.prune(ctx, app, rec)
		}
		if err != nil {
			actions = append(actions, api.ActionResult{
				Key: rec.Key, Action: rec.Action, Success: false, Message: err.Error(),
			})
			return actions, err
		}
		actions = append(actions, api.ActionResult{
			Key: rec.Key, Action: rec.Action, Success: true, Message: note,
		})
	}
	return actions, nil
}

func (e *Executor) apply(ctx context.Context, app *v1alpha1.Application, rec diff.DriftRecord) error {
	// The desired set stays immutable; ownership is stamped on a copy.
	obj := rec.Desired.DeepCopy()
	labels := obj.GetLabels()
	if labels == nil {
		labels = make(map[string]string, 1)
	}
	labels[v1alpha1.TrackingLabel] = app.Name
	obj.SetLabels(labels)

	opCtx, cancel := e.opContext(ctx)
	defer cancel()
	if err := e.writer.Apply(opCtx, obj); err != nil {
		return api.FromK8sError(fmt.Sprintf("apply %s", rec.Key), err)
	}
	logging.Debug("Executor", "Applied %s for %s", rec.Key, app.Name)
	return nil
}

// prune deletes an owned resource that left the desired set. The
// ownership re-check guards the window between observation and now: if
// the label was removed or rewritten in the meantime, the resource is no
// longer ours to delete.
func (e *Executor) prune(ctx context.Context, app *v1alpha1.Application, rec diff.DriftRecord) (string, error) {
	opCtx, cancel := e.opContext(ctx)
	defer cancel()

	live, err := e.writer.Get(opCtx, rec.Observed)
	if err != nil {
		if apierrors.IsNotFound(err) {
			return "already deleted", nil
		}
		return "", api.FromK8sError(fmt.Sprintf("recheck %s before prune", rec.Key), err)
	}
	if owner := live.GetLabels()[v1alpha1.TrackingLabel]; owner != app.Name {
		logging.Warn("Executor", "Skipping prune of %s: tracking label now %q", rec.Key, owner)
		return fmt.Sprintf("skipped: owned by %q", owner), nil
	}

	if err := e.writer.Delete(opCtx, rec.Observed); err != nil && !apierrors.IsNotFound(err) {
		return "", api.FromK8sError(fmt.Sprintf("prune %s", rec.Key), err)
	}
	logging.Debug("Executor", "Pruned %s for %s", rec.Key, app.Name)
	return "", nil
}

// opContext detaches one API call from sync cancellation while keeping
// it bounded.
func (e *Executor) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), e.opts.OpTimeout)
}
