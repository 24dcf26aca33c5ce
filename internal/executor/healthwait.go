package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"capstan/internal/api"
	v1alpha1 "capstan/pkg/apis/capstan/v1alpha1"
	"capstan/pkg/health"
	"capstan/pkg/logging"
)

// WaitHealthy polls the desired workloads until every one with a health
// rule grades Healthy. Three outcomes: Healthy within the window (nil
// error), a resource observed Degraded (immediate HealthCheckTimeout,
// since a crash loop does not improve by waiting), or the window expires
// while still Progressing (HealthCheckTimeout). The returned Result always
// carries the last aggregate, so callers can surface what was still
// converging.
func (e *Executor) WaitHealthy(ctx context.Context, app *v1alpha1.Application, objs []*unstructured.Unstructured) (health.Result, error) {
	graded := make([]*unstructured.Unstructured, 0, len(objs))
	for _, obj := range objs {
		if health.HasRule(obj.GroupVersionKind().GroupKind()) {
			graded = append(graded, obj)
		}
	}
	if len(graded) == 0 {
		return health.Result{Status: health.StatusHealthy}, nil
	}

	deadline := time.NewTimer(e.opts.HealthTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(e.opts.HealthInterval)
	defer ticker.Stop()

	var last health.Result
	for {
		res, err := e.gradeAll(ctx, graded)
		if err != nil {
			return last, err
		}
		last = res

		switch res.Status {
		case health.StatusHealthy:
			return res, nil
		case health.StatusDegraded:
			return res, api.NewHealthCheckTimeout(
				fmt.Sprintf("application %s", app.Name),
				errors.New(describe(res)))
		}

		select {
		case <-ctx.Done():
			return last, fmt.Errorf("health wait interrupted: %w", ctx.Err())
		case <-deadline.C:
			logging.Warn("Executor", "Health wait for %s expired: %s", app.Name, describe(last))
			return last, api.NewHealthCheckTimeout(
				fmt.Sprintf("application %s", app.Name),
				errors.New(describe(last)))
		case <-ticker.C:
		}
	}
}

func (e *Executor) gradeAll(ctx context.Context, objs []*unstructured.Unstructured) (health.Result, error) {
	results := make(map[string]health.Result, len(objs))
	for _, obj := range objs {
		key := api.KeyFor(obj)

		opCtx, cancel := e.opContext(ctx)
		live, err := e.writer.Get(opCtx, obj)
		cancel()

		if err != nil {
			if apierrors.IsNotFound(err) {
				results[key.String()] = health.Result{
					Status:  health.StatusProgressing,
					Message: "not visible yet",
				}
				continue
			}
			return health.Result{}, api.FromK8sError(fmt.Sprintf("health check %s", key), err)
		}
		results[key.String()] = health.Grade(live)
	}
	return health.Aggregate(results), nil
}

func describe(res health.Result) string {
	if res.Message == "" {
		return strings.ToLower(string(res.Status))
	}
	return fmt.Sprintf("%s (%s)", strings.ToLower(string(res.Status)), res.Message)
}
