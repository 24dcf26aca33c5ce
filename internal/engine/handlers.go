package engine

import (
	"capstan/internal/api"
	v1alpha1 "capstan/pkg/apis/capstan/v1alpha1"
	"capstan/pkg/logging"
)

// The engine is the one implementation behind the operator surface;
// bootstrap registers it with the api package so the server and CLI
// reach it without importing this package.
var (
	_ api.StatusHandler  = (*Engine)(nil)
	_ api.TriggerHandler = (*Engine)(nil)
)

// ListApplications implements api.StatusHandler.
func (e *Engine) ListApplications() []api.ApplicationSummary {
	states := e.tracker.list()
	out := make([]api.ApplicationSummary, 0, len(states))
	for _, st := range states {
		out = append(out, summarize(st))
	}
	return out
}

// GetApplication implements api.StatusHandler.
func (e *Engine) GetApplication(name string) (*api.ApplicationDetail, error) {
	st, ok := e.tracker.get(name)
	if !ok {
		return nil, api.NewApplicationNotFoundError(name)
	}

	detail := &api.ApplicationDetail{
		ApplicationSummary: summarize(st),
		Spec:               *st.App.Spec.DeepCopy(),
		RetryCount:         st.Status.RetryCount,
	}
	if st.Status.NextAttemptTime != nil {
		next := st.Status.NextAttemptTime.Time
		detail.NextAttemptTime = &next
	}
	if history, ok := e.tracker.historyOf(name); ok && len(history) > 0 {
		last := history[0]
		detail.LastResult = &last
	}
	return detail, nil
}

// GetHistory implements api.StatusHandler.
func (e *Engine) GetHistory(name string) ([]api.SyncResult, error) {
	history, ok := e.tracker.historyOf(name)
	if !ok {
		return nil, api.NewApplicationNotFoundError(name)
	}
	return history, nil
}

// TriggerSync implements api.TriggerHandler. The task carries the
// request's revision pin and prune override into the attempt.
func (e *Engine) TriggerSync(name string, req api.SyncRequest) error {
	if _, ok := e.tracker.get(name); !ok {
		return api.NewApplicationNotFoundError(name)
	}

	logging.Info("Engine", "Manual sync requested for %s", name)
	e.enqueue(task{
		App:      name,
		Reason:   api.TriggerManual,
		Revision: req.Revision,
		Prune:    req.Prune,
	})
	return nil
}

func summarize(st trackedState) api.ApplicationSummary {
	app, status := st.App, st.Status

	sum := api.ApplicationSummary{
		Name:           app.Name,
		Source:         app.Spec.Source.RepoURL,
		Path:           app.Spec.Source.Path,
		TargetRevision: app.Spec.Source.TargetRevision,
		Destination:    destinationDisplay(app),
		Automated:      app.IsAutomated(),
		Phase:          status.Phase,
		Health:         status.Health,
		SyncedRevision: status.SyncedRevision,
		Message:        status.LastError,
	}
	if status.LastSyncTime != nil {
		last := status.LastSyncTime.Time
		sum.LastSyncTime = &last
	}
	return sum
}

// destinationDisplay renders where an Application syncs to, the way the
// list surface shows it.
func destinationDisplay(app *v1alpha1.Application) string {
	dst := app.Spec.Destination
	server := dst.Server
	if server == "" {
		server = "in-cluster"
	}
	if dst.Namespace != "" {
		return server + "/" + dst.Namespace
	}
	return server
}
