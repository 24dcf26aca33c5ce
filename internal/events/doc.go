// Package events records reconciliation lifecycle events for Applications.
//
// Every notable transition of a sync attempt produces one event: the
// attempt starting, succeeding, failing or entering retry, drift being
// detected against the synced revision, tracked resources being pruned,
// and workloads degrading after apply.
//
// Backend Support:
//
//   - Kubernetes: creates Events API objects attached to the Application
//     custom resource, visible via kubectl describe / kubectl get events
//   - Filesystem: renders the same messages into the structured log
//
// The backend follows the registry mode, so a filesystem-registered
// Application never triggers cluster writes for observability alone.
// Messages come from MessageTemplateEngine, a small substitution engine
// shared by both backends so the two modes stay word-for-word identical.
//
// Recording is fire-and-forget: Recorder.Record never returns an error,
// and a failed Event write degrades to a log line.
package events
