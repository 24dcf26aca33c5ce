// Package api is capstan's shared vocabulary: the types, error taxonomy,
// and handler contracts exchanged between the reconciliation engine, the
// operator status server, and the CLI.
//
// # Handler Registry
//
// The engine registers StatusHandler and TriggerHandler implementations
// here during bootstrap. The HTTP server resolves them through
// GetStatusHandler/GetTriggerHandler, which keeps the dependency arrows
// pointing at this package from both sides instead of coupling the
// server to the engine. The CLI never touches the registry: it talks to
// the daemon over the status API via internal/client.
//
// # Error Taxonomy
//
// ReconcileError classifies every reconciliation failure into the kinds
// the engine's retry policy understands:
//
//   - SourceUnavailable, DestinationUnreachable, Conflict: transient,
//     retried with exponential backoff while the Application shows
//     Retrying.
//   - ParseError, Unauthorized: permanent, the Application parks as
//     Failed until an operator intervenes.
//   - RevisionNotFound: transient for symbolic pointers, permanent for
//     pinned content hashes.
//   - HealthCheckTimeout: the sync applied but did not converge; grades
//     the attempt Degraded, never Failed.
//
// Unclassified errors are treated as transient so an unknown failure
// can never park an Application forever.
package api
