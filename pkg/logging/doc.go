// Package logging provides a structured logging system for capstan with
// unified log handling and flexible output formatting.
//
// This package implements a logging system built on Go's standard slog
// package, providing consistent logging behavior with structured output
// and level filtering.
//
// # Log Levels
//   - **Debug**: Detailed information for debugging and development
//   - **Info**: General informational messages about application operation
//   - **Warn**: Warning messages that indicate potential issues
//   - **Error**: Error messages for failures and exceptional conditions
//
// # Usage
//
//	import "capstan/pkg/logging"
//
//	// Initialize with Info level text logging to stderr
//	logging.InitForCLI(logging.LevelInfo, os.Stderr)
//
//	// Log messages
//	logging.Info("Bootstrap", "Application starting up")
//	logging.Debug("Config", "Loaded configuration from %s", configPath)
//	logging.Warn("Source", "Revision poll skipped, fetch in flight")
//	logging.Error("Executor", err, "Failed to apply %s", key)
//
// # Subsystem Organization
//
// Logs are organized by subsystem to enable filtering and categorization:
//
//   - **Bootstrap**: Application initialization and startup
//   - **Config**: Configuration loading and validation
//   - **Registry**: Application definition storage and watching
//   - **Source**: Manifest fetching, rendering, and parsing
//   - **Observer**: Cluster state snapshots and drift watching
//   - **Engine**: Reconciliation scheduling and state machine
//   - **Executor**: Apply/prune operations and health assessment
//   - **Server**: Operator status API
//   - **Events**: Reconciliation lifecycle event recording
//
// # Controller-Runtime Integration
//
// The logging system initializes the controller-runtime global logger when
// Init is called. This ensures that Kubernetes plumbing (informers, caches,
// clients) logs through the capstan logging infrastructure without warnings
// about uninitialized loggers.
package logging
