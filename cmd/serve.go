package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"capstan/internal/app"
)

// serveDebug enables verbose logging across the daemon.
var serveDebug bool

// serveSilent suppresses all log output. Useful when another process
// captures the daemon's stdout.
var serveSilent bool

// serveCmd starts the reconciliation daemon: registry, engine, and the
// status API.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the reconciliation daemon",
	Long: `Starts the capstan daemon: it watches Application definitions, keeps
each destination cluster converged on the declared manifests, and
exposes the status API the other capstan commands talk to.

Configuration:
  capstan loads config.yaml from the configuration directory
  (~/.config/capstan by default, --config-path to override). Application
  definitions live in the apps/ directory beside it, or as cluster CRDs
  when registry.mode is kubernetes.

The daemon runs until SIGINT or SIGTERM and shuts down gracefully,
letting in-flight syncs finish.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	application, err := app.NewApplication(app.Options{
		Debug:      serveDebug,
		Silent:     serveSilent,
		ConfigPath: rootConfigPath,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	return application.Run(cmd.Context())
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "Enable debug logging")
	serveCmd.Flags().BoolVar(&serveSilent, "silent", false, "Suppress all log output")
}
