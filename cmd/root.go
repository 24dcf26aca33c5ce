package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid
	// arguments, sync ended Failed).
	ExitCodeError = 1
)

// Persistent flags shared by every command that talks to a running
// capstan daemon.
var (
	// rootEndpoint overrides the status API base URL. Empty means derive
	// it from the configuration file.
	rootEndpoint string

	// rootConfigPath is the configuration directory. Empty means the
	// default user directory.
	rootConfigPath string
)

// rootCmd represents the base command for the capstan application.
var rootCmd = &cobra.Command{
	Use:   "capstan",
	Short: "Reconcile Kubernetes clusters against declarative manifest sources",
	Long: `capstan keeps Kubernetes clusters converged on manifests held in git
repositories or local directories. The serve command runs the
reconciliation daemon; the remaining commands inspect and steer it
through its status API.`,
	// SilenceUsage prevents Cobra from printing the usage message on
	// errors the application already reports.
	SilenceUsage: true,
}

// SetVersion sets the version for the root command. Called from the
// main package to inject the build version.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application, called by
// main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "capstan version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(ExitCodeError)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootEndpoint, "endpoint", "",
		"Status API base URL (default: derived from configuration)")
	rootCmd.PersistentFlags().StringVar(&rootConfigPath, "config-path", "",
		"Configuration directory (default: ~/.config/capstan)")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newSelfUpdateCmd())
}
