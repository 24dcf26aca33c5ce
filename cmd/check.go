package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	v1alpha1 "capstan/pkg/apis/capstan/v1alpha1"
)

var checkQuiet bool

// checkCmd verifies that a daemon is reachable and summarizes what it
// manages.
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check that the daemon is reachable",
	Long: `Probe the status API and report how many Applications the daemon
manages and how many are not healthy. Exits non-zero when the daemon is
unreachable, which makes the command usable as a readiness probe in
scripts.

Examples:
  capstan check
  capstan check -q && echo up`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	c, err := newAPIClient()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	if err := c.Healthy(ctx); err != nil {
		return fmt.Errorf("daemon is not reachable: %w", err)
	}

	if checkQuiet {
		return nil
	}

	apps, err := c.ListApplications(ctx)
	if err != nil {
		return err
	}

	unhealthy := 0
	for _, a := range apps {
		switch a.Phase {
		case v1alpha1.PhaseDegraded, v1alpha1.PhaseFailed:
			unhealthy++
		}
	}

	endpoint, _ := apiEndpoint()
	fmt.Fprintf(cmd.OutOrStdout(), "Daemon at %s is healthy: %d Applications", endpoint, len(apps))
	if unhealthy > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), ", %d need attention", unhealthy)
	}
	fmt.Fprintln(cmd.OutOrStdout())
	return nil
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().BoolVarP(&checkQuiet, "quiet", "q", false, "Suppress output, report by exit code only")
}
