package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"capstan/internal/api"
	v1alpha1 "capstan/pkg/apis/capstan/v1alpha1"
)

var (
	syncRevision string
	syncPrune    bool
	syncWait     bool
	syncTimeout  time.Duration
)

// syncCmd triggers a reconciliation for one Application.
var syncCmd = &cobra.Command{
	Use:   "sync <application>",
	Short: "Trigger a sync for an Application",
	Long: `Ask the daemon to reconcile one Application now, regardless of its
sync policy. The trigger is queued and the command returns immediately
unless --wait is given.

A manual sync clears a Failed Application and re-attempts it. --revision
pins a specific revision instead of the configured target; --prune
permits pruning for this one attempt even when the policy does not.

Examples:
  capstan sync web
  capstan sync web --prune
  capstan sync web --revision 4f2c91a --wait`,
	Args: cobra.ExactArgs(1),
	RunE: runSync,
}

func runSync(cmd *cobra.Command, args []string) error {
	name := args[0]
	c, err := newAPIClient()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	// The baseline separates the attempt this trigger causes from
	// whatever result the Application already had.
	baselineOp := ""
	if syncWait {
		detail, err := c.GetApplication(ctx, name)
		if err != nil {
			return err
		}
		if detail.LastResult != nil {
			baselineOp = detail.LastResult.OperationID
		}
	}

	req := api.SyncRequest{Revision: syncRevision, Prune: syncPrune}
	if err := c.TriggerSync(ctx, name, req); err != nil {
		return err
	}

	if !syncWait {
		fmt.Fprintf(cmd.OutOrStdout(), "Sync of %q queued.\n", name)
		return nil
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = fmt.Sprintf(" Syncing %s...", name)
	s.Start()

	waitCtx, cancel := context.WithTimeout(ctx, syncTimeout)
	defer cancel()
	detail, err := c.WaitForSync(waitCtx, name, baselineOp, time.Second)
	s.Stop()
	if err != nil {
		return err
	}

	result := detail.LastResult
	fmt.Fprintf(cmd.OutOrStdout(), "Sync of %q finished: %s (revision %s, %s)\n",
		name, coloredPhase(result.Phase), shortRevision(result.Revision), actionSummary(*result))
	if result.Error != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", result.Error)
	}

	if result.Phase == v1alpha1.PhaseFailed {
		return fmt.Errorf("sync of %q failed", name)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().StringVar(&syncRevision, "revision", "", "Pin a revision instead of the configured target")
	syncCmd.Flags().BoolVar(&syncPrune, "prune", false, "Permit pruning for this attempt")
	syncCmd.Flags().BoolVar(&syncWait, "wait", false, "Wait for the sync to finish")
	syncCmd.Flags().DurationVar(&syncTimeout, "timeout", 5*time.Minute, "How long --wait waits before giving up")
}
