package cmd

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"capstan/internal/api"
)

var getOutputFormat string

// getCmd shows one Application in detail.
var getCmd = &cobra.Command{
	Use:   "get <application>",
	Short: "Show one Application in detail",
	Long: `Show the full state of one Application: its source and destination,
sync policy, current phase, retry state, and the actions of the most
recent sync attempt.

Examples:
  capstan get web
  capstan get web -o yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runGet,
}

func runGet(cmd *cobra.Command, args []string) error {
	c, err := newAPIClient()
	if err != nil {
		return err
	}

	detail, err := c.GetApplication(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	if getOutputFormat != outputTable {
		return printEncoded(cmd.OutOrStdout(), getOutputFormat, detail)
	}
	renderApplicationDetail(cmd.OutOrStdout(), detail)
	return nil
}

func renderApplicationDetail(w io.Writer, d *api.ApplicationDetail) {
	fmt.Fprintf(w, "Name:            %s\n", d.Name)
	fmt.Fprintf(w, "Source:          %s\n", joinNonEmpty(" ", d.Spec.Source.RepoURL, pathSuffix(d.Spec.Source.Path)))
	if d.Spec.Source.TargetRevision != "" {
		fmt.Fprintf(w, "Target Revision: %s\n", d.Spec.Source.TargetRevision)
	}
	fmt.Fprintf(w, "Destination:     %s\n", d.Destination)
	fmt.Fprintf(w, "Policy:          %s\n", policyLabel(d))
	fmt.Fprintf(w, "Phase:           %s\n", coloredPhase(d.Phase))
	fmt.Fprintf(w, "Health:          %s\n", string(d.Health))
	if d.SyncedRevision != "" {
		fmt.Fprintf(w, "Synced Revision: %s\n", d.SyncedRevision)
	}
	if d.LastSyncTime != nil {
		fmt.Fprintf(w, "Last Sync:       %s (%s ago)\n", d.LastSyncTime.Format("2006-01-02 15:04:05"), formatAge(d.LastSyncTime))
	}
	if d.RetryCount > 0 {
		fmt.Fprintf(w, "Retries:         %d\n", d.RetryCount)
	}
	if d.NextAttemptTime != nil {
		fmt.Fprintf(w, "Next Attempt:    %s\n", d.NextAttemptTime.Format("2006-01-02 15:04:05"))
	}
	if d.Message != "" {
		fmt.Fprintf(w, "Message:         %s\n", d.Message)
	}

	if d.LastResult == nil || len(d.LastResult.Actions) == 0 {
		return
	}

	fmt.Fprintf(w, "\nLast sync (%s at %s):\n", shortRevision(d.LastResult.Revision), d.LastResult.StartedAt.Format("15:04:05"))
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"ACTION", "RESOURCE", "RESULT"})
	for _, a := range d.LastResult.Actions {
		result := "ok"
		if !a.Success {
			result = "failed"
		}
		if a.Message != "" {
			result = result + ": " + a.Message
		}
		t.AppendRow(table.Row{string(a.Action), a.Key.String(), result})
	}
	t.Render()
}

// policyLabel renders the effective sync policy of an Application.
func policyLabel(d *api.ApplicationDetail) string {
	if d.Spec.SyncPolicy == nil || d.Spec.SyncPolicy.Automated == nil {
		return "manual"
	}
	label := "automated"
	if d.Spec.SyncPolicy.Automated.Prune {
		label += ", prune"
	}
	if d.Spec.SyncPolicy.Automated.SelfHeal {
		label += ", self-heal"
	}
	return label
}

func pathSuffix(path string) string {
	if path == "" {
		return ""
	}
	return "(" + path + ")"
}

func init() {
	rootCmd.AddCommand(getCmd)

	getCmd.Flags().StringVarP(&getOutputFormat, "output", "o", outputTable, "Output format (table, json, yaml)")
}
