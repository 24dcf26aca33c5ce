package cmd

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"capstan/internal/api"
)

var listOutputFormat string

// listCmd shows every Application the daemon knows about.
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all Applications",
	Long: `List all Applications registered with the daemon, with their sync
phase, workload health, and the revision each one is converged on.

Examples:
  capstan list
  capstan list -o json

Note: the daemon must be running (use 'capstan serve').`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func runList(cmd *cobra.Command, args []string) error {
	c, err := newAPIClient()
	if err != nil {
		return err
	}

	apps, err := c.ListApplications(cmd.Context())
	if err != nil {
		return err
	}

	if listOutputFormat != outputTable {
		return printEncoded(cmd.OutOrStdout(), listOutputFormat, apps)
	}
	renderApplicationTable(cmd.OutOrStdout(), apps)
	return nil
}

func renderApplicationTable(w io.Writer, apps []api.ApplicationSummary) {
	if len(apps) == 0 {
		fmt.Fprintln(w, "No Applications registered.")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"NAME", "SOURCE", "DESTINATION", "POLICY", "PHASE", "HEALTH", "REVISION", "LAST SYNC"})
	for _, a := range apps {
		t.AppendRow(table.Row{
			a.Name,
			a.Source,
			a.Destination,
			automatedLabel(a.Automated),
			coloredPhase(a.Phase),
			string(a.Health),
			shortRevision(a.SyncedRevision),
			formatAge(a.LastSyncTime),
		})
	}
	t.Render()
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringVarP(&listOutputFormat, "output", "o", outputTable, "Output format (table, json, yaml)")
}
