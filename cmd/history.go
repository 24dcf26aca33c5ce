package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"capstan/internal/api"
	pkgstrings "capstan/pkg/strings"
)

var historyOutputFormat string

// historyCmd lists the retained sync attempts of one Application.
var historyCmd = &cobra.Command{
	Use:   "history <application>",
	Short: "Show the sync history of an Application",
	Long: `Show the retained sync attempts of one Application, newest first:
revision, outcome, per-action counts, and timing.

Examples:
  capstan history web
  capstan history web -o json`,
	Args: cobra.ExactArgs(1),
	RunE: runHistory,
}

func runHistory(cmd *cobra.Command, args []string) error {
	c, err := newAPIClient()
	if err != nil {
		return err
	}

	history, err := c.GetHistory(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	if historyOutputFormat != outputTable {
		return printEncoded(cmd.OutOrStdout(), historyOutputFormat, history)
	}
	renderHistoryTable(cmd.OutOrStdout(), history)
	return nil
}

func renderHistoryTable(w io.Writer, history []api.SyncResult) {
	if len(history) == 0 {
		fmt.Fprintln(w, "No sync attempts recorded.")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"STARTED", "REVISION", "OUTCOME", "ACTIONS", "DURATION", "ERROR"})
	for _, r := range history {
		errMsg := pkgstrings.TruncateMessage(r.Error, pkgstrings.DefaultMessageMaxLen)
		t.AppendRow(table.Row{
			r.StartedAt.Format("2006-01-02 15:04:05"),
			shortRevision(r.Revision),
			coloredPhase(r.Phase),
			actionSummary(r),
			r.FinishedAt.Sub(r.StartedAt).Round(10 * time.Millisecond),
			errMsg,
		})
	}
	t.Render()
}

// actionSummary condenses a result's actions into "+2 ~1 -1 =3 !0"
// style counts: created, updated, pruned, unchanged, failed.
func actionSummary(r api.SyncResult) string {
	c := r.Counts()
	return fmt.Sprintf("+%d ~%d -%d =%d !%d", c.Created, c.Updated, c.Pruned, c.Unchanged, c.Failed)
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().StringVarP(&historyOutputFormat, "output", "o", outputTable, "Output format (table, json, yaml)")
}
