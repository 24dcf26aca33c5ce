package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"capstan/internal/version"
)

// newVersionCmd creates the Cobra command for displaying the build
// version.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of capstan",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "capstan version %s\n", version.String())
		},
	}
}
