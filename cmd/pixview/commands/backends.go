package commands

import (
	"fmt"

	"github.com/bryanchriswhite/pixview/internal/surface"
	"github.com/spf13/cobra"
)

var backendsCmd = &cobra.Command{
	Use:   "backends",
	Short: "List available window backends",
	Long:  `List the window backends pixview can open. The configured default is marked with *.`,
	RunE:  runBackends,
}

func init() {
	rootCmd.AddCommand(backendsCmd)
}

func runBackends(cmd *cobra.Command, args []string) error {
	current := configMgr.Get().Backend
	for _, name := range surface.Bindings().Names() {
		marker := " "
		if name == current {
			marker = "*"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", marker, name)
	}
	return nil
}
