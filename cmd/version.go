package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// set with -ldflags "-X flowrun/cmd.version=..."
var version = "0.1.0-dev"

func init() {
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show flowrun version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "flowrun %s\n", version)
	},
}
