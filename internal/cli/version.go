package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openjobspec/ojs-retry/internal/core"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "ojs-retry %s (OJS %s)\n", Version, core.OJSVersion)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
