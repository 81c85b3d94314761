package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/andywolf/reqsync/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the reqsync version. With -v, include commit, build date and Go version.`,
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		if long, _ := cmd.Flags().GetBool("long"); long {
			fmt.Fprintln(out, version.Full())
			return
		}
		fmt.Fprintln(out, version.Info())
	},
}

func init() {
	versionCmd.Flags().BoolP("long", "v", false, "print commit, build date and Go version")
	rootCmd.AddCommand(versionCmd)
}
