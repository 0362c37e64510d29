package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintf(ui.Out, "lift %s\n", buildVersion)
		fmt.Fprintf(ui.Out, "  commit: %s\n", buildCommit)
		fmt.Fprintf(ui.Out, "  built:  %s\n", buildDate)
		fmt.Fprintf(ui.Out, "  go:     %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
