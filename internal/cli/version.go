package cli

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:         "version",
	Short:       "Print version information",
	Annotations: map[string]string{"skipConfig": "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		info := map[string]string{
			"version": buildVersion,
			"commit":  buildCommit,
			"date":    buildDate,
			"go":      runtime.Version(),
		}
		if IsJSONOutput() || IsJSONLOutput() {
			return WriteOutput(os.Stdout, info)
		}
		fmt.Printf("pulse %s (commit %s, built %s, %s)\n", buildVersion, buildCommit, buildDate, runtime.Version())
		return nil
	},
}
