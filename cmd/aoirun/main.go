// Package main provides the entry point for the aoirun CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gazemetrics/aoirun/cmd/aoirun/commands"
	"github.com/gazemetrics/aoirun/pkg/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "aoirun",
		Short: "aoirun - AOI visit-run aggregation for eye-tracking exports",
		Long: `aoirun merges fragmented sub-threshold AOI records into visit runs
and produces combined timelines, run tables, and dwell summaries.

Commands:
  run       Aggregate a directory of eye-tracking export files`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(commands.NewRunCommand())
	rootCmd.AddCommand(versionCmd())

	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(os.Stdout, "aoirun %s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}
