// Package cli implements the Searchlight command-line interface using
// Cobra. Each subcommand maps to one engine operation (serve, run,
// tickets, plan, status).
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "searchlight",
	Short: "Site traffic diagnostics and remediation",
	Long: `Searchlight watches a site's traffic, search, ads, and uptime
metrics, detects anomalies against rolling baselines, classifies the
likely root cause, and turns findings into deduplicated tickets and
bounded fix plans.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
