package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/searchlight-io/searchlight/internal/daemon"
)

func init() {
	runCmd.Flags().BoolVar(&runForce, "force", false, "Run even if today was already diagnosed")
	rootCmd.AddCommand(runCmd)
}

var runForce bool

var runCmd = &cobra.Command{
	Use:   "run <site-id>",
	Short: "Run a diagnostic for a site",
	Long:  `Fetch metrics, detect anomalies, classify the root cause, and emit tickets.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runDiagnostic,
}

func runDiagnostic(cmd *cobra.Command, args []string) error {
	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	run, err := d.Runner.Execute(context.Background(), args[0], runForce)
	if err != nil {
		return err
	}

	fmt.Printf("Run %s (%s) finished: %s\n", run.ID, run.Day, run.Status)
	fmt.Printf("  Anomalies:   %d\n", run.AnomalyCount)
	fmt.Printf("  New tickets: %d\n", run.TicketCount)
	if run.PrimaryHypothesis != "" {
		fmt.Printf("  Primary:     %s (%s confidence)\n", run.PrimaryHypothesis, run.PrimaryConfidence)
	}
	if len(run.FailedSources) > 0 {
		fmt.Printf("  Failed sources: %s\n", strings.Join(run.FailedSources, ", "))
	}
	return nil
}
