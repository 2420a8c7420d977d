package cli

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/searchlight-io/searchlight/internal/daemon"
)

func init() {
	statusCmd.Flags().IntVar(&statusLimit, "limit", 10, "Number of recent runs to show")
	rootCmd.AddCommand(statusCmd)
}

var statusLimit int

var statusCmd = &cobra.Command{
	Use:   "status <site-id>",
	Short: "Show recent diagnostic runs for a site",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	runs, err := d.DB.ListRuns(args[0], statusLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs yet.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DAY\tSTATUS\tANOMALIES\tTICKETS\tPRIMARY\tFAILED SOURCES")
	for _, run := range runs {
		primary := run.PrimaryHypothesis
		if primary == "" {
			primary = "-"
		}
		failed := strings.Join(run.FailedSources, ",")
		if failed == "" {
			failed = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\n",
			run.Day, run.Status, run.AnomalyCount, run.TicketCount, primary, failed)
	}
	return w.Flush()
}
