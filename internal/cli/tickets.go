package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/searchlight-io/searchlight/internal/daemon"
	"github.com/searchlight-io/searchlight/internal/domain"
)

func init() {
	ticketsCmd.Flags().StringVar(&ticketStatus, "status", "open", "Filter by status (open, in_progress, done, dismissed, all)")
	ticketsCmd.Flags().IntVar(&ticketLimit, "limit", 50, "Maximum tickets to show")
	rootCmd.AddCommand(ticketsCmd)
}

var (
	ticketStatus string
	ticketLimit  int
)

var ticketsCmd = &cobra.Command{
	Use:   "tickets <site-id>",
	Short: "List tickets for a site",
	Args:  cobra.ExactArgs(1),
	RunE:  runTickets,
}

func runTickets(cmd *cobra.Command, args []string) error {
	status := domain.TicketStatus(ticketStatus)
	if ticketStatus == "all" {
		status = ""
	} else if !domain.ValidTicketStatus(status) {
		return fmt.Errorf("unknown status %q", ticketStatus)
	}

	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	tickets, err := d.DB.ListTickets(args[0], status, ticketLimit)
	if err != nil {
		return err
	}
	if len(tickets) == 0 {
		fmt.Println("No tickets.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPRIORITY\tSTATUS\tISSUE\tTARGET\tLAST SEEN")
	for _, t := range tickets {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			t.ID,
			t.Priority,
			t.Status,
			t.IssueType,
			t.Target,
			t.LastSeenAt.Format("2006-01-02 15:04"),
		)
	}
	return w.Flush()
}
