package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/searchlight-io/searchlight/internal/app/fixplan"
	"github.com/searchlight-io/searchlight/internal/daemon"
	"github.com/searchlight-io/searchlight/internal/domain"
)

func init() {
	planExecuteCmd.Flags().IntVar(&planMaxItems, "max-items", 0, "Apply at most this many items")
	planExecuteCmd.Flags().BoolVar(&planOverride, "override-cooldown", false, "Execute despite an active cooldown")
	planExecuteCmd.Flags().StringVar(&planReason, "reason", "", "Reason for the cooldown override")

	planCmd.AddCommand(planGenerateCmd, planExecuteCmd, planRejectCmd)
	rootCmd.AddCommand(planCmd)
}

var (
	planMaxItems int
	planOverride bool
	planReason   string
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Manage fix plans",
}

var planGenerateCmd = &cobra.Command{
	Use:   "generate <site-id> <topic>",
	Short: "Generate (or fetch the pending) fix plan for a site and topic",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := daemon.New()
		if err != nil {
			return err
		}
		defer d.Close()

		plan, err := d.Plans.GeneratePlan(context.Background(), args[0], args[1])
		if err != nil {
			return err
		}
		printPlan(plan)
		return nil
	},
}

var planExecuteCmd = &cobra.Command{
	Use:   "execute <plan-id>",
	Short: "Execute a pending fix plan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := daemon.New()
		if err != nil {
			return err
		}
		defer d.Close()

		result, err := d.Plans.ExecutePlan(context.Background(), args[0], fixplan.ExecuteOptions{
			MaxItems:         planMaxItems,
			OverrideCooldown: planOverride,
			OverrideReason:   planReason,
		})
		if err != nil {
			return err
		}

		fmt.Printf("Plan %s executed: %d item(s) applied\n", result.PlanID, result.ItemsApplied)
		if result.ReferenceID != "" {
			fmt.Printf("  Change reference: %s\n", result.ReferenceID)
		}
		if result.Overridden {
			fmt.Println("  Cooldown was overridden.")
		}
		return nil
	},
}

var planRejectCmd = &cobra.Command{
	Use:   "reject <plan-id>",
	Short: "Reject a pending fix plan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := daemon.New()
		if err != nil {
			return err
		}
		defer d.Close()

		if err := d.Plans.RejectPlan(args[0]); err != nil {
			return err
		}
		fmt.Printf("Plan %s rejected.\n", args[0])
		return nil
	},
}

func printPlan(plan *domain.FixPlan) {
	fmt.Printf("Plan %s [%s] %s/%s\n", plan.ID, plan.Status, plan.SiteID, plan.Topic)
	fmt.Printf("  Expires: %s\n", plan.ExpiresAt.Format(time.RFC3339))
	if !plan.CooldownAllowed {
		fmt.Printf("  Cooldown active until %s\n", plan.CooldownNextAllowedAt.Format(time.RFC3339))
	}
	for i, item := range plan.Items {
		fmt.Printf("  %d. %s → %s\n", i+1, item.Action, item.Target)
		if item.Rationale != "" {
			fmt.Printf("     %s\n", item.Rationale)
		}
	}
}
