// Care plan commands for the chart CLI.
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-health/careledger/pkg/types"
)

var (
	planAddID    string
	planAddTitle string
)

var planAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a new care plan",
	Long: `Add creates a care plan that tasks can be grouped under.

Example:
  chart plan add --id recovery --title "Knee recovery"`,
	RunE: runPlanAdd,
}

var planListCmd = &cobra.Command{
	Use:   "list",
	Short: "List care plans",
	RunE:  runPlanList,
}

func init() {
	planAddCmd.Flags().StringVar(&planAddID, "id", "", "stable care plan identifier (required)")
	planAddCmd.Flags().StringVar(&planAddTitle, "title", "", "display title")
	_ = planAddCmd.MarkFlagRequired("id")
	planCmd.AddCommand(planAddCmd)
	planCmd.AddCommand(planListCmd)
}

func runPlanAdd(cmd *cobra.Command, args []string) error {
	st, err := attachStore()
	if err != nil {
		return err
	}
	defer st.Detach()

	plan := types.NewCarePlan(planAddID, planAddTitle, nil)
	out, err := st.Add([]types.Entity{types.CarePlanEntity(plan)})
	if err != nil {
		return fmt.Errorf("add care plan: %w", err)
	}

	stored := out[0].CarePlan
	if flagJSON {
		return printJSON(stored)
	}
	fmt.Printf("Created care plan %s (version %s)\n", stored.ID, stored.UUID)
	return nil
}

func runPlanList(cmd *cobra.Command, args []string) error {
	st, err := attachStore()
	if err != nil {
		return err
	}
	defer st.Detach()

	q := types.Query{
		SortDescriptors: []types.SortDescriptor{{Field: types.SortByTitle, Ascending: true}},
	}
	plans, err := st.FetchCarePlans(q)
	if err != nil {
		return fmt.Errorf("fetch care plans: %w", err)
	}

	if flagJSON {
		return printJSON(plans)
	}
	if len(plans) == 0 {
		fmt.Println("No care plans found")
		return nil
	}
	for _, plan := range plans {
		fmt.Printf("%-20s %s\n", plan.ID, plan.Title)
	}
	return nil
}
