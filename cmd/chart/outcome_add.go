// Outcome add command records the result of a scheduled occurrence.
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-health/careledger/pkg/types"
)

var (
	outcomeTaskID string
	outcomeIndex  int
	outcomeValues []float64
	outcomeUnits  string
)

var outcomeAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Record an outcome for a task occurrence",
	Long: `Add records that a scheduled occurrence was completed, optionally
with measured values. The occurrence index counts from zero at the schedule
start.

Example:
  chart outcome add --task doxylamine --index 0
  chart outcome add --task pushups --index 3 --value 25 --units repetitions`,
	RunE: runOutcomeAdd,
}

func init() {
	outcomeAddCmd.Flags().StringVar(&outcomeTaskID, "task", "", "task identifier (required)")
	outcomeAddCmd.Flags().IntVar(&outcomeIndex, "index", 0, "zero-based occurrence index")
	outcomeAddCmd.Flags().Float64SliceVar(&outcomeValues, "value", nil, "measured value (repeatable)")
	outcomeAddCmd.Flags().StringVar(&outcomeUnits, "units", "", "units for the measured values")
	_ = outcomeAddCmd.MarkFlagRequired("task")
	outcomeCmd.AddCommand(outcomeAddCmd)
}

func runOutcomeAdd(cmd *cobra.Command, args []string) error {
	st, err := attachStore()
	if err != nil {
		return err
	}
	defer st.Detach()

	task, err := st.FetchTask(outcomeTaskID)
	if err != nil {
		return err
	}

	values := make([]types.OutcomeValue, 0, len(outcomeValues))
	for _, v := range outcomeValues {
		value := types.NewOutcomeValue(v)
		value.Units = outcomeUnits
		values = append(values, value)
	}

	outcome := types.NewOutcome(task.UUID, outcomeIndex, values)
	out, err := st.Add([]types.Entity{types.OutcomeEntity(outcome)})
	if err != nil {
		return fmt.Errorf("add outcome: %w", err)
	}

	if flagJSON {
		return printJSON(out[0].Outcome)
	}
	fmt.Printf("Recorded outcome for %s occurrence %d\n", outcomeTaskID, outcomeIndex)
	return nil
}
