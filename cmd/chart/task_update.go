// Task update command appends a new version to a task's history.
package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-health/careledger/pkg/schedule"
	"github.com/mesh-health/careledger/pkg/types"
)

var (
	taskUpdateID           string
	taskUpdateTitle        string
	taskUpdateInstructions string
	taskUpdateEffective    string
	taskUpdateAt           string
)

var taskUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update a task",
	Long: `Update appends a new version to the task's history. Earlier
versions stay queryable for the dates they were effective.

Example:
  chart task update --id doxylamine --title "Doxylamine (new dosage)"
  chart task update --id stretch --at 17:30 --effective 2026-09-02`,
	RunE: runTaskUpdate,
}

func init() {
	taskUpdateCmd.Flags().StringVar(&taskUpdateID, "id", "", "task identifier (required)")
	taskUpdateCmd.Flags().StringVar(&taskUpdateTitle, "title", "", "new display title")
	taskUpdateCmd.Flags().StringVar(&taskUpdateInstructions, "instructions", "", "new instructions")
	taskUpdateCmd.Flags().StringVar(&taskUpdateEffective, "effective", "", "date the new version takes effect YYYY-MM-DD (default: now)")
	taskUpdateCmd.Flags().StringVar(&taskUpdateAt, "at", "", "reschedule daily at HH:MM from the effective date")
	_ = taskUpdateCmd.MarkFlagRequired("id")
	taskCmd.AddCommand(taskUpdateCmd)
}

func runTaskUpdate(cmd *cobra.Command, args []string) error {
	st, err := attachStore()
	if err != nil {
		return err
	}
	defer st.Detach()

	current, err := st.FetchTask(taskUpdateID)
	if err != nil {
		return err
	}

	updated := current
	if cmd.Flags().Changed("title") {
		updated.Title = taskUpdateTitle
	}
	if cmd.Flags().Changed("instructions") {
		updated.Instructions = taskUpdateInstructions
	}

	effective := time.Now()
	if taskUpdateEffective != "" {
		if effective, err = parseDate(taskUpdateEffective); err != nil {
			return err
		}
	}
	updated.EffectiveDate = effective

	if cmd.Flags().Changed("at") {
		hour, minute, err := parseClock(taskUpdateAt)
		if err != nil {
			return err
		}
		updated.Schedule = schedule.DailyAtTime(hour, minute, effective, current.Schedule.EndDate(), "", schedule.Duration{})
	}

	out, err := st.Update([]types.Entity{types.TaskEntity(updated)})
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}

	stored := out[0].Task
	if flagJSON {
		return printJSON(stored)
	}
	fmt.Printf("Updated task %s (version %s)\n", stored.ID, stored.UUID)
	return nil
}
