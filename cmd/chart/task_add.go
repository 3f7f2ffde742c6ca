// Task add command creates a new task with a recurring schedule.
package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mesh-health/careledger/pkg/schedule"
	"github.com/mesh-health/careledger/pkg/types"
)

var (
	taskAddID           string
	taskAddTitle        string
	taskAddInstructions string
	taskAddPlan         string
	taskAddStart        string
	taskAddEnd          string
	taskAddAt           string
	taskAddEveryDays    int
)

var taskAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a new task",
	Long: `Add creates a task with a recurring schedule. By default the task
occurs once per day at the time given by --at.

Example:
  chart task add --id doxylamine --title "Doxylamine" --at 08:00
  chart task add --id stretch --title "Stretch" --every-days 2 --start 2026-09-01
  chart task add --id walk --title "Walk" --plan recovery --json`,
	RunE: runTaskAdd,
}

func init() {
	taskAddCmd.Flags().StringVar(&taskAddID, "id", "", "stable task identifier (required)")
	taskAddCmd.Flags().StringVar(&taskAddTitle, "title", "", "display title")
	taskAddCmd.Flags().StringVar(&taskAddInstructions, "instructions", "", "patient-facing instructions")
	taskAddCmd.Flags().StringVar(&taskAddPlan, "plan", "", "care plan id the task belongs to")
	taskAddCmd.Flags().StringVar(&taskAddStart, "start", "", "schedule start date YYYY-MM-DD (default: today)")
	taskAddCmd.Flags().StringVar(&taskAddEnd, "end", "", "schedule end date YYYY-MM-DD (default: unbounded)")
	taskAddCmd.Flags().StringVar(&taskAddAt, "at", "08:00", "daily occurrence time HH:MM")
	taskAddCmd.Flags().IntVar(&taskAddEveryDays, "every-days", 0, "recur every N days instead of daily")
	_ = taskAddCmd.MarkFlagRequired("id")
	taskCmd.AddCommand(taskAddCmd)
}

func runTaskAdd(cmd *cobra.Command, args []string) error {
	st, err := attachStore()
	if err != nil {
		return err
	}
	defer st.Detach()

	start := time.Now()
	if taskAddStart != "" {
		if start, err = parseDate(taskAddStart); err != nil {
			return err
		}
	}
	var end *time.Time
	if taskAddEnd != "" {
		e, err := parseDate(taskAddEnd)
		if err != nil {
			return err
		}
		end = &e
	}

	var sched schedule.Schedule
	if taskAddEveryDays > 0 {
		sched = schedule.EveryNDays(taskAddEveryDays, start, end, "")
	} else {
		hour, minute, err := parseClock(taskAddAt)
		if err != nil {
			return err
		}
		sched = schedule.DailyAtTime(hour, minute, start, end, "", schedule.Duration{})
	}

	var planUUID *uuid.UUID
	if taskAddPlan != "" {
		plans, err := st.FetchCarePlans(types.Query{IDs: []string{taskAddPlan}})
		if err != nil {
			return fmt.Errorf("resolve care plan: %w", err)
		}
		if len(plans) == 0 {
			return fmt.Errorf("care plan %q: %w", taskAddPlan, types.ErrNotFound)
		}
		planUUID = &plans[0].UUID
	}

	task := types.NewTask(taskAddID, taskAddTitle, planUUID, sched)
	task.Instructions = taskAddInstructions

	out, err := st.Add([]types.Entity{types.TaskEntity(task)})
	if err != nil {
		return fmt.Errorf("add task: %w", err)
	}

	stored := out[0].Task
	if flagJSON {
		return printJSON(stored)
	}
	fmt.Printf("Created task %s (version %s)\n", stored.ID, stored.UUID)
	return nil
}
