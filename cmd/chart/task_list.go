// Task list command shows tasks current now or during a date range.
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-health/careledger/pkg/types"
)

var (
	taskListFor  string
	taskListFrom string
	taskListTo   string
	taskListPlan string
)

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	Long: `List shows the tasks current right now. With --for, it shows the
task versions effective on that day; with --from and --to, every version
effective during the range.

Example:
  chart task list
  chart task list --for 2026-09-01
  chart task list --from 2026-09-01 --to 2026-09-08 --json`,
	RunE: runTaskList,
}

func init() {
	taskListCmd.Flags().StringVar(&taskListFor, "for", "", "show versions effective on this day YYYY-MM-DD")
	taskListCmd.Flags().StringVar(&taskListFrom, "from", "", "range start YYYY-MM-DD")
	taskListCmd.Flags().StringVar(&taskListTo, "to", "", "range end YYYY-MM-DD (exclusive)")
	taskListCmd.Flags().StringVar(&taskListPlan, "plan", "", "only tasks belonging to this care plan id")
	taskCmd.AddCommand(taskListCmd)
}

func runTaskList(cmd *cobra.Command, args []string) error {
	st, err := attachStore()
	if err != nil {
		return err
	}
	defer st.Detach()

	q := types.Query{
		SortDescriptors: []types.SortDescriptor{{Field: types.SortByTitle, Ascending: true}},
	}
	switch {
	case taskListFor != "":
		d, err := parseDate(taskListFor)
		if err != nil {
			return err
		}
		day := types.Day(d)
		q.Interval = &day
	case taskListFrom != "" && taskListTo != "":
		from, err := parseDate(taskListFrom)
		if err != nil {
			return err
		}
		to, err := parseDate(taskListTo)
		if err != nil {
			return err
		}
		q.Interval = &types.DateInterval{Start: from, End: to}
	}
	if taskListPlan != "" {
		q.CarePlanIDs = []string{taskListPlan}
	}

	tasks, err := st.FetchTasks(q)
	if err != nil {
		return fmt.Errorf("fetch tasks: %w", err)
	}

	if flagJSON {
		return printJSON(tasks)
	}
	if len(tasks) == 0 {
		fmt.Println("No tasks found")
		return nil
	}
	for _, task := range tasks {
		fmt.Printf("%-20s %-30s effective %s\n",
			task.ID, task.Title, task.EffectiveDate.Format("2006-01-02 15:04"))
	}
	return nil
}
