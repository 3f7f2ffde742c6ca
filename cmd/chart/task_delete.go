// Task delete command tombstones a task while retaining its history.
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-health/careledger/pkg/types"
)

var taskDeleteID string

var taskDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete a task",
	Long: `Delete tombstones the task's current version. Occurrences and
outcomes before the deletion remain queryable.

Example:
  chart task delete --id doxylamine`,
	RunE: runTaskDelete,
}

func init() {
	taskDeleteCmd.Flags().StringVar(&taskDeleteID, "id", "", "task identifier (required)")
	_ = taskDeleteCmd.MarkFlagRequired("id")
	taskCmd.AddCommand(taskDeleteCmd)
}

func runTaskDelete(cmd *cobra.Command, args []string) error {
	st, err := attachStore()
	if err != nil {
		return err
	}
	defer st.Detach()

	target := types.Task{VersionMeta: types.VersionMeta{ID: taskDeleteID}}
	out, err := st.Delete([]types.Entity{types.TaskEntity(target)})
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}

	if flagJSON {
		return printJSON(out[0].Task)
	}
	fmt.Printf("Deleted task %s\n", taskDeleteID)
	return nil
}
