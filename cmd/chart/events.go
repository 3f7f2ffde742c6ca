// Events command materializes the schedule for a day.
package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-health/careledger/pkg/types"
)

var eventsFor string

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List scheduled occurrences with their outcomes",
	Long: `Events lists every scheduled occurrence for a day, marking the ones
with a recorded outcome.

Example:
  chart events
  chart events --for 2026-09-01 --json`,
	RunE: runEvents,
}

func init() {
	eventsCmd.Flags().StringVar(&eventsFor, "for", "", "day to list YYYY-MM-DD (default: today)")
}

func runEvents(cmd *cobra.Command, args []string) error {
	st, err := attachStore()
	if err != nil {
		return err
	}
	defer st.Detach()

	day := time.Now()
	if eventsFor != "" {
		if day, err = parseDate(eventsFor); err != nil {
			return err
		}
	}

	events, err := st.FetchEvents(types.EventQueryForDate(day))
	if err != nil {
		return fmt.Errorf("fetch events: %w", err)
	}

	if flagJSON {
		return printJSON(events)
	}
	if len(events) == 0 {
		fmt.Println("No events scheduled")
		return nil
	}
	for _, ev := range events {
		status := "[ ]"
		if ev.Outcome != nil {
			status = "[x]"
		}
		fmt.Printf("%s %s %-20s %s\n",
			status, ev.Occurrence.Start.Format("15:04"), ev.Task.ID, ev.Task.Title)
	}
	return nil
}
