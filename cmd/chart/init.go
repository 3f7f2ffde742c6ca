// Init command for the chart CLI.
package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize chart storage",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		configDir, err := resolveConfigDir()
		if err != nil {
			return fmt.Errorf("init: %w", err)
		}
		if err := ensureConfigDir(configDir); err != nil {
			return fmt.Errorf("init: %w", err)
		}
		if err := ensureDefaultConfigFile(configDir); err != nil {
			return fmt.Errorf("init: %w", err)
		}

		// Attaching creates the data directory and the database file.
		st, err := attachStore()
		if err != nil {
			return fmt.Errorf("init: %w", err)
		}
		defer st.Detach()

		dataDir, err := resolveDataDir()
		if err != nil {
			return fmt.Errorf("init: %w", err)
		}

		fmt.Println("Chart initialized successfully")
		fmt.Println("  config: ", configDir)
		fmt.Println("  data:   ", dataDir)
		fmt.Println("  process:", st.ProcessID())
		return nil
	},
}
