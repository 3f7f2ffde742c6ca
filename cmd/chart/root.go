// Root command for the chart CLI.
package main

import (
	"github.com/spf13/cobra"

	"github.com/mesh-health/careledger/internal/paths"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// Global flag values.
var (
	flagConfigDir string
	flagDataDir   string
	flagJSON      bool
)

// Values loaded from config.yaml by PersistentPreRunE so all subcommands can
// use them.
var (
	configDataDir   string
	configStoreName string
	configLogLevel  string
)

var rootCmd = &cobra.Command{
	Use:     "chart",
	Short:   "Chart is a local-first store for care plans, tasks, and outcomes",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configDir, err := resolveConfigDir()
		if err != nil {
			return err
		}

		cfg, err := loadConfig(configDir)
		if err != nil {
			return err
		}

		configDataDir = cfg.GetString(cfgKeyDataDir)
		configStoreName = cfg.GetString(cfgKeyStoreName)
		configLogLevel = cfg.GetString(cfgKeyLogLevel)
		return nil
	},
}

// Command groups. Subcommands register themselves in their own files.
var (
	taskCmd = &cobra.Command{
		Use:   "task",
		Short: "Manage tasks",
	}
	outcomeCmd = &cobra.Command{
		Use:   "outcome",
		Short: "Record task outcomes",
	}
	planCmd = &cobra.Command{
		Use:   "plan",
		Short: "Manage care plans",
	}
	syncCmd = &cobra.Command{
		Use:   "sync",
		Short: "Exchange revision records with peer stores",
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigDir, "config-dir", "", "configuration directory (default: platform config dir)")
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "data directory (default: $(CWD)/.careledger-db)")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output as JSON")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(outcomeCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(syncCmd)
}

// resolveDataDir follows the precedence chain
// --data-dir flag > config.yaml data_dir > CARELEDGER_DATA_DIR env > default.
func resolveDataDir() (string, error) {
	return paths.ResolveDataDir(flagDataDir, configDataDir)
}

// resolveConfigDir follows the precedence chain
// --config-dir flag > CARELEDGER_CONFIG_DIR env > DefaultConfigDir().
func resolveConfigDir() (string, error) {
	return paths.ResolveConfigDir(flagConfigDir)
}
