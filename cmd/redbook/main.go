package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/redbook/internal/common"
)

var (
	// Command-line flags
	configFiles []string
	dataDir     string
	storagePath string
	chromePath  string
	headless    string

	// Global state, set by loadConfig before any subcommand runs
	config *common.Config
	logger arbor.ILogger
)

var rootCmd = &cobra.Command{
	Use:           "redbook",
	Short:         "MCP server and CLI for Xiaohongshu",
	Long:          `Redbook drives a Chrome browser against Xiaohongshu and exposes the results as MCP tools over stdio.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
	RunE: runServe,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringSliceVarP(&configFiles, "config", "c", nil, "Configuration file path (repeatable, later files override earlier ones)")
	flags.StringVar(&dataDir, "data-dir", "", "Data directory (env XHS_DATA_DIR)")
	flags.StringVar(&storagePath, "storage-path", "", "Credential file path (env XHS_STORAGE_PATH)")
	flags.StringVar(&chromePath, "chrome-path", "", "Chrome executable path (env XHS_CHROME_PATH)")
	flags.StringVar(&headless, "headless", "", "Headless mode for work units (true/false)")

	rootCmd.AddCommand(serveCmd, loginCmd, searchCmd, detailCmd, versionCmd)
}

// loadConfig resolves configuration: defaults -> files -> env -> flags
func loadConfig(cmd *cobra.Command) error {
	if len(configFiles) == 0 {
		if _, err := os.Stat("redbook.toml"); err == nil {
			configFiles = append(configFiles, "redbook.toml")
		}
	}

	var err error
	config, err = common.LoadFromFiles(configFiles...)
	if err != nil {
		return fmt.Errorf("failed to load configuration %v: %w", configFiles, err)
	}

	overrides := common.FlagOverrides{
		DataDir:     &dataDir,
		StoragePath: &storagePath,
		ChromePath:  &chromePath,
	}
	if cmd.Flags().Changed("headless") {
		// Anything but an explicit false keeps headless on
		on := headless != "false" && headless != "0"
		overrides.Headless = &on
	}
	common.ApplyFlagOverrides(config, overrides)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
