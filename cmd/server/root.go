package main

import (
	"os"

	"github.com/spf13/cobra"
)

var configFile string

// rootCmd starts the server when called without a subcommand.
var rootCmd = &cobra.Command{
	Use:          "meetpoint-server",
	Short:        "Room synchronization server for live location sharing",
	SilenceUsage: true,
	RunE:         runServe,
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	// empty falls back to MEETPOINT_CONFIG_DEFAULT_PATH, then ./config.yaml
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	registerServeFlags(rootCmd)
}
