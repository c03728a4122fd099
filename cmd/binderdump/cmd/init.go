/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ssargent/binderdump/pkg/config"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default binderdump configuration",
	Long: `Write a default configuration file and create the data directory.

The capture output and the session catalog are placed under the data
directory.

Examples:
	  binderdump init
	  binderdump init --data-dir /data/local/tmp/binderdump --config ./binderdump.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dataDir, _ := cmd.Flags().GetString("data-dir")
		configPath, _ := cmd.Flags().GetString("config")
		force, _ := cmd.Flags().GetBool("force")

		if configPath == "" {
			configPath = config.GetDefaultConfigPath()
		}

		if config.ConfigExists(configPath) && !force {
			cmd.Printf("Configuration already exists at %s. Use --force to overwrite it.\n", configPath)
			return nil
		}

		cfg, err := config.BootstrapConfig(configPath, dataDir)
		if err != nil {
			return err
		}

		cmd.Printf("Configuration written to %s\n", configPath)
		cmd.Printf("Data directory: %s\n", cfg.DataDir)
		cmd.Printf("Capture output: %s\n", cfg.Capture.Output)
		cmd.Printf("\nStart a capture with:\n  binderdump capture --config %s\n", configPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().StringP("data-dir", "d", "./data", "Data directory for captures and the session catalog")
	initCmd.Flags().Bool("force", false, "Overwrite an existing configuration")
}
