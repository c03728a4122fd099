/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ssargent/binderdump/pkg/config"
	"github.com/ssargent/binderdump/pkg/di"
)

var container *di.Container

// SetContainer injects the dependencies used by the commands.
func SetContainer(c *di.Container) {
	container = c
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "binderdump",
	Short: "binderdump - Android Binder capture tool",
	Long: `binderdump traces binder ioctls through eBPF tracepoints, groups them
per thread and writes them to a pcapng file that Wireshark can dissect.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to config file (default: OS-specific location)")
}

// loadConfig reads the file named by --config. Without the flag the default
// location is used, and defaults apply when no file exists there.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path != "" {
		return config.LoadConfig(path)
	}
	path = config.GetDefaultConfigPath()
	if !config.ConfigExists(path) {
		return config.DefaultConfig(), nil
	}
	return config.LoadConfig(path)
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if container == nil {
		return nil, fmt.Errorf("dependency container not initialized")
	}
	return container.GetLoggerFactory()(cfg.Logging.Level, cfg.Logging.Format)
}
