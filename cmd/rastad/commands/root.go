// Package commands implements the rastad CLI command tree.
package commands

import (
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "rastad",
	Short: "RaSTA Safety and Retransmission Layer demo host",
	Long: `rastad loads a RaSTA network configuration and runs a demonstration
of the Safety and Retransmission Layer core: two in-process stacks
connected over a loopback redundancy channel, establishing a
connection and exchanging data as a client and server would over a
real transport.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called once from main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config file (default: $XDG_CONFIG_HOME/rastad/config.yaml)")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// GetConfigFile returns the --config flag value.
func GetConfigFile() string { return cfgFile }
