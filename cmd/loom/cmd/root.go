// Package cmd provides the command-line interface for Loom.
package cmd

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "loom",
	Short: "Loom simulates input-queued routers cycle by cycle.",
	Long: `Loom is a cycle-accurate simulator for input-queued routers with ` +
		`virtual channels, credit-based flow control, and split ` +
		`slow-path/fast-path switch allocation.`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	_ = godotenv.Load()

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
