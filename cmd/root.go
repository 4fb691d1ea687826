package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pleia/logger"
	"pleia/server"
)

var rootCmd = &cobra.Command{
	Use:   "pleia",
	Short: "Pleia is an AI playlist generation service.",
	Run: func(cmd *cobra.Command, args []string) {
		logger.Info("[Main] starting server")
		server.Start()
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
