package cmd

import (
	"github.com/spf13/cobra"

	"pleia/server"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the Pleia HTTP server",
	Long:  `Start the Pleia API server: playlist generation, accounts, usage metering and the newsletter endpoints.`,
	Run: func(cmd *cobra.Command, args []string) {
		server.Start()
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
