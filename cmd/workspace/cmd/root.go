package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "workspace",
	Short: "GrantPilot workspace for NGO users",
	Long: `The GrantPilot workspace signs NGO users in, keeps their session alive and
runs the start-a-fit-check flow against the GrantPilot API.`,
	SilenceUsage: true,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(decodeStateCmd)
}
