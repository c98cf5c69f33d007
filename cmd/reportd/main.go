package main

import (
	"os"

	"github.com/spf13/cobra"
)

const serviceName = "tenant-reports"

var rootCmd = &cobra.Command{
	Use:          "reportd",
	Short:        "Tenant metrics reports and billing service",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

func main() {
	rootCmd.AddCommand(newServeCmd(), newMigrateCmd(), newSnapshotCmd(), newSeedCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
