package main

import (
	"fmt"

	"github.com/aretw0/caregraph"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of caregraph",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "caregraph version %s\n", caregraph.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
