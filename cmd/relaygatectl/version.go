package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

func init() {
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of relaygatectl",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("relaygatectl %s\n", version)
	},
}
