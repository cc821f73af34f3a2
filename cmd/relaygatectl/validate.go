package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/user/relaygate/internal/config"
)

func init() {
	rootCmd.AddCommand(validateCmd)
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load the config directory and report how many sql-config and job-config entries were registered",
	Run: func(cmd *cobra.Command, args []string) {
		var warnings []string
		reg, err := config.New(configDir, func(format string, a ...any) {
			warnings = append(warnings, fmt.Sprintf(format, a...))
		})
		if err != nil {
			fmt.Printf("FAILED: %v\n", err)
			return
		}
		if err := reg.LoadAll("**/*"); err != nil {
			fmt.Printf("FAILED: %v\n", err)
			return
		}
		for _, w := range warnings {
			fmt.Println("warning:", w)
		}
		fmt.Printf("OK: loaded %d sql-config and %d job-config entries from %s\n",
			len(reg.SQLKeys()), len(reg.JobKeys()), configDir)
	},
}
