package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/user/relaygate/internal/config"
)

func init() {
	rootCmd.AddCommand(describeCmd)
}

var describeCmd = &cobra.Command{
	Use:   "describe [apiKey]",
	Short: "Print the registered EndpointDef for an apiKey as JSON",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		reg, err := config.New(configDir, nil)
		if err != nil {
			fmt.Printf("FAILED: %v\n", err)
			return
		}
		if err := reg.LoadAll("**/*"); err != nil {
			fmt.Printf("FAILED: %v\n", err)
			return
		}
		endpoint, ok := reg.GetSqlConfig(args[0])
		if !ok {
			fmt.Printf("no sql-config registered for apiKey %q\n", args[0])
			return
		}
		out, err := json.MarshalIndent(endpoint, "", "  ")
		if err != nil {
			fmt.Printf("FAILED: %v\n", err)
			return
		}
		fmt.Println(string(out))
	},
}
