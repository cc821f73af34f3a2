package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var configDir string

var rootCmd = &cobra.Command{
	Use:   "relaygatectl",
	Short: "relaygatectl inspects and validates a relaygate config directory",
	Long:  `A developer-focused terminal tool for validating sql-config/job-config trees and describing registered endpoints.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "config", "directory containing db-config/auth-config/sql-config/job-config files")
	viper.BindPFlag("configDir", rootCmd.PersistentFlags().Lookup("config-dir"))
	viper.AutomaticEnv()
}

func initConfig() {
	if v := viper.GetString("configDir"); v != "" {
		configDir = v
	}
}
