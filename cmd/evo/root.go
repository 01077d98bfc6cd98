package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rafaesapata/AWS-EVO-sub014/config"
)

var (
	version = "0.1.0"

	cfgPath string
	debug   bool

	rootCmd = &cobra.Command{
		Use:   "evo",
		Short: "AWS Telemetry Collection Engine",
		Long: `Evo - AWS Telemetry Collection Engine

Evo enumerates AWS resources across accounts and regions, retrieves
their CloudWatch metrics and CloudTrail audit events, and persists
everything locally. It signs every request itself with SigV4 and
speaks the AWS wire protocols directly.`,
		Version: version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if debug {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
		},
	}
)

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.SetVersionTemplate(`Evo {{.Version}} - AWS Telemetry Collection Engine
`)
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// loadConfig reads the configured file, or defaults when none given.
func loadConfig() (*config.Config, error) {
	if cfgPath == "" {
		return config.Default(), nil
	}
	return config.LoadConfig(cfgPath)
}
