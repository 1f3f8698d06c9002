package main

import (
	"fmt"

	"github.com/giygas/qualite-eau-api/config"
	"github.com/giygas/qualite-eau-api/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "qualite-eau",
	Short: "Drinking water quality reports from Hub'Eau data",
	Long: `qualite-eau rates the tap water of French communes from the analyses
published by Hub'Eau, and serves the same reports over HTTP.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		level := "warn"
		if verbose {
			level = "debug"
		}
		logging.InitConsoleLogger(cmd.ErrOrStderr(), level)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug output to stderr")
}

// loadConfig reads .env when present, then the environment.
func loadConfig() (*config.Config, error) {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
