package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"togglsync/internal/config"
	"togglsync/internal/logging"
)

var rootLogLevel string

var rootCmd = &cobra.Command{
	Use:   "togglsync",
	Short: "togglsync – reconcile Toggl time entries with GitLab issues",
	Long: `togglsync reads time entries from Toggl Track, resolves the GitLab issue
each entry refers to (by "#123", "PROJ-42" or similar references in the
description), and logs the tracked time on the issue via /spend.

Configuration lives in ~/.togglsync/config.yaml; credentials may also be
supplied via environment variables such as TOGGL_API_TOKEN and GITLAB_TOKEN.`,
}

// Execute is the entry point called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootLogLevel, "log-level", "", "Log level: trace, debug, info, warn, error")
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(serveCmd)
}

// loadConfig loads and validates the configuration and builds the logger.
// The --log-level flag wins over config and environment.
func loadConfig() (config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, zerolog.Nop(), err
	}
	if rootLogLevel != "" {
		cfg.Log.Level = rootLogLevel
	}
	log := logging.New(cfg.Log.Level)
	if err := cfg.Validate(); err != nil {
		return cfg, log, err
	}
	return cfg, log, nil
}
