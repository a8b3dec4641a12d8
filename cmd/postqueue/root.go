package main

import (
	"log/slog"
	"os"

	"github.com/BranchIntl/postqueue/config"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "postqueue",
	Short: "Publish social posts through a retrying priority queue",
	Long: `postqueue drains a priority queue of social posts through platform connectors,
retrying transient failures with exponential backoff. Settings come from
POSTQUEUE_* environment variables.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newAuthURLCmd())
	rootCmd.AddCommand(newValidateCmd())
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the environment and installs the default logger
func loadConfig() (config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, err
	}
	level, err := cfg.Level()
	if err != nil {
		return config.Config{}, nil, err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return cfg, logger, nil
}
