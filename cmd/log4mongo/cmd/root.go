// Package cmd implements the log4mongo command line.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/log4mongo/log4mongo-go/internal/config"
	"github.com/log4mongo/log4mongo-go/internal/logging"
)

var (
	cfgFile  string
	logLevel string
	pretty   bool

	// cfg is loaded before any subcommand runs.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "log4mongo",
	Short: "Store log events in MongoDB",
	Long: `log4mongo writes log events as documents into a MongoDB collection.

Examples:
  # Accept events over HTTP
  log4mongo serve --config log4mongo.yaml

  # Write a test event every 100ms
  log4mongo console

  # Create an ingest API key
  log4mongo hash-key`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./log4mongo.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "diagnostic log level (overrides log.level)")
	rootCmd.PersistentFlags().BoolVar(&pretty, "pretty", false, "human readable diagnostics")
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	c, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if logLevel != "" {
		c.Log.Level = logLevel
	}
	if cmd.Flags().Changed("pretty") {
		c.Log.Pretty = pretty
	}
	logging.Init(c.Log.Level, c.Log.Pretty)
	cfg = c
	return nil
}
