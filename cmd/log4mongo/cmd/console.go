package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/log4mongo/log4mongo-go/appender"
)

var (
	consoleInterval   time.Duration
	consoleConnection string
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Write a numbered event at a fixed interval until interrupted",
	Long: `Log "Starting" followed by an increasing counter through the slog handler,
echoing each event to stdout. Useful to watch documents arrive in MongoDB.

When the configuration names no connection, --connection is used.`,
	Args: cobra.NoArgs,
	RunE: runConsole,
}

func init() {
	rootCmd.AddCommand(consoleCmd)
	consoleCmd.Flags().DurationVar(&consoleInterval, "interval", 100*time.Millisecond, "time between events")
	consoleCmd.Flags().StringVar(&consoleConnection, "connection", "mongodb://localhost", "fallback connection string")
}

func runConsole(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := *cfg
	a := c.Appender
	if a.ConnectionString == "" && a.ConnectionStringName == "" && a.Host == "" {
		c.Appender.ConnectionString = consoleConnection
	}

	p, err := openPipeline(ctx, &c)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := p.Close(closeCtx); err != nil {
			log.Error().Err(err).Msg("Appender close error")
		}
	}()

	logger := slog.New(appender.NewHandler(p, &appender.HandlerOptions{
		Level:            slog.LevelDebug,
		LoggerName:       "log4mongo.console",
		GlobalProperties: c.Appender.GlobalProperties,
	}))

	out := cmd.OutOrStdout()
	logger.InfoContext(ctx, "Starting")
	fmt.Fprintln(out, "INFO - Starting")

	ticker := time.NewTicker(consoleInterval)
	defer ticker.Stop()

	for count := 1; ; count++ {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			msg := fmt.Sprint(count)
			logger.InfoContext(ctx, msg)
			fmt.Fprintln(out, "INFO - "+msg)
		}
	}
}
