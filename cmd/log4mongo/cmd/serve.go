package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/log4mongo/log4mongo-go/internal/controller"
	"github.com/log4mongo/log4mongo-go/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Accept log events over HTTP",
	Long: `Run the ingest server. Events posted to /api/ingest are written by the
configured appender; /api/health reports whether MongoDB is reachable.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	keys, err := controller.NewKeyStore(cfg.Server.APIKeys)
	if err != nil {
		return err
	}
	if !keys.Enabled() {
		log.Warn().Msg("No API keys configured, ingest is open to any client")
	}

	p, err := openPipeline(ctx, cfg)
	if err != nil {
		return err
	}

	srv, err := server.NewIngestServer(p, server.Options{
		Keys:         keys,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		Health:       p,

		GlobalProperties: cfg.Appender.GlobalProperties,
	})
	if err != nil {
		_ = p.Close(context.Background())
		return err
	}

	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("Listening")
		errCh <- srv.Start(addr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
	case err = <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("Server stopped")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		log.Error().Err(serr).Msg("Server shutdown error")
	}
	if cerr := p.Close(shutdownCtx); cerr != nil {
		log.Error().Err(cerr).Msg("Appender close error")
	}

	log.Info().Msg("log4mongo exited gracefully")
	return err
}
