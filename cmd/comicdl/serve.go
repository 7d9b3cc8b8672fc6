package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kerbaras/comicdl/pkg/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the download manager over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		manager, err := openManager(ctx)
		if err != nil {
			return err
		}
		defer manager.Close()

		srv := api.NewHTTPServer(cfg.Server.Address, cfg.Server.Port, api.NewRouter(manager, logger))

		errCh := make(chan error, 1)
		go func() {
			logger.Info().Str("addr", srv.Addr).Msg("HTTP API listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		logger.Info().Msg("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	serveCmd.Flags().String("address", "", "listen address")
	serveCmd.Flags().Int("port", 0, "listen port")
	v.BindPFlag("server.address", serveCmd.Flags().Lookup("address"))
	v.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
}
