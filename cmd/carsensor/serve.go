package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	httphandler "github.com/ericfisherdev/carsensor/internal/adapter/driving/http"
	"github.com/ericfisherdev/carsensor/internal/metrics"
)

func serveCmd(flags *globalFlags) *cobra.Command {
	var listenAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the local HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Signal-based context (SIGINT, SIGTERM).
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := wire(ctx, flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer rt.Close()

			addr := rt.cfg.ListenAddr
			if listenAddr != "" {
				addr = listenAddr
			}

			h := httphandler.NewHandler(rt.core, metrics.Handler(rt.registry), rt.logger)
			srv := &http.Server{
				Addr:              addr,
				Handler:           httphandler.NewServeMux(h, rt.logger),
				ReadHeaderTimeout: 5 * time.Second,
				ReadTimeout:       10 * time.Second,
				WriteTimeout:      rt.cfg.RequestTimeout + 10*time.Second,
				IdleTimeout:       120 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				rt.logger.Info("http server starting", "addr", addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			rt.logger.Info("carsensor started",
				"listen_addr", addr,
				"api_url", rt.cfg.APIURL,
				"authenticated", rt.core.IsAuthenticated(ctx),
			)

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}
			rt.logger.Info("shutting down")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				rt.logger.Error("http server shutdown error", "error", err)
			}

			rt.logger.Info("shutdown complete")
			return nil
		},
	}

	cmd.Flags().StringVar(&listenAddr, "listen", "", "Listen address (overrides CARSENSOR_LISTEN_ADDR)")
	return cmd
}
