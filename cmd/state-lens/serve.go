package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/devblac/state-lens/internal/api"
	"github.com/devblac/state-lens/internal/health"
)

var flagAddr string

func init() {
	serveCmd.Flags().StringVar(&flagAddr, "addr", "", "Listen address (overrides server.addr)")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the decoder and explorer over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, needs{rpc: true, metrics: true})
		if err != nil {
			return err
		}
		defer a.close()

		addr := a.cfg.Server.Addr
		if flagAddr != "" {
			addr = flagAddr
		}

		gin.SetMode(gin.ReleaseMode)
		router := api.NewRouter(api.Deps{
			Decoder:  a.worker,
			Explorer: a.explorer,
			Store:    a.store,
			Health: health.Checker{
				DBPing:      a.store.Ping,
				RPCPing:     health.RPCProbe(a.client),
				DecoderPing: health.DecoderProbe(a.worker),
			},
			Logger: a.log,
		})
		srv := &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			a.log.Info("listening", "addr", addr, "network", a.net.ID, "rpc", a.net.RPCURL)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			if err != nil {
				a.metrics.Errors()
				return fmt.Errorf("serve: %w", err)
			}
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	},
}
